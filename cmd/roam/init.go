// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mulle-cc/roam-code-sub006/internal/bootstrap"
	"github.com/mulle-cc/roam-code-sub006/internal/config"
	"github.com/mulle-cc/roam-code-sub006/internal/errors"
	"github.com/mulle-cc/roam-code-sub006/internal/ui"
)

func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	projectID := fs.String("project-id", "", "Override the project id stored in project.yaml")
	_ = fs.Parse(args)

	ui.InitColors(globals.NoColor)

	root, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewIOError("could not determine working directory", err.Error(), "", err), globals.JSON)
	}

	id := *projectID
	if id == "" {
		absRoot, _ := filepath.Abs(root)
		id = filepath.Base(absRoot)
	}

	info, err := bootstrap.InitProject(bootstrap.ProjectConfig{Root: root}, nil)
	if err != nil {
		errors.FatalError(errors.NewEnvironmentError("failed to initialize project store", err.Error(),
			"check that the directory is writable", err), globals.JSON)
	}

	cfg := config.Default(id)
	if err := config.Save(root, globals.Config, cfg); err != nil {
		errors.FatalError(errors.NewIOError("failed to write project.yaml", err.Error(), "", err), globals.JSON)
	}

	if globals.JSON {
		fmt.Printf(`{"project_id":%q,"db_path":%q,"config_path":%q}`+"\n", id, info.DBPath, filepath.Join(root, config.DefaultRelPath))
		return
	}

	ui.Success(fmt.Sprintf("Initialized roam project %q", id))
	fmt.Printf("  %s %s\n", ui.Label("index:"), info.DBPath)
	fmt.Printf("  %s %s\n", ui.Label("config:"), filepath.Join(root, config.DefaultRelPath))
	fmt.Println("\nNext: run `roam index` to build the index.")
}
