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
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mulle-cc/roam-code-sub006/internal/bootstrap"
	"github.com/mulle-cc/roam-code-sub006/internal/config"
	"github.com/mulle-cc/roam-code-sub006/internal/errors"
	"github.com/mulle-cc/roam-code-sub006/internal/output"
	"github.com/mulle-cc/roam-code-sub006/internal/ui"
)

func runStatus(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	_ = fs.Parse(args)

	ui.InitColors(globals.NoColor)

	root, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewIOError("could not determine working directory", err.Error(), "", err), globals.JSON)
	}

	if !bootstrap.HasIndex(root, "") {
		err := errors.NewIndexMissingError("no roam index found", "", "run `roam init` and `roam index`", nil)
		errors.FatalError(err, globals.JSON)
	}

	st, err := bootstrap.OpenProject(bootstrap.ProjectConfig{Root: root}, nil)
	if err != nil {
		errors.FatalError(errors.NewIndexMissingError("could not open roam index", err.Error(), "run `roam index`", err), globals.JSON)
	}
	defer st.Close()

	cfg, err := config.Load(root, globals.Config)
	if err != nil {
		errors.FatalError(errors.NewIOError("failed to load project.yaml", err.Error(), "", err), globals.JSON)
	}

	ctx := context.Background()
	counts := map[string]int64{}
	for name, query := range map[string]string{
		"files":       `SELECT count(*) FROM files`,
		"symbols":     `SELECT count(*) FROM symbols`,
		"edges":       `SELECT count(*) FROM edges`,
		"commits":     `SELECT count(*) FROM git_commits`,
		"clusters":    `SELECT count(*) FROM clusters`,
		"hyperedges":  `SELECT count(*) FROM git_hyperedges`,
	} {
		res, err := st.Query(ctx, query)
		if err != nil {
			errors.FatalError(errors.NewInternalError("status query failed", err.Error(), "", err), globals.JSON)
		}
		if len(res.Rows) == 1 {
			counts[name] = asInt64Row(res.Rows[0][0])
		}
	}

	if globals.JSON {
		_ = output.JSON(map[string]any{
			"project_id": cfg.ProjectID,
			"db_path":    st.Path(),
			"counts":     counts,
		})
		return
	}

	ui.Header("Project status")
	fmt.Printf("  %s %s\n", ui.Label("project:"), cfg.ProjectID)
	fmt.Printf("  %s %s\n", ui.Label("index:"), st.Path())
	fmt.Printf("  %s %d\n", ui.Label("files:"), counts["files"])
	fmt.Printf("  %s %d\n", ui.Label("symbols:"), counts["symbols"])
	fmt.Printf("  %s %d\n", ui.Label("edges:"), counts["edges"])
	fmt.Printf("  %s %d\n", ui.Label("git commits:"), counts["commits"])
	fmt.Printf("  %s %d\n", ui.Label("clusters:"), counts["clusters"])
	fmt.Printf("  %s %d\n", ui.Label("co-change hyperedges:"), counts["hyperedges"])
}

func asInt64Row(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
