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

	"github.com/mulle-cc/roam-code-sub006/internal/errors"
	"github.com/mulle-cc/roam-code-sub006/internal/ui"
	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

func runReset(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	_ = fs.Parse(args)

	ui.InitColors(globals.NoColor)

	root, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewIOError("could not determine working directory", err.Error(), "", err), globals.JSON)
	}

	dbPath := filepath.Join(root, store.DefaultRelPath)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		ui.Info("nothing to reset: no index found")
		return
	}

	if !*yes {
		fmt.Printf("This deletes %s. Continue? [y/N] ", dbPath)
		var reply string
		_, _ = fmt.Scanln(&reply)
		if reply != "y" && reply != "Y" {
			ui.Info("aborted")
			return
		}
	}

	if err := os.Remove(dbPath); err != nil {
		errors.FatalError(errors.NewIOError("failed to remove index", err.Error(), "", err), globals.JSON)
	}
	// SQLite's WAL mode leaves -wal/-shm siblings; best-effort cleanup,
	// ignoring errors since their absence is the common case.
	_ = os.Remove(dbPath + "-wal")
	_ = os.Remove(dbPath + "-shm")

	ui.Success("roam index removed")
}
