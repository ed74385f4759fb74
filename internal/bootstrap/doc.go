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

// Package bootstrap handles roam project initialization and setup.
//
// This internal package provides the core initialization logic for roam
// projects. It opens the project's SQLite-backed index store and ensures
// the schema is applied before the project can be queried.
//
// # Initialization Workflow
//
//	info, err := bootstrap.InitProject(bootstrap.ProjectConfig{
//	    Root: "/path/to/repo",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Project initialized at: %s\n", info.DBPath)
//
//	s, err := bootstrap.OpenProject(bootstrap.ProjectConfig{
//	    Root: "/path/to/repo",
//	}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer s.Close()
//
// # Idempotency
//
// InitProject is idempotent: calling it multiple times on the same root
// is safe and will not corrupt existing data.
//
// # Configuration
//
// ProjectConfig controls the initialization behavior:
//
//   - Root: Required. The project's working directory.
//   - DBPath: Optional. Overrides the default Root/.roam/index.db location.
package bootstrap
