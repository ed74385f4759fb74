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

// Package bootstrap sets up and opens a project's index store.
//
// Unlike a home-directory-keyed data store, a roam project's index lives
// alongside the project itself, at <root>/.roam/index.db, so the index
// travels with the checkout and `roam init` never needs a project ID.
package bootstrap

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

// ProjectConfig holds configuration for initializing a project.
type ProjectConfig struct {
	// Root is the project's working directory (normally the repository
	// root). The index is created at Root/.roam/index.db.
	Root string

	// DBPath overrides the default .roam/index.db location, relative to
	// Root unless absolute. Mainly used by tests.
	DBPath string
}

// ProjectInfo holds information about an initialized project.
type ProjectInfo struct {
	Root   string
	DBPath string
}

// InitProject initializes a new roam project in Root. This function is
// idempotent: calling it multiple times is safe and simply reopens the
// existing store, applying schema migrations if needed.
func InitProject(config ProjectConfig, logger *slog.Logger) (*ProjectInfo, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.Root == "" {
		return nil, fmt.Errorf("root is required")
	}

	logger.Info("bootstrap.project.init.start",
		"root", config.Root,
		"db_path", config.DBPath,
	)

	s, err := store.Open(config.Root, store.Config{Path: config.DBPath})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = s.Close() }()

	logger.Info("bootstrap.project.init.success",
		"root", config.Root,
		"db_path", s.Path(),
	)

	return &ProjectInfo{Root: config.Root, DBPath: s.Path()}, nil
}

// OpenProject opens an existing roam project's store. Returns an error if
// the store file does not exist (run `roam init` first) or if its schema
// version does not match this binary.
func OpenProject(config ProjectConfig, logger *slog.Logger) (*store.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if config.Root == "" {
		return nil, fmt.Errorf("root is required")
	}

	s, err := store.OpenExisting(config.Root, store.Config{Path: config.DBPath})
	if err != nil {
		return nil, fmt.Errorf("project not found at %s (run 'roam init' first): %w", config.Root, err)
	}

	logger.Debug("bootstrap.project.open", "root", config.Root, "db_path", s.Path())
	return s, nil
}

// HasIndex reports whether an index store already exists at Root without
// opening it, for fast-path existence checks (e.g. `roam status`).
func HasIndex(root, dbPath string) bool {
	if dbPath == "" {
		dbPath = filepath.Join(root, store.DefaultRelPath)
	} else if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(root, dbPath)
	}
	_, err := os.Stat(dbPath)
	return err == nil
}
