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

// Package workspace implements the multi-repo overlay described in
// spec.md §6: a small SQLite database that sits above several
// independently-indexed project stores, recording which repo each came
// from and the cross-edges a bridge pass found between them. It reuses
// pkg/store's own connection/migration pattern rather than re-deriving
// one, since the two are the same embedded-SQLite shape at different
// scopes.
package workspace

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mulle-cc/roam-code-sub006/pkg/bridge"
)

// DefaultRelPath is where the overlay database lives relative to a
// workspace root.
const DefaultRelPath = ".roam-workspace/workspace.db"

var workspaceSchema = []string{
	`CREATE TABLE IF NOT EXISTS ws_repos (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL UNIQUE,
		root_path TEXT NOT NULL,
		index_path TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ws_route_symbols (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repo_id INTEGER NOT NULL REFERENCES ws_repos(id) ON DELETE CASCADE,
		symbol_name TEXT NOT NULL,
		qualified_name TEXT,
		file_path TEXT NOT NULL,
		kind TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ws_cross_edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_repo_id INTEGER NOT NULL REFERENCES ws_repos(id) ON DELETE CASCADE,
		target_repo_id INTEGER NOT NULL REFERENCES ws_repos(id) ON DELETE CASCADE,
		source_symbol TEXT NOT NULL,
		target_symbol TEXT NOT NULL,
		kind TEXT NOT NULL DEFAULT 'x-lang',
		bridge_name TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ws_route_symbols_repo ON ws_route_symbols(repo_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ws_cross_edges_source ON ws_cross_edges(source_repo_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ws_cross_edges_target ON ws_cross_edges(target_repo_id)`,
}

// Workspace is the overlay database above several project stores.
type Workspace struct {
	db   *sql.DB
	mu   sync.RWMutex
	path string
}

// Open opens (creating if necessary) the overlay database at
// root/.roam-workspace/workspace.db.
func Open(root string) (*Workspace, error) {
	path := filepath.Join(root, DefaultRelPath)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create workspace dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	db.SetMaxOpenConns(1)

	w := &Workspace{db: db, path: path}
	for _, stmt := range workspaceSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("workspace schema: %w", err)
		}
	}
	return w, nil
}

// Path returns the on-disk path of the overlay database.
func (w *Workspace) Path() string { return w.path }

// Close releases the underlying connection.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.db.Close()
}

// Repo is one project registered in the workspace.
type Repo struct {
	ID        int64
	Name      string
	RootPath  string
	IndexPath string
}

// AddRepo registers a repo in the overlay, replacing any prior row for
// the same name (re-running `roam workspace add` updates paths rather
// than erroring).
func (w *Workspace) AddRepo(ctx context.Context, name, rootPath, indexPath string) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.db.ExecContext(ctx,
		`INSERT INTO ws_repos (name, root_path, index_path) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET root_path = excluded.root_path, index_path = excluded.index_path`,
		name, rootPath, indexPath); err != nil {
		return 0, fmt.Errorf("add repo: %w", err)
	}

	// An upsert that takes the UPDATE branch leaves last_insert_rowid at the
	// connection's previous insert, so the id is always read back by name.
	var id int64
	if err := w.db.QueryRowContext(ctx, `SELECT id FROM ws_repos WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("add repo: lookup id: %w", err)
	}
	return id, nil
}

// Repos lists every registered repo.
func (w *Workspace) Repos(ctx context.Context) ([]Repo, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	rows, err := w.db.QueryContext(ctx, `SELECT id, name, root_path, index_path FROM ws_repos ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list repos: %w", err)
	}
	defer rows.Close()

	var out []Repo
	for rows.Next() {
		var r Repo
		if err := rows.Scan(&r.ID, &r.Name, &r.RootPath, &r.IndexPath); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetRouteSymbols replaces repoID's route-symbol rows with symbols,
// clearing the prior set first so a re-scan doesn't accumulate stale
// entries from deleted routes.
func (w *Workspace) SetRouteSymbols(ctx context.Context, repoID int64, symbols []bridge.SourceSymbol) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM ws_route_symbols WHERE repo_id = ?`, repoID); err != nil {
		return err
	}
	for _, s := range symbols {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ws_route_symbols (repo_id, symbol_name, qualified_name, file_path, kind) VALUES (?, ?, ?, ?, ?)`,
			repoID, s.Name, s.QualifiedName, s.FilePath, s.Kind); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// RouteSymbols returns every route symbol registered for repoID.
func (w *Workspace) RouteSymbols(ctx context.Context, repoID int64) ([]bridge.SourceSymbol, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	rows, err := w.db.QueryContext(ctx,
		`SELECT symbol_name, qualified_name, file_path, kind FROM ws_route_symbols WHERE repo_id = ?`, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bridge.SourceSymbol
	for rows.Next() {
		var s bridge.SourceSymbol
		if err := rows.Scan(&s.Name, &s.QualifiedName, &s.FilePath, &s.Kind); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AddCrossEdges inserts every bridge-produced edge between sourceRepoID
// and targetRepoID.
func (w *Workspace) AddCrossEdges(ctx context.Context, sourceRepoID, targetRepoID int64, edges []bridge.Edge) error {
	if len(edges) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ws_cross_edges (source_repo_id, target_repo_id, source_symbol, target_symbol, kind, bridge_name)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			sourceRepoID, targetRepoID, e.Source, e.Target, e.Kind, e.Bridge); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// CrossEdges returns every cross-repo edge touching repoID, as either
// source or target.
func (w *Workspace) CrossEdges(ctx context.Context, repoID int64) ([]bridge.Edge, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	rows, err := w.db.QueryContext(ctx,
		`SELECT source_symbol, target_symbol, kind, bridge_name FROM ws_cross_edges
		 WHERE source_repo_id = ? OR target_repo_id = ?`, repoID, repoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []bridge.Edge
	for rows.Next() {
		var e bridge.Edge
		if err := rows.Scan(&e.Source, &e.Target, &e.Kind, &e.Bridge); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
