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

// Package store provides the embedded, single-file relational store that
// backs a project's index: files, symbols, edges, git history, and derived
// graph metrics, all in one SQLite database under .roam/index.db.
//
// It replaces the datalog-backed storage layer with a plain SQL schema so
// that ordinary B-tree indexes, foreign-key cascades, and batched IN (?,?)
// lookups are available directly, without a query language translation
// layer in between.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultRelPath is where the index lives relative to a project root.
const DefaultRelPath = ".roam/index.db"

// SchemaVersion is the schema version this binary expects. A store opened
// with an older or newer on-disk version is reported as stale.
const SchemaVersion = 1

// Backend is the interface the rest of roam depends on for persistence.
// It mirrors the shape of the teacher's datalog Backend interface
// (Query/Execute/Close) but speaks SQL instead of datalog.
type Backend interface {
	// Query executes a read-only SQL query and returns the results.
	Query(ctx context.Context, query string, args ...any) (*QueryResult, error)

	// Execute runs a SQL statement (insert, update, delete, ddl).
	Execute(ctx context.Context, query string, args ...any) (sql.Result, error)

	// WithTx runs fn inside a single write transaction, committing on
	// success and rolling back if fn returns an error.
	WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error

	// Close releases any resources held by the backend.
	Close() error
}

// QueryResult is a materialized SQL result set, analogous to the teacher's
// datalog QueryResult (Headers/Rows), so query-envelope code can stay
// shape-compatible regardless of backend.
type QueryResult struct {
	Headers []string
	Rows    [][]any
}

// Config configures the embedded store.
type Config struct {
	// Path is the database file path. Defaults to DefaultRelPath joined
	// under the project root passed to Open.
	Path string
}

// Store implements Backend using a local mattn/go-sqlite3 connection.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

var _ Backend = (*Store)(nil)

// Open opens (creating if necessary) the index database at root/cfg.Path
// (or root/.roam/index.db if cfg.Path is empty), enabling WAL journaling
// and foreign-key enforcement, then ensures the schema exists.
func Open(root string, cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = filepath.Join(root, DefaultRelPath)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// A single writer connection keeps the WAL-mode busy-timeout
	// retry loop meaningful; SQLite serializes writes regardless.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenExisting opens the index database without creating it, returning
// ErrNotExist-wrapping error if it is absent. Used by commands that require
// an index to already be present (query, status, gate).
func OpenExisting(root string, cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = filepath.Join(root, DefaultRelPath)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return Open(root, Config{Path: path})
}

// Path returns the on-disk path of the database file.
func (s *Store) Path() string { return s.path }

// DB returns the underlying *sql.DB for callers that need raw access
// (e.g. the graph package batch-loading rows into gonum structures).
func (s *Store) DB() *sql.DB { return s.db }

// Query executes a read-only query and materializes the result set.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := &QueryResult{Headers: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		result.Rows = append(result.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// Execute runs a write statement.
func (s *Store) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute failed: %w", err)
	}
	return res, nil
}

// WithTx runs fn inside a single write transaction. A panic or error from
// fn rolls back the transaction; otherwise it is committed. Used by the
// indexer so a partial file batch never leaves the store half-written.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
