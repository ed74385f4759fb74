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

package testing

import (
	"context"
	"testing"

	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

// SetupTestStore creates an isolated SQLite-backed store for testing,
// rooted in a fresh temp directory. The store is closed automatically
// when the test finishes.
func SetupTestStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(t.TempDir(), store.Config{})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })
	return s
}

// InsertTestFile adds a test file row and returns its id.
func InsertTestFile(t *testing.T, s *store.Store, path, hash, language string) int64 {
	t.Helper()

	res, err := s.Execute(context.Background(),
		`INSERT INTO files (path, hash, language) VALUES (?, ?, ?)`,
		path, hash, language,
	)
	if err != nil {
		t.Fatalf("failed to insert test file: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read inserted file id: %v", err)
	}
	return id
}

// InsertTestSymbol adds a test symbol row scoped to fileID and returns its id.
func InsertTestSymbol(t *testing.T, s *store.Store, fileID int64, name, kind string, lineStart, lineEnd int) int64 {
	t.Helper()

	res, err := s.Execute(context.Background(),
		`INSERT INTO symbols (file_id, name, kind, line_start, line_end) VALUES (?, ?, ?, ?, ?)`,
		fileID, name, kind, lineStart, lineEnd,
	)
	if err != nil {
		t.Fatalf("failed to insert test symbol: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("failed to read inserted symbol id: %v", err)
	}
	return id
}

// InsertTestEdge adds a symbol-to-symbol edge of the given kind.
func InsertTestEdge(t *testing.T, s *store.Store, sourceID, targetID int64, kind string) {
	t.Helper()

	_, err := s.Execute(context.Background(),
		`INSERT INTO edges (source_id, target_id, kind) VALUES (?, ?, ?)`,
		sourceID, targetID, kind,
	)
	if err != nil {
		t.Fatalf("failed to insert test edge: %v", err)
	}
}

// InsertTestFileEdge adds a file-to-file edge of the given kind.
func InsertTestFileEdge(t *testing.T, s *store.Store, sourceFileID, targetFileID int64, kind string) {
	t.Helper()

	_, err := s.Execute(context.Background(),
		`INSERT INTO file_edges (source_file_id, target_file_id, kind) VALUES (?, ?, ?)`,
		sourceFileID, targetFileID, kind,
	)
	if err != nil {
		t.Fatalf("failed to insert test file edge: %v", err)
	}
}

// QuerySymbols is a helper to query all symbols from the store.
func QuerySymbols(t *testing.T, s *store.Store) *store.QueryResult {
	t.Helper()

	result, err := s.Query(context.Background(), `SELECT id, name, kind FROM symbols`)
	if err != nil {
		t.Fatalf("failed to query symbols: %v", err)
	}
	return result
}

// QueryFiles is a helper to query all files from the store.
func QueryFiles(t *testing.T, s *store.Store) *store.QueryResult {
	t.Helper()

	result, err := s.Query(context.Background(), `SELECT id, path FROM files`)
	if err != nil {
		t.Fatalf("failed to query files: %v", err)
	}
	return result
}
