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

//go:build cgo

package store

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), Config{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_CreatesSchema(t *testing.T) {
	s := setupTestStore(t)

	res, err := s.Query(context.Background(), `SELECT name FROM sqlite_master WHERE type='table' AND name='symbols'`)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(res.Rows) != 1 {
		t.Fatalf("expected symbols table to exist, got %d rows", len(res.Rows))
	}
}

func TestOpen_IdempotentReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := Open(dir, Config{})
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if _, err := s1.Execute(context.Background(), `INSERT INTO files (path, language) VALUES (?, ?)`, "a.go", "go"); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := s1.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s2, err := Open(dir, Config{})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s2.Close()

	res, err := s2.Query(context.Background(), `SELECT path FROM files`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(res.Rows) != 1 || res.Rows[0][0] != "a.go" {
		t.Fatalf("expected file to survive reopen, got %+v", res.Rows)
	}
}

func TestForeignKeyCascade(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res, err := s.Execute(ctx, `INSERT INTO files (path, language) VALUES (?, ?)`, "a.go", "go")
	if err != nil {
		t.Fatalf("insert file failed: %v", err)
	}
	fileID, _ := res.LastInsertId()

	if _, err := s.Execute(ctx, `INSERT INTO symbols (file_id, name, kind) VALUES (?, ?, ?)`, fileID, "Foo", "function"); err != nil {
		t.Fatalf("insert symbol failed: %v", err)
	}

	if _, err := s.Execute(ctx, `DELETE FROM files WHERE id = ?`, fileID); err != nil {
		t.Fatalf("delete file failed: %v", err)
	}

	res2, err := s.Query(ctx, `SELECT COUNT(*) FROM symbols`)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if got := res2.Rows[0][0]; got != int64(0) {
		t.Fatalf("expected cascade delete to remove symbols, got count %v", got)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO files (path) VALUES (?)`, "b.go"); err != nil {
			return err
		}
		return sql.ErrTxDone
	})
	if err == nil {
		t.Fatal("expected WithTx to return error")
	}

	res, err := s.Query(ctx, `SELECT COUNT(*) FROM files`)
	if err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if got := res.Rows[0][0]; got != int64(0) {
		t.Fatalf("expected rollback, got %v rows", got)
	}
}

func TestChunkInt64(t *testing.T) {
	ids := make([]int64, 850)
	for i := range ids {
		ids[i] = int64(i)
	}
	chunks := ChunkInt64(ids)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks for 850 ids, got %d", len(chunks))
	}
	if len(chunks[0]) != MaxINChunk || len(chunks[1]) != MaxINChunk {
		t.Fatalf("expected full chunks of %d, got %d and %d", MaxINChunk, len(chunks[0]), len(chunks[1]))
	}
	if len(chunks[2]) != 50 {
		t.Fatalf("expected remainder chunk of 50, got %d", len(chunks[2]))
	}
}

func TestQueryByIDs(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var ids []int64
	for i := 0; i < 5; i++ {
		res, err := s.Execute(ctx, `INSERT INTO files (path) VALUES (?)`, fmt.Sprintf("f%d.go", i))
		if err != nil {
			t.Fatalf("insert failed: %v", err)
		}
		id, _ := res.LastInsertId()
		ids = append(ids, id)
	}

	res, err := s.QueryByIDs(ctx, `SELECT id FROM files WHERE id IN (%s)`, ids)
	if err != nil {
		t.Fatalf("QueryByIDs failed: %v", err)
	}
	if len(res.Rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(res.Rows))
	}
}
