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

package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/mulle-cc/roam-code-sub006/internal/config"
	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

func setupProject(t *testing.T, files map[string]string) (root string, ix *Indexer) {
	t.Helper()
	root = t.TempDir()
	for rel, content := range files {
		full := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(full, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", rel, err)
		}
	}

	st, err := store.Open(root, store.Config{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	ix = New(st, root, config.Default("test"))
	return root, ix
}

const goMain = `package main

func Helper() int {
	return 1
}

func main() {
	Helper()
}
`

const goCaller = `package other

import "fmt"

func UseHelper() {
	fmt.Println("calling")
}
`

func TestRun_NewFilesProduceSymbolsAndEdges(t *testing.T) {
	_, ix := setupProject(t, map[string]string{
		"main.go":  goMain,
		"other.go": goCaller,
	})

	report, err := ix.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.FilesNew != 2 {
		t.Fatalf("expected 2 new files, got %d", report.FilesNew)
	}
	if report.SymbolsWritten == 0 {
		t.Fatal("expected symbols to be written")
	}

	res, err := ix.Store.Query(context.Background(), `SELECT COUNT(*) FROM edges WHERE kind = 'call'`)
	if err != nil {
		t.Fatalf("query edges: %v", err)
	}
	if res.Rows[0][0].(int64) < 1 {
		t.Fatalf("expected at least one call edge (main -> Helper), got %v", res.Rows[0][0])
	}
}

func TestRun_SecondPassIsNoOp(t *testing.T) {
	_, ix := setupProject(t, map[string]string{"main.go": goMain})

	if _, err := ix.Run(context.Background(), false); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	report, err := ix.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.FilesNew != 0 || report.FilesModified != 0 {
		t.Fatalf("expected no changes on second pass, got new=%d modified=%d", report.FilesNew, report.FilesModified)
	}
	if report.FilesUnchanged != 1 {
		t.Fatalf("expected 1 unchanged file, got %d", report.FilesUnchanged)
	}
}

func TestRun_DetectsModificationByHash(t *testing.T) {
	root, ix := setupProject(t, map[string]string{"main.go": goMain})

	if _, err := ix.Run(context.Background(), false); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	if err := os.WriteFile(filepath.Join(root, "main.go"), []byte(goMain+"\nfunc Extra() {}\n"), 0644); err != nil {
		t.Fatalf("rewrite file: %v", err)
	}

	report, err := ix.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.FilesModified != 1 {
		t.Fatalf("expected 1 modified file, got %d", report.FilesModified)
	}
}

func TestRun_DeletedFileRemovesSymbols(t *testing.T) {
	root, ix := setupProject(t, map[string]string{"main.go": goMain})

	if _, err := ix.Run(context.Background(), false); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	if err := os.Remove(filepath.Join(root, "main.go")); err != nil {
		t.Fatalf("remove file: %v", err)
	}

	report, err := ix.Run(context.Background(), false)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if report.FilesDeleted != 1 {
		t.Fatalf("expected 1 deleted file, got %d", report.FilesDeleted)
	}

	res, err := ix.Store.Query(context.Background(), `SELECT COUNT(*) FROM symbols`)
	if err != nil {
		t.Fatalf("query symbols: %v", err)
	}
	if res.Rows[0][0].(int64) != 0 {
		t.Fatalf("expected symbols to cascade-delete with their file, got %v", res.Rows[0][0])
	}
}

func TestRun_ForceReindexesUnchangedFiles(t *testing.T) {
	_, ix := setupProject(t, map[string]string{"main.go": goMain})

	if _, err := ix.Run(context.Background(), false); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	report, err := ix.Run(context.Background(), true)
	if err != nil {
		t.Fatalf("forced run failed: %v", err)
	}
	if report.FilesModified != 1 {
		t.Fatalf("expected force reindex to treat the file as modified, got %d", report.FilesModified)
	}
}

func TestRun_ComputesSymbolMetrics(t *testing.T) {
	_, ix := setupProject(t, map[string]string{"main.go": goMain})

	if _, err := ix.Run(context.Background(), false); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	res, err := ix.Store.Query(context.Background(), `SELECT COUNT(*) FROM symbol_metrics`)
	if err != nil {
		t.Fatalf("query symbol_metrics: %v", err)
	}
	if res.Rows[0][0].(int64) == 0 {
		t.Fatal("expected symbol_metrics rows for extracted symbols")
	}
}

func TestClean_RemovesVacuumsWithoutError(t *testing.T) {
	_, ix := setupProject(t, map[string]string{"main.go": goMain})

	if _, err := ix.Run(context.Background(), false); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	report, err := ix.Clean(context.Background())
	if err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if !report.Vacuumed {
		t.Fatal("expected Clean to vacuum the store")
	}
}

func TestPartition_ClassifiesByHash(t *testing.T) {
	existing := map[string]existingFile{
		"a.go": {ID: 1, Hash: "hash-a"},
		"b.go": {ID: 2, Hash: "hash-b"},
	}
	hashes := map[string]string{
		"a.go": "hash-a",    // unchanged
		"b.go": "hash-b-v2", // modified
		"c.go": "hash-c",    // new
	}

	part := partition([]string{"a.go", "b.go", "c.go"}, hashes, existing, false)
	if len(part.Unchanged) != 1 || part.Unchanged[0] != "a.go" {
		t.Fatalf("expected a.go unchanged, got %+v", part.Unchanged)
	}
	if len(part.Modified) != 1 || part.Modified[0] != "b.go" {
		t.Fatalf("expected b.go modified, got %+v", part.Modified)
	}
	if len(part.New) != 1 || part.New[0] != "c.go" {
		t.Fatalf("expected c.go new, got %+v", part.New)
	}
}
