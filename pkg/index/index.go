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

// Package index drives an incremental (or forced full) indexing run: it
// discovers source files, diffs them against what the store already knows
// by content hash, parses the changed set, resolves references globally,
// and writes the result back in a single transaction per stage.
//
// The sequence mirrors the teacher's ingestion pipeline (discover -> diff
// -> parse -> resolve -> persist -> report) with the datalog batch-script
// building replaced by plain SQL writes against pkg/store.
package index

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mulle-cc/roam-code-sub006/internal/config"
	"github.com/mulle-cc/roam-code-sub006/internal/metrics"
	"github.com/mulle-cc/roam-code-sub006/pkg/discover"
	"github.com/mulle-cc/roam-code-sub006/pkg/parser"
	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

// Indexer ties discovery, parsing, resolution and storage together for one
// project root.
type Indexer struct {
	Store    *store.Store
	Registry *parser.Registry
	Root     string
	Config   *config.Config
	Logger   *slog.Logger
}

// New builds an Indexer using parser.NewRegistry() and slog.Default(). A
// nil cfg defaults to config.Default(root).
func New(st *store.Store, root string, cfg *config.Config) *Indexer {
	if cfg == nil {
		cfg = config.Default(root)
	}
	return &Indexer{
		Store:    st,
		Registry: parser.NewRegistry(),
		Root:     root,
		Config:   cfg,
		Logger:   slog.Default(),
	}
}

// Report summarizes one indexing run.
type Report struct {
	FilesTotal     int
	FilesNew       int
	FilesModified  int
	FilesUnchanged int
	FilesDeleted   int
	FilesSkipped   int // unsupported extension or unreadable file
	SymbolsWritten int
	EdgesWritten   int
	EdgesUnresolved int
	ParseErrors    int
	LanguageCounts map[string]int
	Duration       time.Duration
}

// ParseCoverage returns the fraction of touched files that parsed without
// error, in [0, 1]. Returns 1 when no files were touched.
func (r *Report) ParseCoverage() float64 {
	touched := r.FilesNew + r.FilesModified
	if touched == 0 {
		return 1
	}
	return float64(touched-r.ParseErrors) / float64(touched)
}

// existingFile is the (id, hash) the store already has for a path.
type existingFile struct {
	ID   int64
	Hash string
}

// Run executes one indexing pass. When force is true every discovered file
// is treated as modified regardless of its stored hash (a full reindex).
func (ix *Indexer) Run(ctx context.Context, force bool) (*Report, error) {
	start := time.Now()
	logger := ix.logger()

	disc, err := discover.Discover(ix.Root, logger)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}

	existing, err := ix.loadExisting(ctx)
	if err != nil {
		return nil, fmt.Errorf("load existing file state: %w", err)
	}

	// Every live file's current hash has to be known before it can be
	// classified, so its content is read once here and reused below for
	// parsing instead of a second read.
	contents := make(map[string][]byte, len(disc.Files))
	hashes := make(map[string]string, len(disc.Files))
	for _, path := range disc.Files {
		data, err := os.ReadFile(fullPath(ix.Root, path))
		if err != nil {
			logger.Warn("index.read.error", "path", path, "err", err)
			continue
		}
		contents[path] = data
		hashes[path] = contentHash(data)
	}

	part := partition(disc.Files, hashes, existing, force)
	report := &Report{
		FilesTotal:     len(disc.Files),
		FilesNew:       len(part.New),
		FilesModified:  len(part.Modified),
		FilesUnchanged: len(part.Unchanged),
		FilesDeleted:   len(part.Deleted),
		LanguageCounts: make(map[string]int),
	}

	if len(part.Deleted) > 0 {
		ids := make([]int64, 0, len(part.Deleted))
		for _, p := range part.Deleted {
			ids = append(ids, existing[p].ID)
		}
		if err := ix.deleteFiles(ctx, ids); err != nil {
			return nil, fmt.Errorf("delete removed files: %w", err)
		}
	}

	changed := append(append([]string{}, part.New...), part.Modified...)
	parsed := make(map[string]*parser.FileResult, len(changed))
	fileMeta := make(map[string]fileWrite, len(changed))

	for _, path := range changed {
		content, ok := contents[path]
		if !ok {
			report.FilesSkipped++
			continue
		}
		lang, ok := parser.LanguageForPath(path)
		if !ok {
			report.FilesSkipped++
			continue
		}
		fr, err := ix.Registry.Extract(path, content)
		if err != nil {
			logger.Warn("index.parse.error", "path", path, "language", lang, "err", err)
			report.ParseErrors++
			continue
		}
		parsed[path] = fr
		report.LanguageCounts[lang]++
		fileMeta[path] = fileWrite{
			hash:      hashes[path],
			language:  lang,
			lineCount: countLines(content),
		}
	}

	if err := ix.writeChangedFiles(ctx, changed, parsed, fileMeta, existing); err != nil {
		return nil, fmt.Errorf("write parsed files: %w", err)
	}

	symbolsWritten, err := ix.writeSymbols(ctx, parsed)
	if err != nil {
		return nil, fmt.Errorf("write symbols: %w", err)
	}
	report.SymbolsWritten = symbolsWritten

	edgesWritten, unresolved, err := ix.resolveAndWriteEdges(ctx, parsed, disc.Files)
	if err != nil {
		return nil, fmt.Errorf("resolve references: %w", err)
	}
	report.EdgesWritten = edgesWritten
	report.EdgesUnresolved = unresolved

	if err := ix.computeSymbolMetrics(ctx, parsed, contents); err != nil {
		return nil, fmt.Errorf("compute symbol metrics: %w", err)
	}

	report.Duration = time.Since(start)
	metrics.Index.Observe(
		report.FilesNew, report.FilesModified, report.FilesDeleted, report.FilesUnchanged,
		report.FilesSkipped, report.ParseErrors, report.SymbolsWritten, report.EdgesWritten,
		report.EdgesUnresolved, report.Duration.Seconds(),
	)
	logger.Info("index.run.complete",
		"files_total", report.FilesTotal,
		"new", report.FilesNew,
		"modified", report.FilesModified,
		"deleted", report.FilesDeleted,
		"symbols", report.SymbolsWritten,
		"edges", report.EdgesWritten,
		"unresolved", report.EdgesUnresolved,
		"parse_errors", report.ParseErrors,
		"duration", report.Duration,
	)
	return report, nil
}

type fileWrite struct {
	hash      string
	language  string
	lineCount int
}

func (ix *Indexer) logger() *slog.Logger {
	if ix.Logger != nil {
		return ix.Logger
	}
	return slog.Default()
}

func (ix *Indexer) loadExisting(ctx context.Context) (map[string]existingFile, error) {
	rows, err := ix.Store.Query(ctx, `SELECT id, path, hash FROM files`)
	if err != nil {
		return nil, err
	}
	out := make(map[string]existingFile, len(rows.Rows))
	for _, row := range rows.Rows {
		id, _ := row[0].(int64)
		path, _ := row[1].(string)
		hash, _ := row[2].(string)
		out[path] = existingFile{ID: id, Hash: hash}
	}
	return out, nil
}

func (ix *Indexer) deleteFiles(ctx context.Context, ids []int64) error {
	return ix.Store.WithTx(ctx, func(tx *sql.Tx) error {
		return execByIDs(ctx, tx, `DELETE FROM files WHERE id IN (%s)`, ids)
	})
}

// writeChangedFiles upserts the files table for every new or modified path
// and, for modified paths, deletes the old symbol rows first so the
// ON DELETE CASCADE on edges/graph_metrics/clusters/symbol_metrics clears
// anything derived from the previous version of the file.
func (ix *Indexer) writeChangedFiles(ctx context.Context, changed []string, parsed map[string]*parser.FileResult, meta map[string]fileWrite, existing map[string]existingFile) error {
	return ix.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, path := range changed {
			if _, ok := parsed[path]; !ok {
				continue // skipped (unsupported ext or read/parse error)
			}
			m := meta[path]

			if old, ok := existing[path]; ok {
				if _, err := tx.ExecContext(ctx, `DELETE FROM symbols WHERE file_id = ?`, old.ID); err != nil {
					return err
				}
				if _, err := tx.ExecContext(ctx, `
					UPDATE files SET language = ?, hash = ?, mtime = ?, line_count = ?
					WHERE id = ?`,
					m.language, m.hash, float64(time.Now().Unix()), m.lineCount, old.ID); err != nil {
					return err
				}
				continue
			}

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO files (path, language, hash, mtime, line_count)
				VALUES (?, ?, ?, ?, ?)`,
				path, m.language, m.hash, float64(time.Now().Unix()), m.lineCount); err != nil {
				return err
			}
		}
		return nil
	})
}

func fullPath(root, rel string) string {
	return filepath.Join(root, filepath.FromSlash(rel))
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func countLines(content []byte) int {
	n := 0
	for _, b := range content {
		if b == '\n' {
			n++
		}
	}
	if len(content) > 0 && content[len(content)-1] != '\n' {
		n++
	}
	return n
}
