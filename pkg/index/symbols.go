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

package index

import (
	"context"
	"database/sql"
	"sort"

	"github.com/mulle-cc/roam-code-sub006/pkg/parser"
	"github.com/mulle-cc/roam-code-sub006/pkg/resolve"
)

// writeSymbols inserts every symbol from every parsed file, then wires up
// parent_id for nested declarations (methods inside a class, for example)
// in a second pass once every symbol in the file has an id.
func (ix *Indexer) writeSymbols(ctx context.Context, parsed map[string]*parser.FileResult) (int, error) {
	written := 0
	paths := sortedKeys(parsed)

	err := ix.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, path := range paths {
			fr := parsed[path]
			var fileID int64
			if err := tx.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path).Scan(&fileID); err != nil {
				return err
			}

			idByName := make(map[string]int64, len(fr.Symbols))
			for _, sym := range fr.Symbols {
				visibility := sym.Visibility
				if visibility == "" {
					visibility = "public"
				}
				res, err := tx.ExecContext(ctx, `
					INSERT INTO symbols
						(file_id, name, qualified_name, kind, signature, line_start, line_end,
						 docstring, visibility, is_exported, default_value)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					fileID, sym.Name, sym.QualifiedName, string(sym.Kind), sym.Signature,
					sym.LineStart, sym.LineEnd, sym.Docstring, visibility, boolToInt(sym.IsExported), sym.DefaultValue)
				if err != nil {
					return err
				}
				id, err := res.LastInsertId()
				if err != nil {
					return err
				}
				idByName[sym.Name] = id
				if sym.QualifiedName != "" {
					idByName[sym.QualifiedName] = id
				}
				written++
			}

			for _, sym := range fr.Symbols {
				if sym.ParentName == "" {
					continue
				}
				parentID, ok := idByName[sym.ParentName]
				if !ok {
					continue
				}
				childID, ok := idByName[sym.Name]
				if !ok {
					continue
				}
				if _, err := tx.ExecContext(ctx, `UPDATE symbols SET parent_id = ? WHERE id = ?`, parentID, childID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

// resolveAndWriteEdges builds the global reference index from every symbol
// and file-import currently in the store, resolves the call references
// (each symbol's CallSites) extracted from this run's changed files
// against it, and persists the resulting call edges plus the file-level
// import rollup. No inherits, implements or import symbol edges are
// produced here; the parser extracts no such references. References
// from unchanged files are not revisited: their edges
// were already resolved and persisted on the run that introduced them, and
// cascading deletes clean up anything that pointed at a since-removed
// symbol.
func (ix *Indexer) resolveAndWriteEdges(ctx context.Context, parsed map[string]*parser.FileResult, allFiles []string) (written, unresolved int, err error) {
	symbols, err := ix.loadAllSymbols(ctx)
	if err != nil {
		return 0, 0, err
	}

	imports, changedFileEdgeCounts, err := ix.buildImportGraph(ctx, parsed, allFiles)
	if err != nil {
		return 0, 0, err
	}

	idx := resolve.BuildIndex(symbols, imports)

	refs, err := ix.loadReferences(ctx, parsed)
	if err != nil {
		return 0, 0, err
	}

	edges, unresolvedCount := resolve.ResolveAll(idx, refs)

	sourceFileIDs, err := ix.fileIDsFor(ctx, sortedKeys(parsed))
	if err != nil {
		return 0, 0, err
	}

	err = ix.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := execByIDs(ctx, tx, `DELETE FROM file_edges WHERE source_file_id IN (%s)`, sourceFileIDs); err != nil {
			return err
		}

		for _, e := range edges {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO edges (source_id, target_id, kind, line) VALUES (?, ?, ?, ?)`,
				e.SourceID, e.TargetID, string(e.Kind), e.Line); err != nil {
				return err
			}
		}

		fileIDByPath, err := loadFileIDs(ctx, tx)
		if err != nil {
			return err
		}
		for pair, count := range changedFileEdgeCounts {
			srcID, ok1 := fileIDByPath[pair[0]]
			dstID, ok2 := fileIDByPath[pair[1]]
			if !ok1 || !ok2 {
				continue
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO file_edges (source_file_id, target_file_id, kind, symbol_count)
				VALUES (?, ?, 'imports', ?)`,
				srcID, dstID, count); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	return len(edges), unresolvedCount, nil
}

func (ix *Indexer) loadAllSymbols(ctx context.Context) ([]resolve.SymbolRef, error) {
	rows, err := ix.Store.Query(ctx, `
		SELECT s.id, f.path, s.name, s.qualified_name, f.language, s.is_exported
		FROM symbols s JOIN files f ON f.id = s.file_id`)
	if err != nil {
		return nil, err
	}
	out := make([]resolve.SymbolRef, 0, len(rows.Rows))
	for _, row := range rows.Rows {
		id, _ := row[0].(int64)
		path, _ := row[1].(string)
		name, _ := row[2].(string)
		qualified, _ := asString(row[3])
		lang, _ := asString(row[4])
		exported, _ := row[5].(int64)
		out = append(out, resolve.SymbolRef{
			ID:            id,
			FilePath:      path,
			Name:          name,
			QualifiedName: qualified,
			Language:      lang,
			IsExported:    exported != 0,
		})
	}
	return out, nil
}

func (ix *Indexer) loadReferences(ctx context.Context, parsed map[string]*parser.FileResult) ([]resolve.Reference, error) {
	var refs []resolve.Reference
	for _, path := range sortedKeys(parsed) {
		fr := parsed[path]
		var fileID int64
		if err := ix.Store.DB().QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path).Scan(&fileID); err != nil {
			return nil, err
		}
		idByName, err := symbolIDsForFile(ctx, ix.Store.DB(), fileID)
		if err != nil {
			return nil, err
		}
		for _, sym := range fr.Symbols {
			sourceID, ok := idByName[sym.Name]
			if !ok {
				continue
			}
			for _, cs := range sym.CallSites {
				refs = append(refs, resolve.Reference{
					SourceID:   sourceID,
					FilePath:   path,
					TargetName: cs.CalleeName,
					Kind:       resolve.KindCall,
					Line:       cs.Line,
				})
			}
		}
	}
	return refs, nil
}

func (ix *Indexer) fileIDsFor(ctx context.Context, paths []string) ([]int64, error) {
	ids := make([]int64, 0, len(paths))
	for _, p := range paths {
		var id int64
		if err := ix.Store.DB().QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, p).Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func loadFileIDs(ctx context.Context, tx *sql.Tx) (map[string]int64, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id, path FROM files`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var id int64
		var path string
		if err := rows.Scan(&id, &path); err != nil {
			return nil, err
		}
		out[path] = id
	}
	return out, rows.Err()
}

// querier is satisfied by both *sql.DB and the txAsDB wrapper around
// *sql.Tx, so symbolIDsForFile can run inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func symbolIDsForFile(ctx context.Context, db querier, fileID int64) (map[string]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, qualified_name FROM symbols WHERE file_id = ?`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]int64)
	for rows.Next() {
		var id int64
		var name string
		var qualified sql.NullString
		if err := rows.Scan(&id, &name, &qualified); err != nil {
			return nil, err
		}
		out[name] = id
		if qualified.Valid && qualified.String != "" {
			out[qualified.String] = id
		}
	}
	return out, rows.Err()
}

func sortedKeys(m map[string]*parser.FileResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
