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
	"strings"

	"github.com/mulle-cc/roam-code-sub006/pkg/parser"
)

// computeSymbolMetrics derives per-symbol static metrics for every symbol
// in this run's changed files, slicing each symbol's own line range out of
// the file content already read for parsing and counting branching
// keywords and structural markers over it. This is a line-based heuristic
// rather than a per-language AST walk (each of the eleven tree-sitter
// grammars would need its own cyclomatic-complexity visitor); it is
// accurate enough to rank symbols relative to each other within a project,
// which is all the hotspot and gate queries need it for.
func (ix *Indexer) computeSymbolMetrics(ctx context.Context, parsed map[string]*parser.FileResult, contents map[string][]byte) error {
	return ix.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, path := range sortedKeys(parsed) {
			fr := parsed[path]
			content, ok := contents[path]
			if !ok {
				continue
			}
			lines := strings.Split(string(content), "\n")

			var fileID int64
			if err := tx.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path).Scan(&fileID); err != nil {
				return err
			}
			idByName, err := symbolIDsForFile(ctx, txAsDB{tx}, fileID)
			if err != nil {
				return err
			}

			for _, sym := range fr.Symbols {
				id, ok := idByName[sym.Name]
				if !ok {
					continue
				}
				body := sliceLines(lines, sym.LineStart, sym.LineEnd)
				m := computeBodyMetrics(body, sym.Signature)

				if _, err := tx.ExecContext(ctx, `
					INSERT INTO symbol_metrics
						(symbol_id, cognitive_complexity, nesting_depth, param_count,
						 line_count, return_count, bool_op_count, callback_depth)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)
					ON CONFLICT(symbol_id) DO UPDATE SET
						cognitive_complexity = excluded.cognitive_complexity,
						nesting_depth        = excluded.nesting_depth,
						param_count          = excluded.param_count,
						line_count           = excluded.line_count,
						return_count         = excluded.return_count,
						bool_op_count        = excluded.bool_op_count,
						callback_depth       = excluded.callback_depth`,
					id, m.cognitive, m.nesting, m.params, m.lines, m.returns, m.boolOps, m.callbackDepth); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// bodyMetrics holds the counted/measured quantities for one symbol's body.
type bodyMetrics struct {
	cognitive     float64
	nesting       int
	params        int
	lines         int
	returns       int
	boolOps       int
	callbackDepth int
}

// branchKeywords increment cognitive complexity by 1 plus the current
// nesting depth, once per keyword found on a line. The depth includes the
// symbol's own body, so an "if" directly inside a function body (depth 1)
// costs 2 and an "if" inside two further blocks costs 4.
var branchKeywords = []string{"if ", "if(", "else if", "elif ", "for ", "while ", "case ", "catch ", "except ", "switch "}

func computeBodyMetrics(lines []string, signature string) bodyMetrics {
	m := bodyMetrics{lines: len(lines), params: countParams(signature)}

	depth := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		opens := strings.Count(line, "{") + countIndentOpeners(trimmed)
		closes := strings.Count(line, "}")

		for _, kw := range branchKeywords {
			if strings.Contains(strings.ToLower(trimmed), kw) {
				m.cognitive += 1 + float64(depth)
			}
		}
		m.boolOps += strings.Count(line, "&&") + strings.Count(line, "||") + strings.Count(line, " and ") + strings.Count(line, " or ")
		if strings.HasPrefix(trimmed, "return") {
			m.returns++
		}
		if strings.Contains(trimmed, "func(") || strings.Contains(trimmed, "function(") || strings.Contains(trimmed, "lambda ") || strings.Contains(trimmed, "=>") {
			m.callbackDepth++
		}

		depth += opens - closes
		if depth > m.nesting {
			m.nesting = depth
		}
		if depth < 0 {
			depth = 0
		}
	}
	return m
}

// countIndentOpeners treats a trailing ":" (Python/Ruby-style block heads)
// as equivalent to an opening brace for nesting purposes in brace-less
// languages.
func countIndentOpeners(trimmed string) int {
	if strings.HasSuffix(trimmed, ":") {
		for _, kw := range []string{"if ", "elif ", "else", "for ", "while ", "def ", "class ", "try", "except", "with "} {
			if strings.HasPrefix(trimmed, kw) {
				return 1
			}
		}
	}
	return 0
}

func countParams(signature string) int {
	start := strings.Index(signature, "(")
	end := strings.LastIndex(signature, ")")
	if start < 0 || end <= start {
		return 0
	}
	inner := strings.TrimSpace(signature[start+1 : end])
	if inner == "" {
		return 0
	}
	return strings.Count(inner, ",") + 1
}

func sliceLines(lines []string, start, end int) []string {
	if start < 1 {
		start = 1
	}
	if end < start {
		end = start
	}
	if start > len(lines) {
		return nil
	}
	if end > len(lines) {
		end = len(lines)
	}
	return lines[start-1 : end]
}

// txAsDB adapts a *sql.Tx to the querier interface (QueryContext) used by
// symbolIDsForFile, which *sql.DB satisfies directly.
type txAsDB struct{ tx *sql.Tx }

func (t txAsDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}
