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

package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"

	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

// Engine evaluates a loaded rule set against a project's store.
type Engine struct {
	Store *store.Store
	Root  string // project root, for ast_match/dataflow_match source reads
}

// NewEngine builds an Engine over st rooted at root.
func NewEngine(st *store.Store, root string) *Engine {
	return &Engine{Store: st, Root: root}
}

// Evaluate runs every rule in rs against the store and returns the
// combined violation list, sorted by file path and then line.
func (e *Engine) Evaluate(ctx context.Context, rs []Rule) ([]Violation, error) {
	var out []Violation
	for _, r := range rs {
		var (
			vs  []Violation
			err error
		)
		switch r.Family {
		case FamilySymbolMatch:
			vs, err = e.evalSymbolMatch(ctx, r)
		case FamilyPathMatch:
			vs, err = e.evalPathMatch(ctx, r)
		case FamilyASTMatch:
			vs, err = e.evalASTMatch(ctx, r)
		case FamilyDataflowMatch:
			vs, err = e.evalDataflow(ctx, r)
		}
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		out = append(out, vs...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].FilePath != out[j].FilePath {
			return out[i].FilePath < out[j].FilePath
		}
		return out[i].Line < out[j].Line
	})
	return out, nil
}

// evalSymbolMatch checks every symbol (optionally filtered by kind)
// against the rule's require predicates: max_params, max_symbol_lines,
// and name_regex. Parameter counts are derived from the stored signature
// text with countParams, not read from symbol_metrics.
func (e *Engine) evalSymbolMatch(ctx context.Context, r Rule) ([]Violation, error) {
	query := `SELECT s.name, s.kind, s.signature, s.line_start, s.line_end, f.path
		FROM symbols s JOIN files f ON f.id = s.file_id`
	var args []any
	if r.Kind != "" {
		query += ` WHERE s.kind = ?`
		args = append(args, r.Kind)
	}

	res, err := e.Store.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var nameRe *regexp.Regexp
	if r.Require.NameRegex != "" {
		nameRe, err = regexp.Compile(r.Require.NameRegex)
		if err != nil {
			return nil, fmt.Errorf("name_regex: %w", err)
		}
	}

	var out []Violation
	for _, row := range res.Rows {
		name, _ := row[0].(string)
		signature, _ := row[2].(string)
		lineStart := asInt(row[3])
		lineEnd := asInt(row[4])
		path, _ := row[5].(string)

		if r.Glob != "" {
			if ok, _ := filepath.Match(r.Glob, path); !ok {
				continue
			}
		}

		lines := lineEnd - lineStart + 1
		if r.Require.MaxSymbolLines > 0 && lines > r.Require.MaxSymbolLines {
			out = append(out, Violation{
				RuleID: r.ID, Severity: effectiveSeverity(r), FilePath: path,
				Symbol: name, Line: lineStart,
				Reason: fmt.Sprintf("%s spans %d lines, exceeds max_symbol_lines=%d", name, lines, r.Require.MaxSymbolLines),
			})
		}
		if r.Require.MaxParams > 0 {
			if n := countParams(signature); n > r.Require.MaxParams {
				out = append(out, Violation{
					RuleID: r.ID, Severity: effectiveSeverity(r), FilePath: path,
					Symbol: name, Line: lineStart,
					Reason: fmt.Sprintf("%s takes %d params, exceeds max_params=%d", name, n, r.Require.MaxParams),
				})
			}
		}
		if nameRe != nil && !nameRe.MatchString(name) {
			out = append(out, Violation{
				RuleID: r.ID, Severity: effectiveSeverity(r), FilePath: path,
				Symbol: name, Line: lineStart,
				Reason: fmt.Sprintf("%s does not match name_regex %q", name, r.Require.NameRegex),
			})
		}
	}
	if r.Message != "" {
		for i := range out {
			out[i].Reason = r.Message
		}
	}
	return out, nil
}

// evalPathMatch checks per-file predicates: currently max_file_lines,
// matched against files whose path satisfies the rule's glob.
func (e *Engine) evalPathMatch(ctx context.Context, r Rule) ([]Violation, error) {
	res, err := e.Store.Query(ctx, `SELECT path, line_count FROM files`)
	if err != nil {
		return nil, err
	}

	var out []Violation
	for _, row := range res.Rows {
		path, _ := row[0].(string)
		lineCount := asInt(row[1])

		if r.Glob != "" {
			if ok, _ := filepath.Match(r.Glob, path); !ok {
				continue
			}
		}
		if r.Require.MaxFileLines > 0 && lineCount > r.Require.MaxFileLines {
			reason := fmt.Sprintf("%s has %d lines, exceeds max_file_lines=%d", path, lineCount, r.Require.MaxFileLines)
			if r.Message != "" {
				reason = r.Message
			}
			out = append(out, Violation{
				RuleID: r.ID, Severity: effectiveSeverity(r), FilePath: path, Line: 1, Reason: reason,
			})
		}
	}
	return out, nil
}

// countParams estimates a parameter count from a signature string like
// "func(a int, b ...string) error" by counting top-level commas inside the
// outermost parentheses. Nested parentheses are tracked with a depth
// counter so "func(a map[string]int, b func(int) bool)" still counts 2;
// square and angle brackets are not, so a comma inside a generic type
// argument list counts as a separator.
func countParams(sig string) int {
	start := -1
	depth := 0
	count := 0
	seenAny := false
	for i, c := range sig {
		switch c {
		case '(':
			if start == -1 {
				start = i
			} else {
				depth++
			}
		case ')':
			if start != -1 {
				if depth == 0 {
					goto done
				}
				depth--
			}
		case ',':
			if start != -1 && depth == 0 {
				count++
			}
		default:
			if start != -1 && c != ' ' && c != '\t' {
				seenAny = true
			}
		}
	}
done:
	if start == -1 || !seenAny {
		return 0
	}
	return count + 1
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
