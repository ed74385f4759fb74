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
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// assignRe matches simple `name := ...` / `name = ...` assignment forms
// shared by Go, Python, JS/TS, Ruby and friends, since a single textual
// heuristic covers all of pkg/parser's extractors without a per-language
// dataflow pass.
var assignRe = regexp.MustCompile(`(?m)^\s*(?:var\s+|let\s+|const\s+)?([A-Za-z_][A-Za-z0-9_]*)\s*:?=\s*[^=]`)

// paramNameRe pulls bare identifiers out of a parenthesized parameter
// list, skipping type tokens as best it can by taking the first word of
// each comma-separated segment (works for "name type" and "name: type"
// alike; for bare-type lists like Go's "(int, string)" the type names
// themselves are taken as parameter names).
var paramNameRe = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// evalDataflow dispatches to one of the three dataflow_match kinds.
func (e *Engine) evalDataflow(ctx context.Context, r Rule) ([]Violation, error) {
	switch r.DataflowKind {
	case "dead_assignment":
		return e.evalDeadAssignment(ctx, r)
	case "unused_parameter":
		return e.evalUnusedParameter(ctx, r)
	case "source_to_sink":
		return e.evalSourceToSink(ctx, r)
	default:
		return nil, fmt.Errorf("unknown dataflow_kind %q", r.DataflowKind)
	}
}

// evalDeadAssignment flags a local assignment whose variable name never
// reappears later in the same file. This is a coarse file-scoped
// approximation of liveness analysis: it has no notion of block scope or
// shadowing, so it under-reports (misses genuinely dead assignments
// shadowed by an inner scope reuse) rather than over-reports across
// unrelated functions.
func (e *Engine) evalDeadAssignment(ctx context.Context, r Rule) ([]Violation, error) {
	res, err := e.Store.Query(ctx, `SELECT path FROM files`)
	if err != nil {
		return nil, err
	}

	var out []Violation
	for _, row := range res.Rows {
		path, _ := row[0].(string)
		if r.Glob != "" {
			if ok, _ := filepath.Match(r.Glob, path); !ok {
				continue
			}
		}
		content, err := os.ReadFile(filepath.Join(e.Root, path))
		if err != nil {
			continue
		}
		src := string(content)
		lines := strings.Split(src, "\n")

		for i, line := range lines {
			m := assignRe.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			name := m[1]
			if name == "_" {
				continue
			}
			rest := strings.Join(lines[i+1:], "\n")
			if wordAppears(rest, name) {
				continue
			}
			reason := r.Message
			if reason == "" {
				reason = fmt.Sprintf("%s is assigned but never read again", name)
			}
			out = append(out, Violation{
				RuleID: r.ID, Severity: effectiveSeverity(r), FilePath: path, Line: i + 1, Reason: reason,
			})
		}
	}
	return out, nil
}

// evalUnusedParameter flags a function/method parameter whose name never
// appears in the symbol's own body.
func (e *Engine) evalUnusedParameter(ctx context.Context, r Rule) ([]Violation, error) {
	query := `SELECT s.name, s.signature, s.line_start, s.line_end, f.path
		FROM symbols s JOIN files f ON f.id = s.file_id
		WHERE s.kind IN ('function', 'method')`
	res, err := e.Store.Query(ctx, query)
	if err != nil {
		return nil, err
	}

	fileCache := map[string][]string{}
	var out []Violation
	for _, row := range res.Rows {
		name, _ := row[0].(string)
		signature, _ := row[1].(string)
		lineStart := asInt(row[2])
		lineEnd := asInt(row[3])
		path, _ := row[4].(string)

		if r.Glob != "" {
			if ok, _ := filepath.Match(r.Glob, path); !ok {
				continue
			}
		}
		params := paramNames(signature)
		if len(params) == 0 {
			continue
		}

		lines, ok := fileCache[path]
		if !ok {
			content, err := os.ReadFile(filepath.Join(e.Root, path))
			if err != nil {
				fileCache[path] = nil
				continue
			}
			lines = strings.Split(string(content), "\n")
			fileCache[path] = lines
		}
		if lines == nil {
			continue
		}

		lo, hi := lineStart, lineEnd
		if lo < 1 {
			lo = 1
		}
		if hi > len(lines) {
			hi = len(lines)
		}
		if lo > hi {
			continue
		}
		body := strings.Join(lines[lo-1:hi], "\n")

		for _, p := range params {
			if p == "_" {
				continue
			}
			occurrences := strings.Count(body, p)
			sigOccurrences := strings.Count(signature, p)
			if occurrences <= sigOccurrences {
				reason := r.Message
				if reason == "" {
					reason = fmt.Sprintf("parameter %s of %s is unused", p, name)
				}
				out = append(out, Violation{
					RuleID: r.ID, Severity: effectiveSeverity(r), FilePath: path,
					Symbol: name, Line: lineStart, Reason: reason,
				})
			}
		}
	}
	return out, nil
}

// evalSourceToSink flags a call-graph path from any symbol whose name
// matches r.Source to any symbol whose name matches r.Sink, walking the
// stored call edges breadth-first.
func (e *Engine) evalSourceToSink(ctx context.Context, r Rule) ([]Violation, error) {
	srcRe, err := regexp.Compile(r.Source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	sinkRe, err := regexp.Compile(r.Sink)
	if err != nil {
		return nil, fmt.Errorf("sink: %w", err)
	}

	symRes, err := e.Store.Query(ctx, `SELECT s.id, s.name, s.line_start, f.path
		FROM symbols s JOIN files f ON f.id = s.file_id`)
	if err != nil {
		return nil, err
	}
	type symInfo struct {
		name, path string
		line       int
	}
	symbols := map[int64]symInfo{}
	var sources []int64
	sinks := map[int64]bool{}
	for _, row := range symRes.Rows {
		id := asInt64(row[0])
		name, _ := row[1].(string)
		line := asInt(row[2])
		path, _ := row[3].(string)
		symbols[id] = symInfo{name: name, path: path, line: line}
		if srcRe.MatchString(name) {
			sources = append(sources, id)
		}
		if sinkRe.MatchString(name) {
			sinks[id] = true
		}
	}

	edgeRes, err := e.Store.Query(ctx, `SELECT source_id, target_id FROM edges WHERE kind = 'call'`)
	if err != nil {
		return nil, err
	}
	adj := map[int64][]int64{}
	for _, row := range edgeRes.Rows {
		s, t := asInt64(row[0]), asInt64(row[1])
		adj[s] = append(adj[s], t)
	}

	var out []Violation
	for _, start := range sources {
		if reached, via := bfsToSink(start, adj, sinks); reached {
			info := symbols[start]
			sinkInfo := symbols[via]
			reason := r.Message
			if reason == "" {
				reason = fmt.Sprintf("%s reaches sink %s via the call graph", info.name, sinkInfo.name)
			}
			out = append(out, Violation{
				RuleID: r.ID, Severity: effectiveSeverity(r), FilePath: info.path,
				Symbol: info.name, Line: info.line, Reason: reason,
			})
		}
	}
	return out, nil
}

func bfsToSink(start int64, adj map[int64][]int64, sinks map[int64]bool) (bool, int64) {
	visited := map[int64]bool{start: true}
	queue := []int64{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if sinks[next] {
				return true, next
			}
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
	return false, 0
}

func wordAppears(s, word string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], word)
		if i < 0 {
			return false
		}
		pos := idx + i
		before := byte(' ')
		if pos > 0 {
			before = s[pos-1]
		}
		after := byte(' ')
		if pos+len(word) < len(s) {
			after = s[pos+len(word)]
		}
		if !isIdentChar(before) && !isIdentChar(after) {
			return true
		}
		idx = pos + len(word)
		if idx >= len(s) {
			return false
		}
	}
}

func isIdentChar(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// paramNames extracts a best-effort list of parameter identifiers from a
// stored signature string.
func paramNames(signature string) []string {
	open := strings.Index(signature, "(")
	close := strings.LastIndex(signature, ")")
	if open < 0 || close <= open {
		return nil
	}
	inner := signature[open+1 : close]
	if strings.TrimSpace(inner) == "" {
		return nil
	}

	var names []string
	depth := 0
	segStart := 0
	for i, c := range inner {
		switch c {
		case '(', '[', '<':
			depth++
		case ')', ']', '>':
			depth--
		case ',':
			if depth == 0 {
				seg := inner[segStart:i]
				if m := paramNameRe.FindString(strings.TrimSpace(seg)); m != "" {
					names = append(names, m)
				}
				segStart = i + 1
			}
		}
	}
	if seg := inner[segStart:]; strings.TrimSpace(seg) != "" {
		if m := paramNameRe.FindString(strings.TrimSpace(seg)); m != "" {
			names = append(names, m)
		}
	}
	return names
}

func asInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
