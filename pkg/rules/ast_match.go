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

// metavarRe finds $NAME placeholders in a rule's ast_match pattern.
var metavarRe = regexp.MustCompile(`\$([A-Z_][A-Z0-9_]*)`)

// compiledPattern is an ast_match pattern turned into a regular
// expression, plus the base metavar name each numbered capture group
// stands for (a metavar used twice gets two groups that must agree).
type compiledPattern struct {
	re        *regexp.Regexp
	groupVars []string // groupVars[i] is the metavar for capture group i+1
}

// compilePattern turns a pattern like "if $COND { return $X }" into a
// regular expression. Go's regexp engine (RE2) has no backreferences, so
// a metavar repeated in the pattern becomes one capture group per
// occurrence; compilePattern records which groups share a name, and the
// caller checks those groups captured identical text after a match.
//
// This is a line-oriented, textual stand-in for a true tree-sitter subtree
// match: pkg/parser's FileResult does not retain node handles past
// extraction, so ast_match here walks source text rather than re-parsing
// and keeping a live tree alive purely for the rule engine.
func compilePattern(pattern string) (*compiledPattern, error) {
	var b strings.Builder
	var groupVars []string

	last := 0
	for _, loc := range metavarRe.FindAllStringSubmatchIndex(pattern, -1) {
		lit := pattern[last:loc[0]]
		b.WriteString(literalToRegex(lit))
		name := pattern[loc[2]:loc[3]]
		groupVars = append(groupVars, name)
		b.WriteString(`([^\n]+?)`)
		last = loc[1]
	}
	b.WriteString(literalToRegex(pattern[last:]))

	re, err := regexp.Compile("(?s)" + b.String())
	if err != nil {
		return nil, fmt.Errorf("compile ast_match pattern: %w", err)
	}
	return &compiledPattern{re: re, groupVars: groupVars}, nil
}

// literalToRegex escapes a literal pattern fragment and collapses runs of
// whitespace into `\s+`, so a rule author's pattern formatting doesn't
// have to byte-match the source's.
func literalToRegex(lit string) string {
	fields := strings.Fields(lit)
	for i, f := range fields {
		fields[i] = regexp.QuoteMeta(f)
	}
	joined := strings.Join(fields, `\s+`)
	if lit != "" && (lit[0] == ' ' || lit[0] == '\t' || lit[0] == '\n') {
		joined = `\s+` + joined
	}
	if lit != "" {
		last := lit[len(lit)-1]
		if last == ' ' || last == '\t' || last == '\n' {
			joined += `\s+`
		}
	}
	return joined
}

// evalASTMatch reads every file the rule's glob/language select and
// reports one violation per pattern match whose repeated metavars capture
// identical text.
func (e *Engine) evalASTMatch(ctx context.Context, r Rule) ([]Violation, error) {
	cp, err := compilePattern(r.Pattern)
	if err != nil {
		return nil, err
	}

	query := `SELECT path, language FROM files`
	var args []any
	if r.Language != "" {
		query += ` WHERE language = ?`
		args = append(args, r.Language)
	}
	res, err := e.Store.Query(ctx, query, args...)
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
			continue // deleted/unreadable since indexing; skip rather than fail the whole run
		}
		src := string(content)

		for _, m := range cp.re.FindAllStringSubmatchIndex(src, -1) {
			if !capturesAgree(cp, src, m) {
				continue
			}
			line := 1 + strings.Count(src[:m[0]], "\n")
			reason := r.Message
			if reason == "" {
				reason = fmt.Sprintf("matched pattern %q", r.Pattern)
			}
			out = append(out, Violation{
				RuleID: r.ID, Severity: effectiveSeverity(r), FilePath: path, Line: line, Reason: reason,
			})
		}
	}
	return out, nil
}

// capturesAgree reports whether every pair of capture groups that share a
// metavar name captured byte-identical text in match m (the
// FindAllStringSubmatchIndex index pairs for src).
func capturesAgree(cp *compiledPattern, src string, m []int) bool {
	captured := map[string]string{}
	for i, name := range cp.groupVars {
		start, end := m[2+2*i], m[2+2*i+1]
		if start < 0 {
			continue
		}
		text := src[start:end]
		if prev, ok := captured[name]; ok {
			if prev != text {
				return false
			}
			continue
		}
		captured[name] = text
	}
	return true
}
