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

package rules

import (
	"context"
	"testing"

	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

func setupRulesStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir(), store.Config{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func insertFile(t *testing.T, ctx context.Context, st *store.Store, path string, lineCount int) int64 {
	t.Helper()
	res, err := st.Execute(ctx, `INSERT INTO files (path, language, line_count) VALUES (?, 'go', ?)`, path, lineCount)
	if err != nil {
		t.Fatalf("insert file: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("file id: %v", err)
	}
	return id
}

func insertSymbol(t *testing.T, ctx context.Context, st *store.Store, fileID int64, name, kind, signature string, lineStart, lineEnd int) {
	t.Helper()
	if _, err := st.Execute(ctx, `INSERT INTO symbols (file_id, name, qualified_name, kind, signature, line_start, line_end)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, fileID, name, name, kind, signature, lineStart, lineEnd); err != nil {
		t.Fatalf("insert symbol: %v", err)
	}
}

func TestEvalSymbolMatch_FlagsFunctionsOverMaxLines(t *testing.T) {
	st := setupRulesStore(t)
	ctx := context.Background()

	fileID := insertFile(t, ctx, st, "big.go", 100)
	insertSymbol(t, ctx, st, fileID, "DoWork", "function", "func(a int)", 1, 80)
	insertSymbol(t, ctx, st, fileID, "Small", "function", "func()", 1, 5)

	rule := Rule{ID: "long-func", Family: FamilySymbolMatch, Require: Require{MaxSymbolLines: 50}}
	violations, err := NewEngine(st, t.TempDir()).Evaluate(ctx, []Rule{rule})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected exactly 1 violation, got %d: %+v", len(violations), violations)
	}
	if violations[0].Symbol != "DoWork" {
		t.Fatalf("expected violation on DoWork, got %+v", violations[0])
	}
}

func TestEvalSymbolMatch_FlagsTooManyParams(t *testing.T) {
	st := setupRulesStore(t)
	ctx := context.Background()

	fileID := insertFile(t, ctx, st, "a.go", 10)
	insertSymbol(t, ctx, st, fileID, "Overloaded", "function", "func(a int, b string, c bool, d float64)", 1, 2)

	rule := Rule{ID: "few-params", Family: FamilySymbolMatch, Require: Require{MaxParams: 2}}
	violations, err := NewEngine(st, t.TempDir()).Evaluate(ctx, []Rule{rule})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation for a 4-param function capped at 2, got %d", len(violations))
	}
}

func TestEvalSymbolMatch_RespectsGlobFilter(t *testing.T) {
	st := setupRulesStore(t)
	ctx := context.Background()

	genFile := insertFile(t, ctx, st, "gen/models.go", 10)
	srcFile := insertFile(t, ctx, st, "src/models.go", 10)
	insertSymbol(t, ctx, st, genFile, "BadName", "function", "func()", 1, 2)
	insertSymbol(t, ctx, st, srcFile, "BadName", "function", "func()", 1, 2)

	rule := Rule{ID: "naming", Family: FamilySymbolMatch, Glob: "src/*", Require: Require{NameRegex: "^[a-z]"}}
	violations, err := NewEngine(st, t.TempDir()).Evaluate(ctx, []Rule{rule})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].FilePath != "src/models.go" {
		t.Fatalf("expected the glob to restrict evaluation to src/*, got %+v", violations)
	}
}

func TestEvalSymbolMatch_CustomMessageOverridesReason(t *testing.T) {
	st := setupRulesStore(t)
	ctx := context.Background()

	fileID := insertFile(t, ctx, st, "a.go", 10)
	insertSymbol(t, ctx, st, fileID, "Big", "function", "func()", 1, 100)

	rule := Rule{ID: "msg", Family: FamilySymbolMatch, Message: "split this up", Require: Require{MaxSymbolLines: 10}}
	violations, err := NewEngine(st, t.TempDir()).Evaluate(ctx, []Rule{rule})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].Reason != "split this up" {
		t.Fatalf("expected custom message to override the default reason, got %+v", violations)
	}
}

func TestEvalPathMatch_FlagsFilesOverMaxLines(t *testing.T) {
	st := setupRulesStore(t)
	ctx := context.Background()

	insertFile(t, ctx, st, "huge.go", 900)
	insertFile(t, ctx, st, "small.go", 50)

	rule := Rule{ID: "big-file", Family: FamilyPathMatch, Require: Require{MaxFileLines: 500}}
	violations, err := NewEngine(st, t.TempDir()).Evaluate(ctx, []Rule{rule})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 || violations[0].FilePath != "huge.go" {
		t.Fatalf("expected exactly 1 violation on huge.go, got %+v", violations)
	}
}

func TestEvaluate_SortsByFileThenLine(t *testing.T) {
	st := setupRulesStore(t)
	ctx := context.Background()

	fileB := insertFile(t, ctx, st, "b.go", 10)
	fileA := insertFile(t, ctx, st, "a.go", 10)
	insertSymbol(t, ctx, st, fileB, "Z", "function", "func()", 5, 60)
	insertSymbol(t, ctx, st, fileA, "Y", "function", "func()", 20, 80)
	insertSymbol(t, ctx, st, fileA, "X", "function", "func()", 1, 60)

	rule := Rule{ID: "long", Family: FamilySymbolMatch, Require: Require{MaxSymbolLines: 10}}
	violations, err := NewEngine(st, t.TempDir()).Evaluate(ctx, []Rule{rule})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 3 {
		t.Fatalf("expected 3 violations, got %d", len(violations))
	}
	wantOrder := []struct {
		path string
		line int
	}{{"a.go", 1}, {"a.go", 20}, {"b.go", 5}}
	for i, want := range wantOrder {
		if violations[i].FilePath != want.path || violations[i].Line != want.line {
			t.Fatalf("expected violation %d at %s:%d, got %s:%d", i, want.path, want.line, violations[i].FilePath, violations[i].Line)
		}
	}
}

func TestEvaluate_EmptyRuleSetReturnsNoViolations(t *testing.T) {
	st := setupRulesStore(t)
	violations, err := NewEngine(st, t.TempDir()).Evaluate(context.Background(), nil)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations for an empty rule set, got %+v", violations)
	}
}

func TestCountParams(t *testing.T) {
	cases := []struct {
		sig  string
		want int
	}{
		{"func()", 0},
		{"func() error", 0},
		{"func(a int)", 1},
		{"func(a int, b string)", 2},
		{"func(a map[string]int, b func(int) bool)", 2},
		{"", 0},
	}
	for _, c := range cases {
		if got := countParams(c.sig); got != c.want {
			t.Errorf("countParams(%q) = %d, want %d", c.sig, got, c.want)
		}
	}
}
