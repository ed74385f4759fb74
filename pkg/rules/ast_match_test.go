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
	"os"
	"path/filepath"
	"testing"
)

func writeSourceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func TestCompilePattern_MatchesRepeatedMetavarOnlyWhenIdentical(t *testing.T) {
	cp, err := compilePattern("if $X == $X {")
	if err != nil {
		t.Fatalf("compilePattern failed: %v", err)
	}

	src := "func f() {\n\tif err == err {\n\t\treturn\n\t}\n}\n"
	matches := cp.re.FindAllStringSubmatchIndex(src, -1)
	if len(matches) != 1 {
		t.Fatalf("expected 1 regex match, got %d", len(matches))
	}
	if !capturesAgree(cp, src, matches[0]) {
		t.Fatal("expected identical repeated metavar text to agree")
	}
}

func TestCompilePattern_RejectsMismatchedRepeatedMetavar(t *testing.T) {
	cp, err := compilePattern("if $X == $X {")
	if err != nil {
		t.Fatalf("compilePattern failed: %v", err)
	}
	src := "if a == b {"
	matches := cp.re.FindAllStringSubmatchIndex(src, -1)
	if len(matches) != 1 {
		t.Fatal("expected the loose regex to still match syntactically")
	}
	if capturesAgree(cp, src, matches[0]) {
		t.Fatal("expected mismatched metavar captures to disagree")
	}
}

func TestEvalASTMatch_FindsPatternAndReportsLine(t *testing.T) {
	st := setupRulesStore(t)
	ctx := context.Background()
	root := t.TempDir()

	if _, err := st.Execute(ctx, `INSERT INTO files (path, language) VALUES (?, 'go')`, "handler.go"); err != nil {
		t.Fatalf("insert file: %v", err)
	}
	writeSourceFile(t, root, "handler.go", "func handler() {\n\tpanic(\"boom\")\n}\n")

	rule := Rule{ID: "no-panic", Family: FamilyASTMatch, Pattern: `panic($MSG)`}
	violations, err := NewEngine(st, root).Evaluate(ctx, []Rule{rule})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(violations) != 1 {
		t.Fatalf("expected 1 violation, got %d: %+v", len(violations), violations)
	}
	if violations[0].Line != 2 {
		t.Fatalf("expected the violation on line 2, got %d", violations[0].Line)
	}
}

func TestEvalASTMatch_SkipsFilesDeletedSinceIndexing(t *testing.T) {
	st := setupRulesStore(t)
	ctx := context.Background()
	root := t.TempDir()

	if _, err := st.Execute(ctx, `INSERT INTO files (path, language) VALUES (?, 'go')`, "gone.go"); err != nil {
		t.Fatalf("insert file: %v", err)
	}

	rule := Rule{ID: "no-panic", Family: FamilyASTMatch, Pattern: `panic($MSG)`}
	violations, err := NewEngine(st, root).Evaluate(ctx, []Rule{rule})
	if err != nil {
		t.Fatalf("Evaluate must not fail when a previously indexed file is missing: %v", err)
	}
	if len(violations) != 0 {
		t.Fatalf("expected no violations from an unreadable file, got %+v", violations)
	}
}
