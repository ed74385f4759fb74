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

package resolve

import "testing"

func TestResolve_PrefersSameFileQualifiedMatch(t *testing.T) {
	symbols := []SymbolRef{
		{ID: 1, FilePath: "a.go", Name: "Foo", QualifiedName: "a.Foo"},
		{ID: 2, FilePath: "b.go", Name: "Foo", QualifiedName: "b.Foo"},
	}
	idx := BuildIndex(symbols, nil)

	targetID, ok := idx.Resolve(Reference{SourceID: 1, FilePath: "a.go", TargetName: "a.Foo", Kind: KindCall})
	if !ok || targetID != 1 {
		t.Fatalf("expected same-file qualified match to id 1, got %d, ok=%v", targetID, ok)
	}
}

func TestResolve_FallsBackToTransitivelyImportedQualifiedMatch(t *testing.T) {
	symbols := []SymbolRef{
		{ID: 1, FilePath: "util.go", Name: "Helper", QualifiedName: "util.Helper"},
	}
	imports := []FileImport{
		{FromPath: "main.go", ToPath: "mid.go"},
		{FromPath: "mid.go", ToPath: "util.go"},
	}
	idx := BuildIndex(symbols, imports)

	targetID, ok := idx.Resolve(Reference{SourceID: 99, FilePath: "main.go", TargetName: "util.Helper", Kind: KindCall})
	if !ok || targetID != 1 {
		t.Fatalf("expected transitive import resolution to find id 1, got %d, ok=%v", targetID, ok)
	}
}

func TestResolve_BestEffortNameMatchPrefersExported(t *testing.T) {
	symbols := []SymbolRef{
		{ID: 1, FilePath: "a.go", Name: "Save", QualifiedName: "a.save", IsExported: false, Language: "go"},
		{ID: 2, FilePath: "b.go", Name: "Save", QualifiedName: "b.Save", IsExported: true, Language: "go"},
	}
	idx := BuildIndex(symbols, nil)

	targetID, ok := idx.Resolve(Reference{SourceID: 3, FilePath: "c.go", TargetName: "Save", Kind: KindCall})
	if !ok || targetID != 2 {
		t.Fatalf("expected the exported candidate to win, got %d, ok=%v", targetID, ok)
	}
}

func TestResolve_BestEffortNameMatchPrefersSameLanguage(t *testing.T) {
	symbols := []SymbolRef{
		{ID: 1, FilePath: "a.py", Name: "Handler", QualifiedName: "a.Handler", IsExported: true, Language: "python"},
		{ID: 2, FilePath: "b.go", Name: "Handler", QualifiedName: "b.Handler", IsExported: true, Language: "go"},
	}
	idx := BuildIndex(symbols, nil)
	idx.bySymbolID[3] = SymbolRef{ID: 3, FilePath: "c.go", Name: "Caller", Language: "go"}

	targetID, ok := idx.Resolve(Reference{SourceID: 3, FilePath: "c.go", TargetName: "Handler", Kind: KindCall})
	if !ok || targetID != 2 {
		t.Fatalf("expected the same-language candidate to win, got %d, ok=%v", targetID, ok)
	}
}

func TestResolve_BestEffortNameMatchPrefersShorterQualifiedNameOnTie(t *testing.T) {
	symbols := []SymbolRef{
		{ID: 1, FilePath: "a.go", Name: "Run", QualifiedName: "pkg.deep.nested.Run", IsExported: true, Language: "go"},
		{ID: 2, FilePath: "b.go", Name: "Run", QualifiedName: "pkg.Run", IsExported: true, Language: "go"},
	}
	idx := BuildIndex(symbols, nil)

	targetID, ok := idx.Resolve(Reference{SourceID: 3, FilePath: "c.go", TargetName: "Run", Kind: KindCall})
	if !ok || targetID != 2 {
		t.Fatalf("expected the shorter-qualified-name candidate to win, got %d, ok=%v", targetID, ok)
	}
}

func TestResolve_ReturnsFalseWhenNoCandidateExists(t *testing.T) {
	idx := BuildIndex(nil, nil)
	_, ok := idx.Resolve(Reference{SourceID: 1, FilePath: "a.go", TargetName: "Nothing", Kind: KindCall})
	if ok {
		t.Fatal("expected no match against an empty index")
	}
}

func TestResolveAll_SwitchesToParallelAboveThreshold(t *testing.T) {
	symbols := []SymbolRef{{ID: 1, FilePath: "a.go", Name: "Target", QualifiedName: "a.Target"}}
	idx := BuildIndex(symbols, nil)

	refs := make([]Reference, 0, 1500)
	for i := 0; i < 1500; i++ {
		refs = append(refs, Reference{SourceID: int64(i), FilePath: "a.go", TargetName: "a.Target", Kind: KindCall})
	}

	edges, unresolved := ResolveAll(idx, refs)
	if unresolved != 0 {
		t.Fatalf("expected every reference to resolve, got %d unresolved", unresolved)
	}
	if len(edges) != 1500 {
		t.Fatalf("expected 1500 edges from the parallel path, got %d", len(edges))
	}
}

func TestResolveAll_SequentialPathMatchesParallelSemantics(t *testing.T) {
	symbols := []SymbolRef{{ID: 1, FilePath: "a.go", Name: "Target", QualifiedName: "a.Target"}}
	idx := BuildIndex(symbols, nil)

	refs := []Reference{
		{SourceID: 1, FilePath: "a.go", TargetName: "a.Target", Kind: KindCall},
		{SourceID: 2, FilePath: "a.go", TargetName: "Missing", Kind: KindCall},
	}
	edges, unresolved := ResolveAll(idx, refs)
	if len(edges) != 1 || unresolved != 1 {
		t.Fatalf("expected 1 edge and 1 unresolved, got %d edges, %d unresolved", len(edges), unresolved)
	}
}

func TestDedup_KeepsHighestPriorityKindPerPair(t *testing.T) {
	edges := []Edge{
		{SourceID: 1, TargetID: 2, Kind: KindImport},
		{SourceID: 1, TargetID: 2, Kind: KindCall},
		{SourceID: 1, TargetID: 2, Kind: KindInherits},
	}
	out := Dedup(edges)
	if len(out) != 1 {
		t.Fatalf("expected exactly 1 deduped edge, got %d", len(out))
	}
	if out[0].Kind != KindCall {
		t.Fatalf("expected KindCall (highest priority) to win, got %v", out[0].Kind)
	}
}

func TestDedup_SortsBySourceThenTarget(t *testing.T) {
	edges := []Edge{
		{SourceID: 2, TargetID: 1, Kind: KindCall},
		{SourceID: 1, TargetID: 2, Kind: KindCall},
		{SourceID: 1, TargetID: 1, Kind: KindCall},
	}
	out := Dedup(edges)
	want := []Edge{
		{SourceID: 1, TargetID: 1, Kind: KindCall},
		{SourceID: 1, TargetID: 2, Kind: KindCall},
		{SourceID: 2, TargetID: 1, Kind: KindCall},
	}
	if len(out) != len(want) {
		t.Fatalf("expected %d edges, got %d", len(want), len(out))
	}
	for i := range want {
		if out[i].SourceID != want[i].SourceID || out[i].TargetID != want[i].TargetID {
			t.Fatalf("expected sorted order %+v, got %+v", want, out)
		}
	}
}

func TestAggregateFileEdges_CountsOnlyImportKindAcrossDistinctFiles(t *testing.T) {
	symbols := []SymbolRef{
		{ID: 1, FilePath: "a.go", Name: "A"},
		{ID: 2, FilePath: "b.go", Name: "B"},
		{ID: 3, FilePath: "a.go", Name: "A2"},
	}
	idx := BuildIndex(symbols, nil)

	edges := []Edge{
		{SourceID: 1, TargetID: 2, Kind: KindImport},
		{SourceID: 3, TargetID: 2, Kind: KindImport},
		{SourceID: 1, TargetID: 3, Kind: KindImport}, // same file, excluded
		{SourceID: 1, TargetID: 2, Kind: KindCall},   // not an import edge, excluded
	}

	counts := AggregateFileEdges(idx, edges)
	if len(counts) != 1 {
		t.Fatalf("expected exactly 1 file-pair entry, got %d: %+v", len(counts), counts)
	}
	if got := counts[[2]string{"a.go", "b.go"}]; got != 2 {
		t.Fatalf("expected a.go->b.go count of 2, got %d", got)
	}
}

func TestIndex_Stats(t *testing.T) {
	symbols := []SymbolRef{
		{ID: 1, FilePath: "a.go", Name: "A", QualifiedName: "a.A"},
	}
	imports := []FileImport{{FromPath: "a.go", ToPath: "b.go"}}
	idx := BuildIndex(symbols, imports)

	numSymbols, filesWithQualified, filesWithImports := idx.Stats()
	if numSymbols != 1 || filesWithQualified != 1 || filesWithImports != 1 {
		t.Fatalf("unexpected stats: symbols=%d filesWithQualified=%d filesWithImports=%d", numSymbols, filesWithQualified, filesWithImports)
	}
}
