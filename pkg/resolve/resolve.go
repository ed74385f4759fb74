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

// Package resolve joins local references extracted by pkg/parser to
// concrete symbol ids, producing the directed edges that make up the
// symbol graph.
//
// Resolution is language-neutral: it works over qualified names, plain
// names, and the file import graph built from pkg/parser's ImportRef
// list, rather than any one language's scoping rules. Four-step priority
// order (exact match in-file, exact match transitively-imported,
// best-effort by name, drop): see Resolve.
package resolve

import (
	"runtime"
	"sort"
	"strings"
	"sync"
)

// EdgeKind enumerates the reference kinds the resolver understands. Their
// relative order here is also their display-priority order: when multiple
// kinds connect the same (source, target) pair, Dedup keeps the one that
// sorts first.
type EdgeKind string

const (
	KindCall       EdgeKind = "call"
	KindInherits   EdgeKind = "inherits"
	KindImplements EdgeKind = "implements"
	KindImport     EdgeKind = "import"
)

// edgeKindPriority orders kinds for Dedup; lower value wins.
var edgeKindPriority = map[EdgeKind]int{
	KindCall:       0,
	KindInherits:   1,
	KindImplements: 2,
	KindImport:     3,
}

// SymbolRef is the minimal view of a stored symbol the resolver needs.
type SymbolRef struct {
	ID            int64
	FilePath      string
	Name          string
	QualifiedName string
	Language      string
	IsExported    bool
}

// Reference is an unresolved local reference extracted by pkg/parser: a
// symbol in FilePath referring to TargetName (possibly qualified, e.g.
// "pkg.Foo") of the given Kind.
type Reference struct {
	SourceID   int64
	FilePath   string
	TargetName string
	Kind       EdgeKind
	Line       int
}

// Edge is a resolved reference: SourceID references TargetID.
type Edge struct {
	SourceID int64
	TargetID int64
	Kind     EdgeKind
	Line     int
}

// FileImport records that FromPath imports ToPath (already resolved from
// raw import-path strings to an in-index file path by the caller, since
// that mapping is language-specific — see pkg/index for the per-language
// import-path-to-file-path pass run before BuildIndex).
type FileImport struct {
	FromPath string
	ToPath   string
}

// Index is the resolver's read-only lookup structure, built once per
// indexing run from every symbol and file-import currently known to the
// store (not just the changed files), since a reference in a changed file
// may target a symbol that did not change.
type Index struct {
	bySymbolID     map[int64]SymbolRef
	byFileQualified map[string]map[string]int64 // file path -> qualified name -> id
	byName         map[string][]SymbolRef       // name -> candidates
	transitiveImports map[string]map[string]bool // file path -> set of reachable file paths
}

// BuildIndex constructs the lookup structures used by Resolve. symbols
// should include every symbol currently in the store; imports is the
// file-level import graph (not yet transitively closed — BuildIndex
// computes that).
func BuildIndex(symbols []SymbolRef, imports []FileImport) *Index {
	idx := &Index{
		bySymbolID:      make(map[int64]SymbolRef, len(symbols)),
		byFileQualified: make(map[string]map[string]int64),
		byName:          make(map[string][]SymbolRef),
	}

	for _, s := range symbols {
		idx.bySymbolID[s.ID] = s

		if s.QualifiedName != "" {
			if idx.byFileQualified[s.FilePath] == nil {
				idx.byFileQualified[s.FilePath] = make(map[string]int64)
			}
			idx.byFileQualified[s.FilePath][s.QualifiedName] = s.ID
		}

		idx.byName[s.Name] = append(idx.byName[s.Name], s)
	}

	idx.transitiveImports = closeImportGraph(imports)

	return idx
}

// closeImportGraph computes, for every file with at least one outgoing
// import, the full set of files transitively reachable via import edges.
func closeImportGraph(imports []FileImport) map[string]map[string]bool {
	adj := make(map[string][]string)
	for _, imp := range imports {
		adj[imp.FromPath] = append(adj[imp.FromPath], imp.ToPath)
	}

	closure := make(map[string]map[string]bool, len(adj))
	for from := range adj {
		visited := make(map[string]bool)
		var stack []string
		stack = append(stack, adj[from]...)
		for len(stack) > 0 {
			n := len(stack) - 1
			next := stack[n]
			stack = stack[:n]
			if visited[next] {
				continue
			}
			visited[next] = true
			stack = append(stack, adj[next]...)
		}
		closure[from] = visited
	}
	return closure
}

// Stats summarizes the index's size.
func (idx *Index) Stats() (symbols, filesWithQualified, filesWithImports int) {
	return len(idx.bySymbolID), len(idx.byFileQualified), len(idx.transitiveImports)
}

// ResolveAll resolves every reference against idx, using a worker pool for
// large batches to match the cost profile of the worst-case cross-file
// resolution sweep after a full reindex.
func ResolveAll(idx *Index, refs []Reference) (edges []Edge, unresolved int) {
	if len(refs) < 1000 {
		return resolveSequential(idx, refs)
	}
	return resolveParallel(idx, refs)
}

func resolveSequential(idx *Index, refs []Reference) ([]Edge, int) {
	var edges []Edge
	unresolved := 0
	for _, ref := range refs {
		if targetID, ok := idx.Resolve(ref); ok {
			edges = append(edges, Edge{SourceID: ref.SourceID, TargetID: targetID, Kind: ref.Kind, Line: ref.Line})
		} else {
			unresolved++
		}
	}
	return edges, unresolved
}

func resolveParallel(idx *Index, refs []Reference) ([]Edge, int) {
	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8
	}

	jobs := make(chan int, len(refs))
	type result struct {
		edge Edge
		ok   bool
	}
	results := make(chan result, len(refs))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				ref := refs[i]
				if targetID, ok := idx.Resolve(ref); ok {
					results <- result{edge: Edge{SourceID: ref.SourceID, TargetID: targetID, Kind: ref.Kind, Line: ref.Line}, ok: true}
				} else {
					results <- result{ok: false}
				}
			}
		}()
	}

	for i := range refs {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	var edges []Edge
	unresolved := 0
	for r := range results {
		if r.ok {
			edges = append(edges, r.edge)
		} else {
			unresolved++
		}
	}
	return edges, unresolved
}

// Resolve applies the priority-ordered resolution rules to a single
// reference: exact same-file qualified match, exact transitively-imported
// qualified match, best-effort name match with tie-breaking, else
// unresolved.
func (idx *Index) Resolve(ref Reference) (targetID int64, ok bool) {
	qualified := ref.TargetName
	simpleName := ref.TargetName
	if i := strings.LastIndex(ref.TargetName, "."); i >= 0 {
		simpleName = ref.TargetName[i+1:]
	}

	// 1. Same file, qualified match.
	if m, ok := idx.byFileQualified[ref.FilePath]; ok {
		if id, ok := m[qualified]; ok {
			return id, true
		}
	}

	// 2. Transitively-imported files, qualified match.
	if reachable, ok := idx.transitiveImports[ref.FilePath]; ok {
		for otherFile := range reachable {
			if m, ok := idx.byFileQualified[otherFile]; ok {
				if id, ok := m[qualified]; ok {
					return id, true
				}
			}
		}
	}

	// 3. Best-effort match on simple name across the whole index.
	candidates := idx.byName[simpleName]
	if len(candidates) == 0 {
		return 0, false
	}

	sourceLang := ""
	if src, ok := idx.bySymbolID[ref.SourceID]; ok {
		sourceLang = src.Language
	}

	best := pickBestCandidate(candidates, sourceLang)
	if best == nil {
		return 0, false
	}
	return best.ID, true
}

// pickBestCandidate applies the tie-break order from the spec: exported >
// not-exported, same-language > cross-language, shorter qualified name >
// longer. Ties after all three criteria fall back to lowest symbol id for
// determinism.
func pickBestCandidate(candidates []SymbolRef, sourceLang string) *SymbolRef {
	// candidates is idx.byName[simpleName]'s backing slice, shared across
	// every concurrent Resolve call for the same simple name (see
	// resolveParallel); sort a copy so two goroutines racing on the same
	// name never mutate that shared slice in place.
	best := make([]SymbolRef, len(candidates))
	copy(best, candidates)
	sort.SliceStable(best, func(i, j int) bool {
		a, b := best[i], best[j]
		if a.IsExported != b.IsExported {
			return a.IsExported
		}
		aSame, bSame := a.Language == sourceLang, b.Language == sourceLang
		if aSame != bSame {
			return aSame
		}
		if len(a.QualifiedName) != len(b.QualifiedName) {
			return len(a.QualifiedName) < len(b.QualifiedName)
		}
		return a.ID < b.ID
	})
	if len(best) == 0 {
		return nil
	}
	return &best[0]
}

// Dedup keeps only the highest-priority edge kind per (source, target)
// pair for display purposes; all kinds remain in storage regardless.
func Dedup(edges []Edge) []Edge {
	type key struct{ source, target int64 }
	best := make(map[key]Edge)
	for _, e := range edges {
		k := key{e.SourceID, e.TargetID}
		cur, ok := best[k]
		if !ok || edgeKindPriority[e.Kind] < edgeKindPriority[cur.Kind] {
			best[k] = e
		}
	}

	out := make([]Edge, 0, len(best))
	for _, e := range best {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetID < out[j].TargetID
	})
	return out
}

// AggregateFileEdges rolls symbol-level import edges up into file-level
// edges, incrementing symbol_count for each symbol pair that crosses the
// same (source file, target file) boundary.
func AggregateFileEdges(idx *Index, edges []Edge) map[[2]string]int {
	counts := make(map[[2]string]int)
	for _, e := range edges {
		if e.Kind != KindImport {
			continue
		}
		src, ok1 := idx.bySymbolID[e.SourceID]
		dst, ok2 := idx.bySymbolID[e.TargetID]
		if !ok1 || !ok2 || src.FilePath == dst.FilePath {
			continue
		}
		counts[[2]string{src.FilePath, dst.FilePath}]++
	}
	return counts
}
