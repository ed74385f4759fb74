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

package graph

import (
	"context"
	"math"
	"testing"

	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

func setupGraphStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(t.TempDir(), store.Config{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// addSymbol inserts one file (if not already present) and one symbol,
// returning the symbol's id.
func addSymbol(t *testing.T, ctx context.Context, st *store.Store, path, name string) int64 {
	t.Helper()
	if _, err := st.Execute(ctx, `INSERT INTO files (path, language, hash) VALUES (?, 'go', 'h') ON CONFLICT(path) DO NOTHING`, path); err != nil {
		t.Fatalf("insert file: %v", err)
	}
	row, err := st.Query(ctx, `SELECT id FROM files WHERE path = ?`, path)
	if err != nil || len(row.Rows) == 0 {
		t.Fatalf("lookup file id: %v", err)
	}
	fileID := row.Rows[0][0].(int64)

	res, err := st.Execute(ctx, `INSERT INTO symbols (file_id, name, qualified_name, kind, line_start, line_end)
		VALUES (?, ?, ?, 'function', 1, 2)`, fileID, name, path+"."+name)
	if err != nil {
		t.Fatalf("insert symbol: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("symbol id: %v", err)
	}
	return id
}

func addEdge(t *testing.T, ctx context.Context, st *store.Store, source, target int64, kind string) {
	t.Helper()
	if _, err := st.Execute(ctx, `INSERT INTO edges (source_id, target_id, kind) VALUES (?, ?, ?)`, source, target, kind); err != nil {
		t.Fatalf("insert edge: %v", err)
	}
}

func TestRecompute_EmptyGraphReturnsZeroedReport(t *testing.T) {
	st := setupGraphStore(t)
	report, err := New(st).Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute on empty graph must not error: %v", err)
	}
	if report.Symbols != 0 || report.Edges != 0 || report.Cycles != 0 {
		t.Fatalf("expected all-zero report for an empty graph, got %+v", report)
	}
}

func TestRecompute_ThreeNodeCycleIsOneSCC(t *testing.T) {
	st := setupGraphStore(t)
	ctx := context.Background()

	a := addSymbol(t, ctx, st, "a.go", "A")
	b := addSymbol(t, ctx, st, "b.go", "B")
	c := addSymbol(t, ctx, st, "c.go", "C")
	addEdge(t, ctx, st, a, b, "call")
	addEdge(t, ctx, st, b, c, "call")
	addEdge(t, ctx, st, c, a, "call")

	report, err := New(st).Recompute(ctx)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if report.Cycles != 1 {
		t.Fatalf("expected exactly one SCC cycle, got %d", report.Cycles)
	}
}

func TestRecompute_SelfLoopNeverCountsAsACycle(t *testing.T) {
	st := setupGraphStore(t)
	ctx := context.Background()

	a := addSymbol(t, ctx, st, "a.go", "A")
	addEdge(t, ctx, st, a, a, "call")

	report, err := New(st).Recompute(ctx)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if report.Cycles != 0 {
		t.Fatalf("a self-loop must not be reported as a multi-node cycle, got %d cycles", report.Cycles)
	}
}

func TestRecompute_CleanChainHasNoLayerViolations(t *testing.T) {
	st := setupGraphStore(t)
	ctx := context.Background()

	// top -> mid -> leaf is a clean forward chain: every symbol is its own
	// SCC on its own layer, so no layer violation is reported. (Violations
	// only come from edges inside a multi-member SCC, e.g. after adding a
	// leaf -> top back edge.)
	top := addSymbol(t, ctx, st, "top.go", "Top")
	mid := addSymbol(t, ctx, st, "mid.go", "Mid")
	leaf := addSymbol(t, ctx, st, "leaf.go", "Leaf")
	addEdge(t, ctx, st, top, mid, "call")
	addEdge(t, ctx, st, mid, leaf, "call")

	report, err := New(st).Recompute(ctx)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if report.LayerViolations != 0 {
		t.Fatalf("a clean forward chain must have no layer violations, got %d", report.LayerViolations)
	}

	rows, err := st.Query(ctx, `SELECT symbol_id FROM graph_metrics ORDER BY symbol_id`)
	if err != nil {
		t.Fatalf("query graph_metrics: %v", err)
	}
	if len(rows.Rows) != 3 {
		t.Fatalf("expected graph_metrics populated for all 3 symbols, got %d rows", len(rows.Rows))
	}
}

func TestRecompute_PageRankSumsToApproximatelyOne(t *testing.T) {
	st := setupGraphStore(t)
	ctx := context.Background()

	a := addSymbol(t, ctx, st, "a.go", "A")
	b := addSymbol(t, ctx, st, "b.go", "B")
	c := addSymbol(t, ctx, st, "c.go", "C")
	addEdge(t, ctx, st, a, b, "call")
	addEdge(t, ctx, st, b, c, "call")
	addEdge(t, ctx, st, c, a, "call")

	if _, err := New(st).Recompute(ctx); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}

	rows, err := st.Query(ctx, `SELECT pagerank FROM graph_metrics`)
	if err != nil {
		t.Fatalf("query graph_metrics: %v", err)
	}
	var sum float64
	for _, row := range rows.Rows {
		sum += row[0].(float64)
	}
	if math.Abs(sum-1.0) > 0.05 {
		t.Fatalf("expected pagerank to sum to ~1.0 across all nodes, got %v", sum)
	}
}

func TestRecompute_DisconnectedGraphHasAtLeastTwoClusters(t *testing.T) {
	st := setupGraphStore(t)
	ctx := context.Background()

	// Two disconnected dense pairs.
	a1 := addSymbol(t, ctx, st, "a1.go", "A1")
	a2 := addSymbol(t, ctx, st, "a2.go", "A2")
	b1 := addSymbol(t, ctx, st, "b1.go", "B1")
	b2 := addSymbol(t, ctx, st, "b2.go", "B2")
	addEdge(t, ctx, st, a1, a2, "call")
	addEdge(t, ctx, st, b1, b2, "call")

	report, err := New(st).Recompute(ctx)
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if report.Clusters < 2 {
		t.Fatalf("expected at least 2 clusters for a disconnected graph, got %d", report.Clusters)
	}
}

func TestRecompute_IsIdempotentOnUnchangedGraph(t *testing.T) {
	st := setupGraphStore(t)
	ctx := context.Background()

	a := addSymbol(t, ctx, st, "a.go", "A")
	b := addSymbol(t, ctx, st, "b.go", "B")
	addEdge(t, ctx, st, a, b, "call")

	r1, err := New(st).Recompute(ctx)
	if err != nil {
		t.Fatalf("first Recompute failed: %v", err)
	}
	r2, err := New(st).Recompute(ctx)
	if err != nil {
		t.Fatalf("second Recompute failed: %v", err)
	}
	if r1.Symbols != r2.Symbols || r1.Edges != r2.Edges || r1.Cycles != r2.Cycles {
		t.Fatalf("Recompute must be idempotent given no store changes: %+v vs %+v", r1, r2)
	}
}
