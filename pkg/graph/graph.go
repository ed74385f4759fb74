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

// Package graph recomputes the derived graph tables (graph_metrics,
// clusters, spectral_bisections, symbol-level cycle/layer reports) from
// the symbols and edges currently in the store.
//
// The gonum wiring (building a simple.DirectedGraph keyed by node id and
// running network/path/topo/community algorithms over it) follows
// panbanda-omen's pkg/analyzer/graph/graph.go; the exact metric formulas
// (PageRank damping, betweenness sampling threshold, algebraic
// connectivity, cycle/layer severity) follow the original Python
// implementation's graph/*.py modules. Since roam's symbol ids are
// already int64, there's no string<->id translation layer the way
// panbanda-omen needs for its string-keyed nodes.
package graph

import (
	"context"
	"fmt"
	"time"

	"gonum.org/v1/gonum/graph/simple"

	"github.com/mulle-cc/roam-code-sub006/internal/metrics"
	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

// structuralKinds are the edge kinds that make up the symbol dependency
// graph; "import" is file-level bookkeeping (see pkg/index) and isn't a
// symbol-to-symbol edge in this graph.
var structuralKinds = []string{"call", "inherits", "implements"}

// Engine recomputes derived graph tables for one project's store.
type Engine struct {
	Store *store.Store
}

// New builds an Engine over st.
func New(st *store.Store) *Engine {
	return &Engine{Store: st}
}

// symbolGraph is the in-memory view the rest of the package operates on:
// a directed graph of symbol ids plus enough bookkeeping to map back to
// file paths (for directory-majority cluster labels and layer-violation
// file grouping).
type symbolGraph struct {
	directed   *simple.DirectedGraph
	undirected *simple.UndirectedGraph
	nodeFile   map[int64]string // symbol id -> owning file path
	nodes      []int64          // stable, sorted symbol id list
}

// loadGraph builds the directed/undirected symbol graphs from the store's
// current symbols and structural edges.
func (e *Engine) loadGraph(ctx context.Context) (*symbolGraph, error) {
	sg := &symbolGraph{
		directed:   simple.NewDirectedGraph(),
		undirected: simple.NewUndirectedGraph(),
		nodeFile:   make(map[int64]string),
	}

	rows, err := e.Store.Query(ctx, `SELECT s.id, f.path FROM symbols s JOIN files f ON f.id = s.file_id`)
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	for _, row := range rows.Rows {
		id, _ := row[0].(int64)
		path, _ := row[1].(string)
		sg.directed.AddNode(simple.Node(id))
		sg.undirected.AddNode(simple.Node(id))
		sg.nodeFile[id] = path
		sg.nodes = append(sg.nodes, id)
	}

	placeholders := "'" + structuralKinds[0] + "'"
	for _, k := range structuralKinds[1:] {
		placeholders += ",'" + k + "'"
	}
	edgeRows, err := e.Store.Query(ctx, fmt.Sprintf(`SELECT source_id, target_id FROM edges WHERE kind IN (%s)`, placeholders))
	if err != nil {
		return nil, fmt.Errorf("load edges: %w", err)
	}
	for _, row := range edgeRows.Rows {
		src, _ := row[0].(int64)
		dst, _ := row[1].(int64)
		if src == dst {
			continue
		}
		if !sg.directed.HasEdgeFromTo(src, dst) {
			sg.directed.SetEdge(simple.Edge{F: simple.Node(src), T: simple.Node(dst)})
		}
		if !sg.undirected.HasEdgeBetween(src, dst) {
			sg.undirected.SetEdge(simple.Edge{F: simple.Node(src), T: simple.Node(dst)})
		}
	}

	return sg, nil
}

// Report summarizes everything one Recompute pass derived.
type Report struct {
	Symbols       int
	Edges         int
	Cycles        int
	LayerViolations int
	Clusters      int
	Modularity    float64
	FiedlerValue  float64
	CouplingClass string
}

// Recompute rebuilds every derived table: centrality metrics, cycles and
// their weakest edges, topological layers and violations, Louvain
// clusters, and a spectral bisection. It's meant to run once per `roam
// index`, after pkg/index.Run has updated symbols and edges.
func (e *Engine) Recompute(ctx context.Context) (*Report, error) {
	start := time.Now()
	sg, err := e.loadGraph(ctx)
	if err != nil {
		return nil, err
	}

	report := &Report{Symbols: len(sg.nodes)}
	for range sg.directed.Edges() {
		report.Edges++
	}

	if err := e.computeCentrality(ctx, sg); err != nil {
		return nil, fmt.Errorf("centrality: %w", err)
	}

	cycles, err := e.computeCycles(ctx, sg)
	if err != nil {
		return nil, fmt.Errorf("cycles: %w", err)
	}
	report.Cycles = len(cycles)

	violations, err := e.computeLayers(ctx, sg, cycles)
	if err != nil {
		return nil, fmt.Errorf("layers: %w", err)
	}
	report.LayerViolations = len(violations)

	clusterCount, modularity, err := e.computeClusters(ctx, sg)
	if err != nil {
		return nil, fmt.Errorf("clusters: %w", err)
	}
	report.Clusters = clusterCount
	report.Modularity = modularity

	fiedler, class, err := e.computeSpectralBisection(ctx, sg)
	if err != nil {
		return nil, fmt.Errorf("spectral bisection: %w", err)
	}
	report.FiedlerValue = fiedler
	report.CouplingClass = class

	metrics.Graph.Observe(report.Cycles, report.LayerViolations, report.Clusters, time.Since(start).Seconds())

	return report, nil
}
