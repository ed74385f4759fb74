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

package graph

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/graph/topo"
)

// LayerViolation is a dependency edge that crosses back against the
// topological layering derived for the symbol graph: two symbols that sit
// in the same strongly-connected component (so neither can have a strictly
// lower layer than the other) but still depend on each other in a way that
// contradicts a clean bottom-up ordering.
type LayerViolation struct {
	From     int64
	To       int64
	Layer    int
	Severity float64
}

// computeLayers assigns every symbol a topological layer the same way
// assign_layers(G) does: condense the graph's strongly-connected
// components into a DAG, then set each component's layer to one more than
// the highest layer among its predecessors (0 for components with none).
// Every symbol inherits its component's layer. Edges inside a
// multi-member component can't respect that ordering by construction --
// those are reported as layer violations, with severity scaled by how far
// out of the component's own declared order (ascending id) the edge runs.
func (e *Engine) computeLayers(ctx context.Context, sg *symbolGraph, cycles []Cycle) ([]LayerViolation, error) {
	sccs := topo.TarjanSCC(sg.directed)

	compOf := make(map[int64]int, len(sg.nodes))
	members := make([][]int64, len(sccs))
	for ci, scc := range sccs {
		ids := make([]int64, len(scc))
		for i, n := range scc {
			ids[i] = n.ID()
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		members[ci] = ids
		for _, id := range ids {
			compOf[id] = ci
		}
	}

	// Condensation adjacency and in-degree, for Kahn-style longest-path
	// layering over the (guaranteed acyclic) component graph.
	compAdj := make([][]int, len(members))
	indeg := make([]int, len(members))
	seen := make(map[[2]int]bool)
	for _, id := range sg.nodes {
		from := compOf[id]
		it := sg.directed.From(id)
		for it.Next() {
			to := compOf[it.Node().ID()]
			if to == from || seen[[2]int{from, to}] {
				continue
			}
			seen[[2]int{from, to}] = true
			compAdj[from] = append(compAdj[from], to)
			indeg[to]++
		}
	}

	compLayer := make([]int, len(members))
	queue := make([]int, 0, len(members))
	for ci, d := range indeg {
		if d == 0 {
			queue = append(queue, ci)
		}
	}
	for len(queue) > 0 {
		sort.Ints(queue) // deterministic processing order
		ci := queue[0]
		queue = queue[1:]
		for _, next := range compAdj[ci] {
			if compLayer[next] < compLayer[ci]+1 {
				compLayer[next] = compLayer[ci] + 1
			}
			indeg[next]--
			if indeg[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	maxLayer := 0
	for _, l := range compLayer {
		if l > maxLayer {
			maxLayer = l
		}
	}

	var violations []LayerViolation
	for _, c := range cycles {
		ci := compOf[c.Members[0]]
		pos := make(map[int64]int, len(c.Members))
		for i, id := range c.Members {
			pos[id] = i
		}
		for _, from := range c.Members {
			it := sg.directed.From(from)
			for it.Next() {
				to := it.Node().ID()
				if compOf[to] != ci || to == from {
					continue
				}
				if pos[from] <= pos[to] {
					continue
				}
				distance := float64(pos[from] - pos[to])
				severity := distance
				if maxLayer > 0 {
					severity = distance / float64(maxLayer)
				}
				violations = append(violations, LayerViolation{
					From:     from,
					To:       to,
					Layer:    compLayer[ci],
					Severity: round3(severity),
				})
			}
		}
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].Severity != violations[j].Severity {
			return violations[i].Severity > violations[j].Severity
		}
		if violations[i].From != violations[j].From {
			return violations[i].From < violations[j].From
		}
		return violations[i].To < violations[j].To
	})

	return violations, nil
}

func round3(x float64) float64 {
	const scale = 1000.0
	return float64(int64(x*scale+0.5)) / scale
}
