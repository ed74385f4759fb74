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
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// weakestEdgeSampleCap matches find_weakest_edge's cutoff for exact edge
// betweenness versus the degree-heuristic fallback.
const weakestEdgeSampleCap = 500

// Cycle is a strongly-connected component of size > 1 in the symbol
// graph, plus the edge whose removal the weakest-edge heuristic judges
// most likely to break it.
type Cycle struct {
	Members     []int64
	WeakestFrom int64
	WeakestTo   int64
	Reason      string
}

// computeCycles finds every strongly-connected component with more than
// one member, same as find_cycles(G, min_size=2): sorted descending by
// size, with each cycle's own members sorted ascending for determinism.
func (e *Engine) computeCycles(ctx context.Context, sg *symbolGraph) ([]Cycle, error) {
	sccs := topo.TarjanSCC(sg.directed)

	var cycles []Cycle
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		members := make([]int64, len(scc))
		for i, n := range scc {
			members[i] = n.ID()
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

		from, to, reason := e.findWeakestEdge(sg, members)
		cycles = append(cycles, Cycle{Members: members, WeakestFrom: from, WeakestTo: to, Reason: reason})
	}

	sort.SliceStable(cycles, func(i, j int) bool { return len(cycles[i].Members) > len(cycles[j].Members) })
	return cycles, nil
}

// findWeakestEdge identifies the edge within an SCC whose removal the
// original implementation's find_weakest_edge(G, scc_members) judges most
// likely to break the cycle: exact edge-betweenness centrality for SCCs
// at or under weakestEdgeSampleCap, a degree heuristic above it.
func (e *Engine) findWeakestEdge(sg *symbolGraph, members []int64) (from, to int64, reason string) {
	memberSet := make(map[int64]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	type edgeKey struct{ from, to int64 }
	var edges []edgeKey
	for _, m := range members {
		it := sg.directed.From(m)
		for it.Next() {
			t := it.Node().ID()
			if memberSet[t] {
				edges = append(edges, edgeKey{m, t})
			}
		}
	}
	if len(edges) == 0 {
		return 0, 0, ""
	}

	if len(members) <= weakestEdgeSampleCap {
		bc := edgeBetweenness(sg.directed, members)
		best := edges[0]
		bestScore := -1.0
		for _, ek := range edges {
			score := bc[ek]
			if score > bestScore {
				bestScore = score
				best = ek
			}
		}
		return best.from, best.to, fmt.Sprintf("highest edge betweenness in cycle (%.3f)", bestScore)
	}

	best := edges[0]
	bestScore := -1
	bestOut, bestIn := 0, 0
	for _, ek := range edges {
		out := countFrom(sg.directed, ek.from)
		in := countTo(sg.directed, ek.to)
		if out+in > bestScore {
			bestScore = out + in
			best = ek
			bestOut, bestIn = out, in
		}
	}
	return best.from, best.to, fmt.Sprintf("source has %d outgoing edge(s) in cycle, target has %d incoming", bestOut, bestIn)
}

// edgeBetweenness computes betweenness centrality per directed edge
// restricted to the subgraph induced by members, via Brandes' algorithm
// (unweighted BFS from every source, backward dependency accumulation).
// gonum's graph/network package only exposes node betweenness, so this is
// hand-rolled rather than dropped.
func edgeBetweenness(g graph.Directed, members []int64) map[struct{ from, to int64 }]float64 {
	type edgeKey = struct{ from, to int64 }
	bc := make(map[edgeKey]float64)
	memberSet := make(map[int64]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}

	adj := make(map[int64][]int64, len(members))
	for _, m := range members {
		it := g.From(m)
		for it.Next() {
			t := it.Node().ID()
			if memberSet[t] {
				adj[m] = append(adj[m], t)
			}
		}
	}

	for _, s := range members {
		stack := []int64{}
		pred := make(map[int64][]int64)
		sigma := make(map[int64]float64, len(members))
		dist := make(map[int64]int, len(members))
		for _, m := range members {
			sigma[m] = 0
			dist[m] = -1
		}
		sigma[s] = 1
		dist[s] = 0

		queue := []int64{s}
		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range adj[v] {
				if dist[w] < 0 {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					pred[w] = append(pred[w], v)
				}
			}
		}

		delta := make(map[int64]float64, len(members))
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range pred[w] {
				if sigma[w] == 0 {
					continue
				}
				c := (sigma[v] / sigma[w]) * (1 + delta[w])
				bc[edgeKey{v, w}] += c
				delta[v] += c
			}
		}
	}

	return bc
}
