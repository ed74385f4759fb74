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

	"gonum.org/v1/gonum/graph"
)

// defaultPropagationDepth and defaultDecay match propagate_context's
// max_depth=3, decay=0.5 defaults.
const (
	defaultPropagationDepth = 3
	defaultDecay            = 0.5
	defaultBlendAlpha       = 0.6
)

// PropagateContext scores every symbol reachable from seeds within
// maxDepth hops of the call graph: callee (outgoing) edges decay as
// decay^depth, caller (incoming) edges decay more steeply at
// (decay*0.5)^depth since upstream context matters but is secondary to
// the forward dependency chain. Seeds always score 1.0. A node's score is
// the maximum reached via either direction, and a node is only
// re-expanded when a shorter path to it is found, so cycles terminate.
func (e *Engine) PropagateContext(ctx context.Context, seeds []int64, maxDepth int, decay float64) (map[int64]float64, error) {
	if maxDepth <= 0 {
		maxDepth = defaultPropagationDepth
	}
	if decay <= 0 {
		decay = defaultDecay
	}

	sg, err := e.loadGraph(ctx)
	if err != nil {
		return nil, err
	}

	seedSet := make(map[int64]bool, len(seeds))
	scores := make(map[int64]float64, len(seeds))
	for _, s := range seeds {
		if !sg.hasNode(s) {
			continue
		}
		seedSet[s] = true
		scores[s] = 1.0
	}
	if len(seedSet) == 0 {
		return map[int64]float64{}, nil
	}

	propagateBFS(sg, true, seedSet, scores, maxDepth, decay)
	propagateBFS(sg, false, seedSet, scores, maxDepth, decay*0.5)

	return scores, nil
}

// propagateBFS runs one directional BFS pass (callee when forward is
// true, caller otherwise), updating scores in place with
// max(existing, decay^depth) and only continuing through a node the
// first time it's reached at its shortest depth.
func propagateBFS(sg *symbolGraph, forward bool, seeds map[int64]bool, scores map[int64]float64, maxDepth int, decay float64) {
	type item struct {
		id    int64
		depth int
	}
	visited := make(map[int64]int, len(seeds))
	queue := make([]item, 0, len(seeds))
	for s := range seeds {
		visited[s] = 0
		queue = append(queue, item{s, 0})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		nextDepth := cur.depth + 1
		weight := pow(decay, nextDepth)

		var it graph.Nodes
		if forward {
			it = sg.directed.From(cur.id)
		} else {
			it = sg.directed.To(cur.id)
		}
		for it.Next() {
			n := it.Node().ID()
			if seeds[n] {
				continue
			}
			if d, ok := visited[n]; !ok || d > nextDepth {
				visited[n] = nextDepth
				if weight > scores[n] {
					scores[n] = weight
				}
				queue = append(queue, item{n, nextDepth})
			}
		}
	}
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

func (sg *symbolGraph) hasNode(id int64) bool {
	for _, n := range sg.nodes {
		if n == id {
			return true
		}
	}
	return false
}

// MergeRankings blends propagation scores with PageRank scores the same
// way merge_rankings does: both inputs are normalized to [0, 1] first so
// PageRank's tiny floats don't get drowned out by propagation's 0-1 decay
// scores, then combined as alpha*propagation + (1-alpha)*pagerank.
func MergeRankings(pagerank, propagation map[int64]float64, alpha float64) map[int64]float64 {
	if alpha <= 0 {
		alpha = defaultBlendAlpha
	}
	if len(pagerank) == 0 && len(propagation) == 0 {
		return map[int64]float64{}
	}

	maxPR := 0.0
	for _, v := range pagerank {
		if v > maxPR {
			maxPR = v
		}
	}
	maxProp := 0.0
	for _, v := range propagation {
		if v > maxProp {
			maxProp = v
		}
	}

	nodes := make(map[int64]bool, len(pagerank)+len(propagation))
	for n := range pagerank {
		nodes[n] = true
	}
	for n := range propagation {
		nodes[n] = true
	}

	result := make(map[int64]float64, len(nodes))
	for n := range nodes {
		normPR := 0.0
		if maxPR > 0 {
			normPR = pagerank[n] / maxPR
		}
		normProp := 0.0
		if maxProp > 0 {
			normProp = propagation[n] / maxProp
		}
		result[n] = alpha*normProp + (1-alpha)*normPR
	}
	return result
}

// CalleeChain returns the transitive callees of node, BFS-ordered by
// depth then node id for determinism, with the seed node itself excluded
// -- the same traversal callee_chain performs.
func (e *Engine) CalleeChain(ctx context.Context, node int64, maxDepth int) ([]DepthNode, error) {
	if maxDepth <= 0 {
		maxDepth = defaultPropagationDepth
	}
	sg, err := e.loadGraph(ctx)
	if err != nil {
		return nil, err
	}
	if !sg.hasNode(node) {
		return nil, nil
	}

	type item struct {
		id    int64
		depth int
	}
	visited := map[int64]int{node: 0}
	queue := []item{{node, 0}}
	var out []DepthNode

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		nextDepth := cur.depth + 1
		it := sg.directed.From(cur.id)
		for it.Next() {
			n := it.Node().ID()
			if d, ok := visited[n]; !ok || d > nextDepth {
				visited[n] = nextDepth
				out = append(out, DepthNode{ID: n, Depth: nextDepth})
				queue = append(queue, item{n, nextDepth})
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Depth != out[j].Depth {
			return out[i].Depth < out[j].Depth
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DepthNode pairs a symbol id with the BFS depth it was reached at.
type DepthNode struct {
	ID    int64
	Depth int
}
