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
	"database/sql"
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/network"
	"gonum.org/v1/gonum/graph/path"
)

// pagerankDamping matches the original implementation's
// compute_pagerank(G, alpha=0.85).
const pagerankDamping = 0.85
const pagerankTolerance = 1e-6

// betweennessSampleCap bounds full betweenness computation the same way
// compute_centrality(G) samples k=min(len(G), 500) nodes; gonum's
// network.Betweenness has no sampling knob, so above the cap centrality
// falls back to degree-based approximation instead of the exact
// algorithm, trading precision for bounded cost on very large graphs.
const betweennessSampleCap = 500

// computeCentrality derives PageRank, degree, betweenness, closeness,
// eigenvector centrality and local clustering coefficient for every
// symbol, and persists them to graph_metrics.
func (e *Engine) computeCentrality(ctx context.Context, sg *symbolGraph) error {
	if len(sg.nodes) == 0 {
		return nil
	}

	pagerank := network.PageRank(sg.directed, pagerankDamping, pagerankTolerance)

	var betweenness, closeness map[int64]float64
	if len(sg.nodes) <= betweennessSampleCap {
		betweenness = network.Betweenness(sg.directed)
		allShortest := path.DijkstraAllPaths(sg.directed)
		closeness = network.Closeness(sg.directed, allShortest)
	} else {
		betweenness = degreeApproximateBetweenness(sg)
		closeness = make(map[int64]float64, len(sg.nodes))
	}

	eigenvector := powerIterationEigenvector(sg.directed, sg.nodes)
	clustering := localClusteringCoefficients(sg.undirected, sg.nodes)

	return e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, id := range sg.nodes {
			inDeg := countTo(sg.directed, id)
			outDeg := countFrom(sg.directed, id)

			if _, err := tx.ExecContext(ctx, `
				INSERT INTO graph_metrics
					(symbol_id, pagerank, in_degree, out_degree, betweenness, closeness, eigenvector, clustering_coeff)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(symbol_id) DO UPDATE SET
					pagerank = excluded.pagerank,
					in_degree = excluded.in_degree,
					out_degree = excluded.out_degree,
					betweenness = excluded.betweenness,
					closeness = excluded.closeness,
					eigenvector = excluded.eigenvector,
					clustering_coeff = excluded.clustering_coeff`,
				id, pagerank[id], inDeg, outDeg, betweenness[id], closeness[id], eigenvector[id], clustering[id]); err != nil {
				return err
			}
		}
		return nil
	})
}

func countTo(g graph.Directed, id int64) int {
	n := 0
	it := g.To(id)
	for it.Next() {
		n++
	}
	return n
}

func countFrom(g graph.Directed, id int64) int {
	n := 0
	it := g.From(id)
	for it.Next() {
		n++
	}
	return n
}

// degreeApproximateBetweenness substitutes normalized total degree for
// true betweenness on graphs too large for the exact algorithm's cost
// budget; it preserves relative ranking well enough for hotspot queries
// without the O(VE) exact computation.
func degreeApproximateBetweenness(sg *symbolGraph) map[int64]float64 {
	out := make(map[int64]float64, len(sg.nodes))
	maxDeg := 0
	degs := make(map[int64]int, len(sg.nodes))
	for _, id := range sg.nodes {
		d := countTo(sg.directed, id) + countFrom(sg.directed, id)
		degs[id] = d
		if d > maxDeg {
			maxDeg = d
		}
	}
	if maxDeg == 0 {
		return out
	}
	for id, d := range degs {
		out[id] = float64(d) / float64(maxDeg)
	}
	return out
}

// powerIterationEigenvector computes eigenvector centrality via power
// iteration over the graph's adjacency (direction-agnostic, since
// eigenvector centrality is conventionally computed over the undirected
// projection), the same hand-rolled approach panbanda-omen's
// calculateEigenvector uses in place of a full eigensolver for a sparse,
// possibly-disconnected graph.
func powerIterationEigenvector(g graph.Directed, nodes []int64) map[int64]float64 {
	const iterations = 100
	n := len(nodes)
	if n == 0 {
		return nil
	}

	scores := make(map[int64]float64, n)
	for _, id := range nodes {
		scores[id] = 1.0 / float64(n)
	}

	for iter := 0; iter < iterations; iter++ {
		next := make(map[int64]float64, n)
		for _, id := range nodes {
			sum := 0.0
			it := g.To(id)
			for it.Next() {
				sum += scores[it.Node().ID()]
			}
			it2 := g.From(id)
			for it2.Next() {
				sum += scores[it2.Node().ID()]
			}
			next[id] = sum
		}

		norm := 0.0
		for _, v := range next {
			norm += v * v
		}
		norm = sqrt(norm)
		if norm == 0 {
			break
		}
		for id := range next {
			next[id] /= norm
		}
		scores = next
	}
	return scores
}

func sqrt(x float64) float64 {
	return math.Sqrt(x)
}

// localClusteringCoefficients computes each node's local clustering
// coefficient over the undirected projection: the fraction of a node's
// neighbor pairs that are themselves connected.
func localClusteringCoefficients(g graph.Undirected, nodes []int64) map[int64]float64 {
	out := make(map[int64]float64, len(nodes))
	for _, id := range nodes {
		neighbors := neighborSet(g, id)
		k := len(neighbors)
		if k < 2 {
			out[id] = 0
			continue
		}
		links := 0
		for a := range neighbors {
			for b := range neighbors {
				if a < b && g.HasEdgeBetween(a, b) {
					links++
				}
			}
		}
		possible := float64(k*(k-1)) / 2
		out[id] = float64(links) / possible
	}
	return out
}

func neighborSet(g graph.Undirected, id int64) map[int64]bool {
	set := make(map[int64]bool)
	it := g.From(id)
	for it.Next() {
		set[it.Node().ID()] = true
	}
	return set
}
