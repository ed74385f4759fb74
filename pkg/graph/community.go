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
	"fmt"
	"path"
	"sort"

	"gonum.org/v1/gonum/graph/community"
)

// louvainResolution matches the original implementation's
// detect_communities(G, resolution=1.0): no bias toward finer or coarser
// clusters than Louvain's default modularity optimum.
const louvainResolution = 1.0

// computeClusters runs Louvain community detection over the undirected
// symbol graph, same as panbanda-omen's use of community.Modularize, and
// persists each cluster's membership and a directory-majority label.
func (e *Engine) computeClusters(ctx context.Context, sg *symbolGraph) (int, float64, error) {
	if len(sg.nodes) == 0 {
		return 0, 0, nil
	}

	reduced := community.Modularize(sg.undirected, louvainResolution, nil)
	communities := reduced.Communities()
	modularity := community.Q(sg.undirected, communities, louvainResolution)

	sort.Slice(communities, func(i, j int) bool { return len(communities[i]) > len(communities[j]) })

	err := e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM clusters`); err != nil {
			return err
		}
		for idx, members := range communities {
			ids := make([]int64, len(members))
			for i, node := range members {
				ids[i] = node.ID()
			}
			label := clusterLabelForNodes(sg, ids)
			for _, id := range ids {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO clusters (symbol_id, cluster_id, cluster_label)
					VALUES (?, ?, ?)`,
					id, idx, label); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("persist clusters: %w", err)
	}

	return len(communities), modularity, nil
}

// clusterLabelForNodes names a cluster after whichever directory most of
// its members' owning files live under, a directory-majority heuristic
// standing in for an explicit module name.
func clusterLabelForNodes(sg *symbolGraph, members []int64) string {
	counts := make(map[string]int)
	for _, id := range members {
		dir := path.Dir(sg.nodeFile[id])
		counts[dir]++
	}
	best, bestCount := "", -1
	dirs := make([]string, 0, len(counts))
	for d := range counts {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	for _, d := range dirs {
		if counts[d] > bestCount {
			best, bestCount = d, counts[d]
		}
	}
	return best
}
