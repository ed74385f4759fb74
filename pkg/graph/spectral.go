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
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
)

// Coupling class thresholds on algebraic connectivity (the Fiedler
// value), same bands the original implementation's classify_coupling
// uses: a well-separated graph bisects cheaply, a tightly coupled one
// barely splits at all.
const (
	fiedlerWellModularized       = 0.1
	fiedlerModeratelyModularized = 0.5
)

// spectralScopeGlobal is the only scope this implementation computes;
// the column exists in the schema for a future per-subsystem bisection.
const spectralScopeGlobal = "global"

// computeSpectralBisection finds the algebraic connectivity (Fiedler
// value) of the file-level dependency graph's largest connected
// component via an eigendecomposition of its Laplacian, then splits that
// component into two partitions by the sign of the corresponding
// eigenvector entry. Bisection runs over files rather than symbols,
// matching spectral_bisection_members' file_id column: file-level
// coupling is what the original graph/cycles.py module's
// spectral_bisection step reports on. gonum has no purpose-built
// spectral-bisection routine, so this is built directly on mat.EigenSym
// over a hand-assembled Laplacian, the same linear-algebra approach the
// original module takes with numpy.
func (e *Engine) computeSpectralBisection(ctx context.Context, sg *symbolGraph) (float64, string, error) {
	fg, err := e.loadFileGraph(ctx)
	if err != nil {
		return 0, "", fmt.Errorf("load file graph: %w", err)
	}
	if len(fg.files) < 2 {
		return 0, "well-modularized", e.persistSpectralBisection(ctx, 0, "well-modularized", nil)
	}

	component := largestFileComponent(fg)
	if len(component) < 2 {
		return 0, "well-modularized", e.persistSpectralBisection(ctx, 0, "well-modularized", nil)
	}

	n := len(component)
	index := make(map[int64]int, n)
	for i, id := range component {
		index[id] = i
	}

	laplacian := mat.NewSymDense(n, nil)
	for _, id := range component {
		i := index[id]
		deg := 0.0
		for _, nb := range fg.adj[id] {
			j, ok := index[nb]
			if !ok || j == i {
				continue
			}
			deg++
			laplacian.SetSym(i, j, -1)
		}
		laplacian.SetSym(i, i, deg)
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(laplacian, true); !ok {
		return 0, "", fmt.Errorf("eigendecomposition of laplacian failed")
	}

	values := eig.Values(nil)
	fiedlerValue := 0.0
	fiedlerIdx := 0
	for i, v := range values {
		if i == 0 {
			continue
		}
		if v < values[fiedlerIdx] || fiedlerIdx == 0 {
			fiedlerIdx = i
			fiedlerValue = v
		}
	}
	fiedlerValue = round6(fiedlerValue)

	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	members := make([]bisectionMember, n)
	for i, id := range component {
		fval := vectors.At(i, fiedlerIdx)
		partition := 0
		if fval < 0 {
			partition = 1
		}
		members[i] = bisectionMember{fileID: id, partition: partition, component: round6(fval)}
	}

	class := classifyCoupling(fiedlerValue)
	if err := e.persistSpectralBisection(ctx, fiedlerValue, class, members); err != nil {
		return 0, "", err
	}
	return fiedlerValue, class, nil
}

type bisectionMember struct {
	fileID    int64
	partition int
	component float64
}

func (e *Engine) persistSpectralBisection(ctx context.Context, fiedlerValue float64, class string, members []bisectionMember) error {
	return e.Store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM spectral_bisection_members`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM spectral_bisections`); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO spectral_bisections (computed_at, scope, fiedler_value, coupling_class)
			VALUES (?, ?, ?, ?)`,
			time.Now().Unix(), spectralScopeGlobal, fiedlerValue, class)
		if err != nil {
			return err
		}
		bisectionID, err := res.LastInsertId()
		if err != nil {
			return err
		}
		for _, m := range members {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO spectral_bisection_members (bisection_id, file_id, partition, fiedler_component)
				VALUES (?, ?, ?, ?)`,
				bisectionID, m.fileID, m.partition, m.component); err != nil {
				return err
			}
		}
		return nil
	})
}

func classifyCoupling(fiedlerValue float64) string {
	switch {
	case fiedlerValue < fiedlerWellModularized:
		return "well-modularized"
	case fiedlerValue < fiedlerModeratelyModularized:
		return "moderately-modularized"
	default:
		return "tightly-coupled"
	}
}

// fileGraph is the undirected file-level dependency graph drawn from
// file_edges, used only for spectral bisection.
type fileGraph struct {
	files []int64
	adj   map[int64][]int64
}

func (e *Engine) loadFileGraph(ctx context.Context) (*fileGraph, error) {
	fg := &fileGraph{adj: make(map[int64][]int64)}

	rows, err := e.Store.Query(ctx, `SELECT id FROM files`)
	if err != nil {
		return nil, err
	}
	seen := make(map[int64]bool, len(rows.Rows))
	for _, row := range rows.Rows {
		id, _ := row[0].(int64)
		fg.files = append(fg.files, id)
		seen[id] = true
	}

	edgeRows, err := e.Store.Query(ctx, `SELECT source_file_id, target_file_id FROM file_edges`)
	if err != nil {
		return nil, err
	}
	added := make(map[[2]int64]bool)
	for _, row := range edgeRows.Rows {
		a, _ := row[0].(int64)
		b, _ := row[1].(int64)
		if a == b || !seen[a] || !seen[b] {
			continue
		}
		key := [2]int64{a, b}
		if a > b {
			key = [2]int64{b, a}
		}
		if added[key] {
			continue
		}
		added[key] = true
		fg.adj[a] = append(fg.adj[a], b)
		fg.adj[b] = append(fg.adj[b], a)
	}

	return fg, nil
}

// largestFileComponent returns the node ids of the biggest connected
// component in the file graph, via plain BFS.
func largestFileComponent(fg *fileGraph) []int64 {
	visited := make(map[int64]bool, len(fg.files))
	var best []int64

	files := append([]int64{}, fg.files...)
	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

	for _, start := range files {
		if visited[start] {
			continue
		}
		var comp []int64
		queue := []int64{start}
		visited[start] = true
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			comp = append(comp, cur)
			for _, next := range fg.adj[cur] {
				if !visited[next] {
					visited[next] = true
					queue = append(queue, next)
				}
			}
		}
		if len(comp) > len(best) {
			best = comp
		}
	}

	sort.Slice(best, func(i, j int) bool { return best[i] < best[j] })
	return best
}

func round6(x float64) float64 {
	const scale = 1e6
	return float64(int64(x*scale+0.5)) / scale
}
