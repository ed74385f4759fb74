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

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mulle-cc/roam-code-sub006/internal/bootstrap"
	"github.com/mulle-cc/roam-code-sub006/internal/errors"
	"github.com/mulle-cc/roam-code-sub006/internal/ui"
	"github.com/mulle-cc/roam-code-sub006/pkg/envelope"
	"github.com/mulle-cc/roam-code-sub006/pkg/gitingest"
	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

func runQuery(args []string, globals GlobalFlags) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "roam query: missing subcommand (deps, affected, dead, cycles, layers, clusters, spectral, hotspots, darkmatter, snapshot)")
		os.Exit(errors.ExitUsage)
	}

	sub := args[0]
	rest := args[1:]

	root, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewIOError("could not determine working directory", err.Error(), "", err), globals.JSON)
	}
	st, err := bootstrap.OpenProject(bootstrap.ProjectConfig{Root: root}, nil)
	if err != nil {
		errors.FatalError(errors.NewIndexMissingError("no roam index found", err.Error(), "run `roam init` and `roam index`", err), globals.JSON)
	}
	defer st.Close()

	ctx := context.Background()
	env := envelope.New("query."+sub, version, "ok")

	var runErr error
	switch sub {
	case "deps":
		runErr = queryDeps(ctx, st, rest, env)
	case "affected":
		runErr = queryAffected(ctx, st, rest, env)
	case "dead":
		runErr = queryDead(ctx, st, env)
	case "cycles":
		runErr = queryCycles(ctx, st, env)
	case "layers":
		runErr = queryLayers(ctx, st, env)
	case "clusters":
		runErr = queryClusters(ctx, st, env)
	case "spectral":
		runErr = querySpectral(ctx, st, env)
	case "hotspots":
		runErr = queryHotspots(ctx, st, env)
	case "darkmatter":
		runErr = queryDarkmatter(ctx, st, root, env)
	case "snapshot":
		runErr = querySnapshot(ctx, st, env)
	default:
		fmt.Fprintf(os.Stderr, "roam query: unknown subcommand %q\n", sub)
		os.Exit(errors.ExitUsage)
	}
	if runErr != nil {
		errors.FatalError(errors.NewInternalError("query failed", runErr.Error(), "", runErr), globals.JSON)
	}

	emitEnvelope(env, globals)
}

// emitEnvelope renders env either as the full JSON envelope, the compact
// agent-mode JSON, or a human-readable summary line, depending on globals.
func emitEnvelope(env *envelope.Envelope, globals GlobalFlags) {
	if globals.Agent {
		data, err := env.AgentJSON()
		if err != nil {
			errors.FatalError(errors.NewInternalError("failed to encode envelope", err.Error(), "", err), true)
		}
		fmt.Println(string(data))
		return
	}
	if globals.JSON {
		data, err := env.MarshalJSON()
		if err != nil {
			errors.FatalError(errors.NewInternalError("failed to encode envelope", err.Error(), "", err), true)
		}
		fmt.Println(string(data))
		return
	}
	ui.Header(env.Command)
	fmt.Printf("  %s %s\n", ui.Label("verdict:"), env.Summary.Verdict)
	for _, k := range envelope.SortedKeys(env.Data) {
		fmt.Printf("  %s %v\n", ui.Label(k+":"), env.Data[k])
	}
}

func queryDeps(ctx context.Context, st *store.Store, args []string, env *envelope.Envelope) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: roam query deps <symbol>")
	}
	name := args[0]

	out, err := st.Query(ctx, `
		SELECT s2.name, e.kind, 'out' FROM edges e
		JOIN symbols s1 ON s1.id = e.source_id
		JOIN symbols s2 ON s2.id = e.target_id
		WHERE s1.name = ? OR s1.qualified_name = ?
		UNION ALL
		SELECT s1.name, e.kind, 'in' FROM edges e
		JOIN symbols s1 ON s1.id = e.source_id
		JOIN symbols s2 ON s2.id = e.target_id
		WHERE s2.name = ? OR s2.qualified_name = ?`,
		name, name, name, name)
	if err != nil {
		return err
	}

	var dependsOn, dependedOnBy []map[string]any
	for _, row := range out.Rows {
		other, _ := row[0].(string)
		kind, _ := row[1].(string)
		direction, _ := row[2].(string)
		entry := map[string]any{"symbol": other, "kind": kind}
		if direction == "out" {
			dependsOn = append(dependsOn, entry)
		} else {
			dependedOnBy = append(dependedOnBy, entry)
		}
	}

	env.Set("symbol", name)
	env.Set("depends_on", toAnySlice(dependsOn))
	env.Set("depended_on_by", toAnySlice(dependedOnBy))
	env.SetSummary("depends_on_count", len(dependsOn))
	env.SetSummary("depended_on_by_count", len(dependedOnBy))
	return nil
}

func queryAffected(ctx context.Context, st *store.Store, files []string, env *envelope.Envelope) error {
	if len(files) == 0 {
		return fmt.Errorf("usage: roam query affected <files...>")
	}

	seed := map[int64]bool{}
	for _, f := range files {
		res, err := st.Query(ctx, `SELECT id FROM files WHERE path = ?`, f)
		if err != nil {
			return err
		}
		for _, row := range res.Rows {
			seed[asInt64Row(row[0])] = true
		}
	}

	edgeRows, err := st.Query(ctx, `SELECT source_file_id, target_file_id FROM file_edges`)
	if err != nil {
		return err
	}
	revAdj := map[int64][]int64{}
	for _, row := range edgeRows.Rows {
		src, dst := asInt64Row(row[0]), asInt64Row(row[1])
		revAdj[dst] = append(revAdj[dst], src)
	}

	visited := map[int64]bool{}
	queue := make([]int64, 0, len(seed))
	for id := range seed {
		visited[id] = true
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range revAdj[cur] {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	var affected []string
	for id := range visited {
		if seed[id] {
			continue
		}
		res, err := st.Query(ctx, `SELECT path FROM files WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if len(res.Rows) == 1 {
			if p, ok := res.Rows[0][0].(string); ok {
				affected = append(affected, p)
			}
		}
	}

	env.Set("seed_files", toAnySlice(files))
	env.Set("affected_files", toAnySlice(affected))
	env.SetSummary("affected_count", len(affected))
	return nil
}

func queryDead(ctx context.Context, st *store.Store, env *envelope.Envelope) error {
	res, err := st.Query(ctx, `
		SELECT s.name, f.path, s.line_start FROM symbols s
		JOIN files f ON f.id = s.file_id
		WHERE s.is_exported = 0
		  AND s.kind IN ('function', 'method')
		  AND NOT EXISTS (SELECT 1 FROM edges e WHERE e.target_id = s.id AND e.kind = 'call')`)
	if err != nil {
		return err
	}

	var dead []map[string]any
	for _, row := range res.Rows {
		name, _ := row[0].(string)
		path, _ := row[1].(string)
		dead = append(dead, map[string]any{"symbol": name, "file": path, "line": asInt64Row(row[2])})
	}

	env.Set("dead_symbols", toAnySlice(dead))
	env.SetSummary("dead_count", len(dead))
	if len(dead) > 0 {
		env.Summary.Verdict = "warn"
	}
	return nil
}

// queryCycles and queryLayers report that cycle/layer-violation detail is
// transient: pkg/graph.Recompute derives both in memory during `roam
// index` and only its summary counts (Report.Cycles,
// Report.LayerViolations) survive past that run, surfaced by `roam
// status`/`roam index --json`. Persisting the full membership lists would
// need new tables this core's schema does not carry yet.
func queryCycles(ctx context.Context, st *store.Store, env *envelope.Envelope) error {
	env.Set("note", "cycle membership is not persisted; see the cycle count from the last `roam index` run")
	return nil
}

func queryLayers(ctx context.Context, st *store.Store, env *envelope.Envelope) error {
	env.Set("note", "layer violation detail is not persisted; see the layer_violations count from the last `roam index` run")
	return nil
}

func queryClusters(ctx context.Context, st *store.Store, env *envelope.Envelope) error {
	res, err := st.Query(ctx, `
		SELECT c.cluster_id, c.cluster_label, count(*) FROM clusters c
		GROUP BY c.cluster_id, c.cluster_label
		ORDER BY count(*) DESC`)
	if err != nil {
		return err
	}
	var clusters []map[string]any
	for _, row := range res.Rows {
		clusters = append(clusters, map[string]any{
			"cluster_id": asInt64Row(row[0]),
			"label":      row[1],
			"size":       asInt64Row(row[2]),
		})
	}
	env.Set("clusters", toAnySlice(clusters))
	env.SetSummary("cluster_count", len(clusters))
	return nil
}

func querySpectral(ctx context.Context, st *store.Store, env *envelope.Envelope) error {
	res, err := st.Query(ctx, `
		SELECT fiedler_value, coupling_class, computed_at FROM spectral_bisections
		ORDER BY computed_at DESC LIMIT 1`)
	if err != nil {
		return err
	}
	if len(res.Rows) == 0 {
		env.Summary.Verdict = "unknown"
		env.Set("note", "no spectral bisection recorded yet; run `roam index`")
		return nil
	}
	row := res.Rows[0]
	env.Set("fiedler_value", row[0])
	env.Set("coupling_class", row[1])
	env.Set("computed_at", asInt64Row(row[2]))
	return nil
}

func queryHotspots(ctx context.Context, st *store.Store, env *envelope.Envelope) error {
	res, err := st.Query(ctx, `
		SELECT f.path, fs.total_churn, fs.complexity, fs.health_score
		FROM file_stats fs JOIN files f ON f.id = fs.file_id
		ORDER BY fs.total_churn * (1 + fs.complexity) DESC
		LIMIT 25`)
	if err != nil {
		return err
	}
	var hotspots []map[string]any
	for _, row := range res.Rows {
		hotspots = append(hotspots, map[string]any{
			"path":         row[0],
			"total_churn":  asInt64Row(row[1]),
			"complexity":   row[2],
			"health_score": row[3],
		})
	}
	env.Set("hotspots", toAnySlice(hotspots))
	return nil
}

func queryDarkmatter(ctx context.Context, st *store.Store, root string, env *envelope.Envelope) error {
	ing := gitingest.New(st, root, nil)
	pairs, err := ing.DarkMatter(ctx, gitingest.DefaultDarkMatterOptions())
	if err != nil {
		return err
	}
	hyp := gitingest.NewHypothesisEngine(root)
	classified := hyp.ClassifyAll(pairs)

	var out []map[string]any
	for _, c := range classified {
		out = append(out, map[string]any{
			"file_a":         c.PathA,
			"file_b":         c.PathB,
			"npmi":           c.NPMI,
			"lift":           c.Lift,
			"strength":       c.Strength,
			"cochange_count": c.CochangeCount,
			"hypothesis":     c.Hypothesis.Category,
			"detail":         c.Hypothesis.Detail,
			"confidence":     c.Hypothesis.Confidence,
		})
	}
	env.Set("dark_matter_pairs", toAnySlice(out))
	env.SetSummary("pair_count", len(out))
	return nil
}

func querySnapshot(ctx context.Context, st *store.Store, env *envelope.Envelope) error {
	counts := map[string]int64{}
	for name, q := range map[string]string{
		"files":   `SELECT count(*) FROM files`,
		"symbols": `SELECT count(*) FROM symbols`,
		"edges":   `SELECT count(*) FROM edges`,
	} {
		res, err := st.Query(ctx, q)
		if err != nil {
			return err
		}
		if len(res.Rows) == 1 {
			counts[name] = asInt64Row(res.Rows[0][0])
		}
	}

	_, err := st.Execute(ctx, `
		INSERT INTO snapshots (timestamp, tag, source, files, symbols, edges)
		VALUES (?, ?, ?, ?, ?, ?)`,
		nowUnix(), "", "cli", counts["files"], counts["symbols"], counts["edges"])
	if err != nil {
		return err
	}

	env.Set("files", counts["files"])
	env.Set("symbols", counts["symbols"])
	env.Set("edges", counts["edges"])
	return nil
}

func toAnySlice[T any](items []T) []any {
	out := make([]any, len(items))
	for i, v := range items {
		out[i] = v
	}
	return out
}

// nowUnix is the only place this package would otherwise call time.Now
// directly; kept as a single named wrapper so snapshot timestamps have
// one obvious call site.
func nowUnix() int64 {
	return time.Now().Unix()
}
