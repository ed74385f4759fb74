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
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mulle-cc/roam-code-sub006/internal/bootstrap"
	"github.com/mulle-cc/roam-code-sub006/internal/errors"
	"github.com/mulle-cc/roam-code-sub006/pkg/bridge"
	"github.com/mulle-cc/roam-code-sub006/pkg/envelope"
	"github.com/mulle-cc/roam-code-sub006/pkg/workspace"
)

// runWorkspace drives the multi-repo overlay named in spec.md §6: `roam
// workspace add` registers a repo's already-indexed project in the
// overlay database and scans its route symbols (kind='route'); `roam
// workspace routes` lists a repo's registered routes; `roam workspace
// cross` resolves cross-language bridge edges between two registered
// repos and records them; `roam workspace list` enumerates repos.
func runWorkspace(args []string, globals GlobalFlags) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "roam workspace: missing subcommand (add, list, routes, cross)")
		os.Exit(errors.ExitUsage)
	}

	sub := args[0]
	rest := args[1:]

	wsRoot, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewIOError("could not determine working directory", err.Error(), "", err), globals.JSON)
	}

	ws, err := workspace.Open(wsRoot)
	if err != nil {
		errors.FatalError(errors.NewIOError("could not open workspace overlay", err.Error(), "", err), globals.JSON)
	}
	defer ws.Close()

	ctx := context.Background()
	env := envelope.New("workspace."+sub, version, "ok")

	var runErr error
	switch sub {
	case "add":
		runErr = workspaceAdd(ctx, ws, rest, env)
	case "list":
		runErr = workspaceList(ctx, ws, env)
	case "routes":
		runErr = workspaceRoutes(ctx, ws, rest, env)
	case "cross":
		runErr = workspaceCross(ctx, ws, rest, env)
	default:
		fmt.Fprintf(os.Stderr, "roam workspace: unknown subcommand %q\n", sub)
		os.Exit(errors.ExitUsage)
	}
	if runErr != nil {
		errors.FatalError(errors.NewInternalError("workspace command failed", runErr.Error(), "", runErr), globals.JSON)
	}

	emitEnvelope(env, globals)
}

func workspaceAdd(ctx context.Context, ws *workspace.Workspace, args []string, env *envelope.Envelope) error {
	fs := flag.NewFlagSet("workspace add", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: roam workspace add <name> <repo-root>")
	}
	name, repoRoot := fs.Arg(0), fs.Arg(1)

	absRoot, err := filepath.Abs(repoRoot)
	if err != nil {
		return fmt.Errorf("resolve repo root: %w", err)
	}
	if !bootstrap.HasIndex(absRoot, "") {
		return fmt.Errorf("%s has no roam index — run `roam index` there first", absRoot)
	}

	st, err := bootstrap.OpenProject(bootstrap.ProjectConfig{Root: absRoot}, nil)
	if err != nil {
		return fmt.Errorf("open %s's index: %w", absRoot, err)
	}
	defer st.Close()

	repoID, err := ws.AddRepo(ctx, name, absRoot, st.Path())
	if err != nil {
		return fmt.Errorf("register repo: %w", err)
	}

	res, err := st.Query(ctx, `SELECT s.name, s.qualified_name, f.path, s.kind
		FROM symbols s JOIN files f ON f.id = s.file_id
		WHERE s.kind = 'route'`)
	if err != nil {
		return fmt.Errorf("scan route symbols: %w", err)
	}
	routes := make([]bridge.SourceSymbol, 0, len(res.Rows))
	for _, row := range res.Rows {
		routes = append(routes, bridge.SourceSymbol{
			Name:          asString(row[0]),
			QualifiedName: asString(row[1]),
			FilePath:      asString(row[2]),
			Kind:          asString(row[3]),
		})
	}
	if err := ws.SetRouteSymbols(ctx, repoID, routes); err != nil {
		return fmt.Errorf("store route symbols: %w", err)
	}

	env.Summary.Verdict = fmt.Sprintf("registered %s with %d route symbol(s)", name, len(routes))
	env.Set("repo_id", repoID)
	env.Set("name", name)
	env.Set("route_count", len(routes))
	return nil
}

func workspaceList(ctx context.Context, ws *workspace.Workspace, env *envelope.Envelope) error {
	repos, err := ws.Repos(ctx)
	if err != nil {
		return err
	}
	env.Summary.Verdict = fmt.Sprintf("%d repo(s) registered", len(repos))
	env.Set("repos", repos)
	return nil
}

func workspaceRoutes(ctx context.Context, ws *workspace.Workspace, args []string, env *envelope.Envelope) error {
	fs := flag.NewFlagSet("workspace routes", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() < 1 {
		return fmt.Errorf("usage: roam workspace routes <repo-name>")
	}
	name := fs.Arg(0)

	repoID, err := workspaceRepoID(ctx, ws, name)
	if err != nil {
		return err
	}
	routes, err := ws.RouteSymbols(ctx, repoID)
	if err != nil {
		return err
	}
	env.Summary.Verdict = fmt.Sprintf("%d route(s) in %s", len(routes), name)
	env.Set("routes", routes)
	return nil
}

func workspaceCross(ctx context.Context, ws *workspace.Workspace, args []string, env *envelope.Envelope) error {
	fs := flag.NewFlagSet("workspace cross", flag.ExitOnError)
	_ = fs.Parse(args)
	if fs.NArg() < 2 {
		return fmt.Errorf("usage: roam workspace cross <source-repo> <target-repo>")
	}
	sourceName, targetName := fs.Arg(0), fs.Arg(1)

	sourceID, err := workspaceRepoID(ctx, ws, sourceName)
	if err != nil {
		return err
	}
	targetID, err := workspaceRepoID(ctx, ws, targetName)
	if err != nil {
		return err
	}

	sourceSymbols, err := ws.RouteSymbols(ctx, sourceID)
	if err != nil {
		return err
	}

	repos, err := ws.Repos(ctx)
	if err != nil {
		return err
	}
	var targetRoot string
	for _, r := range repos {
		if r.ID == targetID {
			targetRoot = r.RootPath
			break
		}
	}
	targetFiles, err := listFiles(targetRoot)
	if err != nil {
		return fmt.Errorf("walk target repo: %w", err)
	}

	registry := bridge.Standard()
	bySource := map[string][]bridge.SourceSymbol{}
	for _, s := range sourceSymbols {
		bySource[s.FilePath] = append(bySource[s.FilePath], s)
	}

	var edges []bridge.Edge
	for sourcePath, symbols := range bySource {
		for _, b := range registry.Detect(append([]string{sourcePath}, targetFiles...)) {
			edges = append(edges, b.Resolve(sourcePath, symbols, targetFiles)...)
		}
	}

	if err := ws.AddCrossEdges(ctx, sourceID, targetID, edges); err != nil {
		return err
	}

	env.Summary.Verdict = fmt.Sprintf("found %d cross-repo edge(s) from %s to %s", len(edges), sourceName, targetName)
	env.Set("edges", edges)
	return nil
}

func workspaceRepoID(ctx context.Context, ws *workspace.Workspace, name string) (int64, error) {
	repos, err := ws.Repos(ctx)
	if err != nil {
		return 0, err
	}
	for _, r := range repos {
		if r.Name == name {
			return r.ID, nil
		}
	}
	return 0, fmt.Errorf("no repo named %q registered (run `roam workspace add`)", name)
}

func listFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	return out, err
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", s)
	}
}
