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

package workspace

import (
	"context"
	"testing"

	"github.com/mulle-cc/roam-code-sub006/pkg/bridge"
)

func setupTestWorkspace(t *testing.T) *Workspace {
	t.Helper()
	w, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestAddRepo_InsertsAndUpserts(t *testing.T) {
	w := setupTestWorkspace(t)
	ctx := context.Background()

	id1, err := w.AddRepo(ctx, "svc-a", "/repos/svc-a", "/repos/svc-a/.roam/index.db")
	if err != nil {
		t.Fatalf("AddRepo failed: %v", err)
	}
	if id1 == 0 {
		t.Fatal("expected non-zero repo id")
	}

	// Re-adding the same name updates paths instead of erroring or
	// creating a duplicate row.
	id2, err := w.AddRepo(ctx, "svc-a", "/repos/svc-a-moved", "/repos/svc-a-moved/.roam/index.db")
	if err != nil {
		t.Fatalf("AddRepo (update) failed: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected stable id across re-add, got %d then %d", id1, id2)
	}

	repos, err := w.Repos(ctx)
	if err != nil {
		t.Fatalf("Repos failed: %v", err)
	}
	if len(repos) != 1 {
		t.Fatalf("expected 1 repo, got %d", len(repos))
	}
	if repos[0].RootPath != "/repos/svc-a-moved" {
		t.Fatalf("expected updated root path, got %q", repos[0].RootPath)
	}
}

func TestRouteSymbols_ReplacesOnRescan(t *testing.T) {
	w := setupTestWorkspace(t)
	ctx := context.Background()

	repoID, err := w.AddRepo(ctx, "svc-a", "/repos/svc-a", "/repos/svc-a/.roam/index.db")
	if err != nil {
		t.Fatalf("AddRepo failed: %v", err)
	}

	first := []bridge.SourceSymbol{
		{Name: "GetUser", QualifiedName: "api.GetUser", FilePath: "api/user.go", Kind: "route"},
		{Name: "ListUsers", QualifiedName: "api.ListUsers", FilePath: "api/user.go", Kind: "route"},
	}
	if err := w.SetRouteSymbols(ctx, repoID, first); err != nil {
		t.Fatalf("SetRouteSymbols failed: %v", err)
	}

	routes, err := w.RouteSymbols(ctx, repoID)
	if err != nil {
		t.Fatalf("RouteSymbols failed: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}

	// A re-scan with fewer routes must not accumulate stale rows from the
	// previous scan.
	second := []bridge.SourceSymbol{
		{Name: "GetUser", QualifiedName: "api.GetUser", FilePath: "api/user.go", Kind: "route"},
	}
	if err := w.SetRouteSymbols(ctx, repoID, second); err != nil {
		t.Fatalf("SetRouteSymbols (rescan) failed: %v", err)
	}
	routes, err = w.RouteSymbols(ctx, repoID)
	if err != nil {
		t.Fatalf("RouteSymbols failed: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("expected 1 route after rescan, got %d", len(routes))
	}
}

func TestCrossEdges_VisibleFromEitherEndpoint(t *testing.T) {
	w := setupTestWorkspace(t)
	ctx := context.Background()

	sourceID, err := w.AddRepo(ctx, "proto-defs", "/repos/proto-defs", "/repos/proto-defs/.roam/index.db")
	if err != nil {
		t.Fatalf("AddRepo failed: %v", err)
	}
	targetID, err := w.AddRepo(ctx, "go-service", "/repos/go-service", "/repos/go-service/.roam/index.db")
	if err != nil {
		t.Fatalf("AddRepo failed: %v", err)
	}

	edges := []bridge.Edge{
		{Source: "User", Target: "pb.User", Kind: "x-lang", Bridge: "protobuf-go"},
	}
	if err := w.AddCrossEdges(ctx, sourceID, targetID, edges); err != nil {
		t.Fatalf("AddCrossEdges failed: %v", err)
	}

	fromSource, err := w.CrossEdges(ctx, sourceID)
	if err != nil {
		t.Fatalf("CrossEdges(source) failed: %v", err)
	}
	if len(fromSource) != 1 {
		t.Fatalf("expected 1 edge visible from source repo, got %d", len(fromSource))
	}

	fromTarget, err := w.CrossEdges(ctx, targetID)
	if err != nil {
		t.Fatalf("CrossEdges(target) failed: %v", err)
	}
	if len(fromTarget) != 1 {
		t.Fatalf("expected 1 edge visible from target repo, got %d", len(fromTarget))
	}
}

func TestAddCrossEdges_EmptyIsNoop(t *testing.T) {
	w := setupTestWorkspace(t)
	ctx := context.Background()

	sourceID, _ := w.AddRepo(ctx, "a", "/repos/a", "/repos/a/.roam/index.db")
	targetID, _ := w.AddRepo(ctx, "b", "/repos/b", "/repos/b/.roam/index.db")

	if err := w.AddCrossEdges(ctx, sourceID, targetID, nil); err != nil {
		t.Fatalf("AddCrossEdges(nil) should be a no-op, got error: %v", err)
	}
	edges, err := w.CrossEdges(ctx, sourceID)
	if err != nil {
		t.Fatalf("CrossEdges failed: %v", err)
	}
	if len(edges) != 0 {
		t.Fatalf("expected no edges, got %d", len(edges))
	}
}
