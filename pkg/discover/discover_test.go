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

package discover

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func TestDiscover_WalkFallbackFiltersSkippable(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, "vendor.min.js", "//min")
	writeFile(t, root, "node_modules/pkg/index.js", "module.exports = {}")
	writeFile(t, root, "yarn.lock", "lockdata")
	writeFile(t, root, "assets/logo.png", "binarydata")

	result, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(result.Files) != 1 || result.Files[0] != "main.go" {
		t.Fatalf("expected only main.go, got %v", result.Files)
	}
	if result.SkipReasons["lockfile"] != 1 {
		t.Fatalf("expected one lockfile skip, got %d", result.SkipReasons["lockfile"])
	}
	if result.SkipReasons["binary_or_asset"] != 2 {
		t.Fatalf("expected two binary_or_asset skips (vendor.min.js, assets/logo.png), got %d", result.SkipReasons["binary_or_asset"])
	}
}

func TestDiscover_SkipsRoamDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "main.go", "package main")
	writeFile(t, root, ".roam/index.db", "binarydata")

	result, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(result.Files) != 1 {
		t.Fatalf("expected .roam contents excluded, got %v", result.Files)
	}
}

func TestDiscover_SkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.go", "package main")

	big := make([]byte, MaxFileSize+1)
	writeFile(t, root, "huge.go", string(big))

	result, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	if len(result.Files) != 1 || result.Files[0] != "small.go" {
		t.Fatalf("expected only small.go kept, got %v", result.Files)
	}
	if result.SkipReasons["too_large"] != 1 {
		t.Fatalf("expected too_large skip, got %d", result.SkipReasons["too_large"])
	}
}

func TestDiscover_SortsOutputDeterministically(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "z.go", "package main")
	writeFile(t, root, "a.go", "package main")
	writeFile(t, root, "m/b.go", "package m")

	result, err := Discover(root, nil)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	want := []string{"a.go", "m/b.go", "z.go"}
	if len(result.Files) != len(want) {
		t.Fatalf("expected %v, got %v", want, result.Files)
	}
	for i, f := range want {
		if result.Files[i] != f {
			t.Fatalf("expected sorted %v, got %v", want, result.Files)
		}
	}
}
