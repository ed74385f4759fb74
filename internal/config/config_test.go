// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefault(t *testing.T) {
	root := t.TempDir()
	cfg, err := Load(root, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Indexing.MaxFileSize != 1_000_000 || cfg.Indexing.ParserMode != "tree-sitter" || cfg.Indexing.BatchTarget != 200 {
		t.Fatalf("expected default indexing knobs, got %+v", cfg.Indexing)
	}
	if cfg.ProjectID != filepath.Base(root) {
		t.Fatalf("expected project id derived from root basename, got %q", cfg.ProjectID)
	}
}

func TestSaveThenLoad_RoundTrips(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{
		ProjectID: "myproj",
		Indexing: Indexing{
			Exclude:     []string{"vendor/", "node_modules/"},
			MaxFileSize: 2_000_000,
			ParserMode:  "regex-only",
			BatchTarget: 500,
		},
	}
	if err := Save(root, "", cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(root, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.ProjectID != "myproj" || got.Indexing.ParserMode != "regex-only" || got.Indexing.BatchTarget != 500 {
		t.Fatalf("expected round-tripped config, got %+v", got)
	}
	if len(got.Indexing.Exclude) != 2 {
		t.Fatalf("expected exclude list to round-trip, got %v", got.Indexing.Exclude)
	}
}

func TestLoad_FillsZeroIndexingFieldsWithDefaults(t *testing.T) {
	root := t.TempDir()
	cfg := &Config{ProjectID: "partial"}
	if err := Save(root, "", cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(root, "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Indexing.MaxFileSize != 1_000_000 || got.Indexing.ParserMode != "tree-sitter" || got.Indexing.BatchTarget != 200 {
		t.Fatalf("expected zero-valued fields backfilled with defaults, got %+v", got.Indexing)
	}
}

func TestLoad_RelativeOverridePathIsRootedAtProjectRoot(t *testing.T) {
	root := t.TempDir()
	cfg := Default("x")
	cfg.Indexing.BatchTarget = 42
	if err := Save(root, "custom.yaml", cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := Load(root, "custom.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Indexing.BatchTarget != 42 {
		t.Fatalf("expected the custom relative path to be read, got %+v", got.Indexing)
	}
}

func TestLoad_MalformedYAMLReturnsError(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, DefaultRelPath)
	if err := Save(root, "", Default("x")); err != nil {
		t.Fatalf("setup save failed: %v", err)
	}
	writeRaw(t, path, "not: valid: yaml: [")

	if _, err := Load(root, ""); err == nil {
		t.Fatal("expected malformed YAML to produce an error")
	}
}

func writeRaw(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
