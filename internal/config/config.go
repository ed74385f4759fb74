// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package config loads the per-project .roam/project.yaml configuration
// file, following the teacher's .cie/project.yaml loading pattern
// (cmd/cie/init.go) with the embedding-provider fields dropped — this
// core has no semantic/embedding subsystem.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultRelPath is where the project config lives relative to a project
// root.
const DefaultRelPath = ".roam/project.yaml"

// Indexing holds the subset of indexing knobs a project may override.
type Indexing struct {
	Exclude     []string `yaml:"exclude,omitempty"`
	MaxFileSize int64    `yaml:"max_file_size,omitempty"`
	ParserMode  string   `yaml:"parser_mode,omitempty"` // "tree-sitter" (default) or "regex-only"
	BatchTarget int      `yaml:"batch_target,omitempty"`
}

// Config is the parsed contents of .roam/project.yaml.
type Config struct {
	ProjectID string   `yaml:"project_id"`
	Indexing  Indexing `yaml:"indexing,omitempty"`
}

// Default returns the configuration used when no project.yaml exists yet
// (e.g. before `roam init` has run).
func Default(projectID string) *Config {
	return &Config{
		ProjectID: projectID,
		Indexing: Indexing{
			MaxFileSize: 1_000_000,
			ParserMode:  "tree-sitter",
			BatchTarget: 200,
		},
	}
}

// Load reads and parses the config file at path. If path is empty, it
// defaults to root/.roam/project.yaml; a missing file is not an error —
// Load returns Default(filepath.Base(root)) instead, matching the
// teacher's "works without init" texture for read-only commands.
func Load(root, path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(root, DefaultRelPath)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		absRoot, absErr := filepath.Abs(root)
		if absErr != nil {
			absRoot = root
		}
		return Default(filepath.Base(absRoot)), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Default(filepath.Base(root))
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Indexing.MaxFileSize == 0 {
		cfg.Indexing.MaxFileSize = 1_000_000
	}
	if cfg.Indexing.ParserMode == "" {
		cfg.Indexing.ParserMode = "tree-sitter"
	}
	if cfg.Indexing.BatchTarget == 0 {
		cfg.Indexing.BatchTarget = 200
	}
	return cfg, nil
}

// Save writes cfg to root/.roam/project.yaml (or the override path),
// creating the parent directory if necessary. Used by `roam init`.
func Save(root, path string, cfg *Config) error {
	if path == "" {
		path = filepath.Join(root, DefaultRelPath)
	} else if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
