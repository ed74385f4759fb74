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

package rules

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ruleFile is the top-level shape of one YAML rule file: a project can
// group several related rules under one file without forcing one-rule-
// per-file.
type ruleFile struct {
	Rules []Rule `yaml:"rules"`
}

// Load discovers every *.yaml/*.yml file under dir (recursively) and
// parses it into a flat, ID-sorted rule list. A directory that doesn't
// exist yields an empty set rather than an error, matching the teacher's
// "missing optional config is not fatal" convention used in
// internal/config.Load.
func Load(dir string) ([]Rule, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}

	var all []Rule
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("rules: read %s: %w", path, err)
		}
		var rf ruleFile
		if err := yaml.Unmarshal(raw, &rf); err != nil {
			return fmt.Errorf("rules: parse %s: %w", path, err)
		}
		for _, r := range rf.Rules {
			r.SourcePath = path
			if err := validateRule(r); err != nil {
				return fmt.Errorf("rules: %s: %w", path, err)
			}
			all = append(all, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all, nil
}

func validateRule(r Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule missing id")
	}
	switch r.Family {
	case FamilySymbolMatch, FamilyPathMatch, FamilyASTMatch, FamilyDataflowMatch:
	default:
		return fmt.Errorf("rule %s: unknown family %q", r.ID, r.Family)
	}
	switch r.Severity {
	case SeverityError, SeverityWarning, SeverityInfo, "":
	default:
		return fmt.Errorf("rule %s: unknown severity %q", r.ID, r.Severity)
	}
	if r.Family == FamilyASTMatch && r.Pattern == "" {
		return fmt.Errorf("rule %s: ast_match requires pattern", r.ID)
	}
	if r.Family == FamilyDataflowMatch && r.DataflowKind == "" {
		return fmt.Errorf("rule %s: dataflow_match requires dataflow_kind", r.ID)
	}
	return nil
}

func effectiveSeverity(r Rule) Severity {
	if r.Severity == "" {
		return SeverityWarning
	}
	return r.Severity
}
