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

// Package rules implements the declarative rule engine from spec.md §4.9:
// path/structural rules over symbol and file metadata, AST-metavar
// pattern rules, and dataflow rules, all discovered from a directory tree
// of YAML rule files and evaluated against a project's store.
package rules

import "fmt"

// Severity is a rule's configured severity.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Family identifies which of the three rule families a Rule belongs to.
type Family string

const (
	FamilySymbolMatch   Family = "symbol_match"
	FamilyPathMatch     Family = "path_match"
	FamilyASTMatch      Family = "ast_match"
	FamilyDataflowMatch Family = "dataflow_match"
)

// Require is the set of assertions a path/structural rule can check.
// Zero values are "not set" (not checked), matching the YAML's
// optional-key texture.
type Require struct {
	MaxParams      int    `yaml:"max_params,omitempty"`
	MaxSymbolLines int    `yaml:"max_symbol_lines,omitempty"`
	MaxFileLines   int    `yaml:"max_file_lines,omitempty"`
	NameRegex      string `yaml:"name_regex,omitempty"`
}

// Rule is one declarative rule loaded from a YAML file.
type Rule struct {
	ID       string   `yaml:"id"`
	Family   Family   `yaml:"family"`
	Severity Severity `yaml:"severity"`
	Message  string   `yaml:"message,omitempty"`

	// symbol_match / path_match
	Glob    string  `yaml:"glob,omitempty"`
	Kind    string  `yaml:"kind,omitempty"`
	Require Require `yaml:"require,omitempty"`

	// ast_match
	Language string `yaml:"language,omitempty"`
	Pattern  string `yaml:"pattern,omitempty"`

	// dataflow_match
	DataflowKind string `yaml:"dataflow_kind,omitempty"` // dead_assignment | unused_parameter | source_to_sink
	Source       string `yaml:"source,omitempty"`
	Sink         string `yaml:"sink,omitempty"`

	// SourcePath records which file this rule was loaded from, for
	// diagnostics when a rule fails to compile (e.g. bad name_regex).
	SourcePath string `yaml:"-"`
}

// Violation is one rule failure, shaped so it maps directly onto a SARIF
// result (spec.md §4.9: "produces violations with {symbol|file, line,
// reason}").
type Violation struct {
	RuleID   string
	Severity Severity
	FilePath string
	Symbol   string // symbol name, empty for file-level violations
	Line     int
	Reason   string
}

func (v Violation) String() string {
	if v.Symbol != "" {
		return fmt.Sprintf("%s:%d: [%s] %s: %s", v.FilePath, v.Line, v.RuleID, v.Symbol, v.Reason)
	}
	return fmt.Sprintf("%s:%d: [%s] %s", v.FilePath, v.Line, v.RuleID, v.Reason)
}
