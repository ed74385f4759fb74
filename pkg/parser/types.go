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

// Package parser extracts symbols, references, and imports from source
// files across multiple languages.
//
// Eleven languages are parsed with tree-sitter grammars (Go, Python,
// JavaScript, TypeScript, Java, Ruby, Rust, C, C++, C#, PHP); four more
// config/schema formats that have no meaningful call graph (Protobuf,
// YAML, HCL, and a generic route-table format) are handled with regex
// extractors instead, since a full grammar is overkill for their shape.
package parser

// SymbolKind enumerates the kinds of symbols a language extractor emits.
type SymbolKind string

const (
	KindFunction  SymbolKind = "function"
	KindMethod    SymbolKind = "method"
	KindClass     SymbolKind = "class"
	KindInterface SymbolKind = "interface"
	KindStruct    SymbolKind = "struct"
	KindType      SymbolKind = "type"
	KindVariable  SymbolKind = "variable"
	KindConstant  SymbolKind = "constant"
	KindRoute     SymbolKind = "route"
	KindMessage   SymbolKind = "message" // protobuf message/service
)

// Symbol is a single named declaration extracted from a file.
type Symbol struct {
	Name          string
	QualifiedName string
	Kind          SymbolKind
	Signature     string
	LineStart     int
	LineEnd       int
	Docstring     string
	Visibility    string // "public" or "private"
	IsExported    bool
	ParentName    string // enclosing type/class, if any ("" for free functions)
	DefaultValue  string

	// AST-adjacent fields used only during extraction, not persisted.
	CallSites []CallSite
}

// CallSite is a reference from one symbol to a callee, extracted before
// cross-file resolution. CalleeName may be simple ("Foo") or qualified
// ("pkg.Foo"); pkg/resolve turns it into a concrete target symbol id.
type CallSite struct {
	CallerName string
	CalleeName string
	Line       int
}

// ImportRef is a single import/include/require statement.
type ImportRef struct {
	Path  string // raw import path/module as written in source
	Alias string
	Line  int
}

// FileResult is everything extracted from a single file.
type FileResult struct {
	Path        string
	Language    string
	PackageName string
	Symbols     []Symbol
	Imports     []ImportRef
}

// Extractor parses a single file's content into a FileResult.
type Extractor interface {
	// Language returns the extractor's language identifier (matches the
	// `language` column written to the files table).
	Language() string

	// Extract parses content (the file's raw bytes) from the file at
	// path and returns its symbols, imports, and call sites.
	Extract(path string, content []byte) (*FileResult, error)
}
