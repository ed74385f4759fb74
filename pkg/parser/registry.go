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

package parser

import (
	"fmt"
	"path/filepath"
	"strings"
)

// extByLanguage maps file extensions to the language identifier used for
// both extractor dispatch and the files.language column.
var extByLanguage = map[string]string{
	".go":    "go",
	".py":    "python",
	".pyi":   "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".mjs":   "javascript",
	".cjs":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".rb":    "ruby",
	".rs":    "rust",
	".c":     "c",
	".h":     "c",
	".cc":    "cpp",
	".cpp":   "cpp",
	".cxx":   "cpp",
	".hpp":   "cpp",
	".hh":    "cpp",
	".cs":    "csharp",
	".php":   "php",
	".proto": "protobuf",
	".yaml":  "yaml",
	".yml":   "yaml",
	".tf":    "hcl",
	".hcl":   "hcl",
}

// LanguageForPath returns the language identifier for path's extension, and
// false if the extension is not recognized (the caller should skip it).
func LanguageForPath(path string) (string, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	lang, ok := extByLanguage[ext]
	return lang, ok
}

// Registry dispatches a file to the Extractor registered for its language.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry builds a Registry with every built-in extractor registered:
// the eleven tree-sitter languages plus the four regex-fallback formats.
func NewRegistry() *Registry {
	r := &Registry{extractors: make(map[string]Extractor)}
	for _, spec := range treeSitterSpecs {
		r.Register(newTreeSitterExtractor(spec))
	}
	r.Register(newProtobufExtractor())
	r.Register(newYAMLExtractor())
	r.Register(newHCLExtractor())
	r.Register(newRouteTableExtractor())
	return r
}

// Register adds or replaces the extractor for its own Language(). Plugin
// language extractors (pkg/plugin) call this to extend the default set.
func (r *Registry) Register(e Extractor) {
	r.extractors[e.Language()] = e
}

// Extract dispatches path to the extractor for its detected language.
func (r *Registry) Extract(path string, content []byte) (*FileResult, error) {
	lang, ok := LanguageForPath(path)
	if !ok {
		return nil, fmt.Errorf("no extractor for extension of %s", path)
	}
	e, ok := r.extractors[lang]
	if !ok {
		return nil, fmt.Errorf("no extractor registered for language %q", lang)
	}
	return e.Extract(path, content)
}

// Languages returns every language identifier with a registered extractor.
func (r *Registry) Languages() []string {
	langs := make([]string, 0, len(r.extractors))
	for l := range r.extractors {
		langs = append(langs, l)
	}
	return langs
}
