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

package bridge

import (
	"path/filepath"
	"regexp"
	"strings"
)

// openAPIClientBridge links an OpenAPI/Swagger spec's operationId-derived
// route symbols to generated or hand-written client functions that share
// a name, the cross-language link spec.md's workspace routing feature
// needs when a service's spec lives in one repo and its client in
// another.
type openAPIClientBridge struct{}

// NewOpenAPIClientBridge builds the OpenAPI→client bridge.
func NewOpenAPIClientBridge() Bridge {
	return openAPIClientBridge{}
}

func (openAPIClientBridge) Name() string { return "openapi-client" }

func (openAPIClientBridge) SourceExtensions() []string {
	return []string{".yaml", ".yml", ".json"}
}

func (openAPIClientBridge) TargetExtensions() []string {
	return []string{".go", ".ts", ".py"}
}

var specNameRe = regexp.MustCompile(`(?i)(openapi|swagger)`)

func (openAPIClientBridge) Detect(filePaths []string) bool {
	for _, p := range filePaths {
		if specNameRe.MatchString(filepath.Base(p)) {
			return true
		}
	}
	return false
}

// Resolve links each route symbol extracted from an OpenAPI spec (parsed
// by pkg/parser's route-table fallback extractor, whose symbol names are
// the spec's operationId values) to "<target>#<Identifier>" for every
// target file whose path contains "client" or "api" (case-insensitive),
// since a generated or hand-written client method is expected to reuse
// operationId as its function name. Target files are not read, so an edge
// is emitted whether or not the file defines that function.
func (openAPIClientBridge) Resolve(sourcePath string, sourceSymbols []SourceSymbol, targetFiles []string) []Edge {
	if !specNameRe.MatchString(filepath.Base(sourcePath)) {
		return nil
	}

	var edges []Edge
	for _, sym := range sourceSymbols {
		if sym.Kind != "route" && sym.Kind != "operation" {
			continue
		}
		candidate := operationIDToIdentifier(sym.Name)
		for _, t := range targetFiles {
			// Only link to targets whose path (directory or file name)
			// plausibly belongs to the same client/service, avoiding an
			// O(symbols*targets) edge explosion across an unrelated tree.
			if !strings.Contains(strings.ToLower(t), "client") &&
				!strings.Contains(strings.ToLower(t), "api") {
				continue
			}
			edges = append(edges, Edge{
				Source: sym.QualifiedName,
				Target: t + "#" + candidate,
				Kind:   "x-lang",
				Bridge: "openapi-client",
			})
		}
	}
	return edges
}

// operationIDToIdentifier normalizes an OpenAPI operationId like
// "list-widgets" or "list_widgets" into the PascalCase identifier a
// generated client typically uses.
func operationIDToIdentifier(operationID string) string {
	fields := strings.FieldsFunc(operationID, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
	var b strings.Builder
	for _, f := range fields {
		if f == "" {
			continue
		}
		b.WriteString(strings.ToUpper(f[:1]))
		b.WriteString(f[1:])
	}
	return b.String()
}
