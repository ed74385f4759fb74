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
	"regexp"
	"strings"
)

// Regex-based extractors for formats whose structure is line-oriented
// enough that a full tree-sitter grammar buys little: protobuf service
// definitions, YAML Kubernetes-style manifests, HCL/Terraform resource
// blocks, and generic declarative route tables (OpenAPI paths, framework
// route files). None of these define call graphs, so they only ever emit
// declarations, no CallSites.

// --- Protobuf -----------------------------------------------------------

type protobufExtractor struct{}

func newProtobufExtractor() Extractor { return protobufExtractor{} }

func (protobufExtractor) Language() string { return "protobuf" }

var (
	protoServiceRe = regexp.MustCompile(`^service\s+(\w+)\s*\{`)
	protoRPCRe     = regexp.MustCompile(`^rpc\s+(\w+)\s*\(([^)]*)\)\s*returns\s*\(([^)]*)\)`)
	protoMessageRe = regexp.MustCompile(`^message\s+(\w+)\s*\{`)
)

func (protobufExtractor) Extract(path string, content []byte) (*FileResult, error) {
	result := &FileResult{Path: path, Language: "protobuf"}

	lines := strings.Split(string(content), "\n")
	var currentService string
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "//") {
			continue
		}

		if m := protoServiceRe.FindStringSubmatch(trimmed); m != nil {
			currentService = m[1]
			result.Symbols = append(result.Symbols, Symbol{
				Name: m[1], QualifiedName: m[1], Kind: KindMessage,
				Signature: "service " + m[1], LineStart: i + 1, LineEnd: i + 1,
				IsExported: true, Visibility: "public",
			})
			continue
		}
		if currentService != "" {
			if m := protoRPCRe.FindStringSubmatch(trimmed); m != nil {
				qualified := currentService + "." + m[1]
				result.Symbols = append(result.Symbols, Symbol{
					Name: m[1], QualifiedName: qualified, Kind: KindMethod,
					Signature:  "rpc " + m[1] + "(" + m[2] + ") returns (" + m[3] + ")",
					LineStart:  i + 1, LineEnd: i + 1,
					ParentName: currentService, IsExported: true, Visibility: "public",
				})
			}
			if strings.Contains(trimmed, "}") && !strings.Contains(trimmed, "{") {
				currentService = ""
			}
		}
		if m := protoMessageRe.FindStringSubmatch(trimmed); m != nil {
			result.Symbols = append(result.Symbols, Symbol{
				Name: m[1], QualifiedName: m[1], Kind: KindMessage,
				Signature: "message " + m[1], LineStart: i + 1, LineEnd: i + 1,
				IsExported: true, Visibility: "public",
			})
		}
	}
	return result, nil
}

// --- YAML -----------------------------------------------------------------

type yamlExtractor struct{}

func newYAMLExtractor() Extractor { return yamlExtractor{} }

func (yamlExtractor) Language() string { return "yaml" }

var yamlTopKeyRe = regexp.MustCompile(`^([A-Za-z_][\w-]*):\s*(\S.*)?$`)

// Extract records each top-level (zero-indent) key as a declaration, since
// YAML manifests (CI pipelines, k8s resources, OpenAPI root sections) are
// structured as a flat map of named sections a rule can reference.
func (yamlExtractor) Extract(path string, content []byte) (*FileResult, error) {
	result := &FileResult{Path: path, Language: "yaml"}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		if len(line) == 0 || line[0] == ' ' || line[0] == '\t' || line[0] == '#' {
			continue
		}
		if m := yamlTopKeyRe.FindStringSubmatch(line); m != nil {
			result.Symbols = append(result.Symbols, Symbol{
				Name: m[1], QualifiedName: m[1], Kind: KindVariable,
				Signature: line, LineStart: i + 1, LineEnd: i + 1,
				IsExported: true, Visibility: "public",
			})
		}
	}
	return result, nil
}

// --- HCL (Terraform) -------------------------------------------------------

type hclExtractor struct{}

func newHCLExtractor() Extractor { return hclExtractor{} }

func (hclExtractor) Language() string { return "hcl" }

var hclBlockRe = regexp.MustCompile(`^(resource|module|data|variable|output)\s+"([^"]+)"(?:\s+"([^"]+)")?\s*\{`)

func (hclExtractor) Extract(path string, content []byte) (*FileResult, error) {
	result := &FileResult{Path: path, Language: "hcl"}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		m := hclBlockRe.FindStringSubmatch(trimmed)
		if m == nil {
			continue
		}
		blockType, first, second := m[1], m[2], m[3]
		name := first
		qualified := blockType + "." + first
		if second != "" {
			name = second
			qualified = blockType + "." + first + "." + second
		}
		result.Symbols = append(result.Symbols, Symbol{
			Name: name, QualifiedName: qualified, Kind: KindType,
			Signature: trimmed, LineStart: i + 1, LineEnd: i + 1,
			IsExported: true, Visibility: "public",
		})
	}
	return result, nil
}

// --- Generic route table ---------------------------------------------------

type routeTableExtractor struct{}

func newRouteTableExtractor() Extractor { return routeTableExtractor{} }

func (routeTableExtractor) Language() string { return "routes" }

// routeLineRe matches the common `METHOD "/path"` shape shared by most
// lightweight route-table files (e.g. a framework routes.rb entry or an
// Express app.get(...) call); a line needs an HTTP method word before the
// quoted path. The route extractor is registered under the language
// "routes", which no file extension maps to, so Registry.Extract never
// dispatches a file to it; it runs only when called directly.
var routeLineRe = regexp.MustCompile(`(?i)\b(GET|POST|PUT|PATCH|DELETE|HEAD|OPTIONS)\b[^"'` + "`" + `]*["'` + "`" + `]([^"'` + "`" + `]+)["'` + "`" + `]`)

func (routeTableExtractor) Extract(path string, content []byte) (*FileResult, error) {
	result := &FileResult{Path: path, Language: "routes"}

	lines := strings.Split(string(content), "\n")
	for i, line := range lines {
		m := routeLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		method, route := strings.ToUpper(m[1]), m[2]
		qualified := method + " " + route
		result.Symbols = append(result.Symbols, Symbol{
			Name: qualified, QualifiedName: qualified, Kind: KindRoute,
			Signature: strings.TrimSpace(line), LineStart: i + 1, LineEnd: i + 1,
			IsExported: true, Visibility: "public",
		})
	}
	return result, nil
}
