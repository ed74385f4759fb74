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
	"strings"
)

// protobufGoBridge links a .proto message to the Go struct protoc-gen-go
// generates for it, by the standard "<name>.proto" -> "<name>.pb.go"
// naming convention and a PascalCase message-name match.
type protobufGoBridge struct{}

// NewProtobufGoBridge builds the Protobuf→Go bridge.
func NewProtobufGoBridge() Bridge {
	return protobufGoBridge{}
}

func (protobufGoBridge) Name() string                { return "protobuf-go" }
func (protobufGoBridge) SourceExtensions() []string  { return []string{".proto"} }
func (protobufGoBridge) TargetExtensions() []string  { return []string{".go"} }

func (protobufGoBridge) Detect(filePaths []string) bool {
	hasProto, hasGo := false, false
	for _, p := range filePaths {
		switch filepath.Ext(p) {
		case ".proto":
			hasProto = true
		case ".go":
			hasGo = true
		}
	}
	return hasProto && hasGo
}

// Resolve matches sourcePath's base name against a "<base>.pb.go" file in
// targetFiles, then links each message-kind symbol in sourceSymbols to
// the identically-named Go struct, assuming protoc-gen-go's default
// PascalCase message-to-struct naming is in effect.
func (protobufGoBridge) Resolve(sourcePath string, sourceSymbols []SourceSymbol, targetFiles []string) []Edge {
	base := strings.TrimSuffix(filepath.Base(sourcePath), ".proto")
	genName := base + ".pb.go"

	var genFile string
	for _, t := range targetFiles {
		if filepath.Base(t) == genName {
			genFile = t
			break
		}
	}
	if genFile == "" {
		return nil
	}

	var edges []Edge
	for _, sym := range sourceSymbols {
		if sym.Kind != "message" && sym.Kind != "struct" {
			continue
		}
		edges = append(edges, Edge{
			Source: sym.QualifiedName,
			Target: genFile + "#" + toPascalCase(sym.Name),
			Kind:   "x-lang",
			Bridge: "protobuf-go",
		})
	}
	return edges
}

// toPascalCase converts a snake_case or lower_snake proto identifier into
// Go's generated PascalCase form (protoc-gen-go's field/message naming).
func toPascalCase(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
