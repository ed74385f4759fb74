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
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
	"github.com/smacker/go-tree-sitter/csharp"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/java"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/php"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/ruby"
	"github.com/smacker/go-tree-sitter/rust"
	tstypescript "github.com/smacker/go-tree-sitter/typescript/typescript"
)

// languageSpec describes the node-type vocabulary of one tree-sitter
// grammar, enough to drive a single generic declaration/call/import
// walker across every supported language. Field names ("name",
// "parameters", "body") are shared by most tree-sitter grammars derived
// from the same generator conventions; where a grammar omits a field the
// walker falls back to the first bare identifier child.
type languageSpec struct {
	name       string
	getLang    func() *sitter.Language
	declTypes  map[string]SymbolKind // node type -> symbol kind
	classTypes map[string]bool       // node types that introduce a parent scope
	callType   string                // node type for a call/invocation expression
	importType string                // node type for an import/use/include statement
}

var treeSitterSpecs = []languageSpec{
	{
		name:    "go",
		getLang: func() *sitter.Language { return golang.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"function_declaration": KindFunction,
			"method_declaration":   KindMethod,
			"type_declaration":     KindType,
		},
		callType:   "call_expression",
		importType: "import_spec",
	},
	{
		name:    "python",
		getLang: func() *sitter.Language { return python.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"function_definition": KindFunction,
			"class_definition":    KindClass,
		},
		classTypes: map[string]bool{"class_definition": true},
		callType:   "call",
		importType: "import_statement",
	},
	{
		name:    "javascript",
		getLang: func() *sitter.Language { return javascript.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"function_declaration": KindFunction,
			"method_definition":    KindMethod,
			"class_declaration":    KindClass,
		},
		classTypes: map[string]bool{"class_declaration": true},
		callType:   "call_expression",
		importType: "import_statement",
	},
	{
		name:    "typescript",
		getLang: func() *sitter.Language { return tstypescript.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"function_declaration":  KindFunction,
			"method_definition":     KindMethod,
			"class_declaration":     KindClass,
			"interface_declaration": KindInterface,
		},
		classTypes: map[string]bool{"class_declaration": true, "interface_declaration": true},
		callType:   "call_expression",
		importType: "import_statement",
	},
	{
		name:    "java",
		getLang: func() *sitter.Language { return java.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"method_declaration":    KindMethod,
			"class_declaration":     KindClass,
			"interface_declaration": KindInterface,
		},
		classTypes: map[string]bool{"class_declaration": true, "interface_declaration": true},
		callType:   "method_invocation",
		importType: "import_declaration",
	},
	{
		name:    "ruby",
		getLang: func() *sitter.Language { return ruby.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"method":           KindMethod,
			"singleton_method": KindMethod,
			"class":            KindClass,
			"module":           KindClass,
		},
		classTypes: map[string]bool{"class": true, "module": true},
		callType:   "call",
		importType: "call", // require/require_relative surface as calls in ruby's grammar
	},
	{
		name:    "rust",
		getLang: func() *sitter.Language { return rust.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"function_item": KindFunction,
			"struct_item":   KindStruct,
			"trait_item":    KindInterface,
			"impl_item":     KindClass,
		},
		classTypes: map[string]bool{"impl_item": true},
		callType:   "call_expression",
		importType: "use_declaration",
	},
	{
		name:    "c",
		getLang: func() *sitter.Language { return c.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"function_definition": KindFunction,
		},
		callType:   "call_expression",
		importType: "preproc_include",
	},
	{
		name:    "cpp",
		getLang: func() *sitter.Language { return cpp.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"function_definition": KindFunction,
			"class_specifier":     KindClass,
			"struct_specifier":    KindStruct,
		},
		classTypes: map[string]bool{"class_specifier": true, "struct_specifier": true},
		callType:   "call_expression",
		importType: "preproc_include",
	},
	{
		name:    "csharp",
		getLang: func() *sitter.Language { return csharp.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"method_declaration":    KindMethod,
			"class_declaration":     KindClass,
			"interface_declaration": KindInterface,
		},
		classTypes: map[string]bool{"class_declaration": true, "interface_declaration": true},
		callType:   "invocation_expression",
		importType: "using_directive",
	},
	{
		name:    "php",
		getLang: func() *sitter.Language { return php.GetLanguage() },
		declTypes: map[string]SymbolKind{
			"function_definition": KindFunction,
			"method_declaration":  KindMethod,
			"class_declaration":   KindClass,
		},
		classTypes: map[string]bool{"class_declaration": true},
		callType:   "function_call_expression",
		importType: "namespace_use_declaration",
	},
}

// treeSitterExtractor is a generic Extractor driven by a languageSpec. It
// mirrors the teacher's two-pass approach (parser_go.go): walk once to
// collect declarations with their AST nodes, then walk each declaration's
// body to collect call sites, scoping calls to their enclosing function
// by name so pkg/resolve can match them against the symbol table.
type treeSitterExtractor struct {
	spec   languageSpec
	parser *sitter.Parser
}

func newTreeSitterExtractor(spec languageSpec) *treeSitterExtractor {
	p := sitter.NewParser()
	p.SetLanguage(spec.getLang())
	return &treeSitterExtractor{spec: spec, parser: p}
}

func (e *treeSitterExtractor) Language() string { return e.spec.name }

func (e *treeSitterExtractor) Extract(path string, content []byte) (*FileResult, error) {
	tree, err := e.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()

	result := &FileResult{Path: path, Language: e.spec.name}

	var decls []declWithNode
	e.walkDecls(root, content, "", &decls)

	for _, d := range decls {
		sym := d.symbol
		sym.CallSites = e.extractCalls(d.node, content, sym.Name)
		result.Symbols = append(result.Symbols, sym)
	}

	result.Imports = e.extractImports(root, content)

	return result, nil
}

type declWithNode struct {
	symbol Symbol
	node   *sitter.Node
}

// walkDecls recursively collects declaration nodes, tracking the nearest
// enclosing class/struct/impl name as ParentName so methods get a
// qualified name of Parent.Method.
func (e *treeSitterExtractor) walkDecls(node *sitter.Node, content []byte, parent string, out *[]declWithNode) {
	if node == nil {
		return
	}

	nodeType := node.Type()
	nextParent := parent

	if kind, ok := e.spec.declTypes[nodeType]; ok {
		name := declName(node, content)
		if name != "" {
			qualified := name
			if parent != "" {
				qualified = parent + "." + name
			}
			sym := Symbol{
				Name:          name,
				QualifiedName: qualified,
				Kind:          kind,
				Signature:     signatureFor(node, content),
				LineStart:     int(node.StartPoint().Row) + 1,
				LineEnd:       int(node.EndPoint().Row) + 1,
				Visibility:    visibilityFor(name),
				IsExported:    isExported(name),
				ParentName:    parent,
			}
			*out = append(*out, declWithNode{symbol: sym, node: node})

			if e.spec.classTypes[nodeType] {
				nextParent = name
			}
		}
	}

	for i := 0; i < int(node.ChildCount()); i++ {
		e.walkDecls(node.Child(i), content, nextParent, out)
	}
}

// extractCalls scans scope (a declaration's subtree) for call-expression
// nodes and records them against callerName.
func (e *treeSitterExtractor) extractCalls(scope *sitter.Node, content []byte, callerName string) []CallSite {
	var calls []CallSite
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == e.spec.callType {
			if callee := calleeName(n, content); callee != "" {
				calls = append(calls, CallSite{
					CallerName: callerName,
					CalleeName: callee,
					Line:       int(n.StartPoint().Row) + 1,
				})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(scope)
	return calls
}

// extractImports scans the whole file for import-statement-shaped nodes
// and extracts the literal path/module string inside each.
func (e *treeSitterExtractor) extractImports(root *sitter.Node, content []byte) []ImportRef {
	var imports []ImportRef
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == e.spec.importType {
			if path := importPath(n, content); path != "" {
				imports = append(imports, ImportRef{
					Path: path,
					Line: int(n.StartPoint().Row) + 1,
				})
			}
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)
	return imports
}

// declName extracts a declaration's own name, preferring the "name" field
// most tree-sitter grammars expose, and otherwise falling back to the
// first identifier-shaped child (covers grammars without field names, and
// Go method receivers where "name" is present but nested differently).
func declName(node *sitter.Node, content []byte) string {
	if nameNode := node.ChildByFieldName("name"); nameNode != nil {
		return string(content[nameNode.StartByte():nameNode.EndByte()])
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "identifier", "type_identifier", "property_identifier", "constant":
			return string(content[child.StartByte():child.EndByte()])
		}
	}
	return ""
}

// calleeName extracts the invoked name from a call-expression node,
// preferring the "function" field and reducing a dotted/selector
// expression to its rightmost identifier plus its qualifier prefix
// (e.g. "pkg.Foo" for a Go selector, "obj.method" for JS/Python/Ruby).
func calleeName(call *sitter.Node, content []byte) string {
	fn := call.ChildByFieldName("function")
	if fn == nil {
		fn = call.ChildByFieldName("method")
	}
	if fn == nil {
		// Ruby/C-family: the callee is often the first child.
		if call.ChildCount() > 0 {
			fn = call.Child(0)
		}
	}
	if fn == nil {
		return ""
	}
	return string(content[fn.StartByte():fn.EndByte()])
}

// importPath extracts the quoted path/module literal from an import node.
func importPath(node *sitter.Node, content []byte) string {
	var found string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if found != "" || n == nil {
			return
		}
		switch n.Type() {
		case "interpreted_string_literal", "string_literal", "string", "dotted_name":
			found = trimQuotes(string(content[n.StartByte():n.EndByte()]))
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(node)
	return found
}

func trimQuotes(s string) string {
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') || (first == '`' && last == '`') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// signatureFor renders a compact signature using the "parameters" and
// "return_type"/"result" fields where the grammar exposes them.
func signatureFor(node *sitter.Node, content []byte) string {
	params := ""
	if p := node.ChildByFieldName("parameters"); p != nil {
		params = string(content[p.StartByte():p.EndByte()])
	}
	ret := ""
	for _, field := range []string{"return_type", "result", "type"} {
		if r := node.ChildByFieldName(field); r != nil {
			ret = string(content[r.StartByte():r.EndByte()])
			break
		}
	}
	name := declName(node, content)
	sig := name + params
	if ret != "" {
		sig += " " + ret
	}
	return sig
}

// isExported approximates exported/public visibility using the
// case-of-first-letter convention (Go), applied to every language: a name
// starting with a lowercase ASCII letter is not exported, any other name
// is (caller-side visibility modifiers are not tracked at this layer).
func isExported(name string) bool {
	if name == "" {
		return false
	}
	r := name[0]
	if r >= 'a' && r <= 'z' {
		return false
	}
	return true
}

func visibilityFor(name string) string {
	if isExported(name) {
		return "public"
	}
	return "private"
}
