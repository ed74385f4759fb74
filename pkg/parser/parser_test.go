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
	"testing"
)

func TestLanguageForPath(t *testing.T) {
	cases := map[string]string{
		"main.go":        "go",
		"app.py":         "python",
		"index.tsx":      "typescript",
		"Main.java":      "java",
		"lib.rb":         "ruby",
		"lib.rs":         "rust",
		"svc.proto":      "protobuf",
		"values.yaml":    "yaml",
		"main.tf":        "hcl",
		"unsupported.xy": "",
	}
	for path, want := range cases {
		got, ok := LanguageForPath(path)
		if want == "" {
			if ok {
				t.Errorf("LanguageForPath(%q) = %q, want unrecognized", path, got)
			}
			continue
		}
		if !ok || got != want {
			t.Errorf("LanguageForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestNewRegistry_CoversFifteenLanguages(t *testing.T) {
	r := NewRegistry()
	langs := r.Languages()
	if len(langs) != 15 {
		t.Fatalf("expected 15 registered extractors, got %d: %v", len(langs), langs)
	}
}

func TestGoExtractor_FunctionsAndCalls(t *testing.T) {
	src := `package main

import "fmt"

func helper() {
	fmt.Println("hi")
}

func main() {
	helper()
}
`
	r := NewRegistry()
	result, err := r.Extract("main.go", []byte(src))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(result.Symbols) != 2 {
		t.Fatalf("expected 2 functions, got %d: %+v", len(result.Symbols), result.Symbols)
	}

	var mainSym *Symbol
	for i := range result.Symbols {
		if result.Symbols[i].Name == "main" {
			mainSym = &result.Symbols[i]
		}
	}
	if mainSym == nil {
		t.Fatal("expected to find main function")
	}
	if len(mainSym.CallSites) != 1 || mainSym.CallSites[0].CalleeName != "helper" {
		t.Fatalf("expected main to call helper, got %+v", mainSym.CallSites)
	}
}

func TestPythonExtractor_ClassMethod(t *testing.T) {
	src := `class Greeter:
    def greet(self):
        print("hi")
`
	r := NewRegistry()
	result, err := r.Extract("greeter.py", []byte(src))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	var found bool
	for _, s := range result.Symbols {
		if s.Name == "greet" && s.ParentName == "Greeter" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected method greet scoped to class Greeter, got %+v", result.Symbols)
	}
}

func TestProtobufExtractor(t *testing.T) {
	src := `syntax = "proto3";

service Greeter {
  rpc SayHello (HelloRequest) returns (HelloReply);
}

message HelloRequest {
  string name = 1;
}
`
	e := newProtobufExtractor()
	result, err := e.Extract("greeter.proto", []byte(src))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(result.Symbols) != 3 {
		t.Fatalf("expected service+rpc+message = 3 symbols, got %d: %+v", len(result.Symbols), result.Symbols)
	}
}

func TestHCLExtractor(t *testing.T) {
	src := `resource "aws_instance" "web" {
  ami = "ami-123"
}
`
	e := newHCLExtractor()
	result, err := e.Extract("main.tf", []byte(src))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(result.Symbols) != 1 || result.Symbols[0].QualifiedName != "resource.aws_instance.web" {
		t.Fatalf("unexpected symbols: %+v", result.Symbols)
	}
}
