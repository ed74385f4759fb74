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

package index

import (
	"context"
	"path"
	"strings"

	"github.com/mulle-cc/roam-code-sub006/pkg/parser"
	"github.com/mulle-cc/roam-code-sub006/pkg/resolve"
)

// buildImportGraph assembles the file-level import graph resolve.BuildIndex
// needs for its transitive-qualified-match step. Unchanged files contribute
// the import edges already persisted in file_edges from a previous run;
// changed files contribute freshly computed edges from this run's parse,
// mapping each raw import path to a known file path with resolveImportToFile.
//
// changedCounts is returned separately (not folded into the FileImport
// list) so the caller can write file_edges rows for the changed files
// directly, without needing a symbol-level "import" edge kind that this
// indexer doesn't otherwise produce.
func (ix *Indexer) buildImportGraph(ctx context.Context, parsed map[string]*parser.FileResult, allFiles []string) (imports []resolve.FileImport, changedCounts map[[2]string]int, err error) {
	changedCounts = make(map[[2]string]int)

	for _, path := range sortedKeys(parsed) {
		fr := parsed[path]
		for _, imp := range fr.Imports {
			target, ok := resolveImportToFile(imp.Path, fr.Language, path, allFiles)
			if !ok || target == path {
				continue
			}
			imports = append(imports, resolve.FileImport{FromPath: path, ToPath: target})
			changedCounts[[2]string{path, target}]++
		}
	}

	rows, err := ix.Store.Query(ctx, `
		SELECT sf.path, tf.path
		FROM file_edges fe
		JOIN files sf ON sf.id = fe.source_file_id
		JOIN files tf ON tf.id = fe.target_file_id
		WHERE fe.kind = 'imports'`)
	if err != nil {
		return nil, nil, err
	}
	for _, row := range rows.Rows {
		from, _ := asString(row[0])
		to, _ := asString(row[1])
		if _, isChanged := parsed[from]; isChanged {
			continue // superseded by the freshly computed edges above
		}
		imports = append(imports, resolve.FileImport{FromPath: from, ToPath: to})
	}

	return imports, changedCounts, nil
}

// resolveImportToFile maps a raw import/require/include path, as written in
// source, to one of the project's known file paths. Resolution is
// heuristic rather than a full language-specific module resolver: it
// prefers a path whose directory suffix matches the import's trailing
// segments, breaking ties by the longest shared suffix, which is enough to
// connect same-repo imports without needing each language's full module
// search-path semantics.
func resolveImportToFile(importPath, language, fromPath string, known []string) (string, bool) {
	importPath = strings.Trim(importPath, `"'`)
	if importPath == "" {
		return "", false
	}

	// Relative imports resolve directly against the importing file's
	// directory, the one case that doesn't need fuzzy suffix matching.
	if strings.HasPrefix(importPath, ".") {
		base := path.Join(path.Dir(fromPath), importPath)
		if best, ok := matchKnownFile(base, known); ok {
			return best, true
		}
	}

	segments := strings.Split(strings.Trim(importPath, "/"), "/")
	if best, ok := matchKnownFile(path.Join(segments...), known); ok {
		return best, true
	}

	// Fall back to matching on the last one or two segments only, to catch
	// package-qualified imports (e.g. Go's "github.com/org/repo/pkg/foo").
	if len(segments) > 2 {
		tail := path.Join(segments[len(segments)-2:]...)
		if best, ok := matchKnownFile(tail, known); ok {
			return best, true
		}
	}
	return "", false
}

// matchKnownFile finds the file in known whose path has the longest
// suffix overlap with candidate, either as an exact directory match (an
// index/package file) or an extension-stripped basename match.
func matchKnownFile(candidate string, known []string) (string, bool) {
	var best string
	bestScore := 0
	for _, k := range known {
		kNoExt := strings.TrimSuffix(k, path.Ext(k))
		score := commonSuffixLen(kNoExt, candidate)
		if score > bestScore {
			bestScore = score
			best = k
		}
	}
	if bestScore < len(path.Base(candidate)) {
		return "", false
	}
	return best, true
}

func commonSuffixLen(a, b string) int {
	ai, bi := len(a)-1, len(b)-1
	n := 0
	for ai >= 0 && bi >= 0 && a[ai] == b[bi] {
		n++
		ai--
		bi--
	}
	return n
}
