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

package gitingest

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mulle-cc/roam-code-sub006/internal/metrics"
)

// DarkMatterPair is a co-changing file pair with no structural file-edge
// between them, ranked by normalized pointwise mutual information.
type DarkMatterPair struct {
	FileIDA       int64
	FileIDB       int64
	PathA         string
	PathB         string
	NPMI          float64
	Lift          float64
	Strength      float64
	CochangeCount int
}

// DarkMatterOptions tunes the detection thresholds.
type DarkMatterOptions struct {
	MinCochanges int
	MinNPMI      float64
}

// DefaultDarkMatterOptions matches original_source's dark_matter_edges
// defaults (min_cochanges=3, min_npmi=0.3).
func DefaultDarkMatterOptions() DarkMatterOptions {
	return DarkMatterOptions{MinCochanges: 3, MinNPMI: 0.3}
}

// npmi computes Normalized Pointwise Mutual Information in [-1, +1],
// following original_source/src/roam/graph/dark_matter.py's _npmi exactly.
func npmi(pAB, pA, pB float64) float64 {
	if pAB <= 0 || pA <= 0 || pB <= 0 {
		return -1.0
	}
	pmi := math.Log(pAB / (pA * pB))
	negLogPAB := -math.Log(pAB)
	if negLogPAB == 0 {
		return 1.0
	}
	return pmi / negLogPAB
}

// DarkMatter finds co-changing file pairs with no structural file_edges
// row between them, sorted by NPMI descending, per spec.md §4.7.
func (ig *Ingester) DarkMatter(ctx context.Context, opts DarkMatterOptions) ([]DarkMatterPair, error) {
	commitRow, err := ig.Store.Query(ctx, `SELECT COUNT(*) FROM git_commits`)
	if err != nil {
		return nil, err
	}
	totalCommits := int64(1)
	if len(commitRow.Rows) > 0 {
		if n, ok := commitRow.Rows[0][0].(int64); ok && n > 0 {
			totalCommits = n
		}
	}

	statsRows, err := ig.Store.Query(ctx, `SELECT file_id, commit_count FROM file_stats`)
	if err != nil {
		return nil, err
	}
	fileCommits := make(map[int64]int64, len(statsRows.Rows))
	for _, row := range statsRows.Rows {
		id, _ := row[0].(int64)
		n, _ := row[1].(int64)
		if n == 0 {
			n = 1
		}
		fileCommits[id] = n
	}

	cochangeRows, err := ig.Store.Query(ctx,
		`SELECT file_id_a, file_id_b, cochange_count FROM git_cochange WHERE cochange_count >= ?`,
		opts.MinCochanges)
	if err != nil {
		return nil, err
	}

	structural := make(map[[2]int64]bool)
	edgeRows, err := ig.Store.Query(ctx,
		`SELECT source_file_id, target_file_id FROM file_edges WHERE symbol_count >= 1`)
	if err != nil {
		return nil, err
	}
	for _, row := range edgeRows.Rows {
		a, _ := row[0].(int64)
		b, _ := row[1].(int64)
		structural[[2]int64{a, b}] = true
		structural[[2]int64{b, a}] = true
	}

	pathRows, err := ig.Store.Query(ctx, `SELECT id, path FROM files`)
	if err != nil {
		return nil, err
	}
	paths := make(map[int64]string, len(pathRows.Rows))
	for _, row := range pathRows.Rows {
		id, _ := row[0].(int64)
		p, _ := row[1].(string)
		paths[id] = p
	}

	var results []DarkMatterPair
	for _, row := range cochangeRows.Rows {
		fidA, _ := row[0].(int64)
		fidB, _ := row[1].(int64)
		cochanges, _ := row[2].(int64)

		if structural[[2]int64{fidA, fidB}] {
			continue
		}

		ca := fileCommits[fidA]
		if ca == 0 {
			ca = 1
		}
		cb := fileCommits[fidB]
		if cb == 0 {
			cb = 1
		}

		pAB := float64(cochanges) / float64(totalCommits)
		pA := float64(ca) / float64(totalCommits)
		pB := float64(cb) / float64(totalCommits)
		score := npmi(pAB, pA, pB)
		if score < opts.MinNPMI {
			continue
		}

		avg := float64(ca+cb) / 2
		strength := 0.0
		if avg > 0 {
			strength = float64(cochanges) / avg
		}
		denom := ca * cb
		if denom == 0 {
			denom = 1
		}
		lift := float64(cochanges*totalCommits) / float64(denom)

		results = append(results, DarkMatterPair{
			FileIDA:       fidA,
			FileIDB:       fidB,
			PathA:         paths[fidA],
			PathB:         paths[fidB],
			NPMI:          round3(score),
			Lift:          round2(lift),
			Strength:      round2(strength),
			CochangeCount: int(cochanges),
		})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].NPMI > results[j].NPMI })
	metrics.Git.ObserveDarkMatter(len(results))
	return results, nil
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
func round3(f float64) float64 { return math.Round(f*1000) / 1000 }

// Hypothesis explains WHY two files co-change without a structural edge.
type Hypothesis struct {
	Category   string
	Detail     string
	Confidence float64
}

// hypothesisReadCap mirrors original_source's 5000-char per-file read cap.
const hypothesisReadCap = 5000

var (
	reTable     = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|INTO|UPDATE|TABLE)\s+` + "`" + `?"?'?(\w+)` + "`" + `?"?'?`)
	reEventEmit = regexp.MustCompile(`\.\s*(?:emit|dispatch|publish)\s*\(\s*["']([^"']+)["']`)
	reEventSub  = regexp.MustCompile(`\.\s*(?:on|subscribe|addEventListener)\s*\(\s*["']([^"']+)["']`)
	reConfig    = regexp.MustCompile(`(?i)(?:os\.environ|getenv|process\.env|config\.get)\s*[\[(]\s*["']([^"']+)["']`)
	reAPI       = regexp.MustCompile(`["'](/api/[^"']+)["']`)
)

// HypothesisEngine classifies why two files co-change, reading each file's
// text (capped, cached) to look for shared DB tables, event names, config
// keys, or API endpoints, falling back to a text-similarity heuristic.
//
// Ported in behavior from original_source/src/roam/graph/dark_matter.py's
// HypothesisEngine.
type HypothesisEngine struct {
	root  string
	cache map[string]string
}

// NewHypothesisEngine builds an engine reading files relative to root.
func NewHypothesisEngine(root string) *HypothesisEngine {
	return &HypothesisEngine{root: root, cache: make(map[string]string)}
}

func (h *HypothesisEngine) read(relPath string) string {
	if text, ok := h.cache[relPath]; ok {
		return text
	}
	data, err := os.ReadFile(filepath.Join(h.root, filepath.FromSlash(relPath)))
	text := ""
	if err == nil {
		if len(data) > hypothesisReadCap {
			data = data[:hypothesisReadCap]
		}
		text = string(data)
	}
	h.cache[relPath] = text
	return text
}

// Hypothesize returns a single best-guess explanation for pathA/pathB
// co-changing, checking categories in the same priority order as the
// original: SHARED_DB > EVENT_BUS > SHARED_CONFIG > SHARED_API >
// TEXT_SIMILARITY > UNKNOWN.
func (h *HypothesisEngine) Hypothesize(pathA, pathB string) Hypothesis {
	textA := h.read(pathA)
	textB := h.read(pathB)

	if textA == "" && textB == "" {
		return Hypothesis{Category: "UNKNOWN", Detail: "files not readable", Confidence: 0.3}
	}

	if shared := intersect(reTable.FindAllStringSubmatch(textA, -1), reTable.FindAllStringSubmatch(textB, -1), 1); len(shared) > 0 {
		return Hypothesis{Category: "SHARED_DB", Detail: "both reference table(s): " + joinTop3(shared), Confidence: 0.8}
	}

	emitsA := matchSet(reEventEmit, textA)
	subsA := matchSet(reEventSub, textA)
	emitsB := matchSet(reEventEmit, textB)
	subsB := matchSet(reEventSub, textB)
	shared := unionSets(intersectSets(emitsA, subsB), intersectSets(emitsB, subsA))
	if len(shared) > 0 {
		return Hypothesis{Category: "EVENT_BUS", Detail: "emit/subscribe event(s): " + joinTop3Set(shared), Confidence: 0.7}
	}

	if shared := intersect(reConfig.FindAllStringSubmatch(textA, -1), reConfig.FindAllStringSubmatch(textB, -1), 1); len(shared) > 0 {
		return Hypothesis{Category: "SHARED_CONFIG", Detail: "shared config key(s): " + joinTop3(shared), Confidence: 0.6}
	}

	if shared := intersect(reAPI.FindAllStringSubmatch(textA, -1), reAPI.FindAllStringSubmatch(textB, -1), 1); len(shared) > 0 {
		return Hypothesis{Category: "SHARED_API", Detail: "shared API endpoint(s): " + joinTop3(shared), Confidence: 0.6}
	}

	if textA != "" && textB != "" {
		if ratio := similarityRatio(textA, textB); ratio >= 0.6 {
			return Hypothesis{Category: "TEXT_SIMILARITY", Detail: "text similarity", Confidence: 0.5}
		}
	}

	return Hypothesis{Category: "UNKNOWN", Detail: "no pattern detected", Confidence: 0.3}
}

// ClassifyAll returns a new slice pairing every input pair with its
// Hypothesis; the input slice is left unchanged.
func (h *HypothesisEngine) ClassifyAll(pairs []DarkMatterPair) []struct {
	DarkMatterPair
	Hypothesis Hypothesis
} {
	out := make([]struct {
		DarkMatterPair
		Hypothesis Hypothesis
	}, len(pairs))
	for i, p := range pairs {
		out[i] = struct {
			DarkMatterPair
			Hypothesis Hypothesis
		}{DarkMatterPair: p, Hypothesis: h.Hypothesize(p.PathA, p.PathB)}
	}
	return out
}

func matchSet(re *regexp.Regexp, text string) map[string]bool {
	out := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		out[m[1]] = true
	}
	return out
}

func intersectSets(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func unionSets(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

func intersect(a, b [][]string, group int) []string {
	setA := make(map[string]bool)
	for _, m := range a {
		setA[m[group]] = true
	}
	var shared []string
	seen := make(map[string]bool)
	for _, m := range b {
		v := m[group]
		if setA[v] && !seen[v] {
			seen[v] = true
			shared = append(shared, v)
		}
	}
	return shared
}

func joinTop3(vals []string) string {
	sorted := append([]string{}, vals...)
	sort.Strings(sorted)
	if len(sorted) > 3 {
		sorted = sorted[:3]
	}
	return strings.Join(sorted, ", ")
}

func joinTop3Set(set map[string]bool) string {
	vals := make([]string, 0, len(set))
	for k := range set {
		vals = append(vals, k)
	}
	return joinTop3(vals)
}

// similarityRatio is a simple longest-common-substring-free ratio (two
// strings' shared-character proportion via a rolling window match),
// standing in for Python's difflib.SequenceMatcher.ratio without pulling
// in a diff library for a single threshold comparison.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len(a), len(b)
	if la == 0 || lb == 0 {
		return 0
	}
	matches := lcsLength(a, b)
	return 2 * float64(matches) / float64(la+lb)
}

// lcsLength computes the longest common subsequence length with a
// space-bounded DP (single rolling row), adequate for the capped 5000-char
// inputs this runs on.
func lcsLength(a, b string) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
			} else if prev[j] >= curr[j-1] {
				curr[j] = prev[j]
			} else {
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
