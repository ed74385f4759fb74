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

// Package metrics holds the Prometheus metrics exposed by roam's pipeline
// stages. Each subsystem (index, graph, git) gets its own sync.Once-gated
// registration struct, following the teacher's pkg/ingestion/metrics.go
// pattern, so importing a subsystem package never double-registers a
// collector when a command builds more than one Indexer/Engine/Ingester in
// the same process (tests in particular construct many).
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// indexMetrics holds the pkg/index counters and histograms.
type indexMetrics struct {
	once sync.Once

	FilesNew        prometheus.Counter
	FilesModified   prometheus.Counter
	FilesDeleted    prometheus.Counter
	FilesUnchanged  prometheus.Counter
	FilesSkipped    prometheus.Counter
	ParseErrors     prometheus.Counter
	SymbolsWritten  prometheus.Counter
	EdgesWritten    prometheus.Counter
	EdgesUnresolved prometheus.Counter
	RunDuration     prometheus.Histogram
}

// Index is the process-wide pkg/index metrics registration.
var Index indexMetrics

func (m *indexMetrics) init() {
	m.once.Do(func() {
		m.FilesNew = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_index_files_new_total", Help: "Files discovered that did not previously exist in the store"})
		m.FilesModified = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_index_files_modified_total", Help: "Files whose content hash changed since the last run"})
		m.FilesDeleted = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_index_files_deleted_total", Help: "Previously indexed files no longer present on disk"})
		m.FilesUnchanged = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_index_files_unchanged_total", Help: "Files whose content hash matched the stored hash"})
		m.FilesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_index_files_skipped_total", Help: "Files skipped for unsupported extension or unreadable content"})
		m.ParseErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_index_parse_errors_total", Help: "Per-file parse errors caught and logged by the extractor registry"})
		m.SymbolsWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_index_symbols_written_total", Help: "Symbol rows written across all index runs"})
		m.EdgesWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_index_edges_written_total", Help: "Edge rows written across all index runs"})
		m.EdgesUnresolved = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_index_edges_unresolved_total", Help: "References the resolver could not join to a symbol id"})
		m.RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "roam_index_run_seconds", Help: "Wall-clock duration of a full Indexer.Run call", Buckets: durationBuckets})

		prometheus.MustRegister(
			m.FilesNew, m.FilesModified, m.FilesDeleted, m.FilesUnchanged, m.FilesSkipped,
			m.ParseErrors, m.SymbolsWritten, m.EdgesWritten, m.EdgesUnresolved, m.RunDuration,
		)
	})
}

// Observe records one completed Indexer.Run's report against the index
// metrics, registering them lazily on first use.
func (m *indexMetrics) Observe(filesNew, filesModified, filesDeleted, filesUnchanged, filesSkipped, parseErrors, symbolsWritten, edgesWritten, edgesUnresolved int, seconds float64) {
	m.init()
	m.FilesNew.Add(float64(filesNew))
	m.FilesModified.Add(float64(filesModified))
	m.FilesDeleted.Add(float64(filesDeleted))
	m.FilesUnchanged.Add(float64(filesUnchanged))
	m.FilesSkipped.Add(float64(filesSkipped))
	m.ParseErrors.Add(float64(parseErrors))
	m.SymbolsWritten.Add(float64(symbolsWritten))
	m.EdgesWritten.Add(float64(edgesWritten))
	m.EdgesUnresolved.Add(float64(edgesUnresolved))
	m.RunDuration.Observe(seconds)
}

// graphMetrics holds the pkg/graph counters and histograms.
type graphMetrics struct {
	once sync.Once

	RecomputeTotal    prometheus.Counter
	CyclesFound       prometheus.Histogram
	LayerViolations   prometheus.Histogram
	ClustersFound     prometheus.Histogram
	RecomputeDuration prometheus.Histogram
}

// Graph is the process-wide pkg/graph metrics registration.
var Graph graphMetrics

func (m *graphMetrics) init() {
	m.once.Do(func() {
		sizeBuckets := []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500}

		m.RecomputeTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_graph_recompute_total", Help: "Completed Engine.Recompute calls"})
		m.CyclesFound = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "roam_graph_cycles_found", Help: "SCC cycles of size >= 2 found per recompute", Buckets: sizeBuckets})
		m.LayerViolations = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "roam_graph_layer_violations", Help: "Topological layer violations found per recompute", Buckets: sizeBuckets})
		m.ClustersFound = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "roam_graph_clusters_found", Help: "Louvain clusters found per recompute", Buckets: sizeBuckets})
		m.RecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "roam_graph_recompute_seconds", Help: "Wall-clock duration of a full Engine.Recompute call", Buckets: durationBuckets})

		prometheus.MustRegister(
			m.RecomputeTotal, m.CyclesFound, m.LayerViolations, m.ClustersFound, m.RecomputeDuration,
		)
	})
}

// Observe records one completed Engine.Recompute's report against the
// graph metrics, registering them lazily on first use.
func (m *graphMetrics) Observe(cycles, layerViolations, clusters int, seconds float64) {
	m.init()
	m.RecomputeTotal.Inc()
	m.CyclesFound.Observe(float64(cycles))
	m.LayerViolations.Observe(float64(layerViolations))
	m.ClustersFound.Observe(float64(clusters))
	m.RecomputeDuration.Observe(seconds)
}

// gitMetrics holds the pkg/gitingest counters and histograms.
type gitMetrics struct {
	once sync.Once

	CommitsIngested   prometheus.Counter
	CochangePairs     prometheus.Counter
	HyperedgesWritten prometheus.Counter
	DarkMatterPairs   prometheus.Histogram
	IngestDuration    prometheus.Histogram
}

// Git is the process-wide pkg/gitingest metrics registration.
var Git gitMetrics

func (m *gitMetrics) init() {
	m.once.Do(func() {
		m.CommitsIngested = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_git_commits_ingested_total", Help: "Commits written across all Ingester.Ingest calls"})
		m.CochangePairs = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_git_cochange_pairs_total", Help: "Pairwise co-change counters incremented across all ingests"})
		m.HyperedgesWritten = prometheus.NewCounter(prometheus.CounterOpts{Name: "roam_git_hyperedges_written_total", Help: "Commit hyperedges (2-K files touched) written"})
		m.DarkMatterPairs = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "roam_git_dark_matter_pairs", Help: "Dark-matter candidate pairs returned per DarkMatter call", Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100}})
		m.IngestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "roam_git_ingest_seconds", Help: "Wall-clock duration of a full Ingester.Ingest call", Buckets: durationBuckets})

		prometheus.MustRegister(
			m.CommitsIngested, m.CochangePairs, m.HyperedgesWritten, m.DarkMatterPairs, m.IngestDuration,
		)
	})
}

// ObserveIngest records one completed Ingester.Ingest's report against the
// git metrics, registering them lazily on first use.
func (m *gitMetrics) ObserveIngest(commits, cochangeIncrements, hyperedges int, seconds float64) {
	m.init()
	m.CommitsIngested.Add(float64(commits))
	m.CochangePairs.Add(float64(cochangeIncrements))
	m.HyperedgesWritten.Add(float64(hyperedges))
	m.IngestDuration.Observe(seconds)
}

// ObserveDarkMatter records one DarkMatter call's result count.
func (m *gitMetrics) ObserveDarkMatter(pairs int) {
	m.init()
	m.DarkMatterPairs.Observe(float64(pairs))
}
