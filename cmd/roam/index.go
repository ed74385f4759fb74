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

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mulle-cc/roam-code-sub006/internal/bootstrap"
	"github.com/mulle-cc/roam-code-sub006/internal/config"
	"github.com/mulle-cc/roam-code-sub006/internal/errors"
	"github.com/mulle-cc/roam-code-sub006/internal/output"
	"github.com/mulle-cc/roam-code-sub006/internal/ui"
	"github.com/mulle-cc/roam-code-sub006/pkg/gitingest"
	"github.com/mulle-cc/roam-code-sub006/pkg/graph"
	"github.com/mulle-cc/roam-code-sub006/pkg/index"
)

func runIndex(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	full := fs.Bool("full", false, "Force a full re-index, ignoring content hashes")
	noGit := fs.Bool("no-git", false, "Skip git history ingestion")
	gitDepth := fs.Int("git-depth", gitingest.DefaultDepth, "Maximum commits to walk from HEAD")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	_ = fs.Parse(args)

	ui.InitColors(globals.NoColor)

	logger := slog.Default()
	if globals.Quiet {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	root, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewIOError("could not determine working directory", err.Error(), "", err), globals.JSON)
	}

	cfg, err := config.Load(root, globals.Config)
	if err != nil {
		errors.FatalError(errors.NewIOError("failed to load project.yaml", err.Error(), "", err), globals.JSON)
	}

	st, err := bootstrap.OpenProject(bootstrap.ProjectConfig{Root: root}, logger)
	if err != nil {
		errors.FatalError(errors.NewIndexMissingError(
			"no roam index found", err.Error(), "run `roam init` first", err), globals.JSON)
	}
	defer st.Close()

	ctx := context.Background()
	pcfg := NewProgressConfig(globals)

	ixr := index.New(st, root, cfg)
	ixr.Logger = logger
	spinner := NewSpinner(pcfg, "indexing")
	report, err := ixr.Run(ctx, *full)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		errors.FatalError(errors.NewInternalError("indexing failed", err.Error(), "", err), globals.JSON)
	}

	var gitReport *gitingest.Report
	if !*noGit {
		ing := gitingest.New(st, root, logger)
		spinner = NewSpinner(pcfg, "ingesting git history")
		gitReport, err = ing.Ingest(ctx, *gitDepth)
		if spinner != nil {
			_ = spinner.Finish()
		}
		if err != nil {
			errors.FatalError(errors.NewInternalError("git ingestion failed", err.Error(), "", err), globals.JSON)
		}
	}

	eng := graph.New(st)
	spinner = NewSpinner(pcfg, "computing graph metrics")
	graphReport, err := eng.Recompute(ctx)
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		errors.FatalError(errors.NewInternalError("graph recomputation failed", err.Error(), "", err), globals.JSON)
	}

	if globals.JSON {
		result := map[string]any{
			"files_total":      report.FilesTotal,
			"files_new":        report.FilesNew,
			"files_modified":   report.FilesModified,
			"files_deleted":    report.FilesDeleted,
			"files_skipped":    report.FilesSkipped,
			"symbols_written":  report.SymbolsWritten,
			"edges_written":    report.EdgesWritten,
			"edges_unresolved": report.EdgesUnresolved,
			"parse_coverage":   report.ParseCoverage(),
			"duration_s":       report.Duration.Seconds(),
			"graph": map[string]any{
				"symbols":          graphReport.Symbols,
				"edges":            graphReport.Edges,
				"cycles":           graphReport.Cycles,
				"layer_violations": graphReport.LayerViolations,
				"clusters":         graphReport.Clusters,
				"modularity":       graphReport.Modularity,
			},
		}
		if gitReport != nil {
			result["git"] = map[string]any{
				"commits_seen":    gitReport.CommitsSeen,
				"commits_new":     gitReport.CommitsNew,
				"file_changes":    gitReport.FileChanges,
				"hyperedges":      gitReport.Hyperedges,
				"cochange_pairs":  gitReport.CochangePairs,
				"skipped_not_git": gitReport.SkippedNotGit,
			}
		}
		_ = output.JSON(result)
		return
	}

	ui.Header("Index summary")
	fmt.Printf("  %s %d new, %d modified, %d deleted, %d unchanged (%d total)\n",
		ui.Label("files:"), report.FilesNew, report.FilesModified, report.FilesDeleted, report.FilesTotal-report.FilesNew-report.FilesModified-report.FilesDeleted, report.FilesTotal)
	fmt.Printf("  %s %d written, %d edges (%d unresolved)\n",
		ui.Label("symbols:"), report.SymbolsWritten, report.EdgesWritten, report.EdgesUnresolved)
	fmt.Printf("  %s %.1f%%\n", ui.Label("parse coverage:"), report.ParseCoverage()*100)
	if gitReport != nil && !gitReport.SkippedNotGit {
		fmt.Printf("  %s %d commits (%d new), %d co-change pairs\n",
			ui.Label("git history:"), gitReport.CommitsSeen, gitReport.CommitsNew, gitReport.CochangePairs)
	}
	fmt.Printf("  %s %d cycles, %d layer violations, %d clusters (Q=%.3f)\n",
		ui.Label("graph:"), graphReport.Cycles, graphReport.LayerViolations, graphReport.Clusters, graphReport.Modularity)
	fmt.Printf("  %s %s\n", ui.Label("duration:"), report.Duration.Round(time.Millisecond))
}
