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

// Package gitingest reads a project's commit history and derives per-file
// churn, pairwise co-change counts, and n-ary co-change hyperedges.
//
// It walks the repository with go-git rather than shelling out to git for
// every commit, following panbanda-omen's internal/vcs traversal pattern
// (repo.Log + commit.Stats()); only the lightweight tracked-file probe in
// pkg/discover still subprocesses git, matching original_source's own
// split between a cheap `git ls-files` probe and a library-driven history
// walk.
package gitingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/mulle-cc/roam-code-sub006/internal/metrics"
	"github.com/mulle-cc/roam-code-sub006/pkg/store"
)

// MaxHyperedgeFiles is K from spec.md §4.7: commits touching more files
// than this are still recorded for churn but skipped for co-change
// hyperedge generation, since an all-pairs update on a 200-file commit
// (e.g. a vendor bump) would swamp the co-change table with noise.
const MaxHyperedgeFiles = 20

// DefaultDepth bounds how many commits Ingest walks by default.
const DefaultDepth = 2000

// Ingester reads git history into a project's store.
type Ingester struct {
	Store  *store.Store
	Root   string
	Logger *slog.Logger
}

// New builds an Ingester over st rooted at root.
func New(st *store.Store, root string, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{Store: st, Root: root, Logger: logger}
}

// Report summarizes one ingestion pass.
type Report struct {
	CommitsSeen     int
	CommitsNew      int
	FileChanges     int
	Hyperedges      int
	CochangePairs   int
	SkippedNotGit   bool
	Duration        time.Duration
}

// Ingest walks up to depth commits from HEAD (DefaultDepth if depth <= 0),
// skipping commit hashes already present in git_commits (idempotent per
// commit hash per spec.md §4.7). Writes are batched per commit in a single
// transaction so a partial ingest never leaves a commit half-recorded.
func (ig *Ingester) Ingest(ctx context.Context, depth int) (*Report, error) {
	start := time.Now()
	if depth <= 0 {
		depth = DefaultDepth
	}

	repo, err := git.PlainOpenWithOptions(ig.Root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return &Report{SkippedNotGit: true, Duration: time.Since(start)}, nil
	}

	head, err := repo.Head()
	if err != nil {
		return &Report{SkippedNotGit: true, Duration: time.Since(start)}, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("git log: %w", err)
	}
	defer iter.Close()

	known, err := ig.knownHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load known commits: %w", err)
	}

	report := &Report{}
	pathToFileID, err := ig.filePathIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("load file index: %w", err)
	}

	cochangeDelta := make(map[[2]int64]int)
	var commitErr error
	err = iter.ForEach(func(c *object.Commit) error {
		if report.CommitsSeen >= depth {
			return storerStop
		}
		report.CommitsSeen++

		hash := c.Hash.String()
		if known[hash] {
			return nil
		}

		stats, statErr := c.Stats()
		if statErr != nil {
			ig.Logger.Warn("git.ingest.stats.error", "commit", hash, "err", statErr)
			return nil
		}

		if writeErr := ig.writeCommit(ctx, c, hash, stats, pathToFileID, cochangeDelta); writeErr != nil {
			commitErr = writeErr
			return storerStop
		}
		report.CommitsNew++
		report.FileChanges += len(stats)
		if len(stats) >= 2 && len(stats) <= MaxHyperedgeFiles {
			report.Hyperedges++
		}
		return nil
	})
	if err != nil && err != storerStop {
		return nil, fmt.Errorf("walk commits: %w", err)
	}
	if commitErr != nil {
		return nil, commitErr
	}

	if err := ig.flushCochange(ctx, cochangeDelta); err != nil {
		return nil, fmt.Errorf("flush cochange: %w", err)
	}
	report.CochangePairs = len(cochangeDelta)

	if err := ig.recomputeFileStats(ctx); err != nil {
		return nil, fmt.Errorf("recompute file stats: %w", err)
	}

	report.Duration = time.Since(start)
	metrics.Git.ObserveIngest(report.CommitsNew, report.CochangePairs, report.Hyperedges, report.Duration.Seconds())
	ig.Logger.Info("git.ingest.complete",
		"commits_seen", report.CommitsSeen,
		"commits_new", report.CommitsNew,
		"hyperedges", report.Hyperedges,
		"cochange_pairs", report.CochangePairs,
		"duration", report.Duration,
	)
	return report, nil
}

// storerStop is a sentinel returned from the ForEach callback to end
// iteration early once depth is reached; go-git's CommitIter treats any
// non-nil error from the callback as "stop", so this is never surfaced.
var storerStop = fmt.Errorf("roam: stop commit walk")

func (ig *Ingester) knownHashes(ctx context.Context) (map[string]bool, error) {
	rows, err := ig.Store.Query(ctx, `SELECT hash FROM git_commits`)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(rows.Rows))
	for _, row := range rows.Rows {
		h, _ := row[0].(string)
		out[h] = true
	}
	return out, nil
}

func (ig *Ingester) filePathIndex(ctx context.Context) (map[string]int64, error) {
	rows, err := ig.Store.Query(ctx, `SELECT id, path FROM files`)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows.Rows))
	for _, row := range rows.Rows {
		id, _ := row[0].(int64)
		path, _ := row[1].(string)
		out[path] = id
	}
	return out, nil
}

// writeCommit persists one commit's metadata and per-file changes, records
// its hyperedge (if file count is in [2, MaxHyperedgeFiles]), and
// accumulates this commit's contribution to cochangeDelta in canonical
// (smaller-id-first) order per spec.md §3.2.
func (ig *Ingester) writeCommit(ctx context.Context, c *object.Commit, hash string, stats object.FileStats, pathToFileID map[string]int64, cochangeDelta map[[2]int64]int) error {
	return ig.Store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO git_commits (hash, author, timestamp, message) VALUES (?, ?, ?, ?)`,
			hash, c.Author.Email, c.Author.When.Unix(), c.Message)
		if err != nil {
			return err
		}
		commitID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		var touchedIDs []int64
		for _, fs := range stats {
			fileID, known := pathToFileID[fs.Name]
			var fileIDVal any
			if known {
				fileIDVal = fileID
				touchedIDs = append(touchedIDs, fileID)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO git_file_changes (commit_id, file_id, path, lines_added, lines_removed) VALUES (?, ?, ?, ?, ?)`,
				commitID, fileIDVal, fs.Name, fs.Addition, fs.Deletion); err != nil {
				return err
			}
		}

		if len(touchedIDs) >= 2 && len(touchedIDs) <= MaxHyperedgeFiles {
			sig := hyperedgeSignature(touchedIDs)
			res, err := tx.ExecContext(ctx,
				`INSERT INTO git_hyperedges (commit_id, file_count, sig_hash) VALUES (?, ?, ?)`,
				commitID, len(touchedIDs), sig)
			if err != nil {
				return err
			}
			hyperedgeID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			for ordinal, fileID := range touchedIDs {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO git_hyperedge_members (hyperedge_id, file_id, ordinal) VALUES (?, ?, ?)`,
					hyperedgeID, fileID, ordinal); err != nil {
					return err
				}
			}
			for i := 0; i < len(touchedIDs); i++ {
				for j := i + 1; j < len(touchedIDs); j++ {
					a, b := touchedIDs[i], touchedIDs[j]
					if a > b {
						a, b = b, a
					}
					if a == b {
						continue
					}
					cochangeDelta[[2]int64{a, b}]++
				}
			}
		}
		return nil
	})
}

// hyperedgeSignature hashes the sorted member file ids so identical file
// sets across different commits are recognizable, while member ORDER
// (insertion order into git_hyperedge_members) is preserved per spec.md's
// "member order preserved" on GitHyperedge.
func hyperedgeSignature(fileIDs []int64) string {
	sorted := append([]int64{}, fileIDs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	var b strings.Builder
	for _, id := range sorted {
		fmt.Fprintf(&b, "%d,", id)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func (ig *Ingester) flushCochange(ctx context.Context, delta map[[2]int64]int) error {
	if len(delta) == 0 {
		return nil
	}
	return ig.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for pair, n := range delta {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO git_cochange (file_id_a, file_id_b, cochange_count) VALUES (?, ?, ?)
				ON CONFLICT (file_id_a, file_id_b) DO UPDATE SET cochange_count = cochange_count + excluded.cochange_count`,
				pair[0], pair[1], n); err != nil {
				return err
			}
		}
		return nil
	})
}

// recomputeFileStats rebuilds commit_count, total_churn, and
// distinct_authors for every file from git_file_changes, leaving the
// complexity/health_score/cochange_entropy/cognitive_load columns (owned
// by pkg/index and the health-score formula) untouched.
func (ig *Ingester) recomputeFileStats(ctx context.Context) error {
	rows, err := ig.Store.Query(ctx, `
		SELECT file_id, COUNT(DISTINCT commit_id), SUM(lines_added + lines_removed)
		FROM git_file_changes
		WHERE file_id IS NOT NULL
		GROUP BY file_id`)
	if err != nil {
		return err
	}

	authorRows, err := ig.Store.Query(ctx, `
		SELECT gfc.file_id, COUNT(DISTINCT gc.author)
		FROM git_file_changes gfc
		JOIN git_commits gc ON gc.id = gfc.commit_id
		WHERE gfc.file_id IS NOT NULL
		GROUP BY gfc.file_id`)
	if err != nil {
		return err
	}
	authors := make(map[int64]int64, len(authorRows.Rows))
	for _, row := range authorRows.Rows {
		id, _ := row[0].(int64)
		n, _ := row[1].(int64)
		authors[id] = n
	}

	return ig.Store.WithTx(ctx, func(tx *sql.Tx) error {
		for _, row := range rows.Rows {
			fileID, _ := row[0].(int64)
			commitCount, _ := row[1].(int64)
			churn, _ := row[2].(int64)
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO file_stats (file_id, commit_count, total_churn, distinct_authors)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (file_id) DO UPDATE SET
					commit_count = excluded.commit_count,
					total_churn = excluded.total_churn,
					distinct_authors = excluded.distinct_authors`,
				fileID, commitCount, churn, authors[fileID]); err != nil {
				return err
			}
		}
		return nil
	})
}
