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
	"database/sql"
	"fmt"
	"os"
)

// CleanReport summarizes what Clean removed.
type CleanReport struct {
	OrphanEdges      int64
	OrphanFileEdges  int64
	OrphanGraphRows  int64
	Vacuumed         bool
}

// Clean removes rows that reference since-deleted files or symbols but
// survived because the cascade only fires on DELETE, not on rows that were
// already dangling when the foreign-key enforcement was turned on (e.g.
// after restoring an old database file), then reclaims disk space with
// VACUUM. It's the only index operation that touches the whole store
// rather than just the changed-file set.
func (ix *Indexer) Clean(ctx context.Context) (*CleanReport, error) {
	report := &CleanReport{}

	err := ix.Store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM edges
			WHERE source_id NOT IN (SELECT id FROM symbols)
			   OR target_id NOT IN (SELECT id FROM symbols)`)
		if err != nil {
			return err
		}
		report.OrphanEdges, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `
			DELETE FROM file_edges
			WHERE source_file_id NOT IN (SELECT id FROM files)
			   OR target_file_id NOT IN (SELECT id FROM files)`)
		if err != nil {
			return err
		}
		report.OrphanFileEdges, _ = res.RowsAffected()

		res, err = tx.ExecContext(ctx, `
			DELETE FROM graph_metrics WHERE symbol_id NOT IN (SELECT id FROM symbols)`)
		if err != nil {
			return err
		}
		n, _ := res.RowsAffected()
		report.OrphanGraphRows += n

		res, err = tx.ExecContext(ctx, `
			DELETE FROM clusters WHERE symbol_id NOT IN (SELECT id FROM symbols)`)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		report.OrphanGraphRows += n

		res, err = tx.ExecContext(ctx, `
			DELETE FROM symbol_metrics WHERE symbol_id NOT IN (SELECT id FROM symbols)`)
		if err != nil {
			return err
		}
		n, _ = res.RowsAffected()
		report.OrphanGraphRows += n

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("clean orphaned rows: %w", err)
	}

	if _, err := ix.Store.Execute(ctx, `VACUUM`); err != nil {
		return report, fmt.Errorf("vacuum: %w", err)
	}
	report.Vacuumed = true

	return report, nil
}

// Reset deletes the store file and its -wal/-shm companions, for `roam
// reset` and for recovering from a store.StaleSchemaError the caller
// doesn't want to migrate by hand. It does not open a new store; the next
// open at that path creates a fresh, empty one.
func Reset(root string, path string) error {
	resolved := path
	if resolved == "" {
		resolved = root + "/.roam/index.db"
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(resolved + suffix); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove store file %s: %w", resolved+suffix, err)
		}
	}
	return nil
}
