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

package store

import (
	"context"
	"fmt"
	"strings"
)

// MaxINChunk bounds the number of placeholders in a single IN (?,?,...)
// clause. SQLite's own limit is much higher (SQLITE_MAX_VARIABLE_NUMBER,
// typically 999+), but batching keeps individual statements small enough
// that query planning stays cheap even on very large result sets.
const MaxINChunk = 400

// ChunkInt64 splits ids into chunks of at most MaxINChunk elements.
func ChunkInt64(ids []int64) [][]int64 {
	if len(ids) == 0 {
		return nil
	}
	var chunks [][]int64
	for len(ids) > MaxINChunk {
		chunks = append(chunks, ids[:MaxINChunk])
		ids = ids[MaxINChunk:]
	}
	return append(chunks, ids)
}

// QueryByIDs runs queryTemplate (which must contain exactly one "%s"
// placeholder for the IN-list) once per chunk of ids, merging the
// resulting rows. Used for symbol/file lookups keyed by a large id set
// gathered from a prior query (e.g. "all symbols reachable from X").
func (s *Store) QueryByIDs(ctx context.Context, queryTemplate string, ids []int64) (*QueryResult, error) {
	chunks := ChunkInt64(ids)
	if len(chunks) == 0 {
		return &QueryResult{}, nil
	}

	merged := &QueryResult{}
	for _, chunk := range chunks {
		placeholders := make([]string, len(chunk))
		args := make([]any, len(chunk))
		for i, id := range chunk {
			placeholders[i] = "?"
			args[i] = id
		}
		query := fmt.Sprintf(queryTemplate, strings.Join(placeholders, ","))
		res, err := s.Query(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		if merged.Headers == nil {
			merged.Headers = res.Headers
		}
		merged.Rows = append(merged.Rows, res.Rows...)
	}
	return merged, nil
}
