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

// partitionResult buckets the discovered file list against what the store
// already knows, by path and content hash.
type partitionResult struct {
	New       []string
	Modified  []string
	Unchanged []string
	Deleted   []string
}

// partition compares discovered paths (with their freshly computed content
// hashes) against existing (the store's last-known path -> hash). force
// treats every discovered path as Modified regardless of hash, for a full
// reindex.
func partition(discovered []string, hashes map[string]string, existing map[string]existingFile, force bool) partitionResult {
	var result partitionResult

	seen := make(map[string]bool, len(discovered))
	for _, path := range discovered {
		seen[path] = true
		old, known := existing[path]
		switch {
		case !known:
			result.New = append(result.New, path)
		case force:
			result.Modified = append(result.Modified, path)
		case old.Hash != hashes[path]:
			result.Modified = append(result.Modified, path)
		default:
			result.Unchanged = append(result.Unchanged, path)
		}
	}

	for path := range existing {
		if !seen[path] {
			result.Deleted = append(result.Deleted, path)
		}
	}

	return result
}
