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

// Package testing provides test helpers for roam integration tests.
//
// # Quick Start
//
// Use SetupTestStore to create an isolated SQLite-backed store:
//
//	func TestMyFeature(t *testing.T) {
//	    s := testing.SetupTestStore(t)
//
//	    fileID := testing.InsertTestFile(t, s, "main.go", "hash1", "go")
//	    testing.InsertTestSymbol(t, s, fileID, "main", "function", 1, 10)
//
//	    result := testing.QuerySymbols(t, s)
//	    require.Len(t, result.Rows, 1)
//	}
package testing
