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

package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupTestStore(t *testing.T) {
	s := SetupTestStore(t)
	require.NotNil(t, s)

	result := QuerySymbols(t, s)
	require.NotNil(t, result)
	assert.Empty(t, result.Rows, "should start with no symbols")
}

func TestInsertTestFile(t *testing.T) {
	s := SetupTestStore(t)

	InsertTestFile(t, s, "auth.go", "abc123", "go")

	result := QueryFiles(t, s)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "auth.go", result.Rows[0][1])
}

func TestInsertTestSymbol(t *testing.T) {
	s := SetupTestStore(t)

	fileID := InsertTestFile(t, s, "auth.go", "abc123", "go")
	InsertTestSymbol(t, s, fileID, "HandleAuth", "function", 10, 25)

	result := QuerySymbols(t, s)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "HandleAuth", result.Rows[0][1])
	assert.Equal(t, "function", result.Rows[0][2])
}

func TestInsertTestEdge(t *testing.T) {
	s := SetupTestStore(t)

	fileID := InsertTestFile(t, s, "main.go", "hash1", "go")
	caller := InsertTestSymbol(t, s, fileID, "main", "function", 1, 10)
	callee := InsertTestSymbol(t, s, fileID, "helper", "function", 12, 15)

	InsertTestEdge(t, s, caller, callee, "calls")

	result := QuerySymbols(t, s)
	require.Len(t, result.Rows, 2)
}

func TestCascadeDeleteRemovesSymbols(t *testing.T) {
	s := SetupTestStore(t)

	fileID := InsertTestFile(t, s, "main.go", "hash1", "go")
	InsertTestSymbol(t, s, fileID, "main", "function", 1, 10)

	_, err := s.Execute(context.Background(), `DELETE FROM files WHERE id = ?`, fileID)
	require.NoError(t, err)

	result := QuerySymbols(t, s)
	assert.Empty(t, result.Rows, "cascade delete should remove dependent symbols")
}

func TestStoreIsolation(t *testing.T) {
	s1 := SetupTestStore(t)
	InsertTestFile(t, s1, "file1.go", "h1", "go")

	s2 := SetupTestStore(t)
	result := QueryFiles(t, s2)
	assert.Empty(t, result.Rows, "second store should be isolated from first")

	result1 := QueryFiles(t, s1)
	assert.Len(t, result1.Rows, 1)
}
