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

package envelope

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_RequiredFieldsPresent(t *testing.T) {
	env := New("deps", "1.2.3", "ok")
	data, err := env.MarshalJSON()
	if err != nil {
		t.Fatalf("MarshalJSON failed: %v", err)
	}

	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	ok, errs := Validate(parsed)
	if !ok {
		t.Fatalf("expected a fresh envelope to validate, got errors: %v", errs)
	}
}

func TestValidate_MissingFieldFails(t *testing.T) {
	env := New("deps", "1.2.3", "ok")
	data, _ := env.MarshalJSON()
	var parsed map[string]any
	_ = json.Unmarshal(data, &parsed)

	delete(parsed, "command")
	ok, errs := Validate(parsed)
	if ok {
		t.Fatal("expected validation to fail when a required field is removed")
	}
	found := false
	for _, e := range errs {
		if strings.Contains(e, "command") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an error naming the missing field, got: %v", errs)
	}
}

func TestValidate_SummaryMustHaveVerdict(t *testing.T) {
	env := New("deps", "1.2.3", "ok")
	data, _ := env.MarshalJSON()
	var parsed map[string]any
	_ = json.Unmarshal(data, &parsed)

	parsed["summary"] = map[string]any{"truncated": false}
	ok, errs := Validate(parsed)
	if ok {
		t.Fatal("expected validation to fail when summary.verdict is missing")
	}
	if len(errs) == 0 {
		t.Fatal("expected at least one validation error")
	}
}

func TestValidate_RejectsNonSemverSchemaVersion(t *testing.T) {
	env := New("deps", "1.2.3", "ok")
	data, _ := env.MarshalJSON()
	var parsed map[string]any
	_ = json.Unmarshal(data, &parsed)

	parsed["schema_version"] = "v1"
	ok, _ := Validate(parsed)
	if ok {
		t.Fatal("expected a non-semver schema_version to fail validation")
	}
}

func TestAgentJSON_StripsVersionSchemaAndMeta(t *testing.T) {
	env := New("deps", "1.2.3", "ok")
	env.WithMeta(Meta{Timestamp: "2026-01-01T00:00:00Z"})
	env.Set("depends_on", []any{"A", "B"})

	data, err := env.AgentJSON()
	if err != nil {
		t.Fatalf("AgentJSON failed: %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, stripped := range []string{"schema", "schema_version", "version", "_meta"} {
		if _, ok := parsed[stripped]; ok {
			t.Fatalf("agent-mode envelope must not carry %q, got: %v", stripped, parsed)
		}
	}
	if _, ok := parsed["command"]; !ok {
		t.Fatal("agent-mode envelope must keep 'command'")
	}
}

func TestMarshalJSON_MetaStrippedBodyIsDeterministic(t *testing.T) {
	build := func(ts string) map[string]any {
		env := New("deps", "1.2.3", "ok")
		env.Set("depends_on", []any{"A", "B"})
		env.WithMeta(Meta{Timestamp: ts})
		data, _ := env.MarshalJSON()
		var parsed map[string]any
		_ = json.Unmarshal(data, &parsed)
		delete(parsed, "_meta")
		return parsed
	}

	a := build("2026-01-01T00:00:00Z")
	b := build("2026-06-15T12:30:00Z")

	aJSON, _ := json.Marshal(a)
	bJSON, _ := json.Marshal(b)
	if string(aJSON) != string(bJSON) {
		t.Fatalf("expected _meta-stripped envelopes to compare equal regardless of timestamp:\n%s\nvs\n%s", aJSON, bJSON)
	}
}

func TestBudget_TruncatesListsAndMarksSummary(t *testing.T) {
	env := New("dead", "1.2.3", "ok")
	items := make([]any, 0, 10)
	for i := 0; i < 10; i++ {
		items = append(items, i)
	}
	env.Set("symbols", items)

	Budget(env, 3, 500)

	got, ok := env.Data["symbols"].([]any)
	if !ok || len(got) != 3 {
		t.Fatalf("expected list truncated to 3 items, got %v", env.Data["symbols"])
	}
	if !env.Summary.Truncated {
		t.Fatal("expected summary.truncated to be set")
	}
	if env.Summary.BudgetTokens != 500 {
		t.Fatalf("expected budget_tokens recorded, got %d", env.Summary.BudgetTokens)
	}
}

func TestBudget_NoopWhenUnderLimit(t *testing.T) {
	env := New("dead", "1.2.3", "ok")
	env.Set("symbols", []any{1, 2})

	Budget(env, 10, 500)

	if env.Summary.Truncated {
		t.Fatal("expected no truncation when list is under the limit")
	}
}

func TestSortedKeys_ReturnsSortedOrder(t *testing.T) {
	keys := SortedKeys(map[string]any{"z": 1, "a": 2, "m": 3})
	want := []string{"a", "m", "z"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("expected sorted order %v, got %v", want, keys)
		}
	}
}
