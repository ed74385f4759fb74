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

// Package envelope builds the schema-versioned JSON envelope every query
// command emits (spec.md §4.8), ported from original_source's
// schema_registry.py/api.py: required top-level fields, an optional _meta
// sub-object for non-deterministic data, agent-mode field stripping, and
// budget-based list truncation.
package envelope

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SchemaVersion is the envelope format's own semver, independent of the
// CLI's own Version.
const SchemaVersion = "1.1.0"

// Meta carries non-deterministic data kept out of the deterministic body
// so two `_meta`-stripped envelopes from the same input compare equal
// (spec.md §8 property 5).
type Meta struct {
	Timestamp  string `json:"timestamp,omitempty"`
	IndexAgeS  float64 `json:"index_age_s,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Summary is the required summary sub-object; Verdict is mandatory, every
// other field is command-specific and carried in Extra.
type Summary struct {
	Verdict       string `json:"verdict"`
	Truncated     bool   `json:"truncated,omitempty"`
	BudgetTokens  int    `json:"budget_tokens,omitempty"`
	Extra         map[string]any `json:"-"`
}

// MarshalJSON flattens Extra alongside the fixed fields so callers can set
// arbitrary summary keys without a nested "extra" object appearing in the
// serialized envelope.
func (s Summary) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Extra)+3)
	for k, v := range s.Extra {
		out[k] = v
	}
	out["verdict"] = s.Verdict
	if s.Truncated {
		out["truncated"] = true
	}
	if s.BudgetTokens > 0 {
		out["budget_tokens"] = s.BudgetTokens
	}
	return json.Marshal(out)
}

// Envelope is the standard JSON output object produced by every query
// command, per spec.md §4.8.
type Envelope struct {
	Schema        string         `json:"schema"`
	SchemaVersion string         `json:"schema_version"`
	Command       string         `json:"command"`
	Version       string         `json:"version"`
	Summary       Summary        `json:"summary"`
	Meta          *Meta          `json:"_meta,omitempty"`
	Data          map[string]any `json:"-"`
}

// New builds an envelope for command, schema-identified as
// "roam.<command>.v1" per original_source's schema_registry.py naming,
// with the given CLI version.
func New(command, cliVersion string, verdict string) *Envelope {
	return &Envelope{
		Schema:        fmt.Sprintf("roam.%s.v1", command),
		SchemaVersion: SchemaVersion,
		Command:       command,
		Version:       cliVersion,
		Summary:       Summary{Verdict: verdict, Extra: map[string]any{}},
		Data:          map[string]any{},
	}
}

// Set adds a top-level data field to the envelope body.
func (e *Envelope) Set(key string, value any) *Envelope {
	e.Data[key] = value
	return e
}

// SetSummary adds a command-specific field under summary.
func (e *Envelope) SetSummary(key string, value any) *Envelope {
	e.Summary.Extra[key] = value
	return e
}

// WithMeta attaches non-deterministic metadata.
func (e *Envelope) WithMeta(m Meta) *Envelope {
	e.Meta = &m
	return e
}

// MarshalJSON merges the fixed envelope fields with Data's top-level keys,
// then relies on Go's map key ordering in encoding/json (always sorted for
// string-keyed maps) to satisfy spec.md's "serialisation sorts keys".
func (e *Envelope) MarshalJSON() ([]byte, error) {
	merged := make(map[string]any, len(e.Data)+6)
	for k, v := range e.Data {
		merged[k] = v
	}
	merged["schema"] = e.Schema
	merged["schema_version"] = e.SchemaVersion
	merged["command"] = e.Command
	merged["version"] = e.Version
	merged["summary"] = e.Summary
	if e.Meta != nil {
		merged["_meta"] = e.Meta
	}
	return json.Marshal(merged)
}

// AgentJSON renders the compact, agent-mode form: `version`, `schema`, and
// `_meta` stripped per spec.md §4.8's agent-mode rule, leaving `command`,
// `summary`, and the data fields. Output has no indentation.
func (e *Envelope) AgentJSON() ([]byte, error) {
	merged := make(map[string]any, len(e.Data)+2)
	for k, v := range e.Data {
		merged[k] = v
	}
	merged["command"] = e.Command
	merged["summary"] = e.Summary
	return json.Marshal(merged)
}

// Validate checks the required-field presence and schema_version shape
// rules from original_source's validate_envelope, operating on the
// envelope's already-serialized map form (so it can validate envelopes
// read back from disk/stdout, not just live Envelope values).
func Validate(data map[string]any) (bool, []string) {
	var errs []string
	for _, field := range []string{"schema", "schema_version", "command", "version", "summary"} {
		if _, ok := data[field]; !ok {
			errs = append(errs, "missing required field: "+field)
		}
	}

	if summary, ok := data["summary"]; ok {
		sm, isMap := summary.(map[string]any)
		if !isMap {
			errs = append(errs, "'summary' must be an object")
		} else if _, ok := sm["verdict"]; !ok {
			errs = append(errs, "missing required field: summary.verdict")
		}
	}

	if sv, ok := data["schema_version"].(string); ok {
		parts := strings.Split(sv, ".")
		valid := len(parts) == 3
		for _, p := range parts {
			if _, err := strconv.Atoi(p); err != nil {
				valid = false
			}
		}
		if !valid {
			errs = append(errs, "'schema_version' must be semantic version (X.Y.Z)")
		}
	}

	return len(errs) == 0, errs
}

// Budget truncates every []any value in data to at most maxItems entries,
// marking the summary as truncated and recording the token budget — the
// in-place truncation spec.md §4.8 describes for the --budget flag.
func Budget(e *Envelope, maxItems, budgetTokens int) {
	if maxItems <= 0 {
		return
	}
	truncatedAny := false
	for k, v := range e.Data {
		if list, ok := v.([]any); ok && len(list) > maxItems {
			e.Data[k] = list[:maxItems]
			truncatedAny = true
		}
	}
	if truncatedAny {
		e.Summary.Truncated = true
		e.Summary.BudgetTokens = budgetTokens
	}
}

// SortedKeys returns m's keys in sorted order, a helper for callers that
// build envelope data by hand and want deterministic iteration before
// handing a map to Set.
func SortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
