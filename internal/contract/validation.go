// Copyright 2026 KrakLabs
// SPDX-License-Identifier: AGPL-3.0-only

// Package contract holds small validation helpers shared across commands,
// keeping soft limits on batch-sized inputs (rule sets, trace ingests)
// configurable without plumbing config through every call site.
package contract

import (
	"os"
	"strconv"
)

const (
	// DefaultSoftLimitBytes is the baseline soft limit for batch inputs
	// (rule files, trace/vuln ingest payloads).
	DefaultSoftLimitBytes = 64 << 20 // 64 MiB

	// RequestIDMaxBytes is the maximum length for a request_id field in
	// an envelope's _meta.
	RequestIDMaxBytes = 128
)

// SoftLimitBytes returns the effective soft limit for oversized input
// payloads. Controlled via env ROAM_SOFT_LIMIT_BYTES; falls back to
// DefaultSoftLimitBytes.
func SoftLimitBytes() int {
	if v := os.Getenv("ROAM_SOFT_LIMIT_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return DefaultSoftLimitBytes
}

// ValidationResult represents the result of a validation check.
type ValidationResult struct {
	OK      bool
	Message string
}

// ValidateSize checks a payload's size against the configured soft limit.
func ValidateSize(payload string) *ValidationResult {
	if len(payload) > SoftLimitBytes() {
		return &ValidationResult{OK: false, Message: "payload exceeds soft limit"}
	}
	return &ValidationResult{OK: true}
}
