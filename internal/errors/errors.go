// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the roam CLI.
//
// It defines RoamError, a type that carries structured error information
// — what went wrong, why, and how to fix it — plus the exit-code taxonomy
// from the error handling design: usage errors exit 2, missing/stale index
// exit 3/4, gate failures exit 5, partial success exits 6, everything else
// unexpected exits 1.
//
// # Usage Example
//
//	err := errors.NewIndexMissingError(
//	    "No index found for this project",
//	    "The store at .roam/index.db does not exist",
//	    "Run: roam init && roam index",
//	    nil,
//	)
//	if err != nil {
//	    errors.FatalError(err, false)
//	}
package errors

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes, ported from the taxonomy in original_source/exit_codes.py.
const (
	// ExitSuccess indicates successful execution.
	ExitSuccess = 0

	// ExitError indicates an unexpected, uncategorized error.
	ExitError = 1

	// ExitUsage indicates bad flags, an unknown command, or mutually
	// exclusive output modes.
	ExitUsage = 2

	// ExitIndexMissing indicates the persistent store does not exist.
	ExitIndexMissing = 3

	// ExitIndexStale indicates the store's schema version does not match
	// what this binary expects.
	ExitIndexStale = 4

	// ExitGateFailure indicates a rule violation or metric threshold
	// failure in a gate-mode invocation.
	ExitGateFailure = 5

	// ExitPartial indicates the command completed with warnings (e.g.
	// some trace spans went unmatched during ingestion).
	ExitPartial = 6
)

// RoamError represents an error with structured context for end users.
//
// It provides three levels of information:
//   - Message: what went wrong (user-facing error description)
//   - Cause: why it happened (diagnostic information)
//   - Fix: how to fix it (actionable suggestion)
//
// RoamError also carries an exit code for consistent CLI exit behavior
// and optionally wraps an underlying error for error-chain compatibility.
type RoamError struct {
	Message  string
	Cause    string
	Fix      string
	ExitCode int
	Err      error
}

// Error implements the error interface.
func (e *RoamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap implements error unwrapping for errors.Is/errors.As.
func (e *RoamError) Unwrap() error {
	return e.Err
}

// NewUsageError creates a usage error (bad flags, unknown command,
// mutually exclusive modes), exit code ExitUsage.
func NewUsageError(msg, cause, fix string) *RoamError {
	return &RoamError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitUsage}
}

// NewIndexMissingError creates an error for a missing persistent store,
// exit code ExitIndexMissing.
func NewIndexMissingError(msg, cause, fix string, err error) *RoamError {
	return &RoamError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitIndexMissing, Err: err}
}

// NewIndexStaleError creates an error for a store whose schema version
// does not match this binary, exit code ExitIndexStale.
func NewIndexStaleError(msg, cause, fix string, err error) *RoamError {
	return &RoamError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitIndexStale, Err: err}
}

// NewEnvironmentError creates an error for missing environment
// preconditions (e.g. command run outside a git repository).
func NewEnvironmentError(msg, cause, fix string, err error) *RoamError {
	return &RoamError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitError, Err: err}
}

// NewGateError creates a quality-gate failure, exit code ExitGateFailure.
func NewGateError(msg, cause, fix string) *RoamError {
	return &RoamError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitGateFailure}
}

// NewPartialError creates a partial-success error (ingestion completed
// with some data unmatched/skipped), exit code ExitPartial.
func NewPartialError(msg, cause, fix string) *RoamError {
	return &RoamError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitPartial}
}

// NewIOError creates an error for lock contention, permission, or
// disk-full conditions, exit code ExitError.
func NewIOError(msg, cause, fix string, err error) *RoamError {
	return &RoamError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitError, Err: err}
}

// NewInternalError creates an error for unexpected internal failures.
func NewInternalError(msg, cause, fix string, err error) *RoamError {
	return &RoamError{Message: msg, Cause: cause, Fix: fix, ExitCode: ExitError, Err: err}
}

var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns a formatted error message for terminal display. Color
// output respects NO_COLOR and can be explicitly disabled with noColor.
func (e *RoamError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}

	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}

	return out.String()
}

// ErrorJSON is the machine-readable form of a RoamError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the RoamError to a JSON-serializable structure.
func (e *RoamError) ToJSON() ErrorJSON {
	return ErrorJSON{Error: e.Message, Cause: e.Cause, Fix: e.Fix, ExitCode: e.ExitCode}
}

// FatalError prints the error and exits with the appropriate code. It
// never returns.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}

	if re, ok := err.(*RoamError); ok {
		if jsonOutput {
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(re.ToJSON())
		} else {
			fmt.Fprint(os.Stderr, re.Format(false))
		}
		os.Exit(re.ExitCode)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(ExitError)
}
