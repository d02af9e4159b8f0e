// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package archive

import "errors"

// Error taxonomy for archive operations. Callers branch with errors.Is;
// every component wraps one of these sentinels with operation context via
// fmt.Errorf("...: %w", ...).
var (
	// ErrIntegrity indicates a digest mismatch or an unreadable container.
	// A sidecar digest that does not match the container bytes is conclusive
	// evidence of corruption, never of a "newer" archive.
	ErrIntegrity = errors.New("archive integrity violation")

	// ErrStructure indicates a missing required entry, an oversized
	// container, or a disallowed format/extension.
	ErrStructure = errors.New("archive structure violation")

	// ErrContent indicates malformed metadata.json or a missing/mistyped
	// required field.
	ErrContent = errors.New("archive content invalid")

	// ErrNotFound indicates the archive path does not exist.
	ErrNotFound = errors.New("archive not found")

	// ErrConflict indicates a target that already exists or a duplicate
	// session number.
	ErrConflict = errors.New("conflicting archive state")

	// ErrIO indicates a disk or permission failure.
	ErrIO = errors.New("archive storage failure")
)
