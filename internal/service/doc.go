// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package service orchestrates the archive engine: it owns the version
// registry, fingerprint cache, validator, optimizer and resumer, and
// sequences them into the end-to-end operations the API exposes (create,
// list, validate, optimize, restore, compare, merge, cleanup).
package service
