// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package validate runs the three-phase archive validation pipeline:
// integrity (readable, digest matches sidecar), structure (required entries,
// size bound, extension allow-list, nesting depth) and content
// (metadata.json schema plus plausibility checks).
//
// Phases run in fixed order and a hard integrity failure short-circuits the
// rest; a corrupt container tells us nothing reliable about its structure.
// Failed containers are quarantined by move, never deleted, so forensic
// inspection stays possible.
package validate
