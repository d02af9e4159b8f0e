// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package archive defines the shared vocabulary of the archive engine:
// the session metadata model and its JSON codec, the deterministic archive
// naming scheme, the container entry layout, and the error taxonomy used
// across every component.
//
// The metadata schema is versioned (SchemaVersion) so containers written by
// older releases stay readable. Deserialization validates the document
// against the schema and reports violations as ErrContent rather than
// silently producing partially-populated records.
package archive
