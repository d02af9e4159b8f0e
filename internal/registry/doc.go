// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package registry maintains the persistent index of every archived
// session: the monotonic session counter, the session_id → record map, and
// the derived tag and category indices.
//
// Everything lives in one JSON document written whole via a temp-file
// rename on every mutation, so the record map and its indices can never
// drift apart across a crash. A single writer lock serializes mutations;
// reads run concurrently and return copies, never aliases into the
// document.
package registry
