// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package container reads and writes the zip containers that hold one
// archived training session.
//
// Writing is staged: entries are assembled into a temporary file next to
// the target, the md5 digest and sidecar are produced, and only then is the
// temporary file renamed into place. A crash at any earlier point leaves no
// partial container under the published name.
//
// Reading never trusts entry names: extraction rejects paths that would
// escape the destination directory.
package container
