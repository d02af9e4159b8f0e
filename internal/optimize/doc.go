// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package optimize rewrites published containers to reclaim space.
//
// Three policies:
//
//   - minimal: re-deflate only entries whose content is judged
//     compressible; already-compressed content is stored raw.
//   - balanced: minimal plus content-addressed deduplication, one blob per
//     distinct sha256 under content/, with file_mapping.json recording the
//     logical path of every original file.
//   - aggressive: balanced plus forced deflate of text files regardless of
//     the compressibility estimate.
//
// The required entries (metadata.json, params.md, config.yaml) always stay
// at their canonical paths so optimized containers keep passing structure
// validation; deduplication applies to model, log and other optional
// content only.
//
// Optimization is staged and atomic: the rewritten container and its new
// digest sidecar replace the originals only after both are fully written.
// Any failure leaves the original container untouched.
package optimize
