// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package fingerprint computes file identity and compressibility evidence
// for the optimizer: md5 and sha256 digests in a single read pass, a
// byte-diversity estimate of whether deflate would gain anything, and a
// text-file heuristic. A Badger-backed cache keyed by (path, size, mtime)
// lets repeated optimization runs skip re-hashing unchanged files.
package fingerprint
