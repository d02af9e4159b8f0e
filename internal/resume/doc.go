// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package resume materializes archived sessions back onto disk for
// continued training, compares two sessions' hyperparameters and metrics,
// and merges several sessions into one workspace.
//
// Restores land in a fresh resumed_<session>_<timestamp> directory; merges
// keep one numbered subdirectory per source so identical filenames from
// different sessions can never clobber each other.
package resume
