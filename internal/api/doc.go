// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package api exposes the archive engine over HTTP using the Chi router.
//
// All endpoints live under /api/v1 and return a uniform JSON envelope.
// Rate limiting is IP-keyed via go-chi/httprate; Prometheus metrics are
// served on /metrics.
package api
