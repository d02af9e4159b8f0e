// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package logging provides centralized zerolog-based logging for Runvault.
//
// All components log through this package so that output format, level and
// destination are configured in exactly one place (typically main).
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//
//	logging.Info().Str("archive", path).Msg("Archive published")
//	logging.Error().Err(err).Msg("Validation failed")
//
// Component loggers carry a fixed field:
//
//	regLog := logging.Component("registry")
//	regLog.Debug().Uint64("session", n).Msg("Counter advanced")
//
// The slog adapter exists for libraries that require *slog.Logger (the
// suture supervision tree via sutureslog); it forwards to zerolog.
package logging
