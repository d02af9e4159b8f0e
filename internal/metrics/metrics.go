// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

// Package metrics exposes Prometheus instrumentation for archive creation,
// validation, optimization, the version registry and the HTTP API.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Archive lifecycle metrics
	ArchivesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archives_created_total",
			Help: "Total number of session archives created",
		},
	)

	ArchiveCreationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_creation_duration_seconds",
			Help:    "Duration of archive creation in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120}, // large model checkpoints take a while
		},
	)

	ArchiveCreationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_creation_errors_total",
			Help: "Total number of failed archive creations",
		},
		[]string{"stage"}, // "build", "validate", "register", "optimize"
	)

	ArchiveBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_bytes_written_total",
			Help: "Total bytes of published archive containers",
		},
	)

	// Validation metrics
	ValidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validations_total",
			Help: "Total number of archive validations",
		},
		[]string{"outcome"}, // "valid", "invalid"
	)

	ValidationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "validation_duration_seconds",
			Help:    "Duration of archive validations in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ArchivesQuarantined = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archives_quarantined_total",
			Help: "Total number of archives moved to quarantine",
		},
	)

	// Optimizer metrics
	OptimizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "optimizations_total",
			Help: "Total number of archive optimizations",
		},
		[]string{"level"}, // "minimal", "balanced", "aggressive"
	)

	OptimizerBytesSaved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "optimizer_bytes_saved_total",
			Help: "Total bytes reclaimed by archive optimization",
		},
	)

	OptimizerDuplicatesFound = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "optimizer_duplicate_files_total",
			Help: "Total number of duplicate files deduplicated",
		},
	)

	// Registry metrics
	RegistrySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_versions",
			Help: "Current number of registered session versions",
		},
	)

	RegistryBestWinRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_best_win_rate",
			Help: "Best win rate across all registered sessions",
		},
	)

	// Retention metrics
	RetentionSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_sweeps_total",
			Help: "Total number of retention sweeps",
		},
	)

	RetentionArchivesRemoved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "retention_archives_removed_total",
			Help: "Total number of archives removed by retention",
		},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordArchiveCreated records a successful archive creation.
func RecordArchiveCreated(duration time.Duration, sizeBytes int64) {
	ArchivesCreated.Inc()
	ArchiveCreationDuration.Observe(duration.Seconds())
	ArchiveBytesWritten.Add(float64(sizeBytes))
}

// RecordValidation records a validation outcome.
func RecordValidation(valid bool, duration time.Duration) {
	outcome := "valid"
	if !valid {
		outcome = "invalid"
	}
	ValidationsTotal.WithLabelValues(outcome).Inc()
	ValidationDuration.Observe(duration.Seconds())
}

// RecordOptimization records a completed optimization run.
func RecordOptimization(level string, bytesSaved int64, duplicates int) {
	OptimizationsTotal.WithLabelValues(level).Inc()
	if bytesSaved > 0 {
		OptimizerBytesSaved.Add(float64(bytesSaved))
	}
	OptimizerDuplicatesFound.Add(float64(duplicates))
}

// UpdateRegistryGauges refreshes registry gauges from current statistics.
func UpdateRegistryGauges(totalVersions int, bestWinRate float64) {
	RegistrySize.Set(float64(totalVersions))
	RegistryBestWinRate.Set(bestWinRate)
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
