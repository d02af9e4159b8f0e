// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/runvault/internal/config"
	"github.com/tomtom215/runvault/internal/metrics"
)

// NewRouter wires every endpoint onto a Chi router with IP-keyed rate
// limiting and request metrics.
func NewRouter(h *Handler, cfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestMetrics)

	// Health and metrics stay outside the rate limit so scrapers and
	// liveness checks never get throttled.
	r.Get("/api/v1/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		}

		r.Route("/archives", func(r chi.Router) {
			r.Post("/", h.CreateArchive)
			r.Get("/", h.ListArchives)
			r.Post("/merge", h.MergeSessions)
			r.Get("/compare", h.CompareSessions)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", h.GetArchive)
				r.Post("/validate", h.ValidateArchive)
				r.Post("/optimize", h.OptimizeArchive)
				r.Post("/restore", h.RestoreArchive)
			})
		})

		r.Route("/registry", func(r chi.Router) {
			r.Get("/search", h.SearchVersions)
			r.Get("/best", h.BestVersions)
			r.Get("/statistics", h.RegistryStatistics)
			r.Get("/export", h.ExportRegistry)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Post("/tags", h.AddTag)
				r.Delete("/tags/{tag}", h.RemoveTag)
				r.Post("/categories", h.AddCategory)
				r.Delete("/categories/{category}", h.RemoveCategory)
				r.Put("/notes", h.UpdateNotes)
			})
		})

		r.Post("/cleanup", h.Cleanup)
	})

	return r
}

// requestMetrics records per-request counters and latency. The route
// pattern, not the raw path, labels the metric to keep cardinality bounded.
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordAPIRequest(r.Method, endpoint, strconv.Itoa(ww.Status()), time.Since(start))
	})
}
