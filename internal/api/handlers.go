// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/runvault/internal/service"
)

// Handler holds the service dependencies for all endpoints.
type Handler struct {
	svc       *service.Service
	startTime time.Time
	version   string
}

// NewHandler builds the API handler.
func NewHandler(svc *service.Service, version string) *Handler {
	return &Handler{svc: svc, startTime: time.Now(), version: version}
}

// Health reports liveness, uptime and registry size.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	stats := h.svc.Registry().Statistics()
	respondJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"versions":       stats.TotalVersions,
	})
}

// CreateArchive builds, validates, registers and optionally optimizes a new
// session archive.
func (h *Handler) CreateArchive(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.CreateArchive(r.Context(), &req)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

// ListArchives inventories the archive directory.
func (h *Handler) ListArchives(w http.ResponseWriter, _ *http.Request) {
	infos, err := h.svc.ListArchives()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, infos)
}

// GetArchive resolves one registered session.
func (h *Handler) GetArchive(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetArchiveInfo(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

// ValidateArchive runs full validation against a registered session's
// container; ?quarantine=true moves it aside on failure.
func (h *Handler) ValidateArchive(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GetArchiveInfo(chi.URLParam(r, "sessionID"))
	if err != nil {
		respondError(w, err)
		return
	}

	quarantine := strings.EqualFold(r.URL.Query().Get("quarantine"), "true")
	result, err := h.svc.ValidateArchive(r.Context(), info.ArchivePath, quarantine)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// OptimizeArchive rewrites a session's container.
func (h *Handler) OptimizeArchive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Level string `json:"level"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid request body: "+err.Error())
			return
		}
	}

	stats, err := h.svc.OptimizeArchive(r.Context(), chi.URLParam(r, "sessionID"), req.Level)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// RestoreArchive materializes a session for continued training.
func (h *Handler) RestoreArchive(w http.ResponseWriter, r *http.Request) {
	var req struct {
		NewSession map[string]any `json:"new_session"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondBadRequest(w, "invalid request body: "+err.Error())
			return
		}
	}

	result, err := h.svc.RestoreSession(r.Context(), chi.URLParam(r, "sessionID"), req.NewSession)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// CompareSessions compares two registered sessions.
func (h *Handler) CompareSessions(w http.ResponseWriter, r *http.Request) {
	a := r.URL.Query().Get("a")
	b := r.URL.Query().Get("b")
	if a == "" || b == "" {
		respondBadRequest(w, "query parameters a and b are required")
		return
	}

	cmp, err := h.svc.CompareSessions(r.Context(), a, b)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, cmp)
}

// MergeSessions merges several sessions into one workspace.
func (h *Handler) MergeSessions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionIDs []string `json:"session_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.MergeSessions(r.Context(), req.SessionIDs)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Cleanup triggers a retention sweep.
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	report, err := h.svc.Cleanup(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}
