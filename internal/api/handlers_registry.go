// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/tomtom215/runvault/internal/registry"
)

// SearchVersions filters registered sessions by the query parameters
// model_type, agent_type, tags, categories (any-of), min/max_win_rate,
// min/max_session_number, start_date, end_date, metric with
// min/max_metric_value, q (free text) and limit.
func (h *Handler) SearchVersions(w http.ResponseWriter, r *http.Request) {
	query := searchQueryFromParams(r.URL.Query())
	respondJSON(w, http.StatusOK, h.svc.Registry().Search(query))
}

// searchQueryFromParams decodes the shared search/export filter parameters.
func searchQueryFromParams(params url.Values) registry.SearchQuery {
	return registry.SearchQuery{
		ModelType:        params.Get("model_type"),
		AgentType:        params.Get("agent_type"),
		Tags:             splitList(params.Get("tags")),
		Categories:       splitList(params.Get("categories")),
		Text:             params.Get("q"),
		MinWinRate:       floatParam(params.Get("min_win_rate")),
		MaxWinRate:       floatParam(params.Get("max_win_rate")),
		MinSessionNumber: uintParam(params.Get("min_session_number")),
		MaxSessionNumber: uintParam(params.Get("max_session_number")),
		StartDate:        timeParam(params.Get("start_date")),
		EndDate:          timeParam(params.Get("end_date")),
		Metric:           params.Get("metric"),
		MinMetricValue:   floatParam(params.Get("min_metric_value")),
		MaxMetricValue:   floatParam(params.Get("max_metric_value")),
		Limit:            intParam(params.Get("limit")),
	}
}

// BestVersions ranks sessions by a metric (?metric=win_rate&n=5).
func (h *Handler) BestVersions(w http.ResponseWriter, r *http.Request) {
	metric := r.URL.Query().Get("metric")
	if metric == "" {
		metric = "win_rate"
	}
	n := intParam(r.URL.Query().Get("n"))
	if n <= 0 {
		n = 5
	}
	respondJSON(w, http.StatusOK, h.svc.Registry().Best(metric, n))
}

// RegistryStatistics reports aggregate registry state.
func (h *Handler) RegistryStatistics(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, h.svc.Registry().Statistics())
}

// ExportRegistry renders the registry as json, csv or markdown. The same
// filter parameters as the search endpoint narrow the exported set.
func (h *Handler) ExportRegistry(w http.ResponseWriter, r *http.Request) {
	format := registry.ExportFormat(strings.ToLower(r.URL.Query().Get("format")))
	if format == "" {
		format = registry.ExportJSON
	}

	data, err := h.svc.Registry().Export(format, searchQueryFromParams(r.URL.Query()))
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	switch format {
	case registry.ExportCSV:
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="registry.csv"`)
	case registry.ExportMarkdown:
		w.Header().Set("Content-Type", "text/markdown")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// AddTag attaches a tag to a session.
func (h *Handler) AddTag(w http.ResponseWriter, r *http.Request) {
	h.mutateVersion(w, r, func(sessionID, value string) error {
		return h.svc.Registry().AddTag(sessionID, value)
	})
}

// RemoveTag detaches a tag from a session.
func (h *Handler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	tag := chi.URLParam(r, "tag")
	if err := h.svc.Registry().RemoveTag(sessionID, tag); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "removed": tag})
}

// AddCategory attaches a category to a session.
func (h *Handler) AddCategory(w http.ResponseWriter, r *http.Request) {
	h.mutateVersion(w, r, func(sessionID, value string) error {
		return h.svc.Registry().AddCategory(sessionID, value)
	})
}

// RemoveCategory detaches a category from a session.
func (h *Handler) RemoveCategory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	category := chi.URLParam(r, "category")
	if err := h.svc.Registry().RemoveCategory(sessionID, category); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "removed": category})
}

// UpdateNotes replaces a session's notes.
func (h *Handler) UpdateNotes(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := h.svc.Registry().UpdateNotes(sessionID, req.Notes); err != nil {
		respondError(w, err)
		return
	}
	rec, err := h.svc.Registry().Get(sessionID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// mutateVersion decodes {"value": ...} and applies fn, returning the
// updated record.
func (h *Handler) mutateVersion(w http.ResponseWriter, r *http.Request, fn func(sessionID, value string) error) {
	var req struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondBadRequest(w, "invalid request body: "+err.Error())
		return
	}
	if req.Value == "" {
		respondBadRequest(w, "value is required")
		return
	}

	sessionID := chi.URLParam(r, "sessionID")
	if err := fn(sessionID, req.Value); err != nil {
		respondError(w, err)
		return
	}
	rec, err := h.svc.Registry().Get(sessionID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func floatParam(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func intParam(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

func uintParam(s string) uint64 {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}

// timeParam accepts RFC 3339 timestamps or bare dates.
func timeParam(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	return time.Time{}
}
