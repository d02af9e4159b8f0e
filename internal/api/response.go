// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package api

import (
	"errors"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/logging"
)

// Response is the uniform JSON envelope for every endpoint.
type Response struct {
	Status    string    `json:"status"` // "ok" or "error"
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError carries a machine-readable code alongside the message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// respondJSON writes data inside the ok envelope.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")

	body, err := json.Marshal(&Response{Status: "ok", Data: data, Timestamp: time.Now().UTC()})
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError maps an error onto the envelope with an HTTP status derived
// from the engine's error taxonomy.
func respondError(w http.ResponseWriter, err error) {
	status, code := classifyError(err)
	logging.Warn().Err(err).Str("code", code).Int("status", status).Msg("API error")

	w.Header().Set("Content-Type", "application/json")
	body, merr := json.Marshal(&Response{
		Status:    "error",
		Error:     &APIError{Code: code, Message: err.Error()},
		Timestamp: time.Now().UTC(),
	})
	if merr != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// respondBadRequest reports a malformed request body or parameter.
func respondBadRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	body, _ := json.Marshal(&Response{
		Status:    "error",
		Error:     &APIError{Code: "BAD_REQUEST", Message: message},
		Timestamp: time.Now().UTC(),
	})
	w.WriteHeader(http.StatusBadRequest)
	_, _ = w.Write(body)
}

func classifyError(err error) (int, string) {
	switch {
	case errors.Is(err, archive.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, archive.ErrConflict):
		return http.StatusConflict, "CONFLICT"
	case errors.Is(err, archive.ErrIntegrity):
		return http.StatusUnprocessableEntity, "INTEGRITY"
	case errors.Is(err, archive.ErrStructure):
		return http.StatusUnprocessableEntity, "STRUCTURE"
	case errors.Is(err, archive.ErrContent):
		return http.StatusBadRequest, "CONTENT"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}
