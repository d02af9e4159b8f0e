// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/container"
	"github.com/tomtom215/runvault/internal/metrics"
	"github.com/tomtom215/runvault/internal/optimize"
	"github.com/tomtom215/runvault/internal/resume"
	"github.com/tomtom215/runvault/internal/validate"
)

// ArchiveInfo describes one container on disk. Unregistered containers
// (present in the archive directory but unknown to the registry) carry
// whatever identity their filename yields.
type ArchiveInfo struct {
	ArchivePath   string    `json:"archive_path"`
	Size          int64     `json:"size"`
	ModifiedAt    time.Time `json:"modified_at"`
	Registered    bool      `json:"registered"`
	SessionID     string    `json:"session_id,omitempty"`
	SessionNumber uint64    `json:"session_number,omitempty"`
	Timestamp     time.Time `json:"timestamp,omitempty"`
	ModelType     string    `json:"model_type,omitempty"`
	AgentType     string    `json:"agent_type,omitempty"`
	WinRate       float64   `json:"win_rate,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	Categories    []string  `json:"categories,omitempty"`
}

// ListArchives inventories the archive directory. Registered containers are
// enriched from the registry; strays fall back to filename parsing so they
// still show up with a best-effort identity. Newest session first,
// unregistered strays last.
func (s *Service) ListArchives() ([]*ArchiveInfo, error) {
	paths, err := filepath.Glob(filepath.Join(s.cfg.Storage.ArchiveDir, "*.zip"))
	if err != nil {
		return nil, fmt.Errorf("%w: scan archive dir: %v", archive.ErrIO, err)
	}

	byPath := make(map[string]*ArchiveInfo, len(paths))
	for _, rec := range s.registry.List() {
		m := rec.Metadata
		byPath[rec.ArchivePath] = &ArchiveInfo{
			ArchivePath:   rec.ArchivePath,
			Registered:    true,
			SessionID:     m.SessionID,
			SessionNumber: m.SessionNumber,
			Timestamp:     m.Timestamp,
			ModelType:     m.ModelType,
			AgentType:     m.AgentType,
			WinRate:       m.WinRate,
			Tags:          m.Tags,
			Categories:    rec.Categories,
		}
	}

	infos := make([]*ArchiveInfo, 0, len(paths))
	for _, path := range paths {
		st, err := os.Stat(path)
		if err != nil {
			continue
		}

		info, ok := byPath[path]
		if !ok {
			info = &ArchiveInfo{ArchivePath: path}
			if parsed, ok := archive.ParseFilename(filepath.Base(path)); ok {
				info.SessionNumber = parsed.SessionNumber
				info.Timestamp = parsed.Timestamp
				info.ModelType = parsed.ModelType
				info.AgentType = parsed.AgentType
			}
		}
		info.Size = st.Size()
		info.ModifiedAt = st.ModTime()
		infos = append(infos, info)
	}

	sort.SliceStable(infos, func(i, j int) bool {
		if infos[i].Registered != infos[j].Registered {
			return infos[i].Registered
		}
		return infos[i].SessionNumber > infos[j].SessionNumber
	})
	return infos, nil
}

// ArchiveDetail extends ArchiveInfo with the container's digest, entry list,
// embedded metadata and a params.md preview.
type ArchiveDetail struct {
	ArchiveInfo
	Digest        string            `json:"digest,omitempty"`
	Entries       []string          `json:"entries,omitempty"`
	Metadata      *archive.Metadata `json:"metadata,omitempty"`
	ParamsPreview string            `json:"params_preview,omitempty"`
}

// paramsPreviewLimit bounds how much of params.md the detail view inlines.
const paramsPreviewLimit = 1024

// GetArchiveInfo resolves one registered session to its on-disk container
// and inlines the container's identity entries.
func (s *Service) GetArchiveInfo(sessionID string) (*ArchiveDetail, error) {
	rec, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}

	detail := &ArchiveDetail{
		ArchiveInfo: ArchiveInfo{
			ArchivePath:   rec.ArchivePath,
			Registered:    true,
			SessionID:     rec.Metadata.SessionID,
			SessionNumber: rec.Metadata.SessionNumber,
			Timestamp:     rec.Metadata.Timestamp,
			ModelType:     rec.Metadata.ModelType,
			AgentType:     rec.Metadata.AgentType,
			WinRate:       rec.Metadata.WinRate,
			Tags:          rec.Metadata.Tags,
			Categories:    rec.Categories,
		},
		Metadata: rec.Metadata,
	}
	if st, err := os.Stat(rec.ArchivePath); err == nil {
		detail.Size = st.Size()
		detail.ModifiedAt = st.ModTime()
	}

	// The container may have vanished since registration; the registry view
	// alone is still useful, so container-derived fields are best-effort.
	if sidecar, err := os.ReadFile(archive.SidecarPath(rec.ArchivePath)); err == nil {
		if digest, _, perr := archive.ParseSidecar(string(sidecar)); perr == nil {
			detail.Digest = digest
		}
	}
	reader, err := container.Open(rec.ArchivePath)
	if err != nil {
		return detail, nil //nolint:nilerr // registry view is valid without the container
	}
	defer reader.Close() //nolint:errcheck // read-only handle

	detail.Entries = reader.Entries()
	if params, err := reader.ReadEntry(archive.EntryParams); err == nil {
		if len(params) > paramsPreviewLimit {
			params = params[:paramsPreviewLimit]
		}
		detail.ParamsPreview = string(params)
	}
	return detail, nil
}

// ValidateArchive runs full validation against one container, quarantining
// it on failure when requested.
func (s *Service) ValidateArchive(ctx context.Context, path string, quarantine bool) (*validate.Result, error) {
	start := time.Now()
	result := s.validator.Validate(ctx, path, validate.Checks{})
	metrics.RecordValidation(result.IsValid, time.Since(start))

	if !result.IsValid && quarantine {
		dest, err := s.validator.Quarantine(result)
		if err != nil {
			return result, err
		}
		metrics.ArchivesQuarantined.Inc()

		// Drop the registry record if the quarantined container was
		// registered; its path no longer resolves.
		for _, rec := range s.registry.List() {
			if rec.ArchivePath == result.ArchivePath {
				if rerr := s.registry.Remove(rec.Metadata.SessionID); rerr != nil {
					s.log.Warn().Err(rerr).Str("session", rec.Metadata.SessionID).
						Msg("Failed to deregister quarantined archive")
				}
				break
			}
		}
		s.publishRegistryGauges()
		s.log.Warn().Str("archive", path).Str("quarantined", dest).Msg("Archive failed validation")
	}
	return result, nil
}

// OptimizeArchive rewrites a registered session's container at the given
// level (configured default when empty).
func (s *Service) OptimizeArchive(ctx context.Context, sessionID, levelName string) (*optimize.Stats, error) {
	rec, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.optimizeCreated(ctx, rec.ArchivePath, levelName)
}

// RestoreSession materializes a registered session for continued training.
func (s *Service) RestoreSession(ctx context.Context, sessionID string, newSession map[string]any) (*resume.ResumeResult, error) {
	rec, err := s.registry.Get(sessionID)
	if err != nil {
		return nil, err
	}
	return s.resumer.ResumeTraining(ctx, rec.ArchivePath, newSession)
}

// CompareSessions compares two registered sessions' archived metadata.
func (s *Service) CompareSessions(ctx context.Context, sessionA, sessionB string) (*resume.SessionComparison, error) {
	recA, err := s.registry.Get(sessionA)
	if err != nil {
		return nil, err
	}
	recB, err := s.registry.Get(sessionB)
	if err != nil {
		return nil, err
	}
	return s.resumer.CompareSessions(ctx, recA.ArchivePath, recB.ArchivePath)
}

// MergeSessions merges several registered sessions into one workspace.
func (s *Service) MergeSessions(ctx context.Context, sessionIDs []string) (*resume.MergeResult, error) {
	paths := make([]string, 0, len(sessionIDs))
	for _, id := range sessionIDs {
		rec, err := s.registry.Get(strings.TrimSpace(id))
		if err != nil {
			return nil, err
		}
		paths = append(paths, rec.ArchivePath)
	}
	return s.resumer.MergeSessions(ctx, paths)
}
