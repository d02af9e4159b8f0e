// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package service

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/container"
	"github.com/tomtom215/runvault/internal/metrics"
	"github.com/tomtom215/runvault/internal/optimize"
	"github.com/tomtom215/runvault/internal/validate"
)

// CreateRequest describes one session to archive. Metadata fields left at
// their zero value (SessionID, SessionNumber, Timestamp, SchemaVersion) are
// assigned by the service.
type CreateRequest struct {
	// Metadata carries the session's identity, hyperparameters and results.
	Metadata archive.Metadata `json:"metadata"`

	// TrainingConfig is embedded as config.yaml.
	TrainingConfig map[string]any `json:"training_config,omitempty"`

	// ModelDir and LogsDir are collected recursively into the container.
	ModelDir string `json:"model_dir,omitempty"`
	LogsDir  string `json:"logs_dir,omitempty"`

	// LogPatterns narrows log collection to files whose relative path or
	// basename matches one of the globs. Empty means everything.
	LogPatterns []string `json:"log_patterns,omitempty"`

	// Optimize rewrites the published container at OptimizeLevel (the
	// configured default when empty).
	Optimize      bool   `json:"optimize,omitempty"`
	OptimizeLevel string `json:"optimize_level,omitempty"`
}

// CreateResult reports one published session archive.
type CreateResult struct {
	SessionID     string           `json:"session_id"`
	SessionNumber uint64           `json:"session_number"`
	ArchivePath   string           `json:"archive_path"`
	Digest        string           `json:"digest"`
	Size          int64            `json:"size"`
	Validation    *validate.Result `json:"validation"`
	Optimization  *optimize.Stats  `json:"optimization,omitempty"`
}

// CreateArchive runs the full pipeline: allocate a session number, finalize
// metadata, render the narrative summary, build and publish the container,
// validate it (quarantining on failure), register it, optionally optimize
// it, then enforce the archive-count bound.
func (s *Service) CreateArchive(ctx context.Context, req *CreateRequest) (*CreateResult, error) {
	start := time.Now()

	number, err := s.registry.AllocateSessionNumber()
	if err != nil {
		return nil, fmt.Errorf("allocate session number: %w", err)
	}

	meta := s.finalizeMetadata(&req.Metadata, number)
	prev := s.previousSession(meta)
	if prev != nil && meta.PreviousSessionID == "" {
		meta.PreviousSessionID = prev.SessionID
	}

	entries, err := s.buildEntries(meta, prev, req)
	if err != nil {
		metrics.ArchiveCreationErrors.WithLabelValues("build").Inc()
		return nil, err
	}

	target := filepath.Join(s.cfg.Storage.ArchiveDir,
		archive.Filename(meta.SessionNumber, meta.Timestamp, meta.ModelType, meta.AgentType))
	built, err := container.Build(ctx, target, entries)
	if err != nil {
		metrics.ArchiveCreationErrors.WithLabelValues("build").Inc()
		return nil, fmt.Errorf("build container: %w", err)
	}

	result := s.validator.Validate(ctx, built.ArchivePath, validate.Checks{})
	metrics.RecordValidation(result.IsValid, time.Since(start))
	if !result.IsValid {
		metrics.ArchiveCreationErrors.WithLabelValues("validate").Inc()
		if _, qerr := s.validator.Quarantine(result); qerr != nil {
			s.log.Error().Err(qerr).Str("archive", built.ArchivePath).Msg("Quarantine failed")
		} else {
			metrics.ArchivesQuarantined.Inc()
		}
		return nil, fmt.Errorf("%w: new archive failed validation: %s",
			archive.ErrIntegrity, strings.Join(result.Errors, "; "))
	}

	if _, err := s.registry.Register(meta, built.ArchivePath, dirSize(req.ModelDir)); err != nil {
		metrics.ArchiveCreationErrors.WithLabelValues("register").Inc()
		return nil, fmt.Errorf("register session: %w", err)
	}
	s.publishRegistryGauges()

	out := &CreateResult{
		SessionID:     meta.SessionID,
		SessionNumber: meta.SessionNumber,
		ArchivePath:   built.ArchivePath,
		Digest:        built.Digest,
		Size:          built.Size,
		Validation:    result,
	}

	if req.Optimize {
		stats, err := s.optimizeCreated(ctx, built.ArchivePath, req.OptimizeLevel)
		if err != nil {
			// The archive is already published and registered; a failed
			// optimization pass is reported but does not fail creation.
			metrics.ArchiveCreationErrors.WithLabelValues("optimize").Inc()
			s.log.Warn().Err(err).Str("archive", built.ArchivePath).Msg("Post-create optimization failed")
		} else {
			out.Optimization = stats
			out.Size = stats.OptimizedSize
		}
	}

	if removed, err := s.enforceArchiveBound(); err != nil {
		s.log.Warn().Err(err).Msg("Archive-count cleanup failed")
	} else if removed > 0 {
		s.log.Info().Int("removed", removed).Msg("Archive-count bound enforced")
	}

	metrics.RecordArchiveCreated(time.Since(start), out.Size)
	s.log.Info().Str("session", meta.SessionID).Uint64("number", meta.SessionNumber).
		Str("archive", built.ArchivePath).Int64("size", out.Size).
		Dur("elapsed", time.Since(start)).Msg("Archive created")
	return out, nil
}

// finalizeMetadata fills the service-assigned fields of a request's
// metadata.
func (s *Service) finalizeMetadata(m *archive.Metadata, number uint64) *archive.Metadata {
	meta := m.Clone()
	meta.SchemaVersion = archive.SchemaVersion
	meta.SessionNumber = number
	if meta.SessionID == "" {
		meta.SessionID = uuid.NewString()
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now().UTC()
	}
	if meta.ModelType == "" {
		meta.ModelType = "unknown"
	}
	return meta
}

// previousSession returns the newest registered session other than meta
// itself, for the params.md comparison section.
func (s *Service) previousSession(meta *archive.Metadata) *archive.Metadata {
	for _, rec := range s.registry.List() {
		if rec.Metadata.SessionID != meta.SessionID {
			return rec.Metadata
		}
	}
	return nil
}

func (s *Service) buildEntries(meta, prev *archive.Metadata, req *CreateRequest) ([]container.Entry, error) {
	metaJSON, err := archive.MarshalMetadata(meta)
	if err != nil {
		return nil, err
	}

	configYAML, err := yaml.Marshal(req.TrainingConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: encode training config: %v", archive.ErrContent, err)
	}

	entries := []container.Entry{
		{Name: archive.EntryParams, Data: []byte(archive.RenderParams(meta, prev))},
		{Name: archive.EntryMetadata, Data: metaJSON},
		{Name: archive.EntryConfig, Data: configYAML},
	}

	if s.cfg.Archive.IncludeModel && req.ModelDir != "" {
		model, err := container.CollectDir(req.ModelDir, archive.PrefixModel)
		if err != nil {
			return nil, err
		}
		entries = append(entries, model...)
	}
	if s.cfg.Archive.IncludeLogs && req.LogsDir != "" {
		logs, err := container.CollectDir(req.LogsDir, archive.PrefixLogs)
		if err != nil {
			return nil, err
		}
		logs, err = filterEntries(logs, archive.PrefixLogs, req.LogPatterns)
		if err != nil {
			return nil, err
		}
		entries = append(entries, logs...)
	}
	return entries, nil
}

// filterEntries keeps entries whose path relative to prefix, or basename,
// matches one of the glob patterns. No patterns keeps everything.
func filterEntries(entries []container.Entry, prefix string, patterns []string) ([]container.Entry, error) {
	if len(patterns) == 0 {
		return entries, nil
	}

	var out []container.Entry
	for _, entry := range entries {
		rel := strings.TrimPrefix(entry.Name, prefix)
		matched, err := matchesAny(rel, patterns)
		if err != nil {
			return nil, err
		}
		if matched {
			out = append(out, entry)
		}
	}
	return out, nil
}

func matchesAny(rel string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		ok, err := path.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("%w: bad log pattern %q: %v", archive.ErrContent, pattern, err)
		}
		if !ok {
			ok, _ = path.Match(pattern, path.Base(rel))
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) optimizeCreated(ctx context.Context, archivePath, levelName string) (*optimize.Stats, error) {
	if levelName == "" {
		levelName = s.cfg.Optimizer.Level
	}
	level, err := optimize.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	stats, err := s.optimizer.Optimize(ctx, archivePath, level)
	if err != nil {
		return nil, err
	}
	metrics.RecordOptimization(string(level), stats.SpaceSaved, stats.DuplicateFilesFound)
	return stats, nil
}

// dirSize sums regular-file sizes under root; 0 for an empty or absent root.
func dirSize(root string) int64 {
	if root == "" {
		return 0
	}
	var total int64
	_ = filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err == nil && info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	return total
}
