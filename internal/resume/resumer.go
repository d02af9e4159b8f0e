// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package resume

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/config"
	"github.com/tomtom215/runvault/internal/container"
	"github.com/tomtom215/runvault/internal/logging"
)

// Resumer restores archived sessions into working directories.
type Resumer struct {
	restoreDir     string
	verifyChecksum bool
	paramPenalty   float64
	metricCap      float64
	log            zerolog.Logger
}

// New builds a resumer. restoreDir is the base under which every restore
// materializes.
func New(cfg config.ResumeConfig, restoreDir string) *Resumer {
	return &Resumer{
		restoreDir:     restoreDir,
		verifyChecksum: cfg.VerifyChecksum,
		paramPenalty:   cfg.ParamPenalty,
		metricCap:      cfg.MetricPenaltyCap,
		log:            logging.Component("resumer"),
	}
}

// RestoredSession describes one materialized session.
type RestoredSession struct {
	SessionID      string              `json:"session_id"`
	ArchivePath    string              `json:"archive_path"`
	TargetDir      string              `json:"target_dir"`
	Metadata       *archive.Metadata   `json:"metadata"`
	TrainingConfig map[string]any      `json:"training_config,omitempty"`
	Files          map[string][]string `json:"files"`
	FilesRestored  int                 `json:"files_restored"`
	Warnings       []string            `json:"warnings,omitempty"`
}

// LoadArchive verifies, extracts and classifies a session archive into a
// fresh resumed_<session>_<timestamp> directory. A missing digest sidecar
// is a warning; a mismatching one aborts the restore.
func (r *Resumer) LoadArchive(ctx context.Context, archivePath string) (*RestoredSession, error) {
	var warnings []string

	if r.verifyChecksum {
		found, err := container.VerifySidecar(archivePath)
		if err != nil {
			return nil, err
		}
		if !found {
			warnings = append(warnings, "no digest sidecar found, restoring unverified")
		}
	}

	reader, err := container.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close() //nolint:errcheck // read-only handle

	meta, err := reader.Metadata()
	if err != nil {
		return nil, err
	}

	targetDir := filepath.Join(r.restoreDir,
		fmt.Sprintf("resumed_%s_%s", sanitizeID(meta.SessionID), time.Now().Format("20060102_1504")))
	if _, err := os.Stat(targetDir); err == nil {
		return nil, fmt.Errorf("%w: restore target %s already exists", archive.ErrConflict, targetDir)
	}

	n, err := reader.ExtractAll(ctx, targetDir)
	if err != nil {
		_ = os.RemoveAll(targetDir)
		return nil, err
	}

	session := &RestoredSession{
		SessionID:     meta.SessionID,
		ArchivePath:   archivePath,
		TargetDir:     targetDir,
		Metadata:      meta,
		Files:         classifyFiles(reader.Entries()),
		FilesRestored: n,
		Warnings:      warnings,
	}

	// The archived training config rides along so the caller can seed the
	// continued run without re-reading the extracted tree.
	if data, err := reader.ReadEntry(archive.EntryConfig); err == nil {
		var trainingConfig map[string]any
		if err := yaml.Unmarshal(data, &trainingConfig); err != nil {
			session.Warnings = append(session.Warnings, "config.yaml unparseable: "+err.Error())
		} else {
			session.TrainingConfig = trainingConfig
		}
	}

	r.log.Info().Str("session", meta.SessionID).Str("target", targetDir).
		Int("files", n).Msg("Session restored")
	return session, nil
}

// ContinuationConfig is written into the restore directory so the training
// loop can pick up where the archived session left off.
type ContinuationConfig struct {
	ResumedFrom struct {
		ArchivePath   string    `json:"archive_path"`
		SessionID     string    `json:"session_id"`
		SessionNumber uint64    `json:"session_number"`
		Timestamp     time.Time `json:"timestamp"`
	} `json:"resumed_from"`
	NewSession      map[string]any `json:"new_session,omitempty"`
	ResumeTimestamp time.Time      `json:"resume_timestamp"`
	ModelFiles      []string       `json:"model_files"`
}

// ResumeResult reports a completed resume.
type ResumeResult struct {
	Session    *RestoredSession    `json:"session"`
	ConfigPath string              `json:"config_path"`
	Config     *ContinuationConfig `json:"config"`
}

// ResumeTraining restores an archive and writes continuation_config.json
// describing the source session and the overrides for the new one.
func (r *Resumer) ResumeTraining(ctx context.Context, archivePath string, newSession map[string]any) (*ResumeResult, error) {
	session, err := r.LoadArchive(ctx, archivePath)
	if err != nil {
		return nil, err
	}

	cc := &ContinuationConfig{
		NewSession:      newSession,
		ResumeTimestamp: time.Now().UTC(),
		ModelFiles:      session.Files["model_files"],
	}
	cc.ResumedFrom.ArchivePath = archivePath
	cc.ResumedFrom.SessionID = session.Metadata.SessionID
	cc.ResumedFrom.SessionNumber = session.Metadata.SessionNumber
	cc.ResumedFrom.Timestamp = session.Metadata.Timestamp

	data, err := json.MarshalIndent(cc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode continuation config: %v", archive.ErrIO, err)
	}
	configPath := filepath.Join(session.TargetDir, "continuation_config.json")
	if err := os.WriteFile(configPath, data, 0o640); err != nil {
		return nil, fmt.Errorf("%w: write continuation config: %v", archive.ErrIO, err)
	}

	r.log.Info().Str("session", session.SessionID).Str("config", configPath).
		Msg("Training resume prepared")
	return &ResumeResult{Session: session, ConfigPath: configPath, Config: cc}, nil
}

// classifyFiles buckets entries into model/config/log/data/other by
// filename keywords and extensions. Only the basename is matched: a path
// like logs/replay_buffer.npz is data, not a log, regardless of its
// directory.
func classifyFiles(names []string) map[string][]string {
	files := map[string][]string{
		"model_files":  {},
		"config_files": {},
		"log_files":    {},
		"data_files":   {},
		"other_files":  {},
	}

	for _, name := range names {
		lower := path.Base(strings.ToLower(name))
		switch {
		case containsAny(lower, "model", "checkpoint", "weights", ".pth", ".pt", ".h5"):
			files["model_files"] = append(files["model_files"], name)
		case containsAny(lower, "config", "params", "settings", ".yaml", ".yml", ".json"):
			files["config_files"] = append(files["config_files"], name)
		case containsAny(lower, "log", "metric", "history", ".log", ".csv", ".txt"):
			files["log_files"] = append(files["log_files"], name)
		case containsAny(lower, "data", "dataset", "buffer", ".npz", ".npy"):
			files["data_files"] = append(files["data_files"], name)
		default:
			files["other_files"] = append(files["other_files"], name)
		}
	}
	return files
}

func containsAny(s string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// sanitizeID keeps only filesystem-safe characters of a session id.
func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "session"
	}
	return b.String()
}
