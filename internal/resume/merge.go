// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package resume

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/container"
)

// MergeSource describes one archive folded into a merge workspace.
type MergeSource struct {
	Index         int    `json:"index"`
	SessionID     string `json:"session_id"`
	ArchivePath   string `json:"archive_path"`
	Subdir        string `json:"subdir"`
	FilesRestored int    `json:"files_restored"`
}

// MergeResult describes a completed merge.
type MergeResult struct {
	TargetDir  string        `json:"target_dir"`
	Sources    []MergeSource `json:"sources"`
	ReportPath string        `json:"report_path"`
	MergedAt   time.Time     `json:"merged_at"`
}

// MergeSessions extracts every archive into its own numbered subdirectory
// of a shared workspace. Sources stay fully isolated: equal filenames from
// different sessions never collide and nothing is deduplicated across them.
// A failure part-way removes the whole workspace.
func (r *Resumer) MergeSessions(ctx context.Context, archivePaths []string) (*MergeResult, error) {
	if len(archivePaths) < 2 {
		return nil, fmt.Errorf("%w: merge needs at least two archives", archive.ErrConflict)
	}

	targetDir := filepath.Join(r.restoreDir, "merged_"+time.Now().Format("20060102_1504"))
	if _, err := os.Stat(targetDir); err == nil {
		return nil, fmt.Errorf("%w: merge target %s already exists", archive.ErrConflict, targetDir)
	}

	result := &MergeResult{TargetDir: targetDir, MergedAt: time.Now().UTC()}

	for i, path := range archivePaths {
		src, err := r.mergeOne(ctx, targetDir, i+1, path)
		if err != nil {
			_ = os.RemoveAll(targetDir)
			return nil, err
		}
		result.Sources = append(result.Sources, *src)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		_ = os.RemoveAll(targetDir)
		return nil, fmt.Errorf("%w: encode merge report: %v", archive.ErrIO, err)
	}
	result.ReportPath = filepath.Join(targetDir, "merge_report.json")
	if err := os.WriteFile(result.ReportPath, data, 0o640); err != nil {
		_ = os.RemoveAll(targetDir)
		return nil, fmt.Errorf("%w: write merge report: %v", archive.ErrIO, err)
	}

	r.log.Info().Str("target", targetDir).Int("sources", len(result.Sources)).
		Msg("Sessions merged")
	return result, nil
}

func (r *Resumer) mergeOne(ctx context.Context, targetDir string, index int, path string) (*MergeSource, error) {
	if r.verifyChecksum {
		if _, err := container.VerifySidecar(path); err != nil {
			return nil, err
		}
	}

	reader, err := container.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close() //nolint:errcheck // read-only handle

	meta, err := reader.Metadata()
	if err != nil {
		return nil, err
	}

	subdir := fmt.Sprintf("source_%02d_%s", index, sanitizeID(meta.SessionID))
	n, err := reader.ExtractAll(ctx, filepath.Join(targetDir, subdir))
	if err != nil {
		return nil, err
	}

	return &MergeSource{
		Index:         index,
		SessionID:     meta.SessionID,
		ArchivePath:   path,
		Subdir:        subdir,
		FilesRestored: n,
	}, nil
}
