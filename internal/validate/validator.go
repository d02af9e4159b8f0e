// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package validate

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/config"
	"github.com/tomtom215/runvault/internal/container"
	"github.com/tomtom215/runvault/internal/fingerprint"
	"github.com/tomtom215/runvault/internal/logging"
)

// Result is the outcome of one validation run. ChecksPerformed lists only
// the phases that actually executed, so a short-circuited run is visible in
// the report.
type Result struct {
	ArchivePath     string         `json:"archive_path"`
	IsValid         bool           `json:"is_valid"`
	ValidatedAt     time.Time      `json:"validated_at"`
	ChecksPerformed []string       `json:"checks_performed"`
	Errors          []string       `json:"errors"`
	Warnings        []string       `json:"warnings"`
	Statistics      map[string]any `json:"statistics"`
}

// Checks selects which phases to run. The zero value runs everything.
type Checks struct {
	SkipIntegrity bool
	SkipStructure bool
	SkipContent   bool
}

// Validator applies the configured structural bounds to containers.
type Validator struct {
	maxSize       int64
	maxDepth      int
	allowedExts   map[string]struct{}
	quarantineDir string
	log           zerolog.Logger
}

// New builds a validator from configuration. quarantineDir receives failed
// containers; it is created lazily on first quarantine.
func New(cfg config.ValidateConfig, quarantineDir string) *Validator {
	exts := make(map[string]struct{}, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		exts[strings.ToLower(ext)] = struct{}{}
	}
	return &Validator{
		maxSize:       cfg.MaxArchiveSize,
		maxDepth:      cfg.MaxDepth,
		allowedExts:   exts,
		quarantineDir: quarantineDir,
		log:           logging.Component("validator"),
	}
}

// Validate runs the selected phases against the container at path.
func (v *Validator) Validate(ctx context.Context, path string, checks Checks) *Result {
	start := time.Now()
	result := &Result{
		ArchivePath: path,
		IsValid:     true,
		ValidatedAt: start.UTC(),
		Errors:      []string{},
		Warnings:    []string{},
		Statistics:  map[string]any{},
	}

	if _, err := os.Stat(path); err != nil {
		result.IsValid = false
		result.Errors = append(result.Errors, "archive not found")
		return result
	}

	if !checks.SkipIntegrity {
		result.ChecksPerformed = append(result.ChecksPerformed, "integrity_check")
		v.checkIntegrity(path, result)
		if !result.IsValid {
			// A corrupt container tells us nothing reliable about its
			// structure or content.
			result.Statistics["validation_time_seconds"] = time.Since(start).Seconds()
			v.log.Warn().Str("archive", path).Strs("errors", result.Errors).
				Msg("Integrity check failed, skipping remaining phases")
			return result
		}
	}

	if !checks.SkipStructure && ctx.Err() == nil {
		result.ChecksPerformed = append(result.ChecksPerformed, "structure_check")
		v.checkStructure(path, result)
	}

	if !checks.SkipContent && ctx.Err() == nil {
		result.ChecksPerformed = append(result.ChecksPerformed, "content_check")
		v.checkContent(path, result)
	}

	if err := ctx.Err(); err != nil {
		result.IsValid = false
		result.Errors = append(result.Errors, fmt.Sprintf("validation canceled: %v", err))
	}

	result.Statistics["validation_time_seconds"] = time.Since(start).Seconds()
	return result
}

// checkIntegrity verifies the container is non-empty, its digest matches
// the sidecar, and the zip index is readable.
func (v *Validator) checkIntegrity(path string, result *Result) {
	info, err := os.Stat(path)
	if err != nil {
		result.fail(fmt.Sprintf("stat archive: %v", err))
		return
	}
	if info.Size() == 0 {
		result.fail("archive is empty")
		return
	}

	digest, err := fingerprint.HashFile(path)
	if err != nil {
		result.fail(fmt.Sprintf("digest archive: %v", err))
		return
	}
	result.Statistics["integrity_hash"] = digest

	found, err := container.VerifySidecar(path)
	switch {
	case err != nil:
		result.fail(err.Error())
		return
	case !found:
		result.Warnings = append(result.Warnings, "no digest sidecar found")
	}

	r, err := container.Open(path)
	if err != nil {
		result.fail(fmt.Sprintf("archive corrupt or unreadable: %v", err))
		return
	}
	_ = r.Close()
}

// entryClasses drive the named-pattern statistics for optional content.
var entryClasses = []struct {
	stat   string
	prefix string
	exts   []string
}{
	{"files_model", archive.PrefixModel, nil},
	{"files_logs", archive.PrefixLogs, nil},
	{"files_checkpoints", "checkpoints/", nil},
	{"files_visualizations", "visualizations/", []string{".png", ".jpg", ".gif", ".svg"}},
}

// checkStructure verifies required entries, size bound, the extension
// allow-list, and flags excessive nesting.
func (v *Validator) checkStructure(path string, result *Result) {
	if !strings.HasSuffix(strings.ToLower(path), ".zip") {
		result.fail(fmt.Sprintf("disallowed archive format: %s", filepath.Ext(path)))
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		result.fail(fmt.Sprintf("stat archive: %v", err))
		return
	}
	result.Statistics["file_size"] = info.Size()
	if info.Size() > v.maxSize {
		result.fail(fmt.Sprintf("archive too large: %d bytes > %d bytes limit", info.Size(), v.maxSize))
	}

	r, err := container.Open(path)
	if err != nil {
		result.fail(fmt.Sprintf("open archive: %v", err))
		return
	}
	defer r.Close() //nolint:errcheck // read-only handle

	entries := r.Entries()
	result.Statistics["file_count"] = len(entries)

	var missing []string
	for _, required := range archive.RequiredEntries {
		if !r.Has(required) {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		result.fail(fmt.Sprintf("missing required entries: %s", strings.Join(missing, ", ")))
	}

	maxDepth := 0
	for _, name := range entries {
		if depth := strings.Count(name, "/"); depth > maxDepth {
			maxDepth = depth
		}
		if len(v.allowedExts) > 0 {
			ext := strings.ToLower(filepath.Ext(name))
			if ext != "" {
				if _, ok := v.allowedExts[ext]; !ok {
					result.fail(fmt.Sprintf("disallowed entry extension: %s", name))
				}
			}
		}
	}
	result.Statistics["directory_depth"] = maxDepth
	if maxDepth > v.maxDepth {
		result.Warnings = append(result.Warnings, "directory structure too deep")
	}

	for _, class := range entryClasses {
		count := 0
		for _, name := range entries {
			if !strings.HasPrefix(name, class.prefix) {
				continue
			}
			if len(class.exts) > 0 && !hasAnySuffix(name, class.exts) {
				continue
			}
			count++
		}
		if count > 0 {
			result.Statistics[class.stat] = count
		}
	}
}

// checkContent parses metadata.json against the schema and records
// plausibility warnings.
func (v *Validator) checkContent(path string, result *Result) {
	r, err := container.Open(path)
	if err != nil {
		result.fail(fmt.Sprintf("open archive: %v", err))
		return
	}
	defer r.Close() //nolint:errcheck // read-only handle

	meta, err := r.Metadata()
	if err != nil {
		result.fail(err.Error())
		return
	}
	result.Statistics["session_id"] = meta.SessionID
	result.Statistics["session_number"] = meta.SessionNumber

	if meta.TotalEpisodes == 0 && meta.WinRate > 0 {
		result.Warnings = append(result.Warnings, "win rate reported with zero episodes")
	}
	if meta.TotalEpisodes > 10_000_000 {
		result.Warnings = append(result.Warnings, "implausibly large episode count")
	}

	if params, err := r.ReadEntry(archive.EntryParams); err != nil || len(params) == 0 {
		result.Warnings = append(result.Warnings, "params.md is empty or unreadable")
	}
	if cfg, err := r.ReadEntry(archive.EntryConfig); err != nil || len(cfg) == 0 {
		result.Warnings = append(result.Warnings, "config.yaml is empty or unreadable")
	}
}

func (r *Result) fail(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

func hasAnySuffix(name string, suffixes []string) bool {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}
