// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package validate

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/runvault/internal/archive"
)

// Quarantine moves a failed container and its sidecar into the quarantine
// directory and writes the validation result beside them as a JSON report.
// The container is moved, never deleted. Returns the quarantined path.
func (v *Validator) Quarantine(result *Result) (string, error) {
	if err := os.MkdirAll(v.quarantineDir, 0o750); err != nil {
		return "", fmt.Errorf("%w: create quarantine dir: %v", archive.ErrIO, err)
	}

	base := filepath.Base(result.ArchivePath)
	// Timestamp prefix keeps repeat offenders from colliding.
	dest := filepath.Join(v.quarantineDir, time.Now().UTC().Format("20060102T150405")+"_"+base)

	if err := os.Rename(result.ArchivePath, dest); err != nil {
		return "", fmt.Errorf("%w: quarantine %s: %v", archive.ErrIO, base, err)
	}

	// Sidecar follows the container when present.
	sidecar := archive.SidecarPath(result.ArchivePath)
	if _, err := os.Stat(sidecar); err == nil {
		if err := os.Rename(sidecar, archive.SidecarPath(dest)); err != nil {
			v.log.Warn().Err(err).Str("sidecar", sidecar).Msg("Failed to move sidecar to quarantine")
		}
	}

	report, err := json.MarshalIndent(result, "", "  ")
	if err == nil {
		reportPath := dest + ".report.json"
		if werr := os.WriteFile(reportPath, report, 0o640); werr != nil {
			v.log.Warn().Err(werr).Str("report", reportPath).Msg("Failed to write quarantine report")
		}
	}

	v.log.Warn().Str("archive", base).Str("quarantined", dest).
		Strs("errors", result.Errors).Msg("Archive quarantined")
	return dest, nil
}
