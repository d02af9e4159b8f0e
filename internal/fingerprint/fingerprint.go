// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package fingerprint

import (
	"crypto/md5" //nolint:gosec // md5 is the sidecar-compatible integrity digest, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"
)

// Fingerprint identifies one file's content and its compression prospects.
// Computed per optimization run; persistence is a cache, never a source of
// truth.
type Fingerprint struct {
	RelativePath        string    `json:"relative_path"`
	Size                int64     `json:"size"`
	MD5                 string    `json:"md5"`
	SHA256              string    `json:"sha256"`
	ModTime             time.Time `json:"mtime"`
	CompressionSuitable bool      `json:"compression_suitable"`
}

// Compute hashes the file at path in a single pass and fills in the
// compressibility verdict from the estimator.
func Compute(path, relativePath string, est *Estimator) (*Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	md5Hash := md5.New() //nolint:gosec // see import note
	shaHash := sha256.New()
	if _, err := io.Copy(io.MultiWriter(md5Hash, shaHash), f); err != nil {
		return nil, fmt.Errorf("hash %s: %w", path, err)
	}

	suitable, err := est.Suitable(path, info.Size())
	if err != nil {
		return nil, err
	}

	return &Fingerprint{
		RelativePath:        relativePath,
		Size:                info.Size(),
		MD5:                 hex.EncodeToString(md5Hash.Sum(nil)),
		SHA256:              hex.EncodeToString(shaHash.Sum(nil)),
		ModTime:             info.ModTime().UTC(),
		CompressionSuitable: suitable,
	}, nil
}

// HashFile returns the hex md5 of a file. Used for the archive integrity
// sidecar.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	h := md5.New() //nolint:gosec // see import note
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
