// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package fingerprint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// compressedExtensions name formats that are already compressed; deflating
// them again wastes CPU for no gain.
var compressedExtensions = []string{
	".zip", ".gz", ".bz2", ".xz", ".7z", ".rar",
	".jpg", ".jpeg", ".png", ".mp3", ".mp4",
}

// textExtensions are treated as text without sampling.
var textExtensions = []string{
	".txt", ".log", ".csv", ".json", ".yaml", ".yml", ".md", ".py", ".js", ".ts",
}

// Estimator decides whether compressing a file is worth the CPU. Thresholds
// come from configuration so the policy can be tuned per deployment.
type Estimator struct {
	// MinSize: files smaller than this are never worth compressing.
	MinSize int64

	// SampleSize is how many leading bytes to inspect.
	SampleSize int

	// EntropyCutoff is the unique-byte ratio above which the sample is
	// considered high-entropy (already compressed or encrypted).
	EntropyCutoff float64
}

// NewEstimator returns an estimator with the given policy. Zero values fall
// back to the conventional 1KB / 4KiB / 0.8 defaults.
func NewEstimator(minSize int64, sampleSize int, entropyCutoff float64) *Estimator {
	if minSize <= 0 {
		minSize = 1024
	}
	if sampleSize <= 0 {
		sampleSize = 4096
	}
	if entropyCutoff <= 0 || entropyCutoff > 1 {
		entropyCutoff = 0.8
	}
	return &Estimator{MinSize: minSize, SampleSize: sampleSize, EntropyCutoff: entropyCutoff}
}

// Suitable reports whether the file would plausibly shrink under deflate.
// Already-compressed extensions and tiny files are rejected without IO; the
// rest are judged by the unique-byte ratio of a leading sample.
func (e *Estimator) Suitable(path string, size int64) (bool, error) {
	lower := strings.ToLower(path)
	for _, ext := range compressedExtensions {
		if strings.HasSuffix(lower, ext) {
			return false, nil
		}
	}

	if size < e.MinSize {
		return false, nil
	}

	ratio, err := e.sampleByteDiversity(path)
	if err != nil {
		return false, err
	}
	return ratio < e.EntropyCutoff, nil
}

// sampleByteDiversity returns unique-bytes / sample-length for the file's
// leading sample. A crude but cheap entropy proxy.
func (e *Estimator) sampleByteDiversity(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	sample := make([]byte, e.SampleSize)
	n, err := f.Read(sample)
	if n == 0 {
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, fmt.Errorf("sample %s: %w", path, err)
		}
		return 0, nil
	}

	var seen [256]bool
	unique := 0
	for _, b := range sample[:n] {
		if !seen[b] {
			seen[b] = true
			unique++
		}
	}
	return float64(unique) / float64(n), nil
}

// IsText reports whether the file looks like text: known text extensions
// short-circuit, otherwise a 1KB sample must contain only ASCII printable
// bytes, newlines and carriage returns.
func IsText(path string) bool {
	lower := strings.ToLower(path)
	for _, ext := range textExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close() //nolint:errcheck // read-only handle

	sample := make([]byte, 1024)
	n, _ := f.Read(sample)
	if n == 0 {
		return false
	}
	for _, b := range sample[:n] {
		if b >= 128 {
			return false
		}
	}
	return true
}
