// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package container

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/fingerprint"
)

// Reader provides read access to a published container.
type Reader struct {
	path string
	zr   *zip.ReadCloser
}

// Open opens a container for reading. A missing file maps to ErrNotFound,
// an unopenable one to ErrIntegrity.
func Open(path string) (*Reader, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", archive.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", archive.ErrIO, path, err)
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", archive.ErrIntegrity, path, err)
	}
	return &Reader{path: path, zr: zr}, nil
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.zr.Close()
}

// Path returns the container's on-disk path.
func (r *Reader) Path() string {
	return r.path
}

// Entries lists the zip-internal entry names in archive order.
func (r *Reader) Entries() []string {
	names := make([]string, 0, len(r.zr.File))
	for _, f := range r.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// Has reports whether the container holds the named entry.
func (r *Reader) Has(name string) bool {
	for _, f := range r.zr.File {
		if f.Name == name {
			return true
		}
	}
	return false
}

// ReadEntry returns the full body of one entry.
func (r *Reader) ReadEntry(name string) ([]byte, error) {
	for _, f := range r.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open entry %s: %v", archive.ErrIntegrity, name, err)
		}
		defer rc.Close() //nolint:errcheck // read-only handle

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: read entry %s: %v", archive.ErrIntegrity, name, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%w: entry %s", archive.ErrNotFound, name)
}

// Metadata reads and validates the container's metadata.json.
func (r *Reader) Metadata() (*archive.Metadata, error) {
	data, err := r.ReadEntry(archive.EntryMetadata)
	if err != nil {
		return nil, err
	}
	return archive.UnmarshalMetadata(data)
}

// ExtractAll materializes every entry under destDir, honoring context
// cancellation between entries. Entry names that would escape destDir are
// rejected rather than sanitized.
func (r *Reader) ExtractAll(ctx context.Context, destDir string) (int, error) {
	return r.extract(ctx, destDir, nil)
}

// Extract materializes only entries matching the keep predicate.
func (r *Reader) Extract(ctx context.Context, destDir string, keep func(name string) bool) (int, error) {
	return r.extract(ctx, destDir, keep)
}

func (r *Reader) extract(ctx context.Context, destDir string, keep func(string) bool) (int, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", archive.ErrIO, destDir, err)
	}

	extracted := 0
	for _, f := range r.zr.File {
		if err := ctx.Err(); err != nil {
			return extracted, fmt.Errorf("extraction canceled: %w", err)
		}
		if f.FileInfo().IsDir() {
			continue
		}
		if keep != nil && !keep(f.Name) {
			continue
		}

		dest, err := safeJoin(destDir, f.Name)
		if err != nil {
			return extracted, err
		}
		if err := extractFile(f, dest); err != nil {
			return extracted, err
		}
		extracted++
	}
	return extracted, nil
}

// safeJoin joins an entry name onto destDir, rejecting traversal.
func safeJoin(destDir, name string) (string, error) {
	dest := filepath.Join(destDir, filepath.FromSlash(name))
	cleanRoot := filepath.Clean(destDir) + string(os.PathSeparator)
	if !strings.HasPrefix(dest, cleanRoot) {
		return "", fmt.Errorf("%w: entry %q escapes destination", archive.ErrStructure, name)
	}
	return dest, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("%w: create %s: %v", archive.ErrIO, filepath.Dir(dest), err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open entry %s: %v", archive.ErrIntegrity, f.Name, err)
	}
	defer rc.Close() //nolint:errcheck // read-only handle

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", archive.ErrIO, dest, err)
	}

	if _, err := io.Copy(out, rc); err != nil { //nolint:gosec // sizes bounded by validation limits
		_ = out.Close()
		return fmt.Errorf("%w: extract %s: %v", archive.ErrIO, f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", archive.ErrIO, dest, err)
	}

	// Preserve the entry mtime so fingerprint caching keyed on (path,
	// size, mtime) stays stable across repeated extractions.
	if !f.Modified.IsZero() {
		_ = os.Chtimes(dest, f.Modified, f.Modified)
	}
	return nil
}

// VerifySidecar recomputes the container digest and compares it against the
// sidecar. sidecarFound=false with a nil error means the sidecar is absent,
// which callers report as a warning rather than a failure.
func VerifySidecar(archivePath string) (sidecarFound bool, err error) {
	body, err := os.ReadFile(archive.SidecarPath(archivePath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read sidecar: %v", archive.ErrIO, err)
	}

	want, _, err := archive.ParseSidecar(string(body))
	if err != nil {
		return true, err
	}

	got, err := fingerprint.HashFile(archivePath)
	if err != nil {
		return true, fmt.Errorf("%w: digest %s: %v", archive.ErrIO, archivePath, err)
	}
	if got != want {
		return true, fmt.Errorf("%w: digest mismatch for %s: sidecar %s, computed %s",
			archive.ErrIntegrity, filepath.Base(archivePath), want, got)
	}
	return true, nil
}
