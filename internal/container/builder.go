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

	"github.com/google/uuid"
	"github.com/klauspost/compress/flate"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/fingerprint"
)

// Entry is one file to place into a container. Data takes precedence over
// SourcePath when both are set; generated entries (params.md, metadata.json)
// come from memory, collected model and log files from disk.
type Entry struct {
	// Name is the zip-internal path, always forward-slashed.
	Name string

	// Data is the entry body for in-memory entries.
	Data []byte

	// SourcePath is the on-disk file to copy for file-backed entries.
	SourcePath string

	// Store disables deflate for this entry (already-compressed content).
	Store bool
}

// BuildResult reports a published container.
type BuildResult struct {
	ArchivePath string
	SidecarPath string
	Digest      string
	Size        int64
	EntryCount  int
}

// Build stages a container next to targetPath, writes every entry, computes
// the md5 digest and sidecar, then publishes both by rename. On any failure
// the staged files are removed and targetPath is left untouched.
func Build(ctx context.Context, targetPath string, entries []Entry) (*BuildResult, error) {
	if _, err := os.Stat(targetPath); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", archive.ErrConflict, targetPath)
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0o750); err != nil {
		return nil, fmt.Errorf("%w: create archive dir: %v", archive.ErrIO, err)
	}

	// Stage in the same directory so the final rename cannot cross
	// filesystems.
	stagePath := targetPath + ".stage-" + uuid.NewString()[:8]
	if err := writeZip(ctx, stagePath, entries); err != nil {
		_ = os.Remove(stagePath)
		return nil, err
	}

	digest, err := fingerprint.HashFile(stagePath)
	if err != nil {
		_ = os.Remove(stagePath)
		return nil, fmt.Errorf("%w: digest staged container: %v", archive.ErrIO, err)
	}

	sidecarPath := archive.SidecarPath(targetPath)
	sidecarBody := archive.FormatSidecar(digest, filepath.Base(targetPath))
	stageSidecar := stagePath + archive.SidecarSuffix
	if err := os.WriteFile(stageSidecar, []byte(sidecarBody), 0o640); err != nil {
		_ = os.Remove(stagePath)
		return nil, fmt.Errorf("%w: write sidecar: %v", archive.ErrIO, err)
	}

	info, err := os.Stat(stagePath)
	if err != nil {
		_ = os.Remove(stagePath)
		_ = os.Remove(stageSidecar)
		return nil, fmt.Errorf("%w: stat staged container: %v", archive.ErrIO, err)
	}

	// Publish: container first, then its sidecar.
	if err := os.Rename(stagePath, targetPath); err != nil {
		_ = os.Remove(stagePath)
		_ = os.Remove(stageSidecar)
		return nil, fmt.Errorf("%w: publish container: %v", archive.ErrIO, err)
	}
	if err := os.Rename(stageSidecar, sidecarPath); err != nil {
		_ = os.Remove(stageSidecar)
		return nil, fmt.Errorf("%w: publish sidecar: %v", archive.ErrIO, err)
	}

	return &BuildResult{
		ArchivePath: targetPath,
		SidecarPath: sidecarPath,
		Digest:      digest,
		Size:        info.Size(),
		EntryCount:  len(entries),
	}, nil
}

// writeZip writes all entries into a zip file at path, honoring context
// cancellation between entries.
func writeZip(ctx context.Context, path string, entries []Entry) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return fmt.Errorf("%w: create staged container: %v", archive.ErrIO, err)
	}

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			_ = zw.Close()
			_ = f.Close()
			return fmt.Errorf("container build canceled: %w", err)
		}
		if err := writeEntry(zw, entry); err != nil {
			_ = zw.Close()
			_ = f.Close()
			return err
		}
	}

	if err := zw.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("%w: finalize container: %v", archive.ErrIO, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close container: %v", archive.ErrIO, err)
	}
	return nil
}

func writeEntry(zw *zip.Writer, entry Entry) error {
	name := strings.TrimPrefix(filepath.ToSlash(entry.Name), "/")
	if name == "" {
		return fmt.Errorf("%w: entry with empty name", archive.ErrStructure)
	}

	method := zip.Deflate
	if entry.Store {
		method = zip.Store
	}
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: method})
	if err != nil {
		return fmt.Errorf("%w: create entry %s: %v", archive.ErrIO, name, err)
	}

	if entry.Data != nil {
		if _, err := w.Write(entry.Data); err != nil {
			return fmt.Errorf("%w: write entry %s: %v", archive.ErrIO, name, err)
		}
		return nil
	}

	src, err := os.Open(entry.SourcePath)
	if err != nil {
		return fmt.Errorf("%w: open source for %s: %v", archive.ErrIO, name, err)
	}
	defer src.Close() //nolint:errcheck // read-only handle

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("%w: copy entry %s: %v", archive.ErrIO, name, err)
	}
	return nil
}

// CollectDir walks root and returns file-backed entries placed under
// prefix, preserving the relative layout. Symlinks are skipped.
func CollectDir(root, prefix string) ([]Entry, error) {
	var entries []Entry

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		entries = append(entries, Entry{
			Name:       prefix + filepath.ToSlash(rel),
			SourcePath: path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: collect %s: %v", archive.ErrIO, root, err)
	}
	return entries, nil
}
