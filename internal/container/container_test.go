// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package container

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/runvault/internal/archive"
)

func buildTestContainer(t *testing.T, dir string) *BuildResult {
	t.Helper()

	modelDir := filepath.Join(dir, "model_src")
	if err := os.MkdirAll(modelDir, 0o750); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(modelDir, "weights.pth"), []byte("weights-bytes"), 0o600); err != nil {
		t.Fatal(err)
	}

	modelEntries, err := CollectDir(modelDir, archive.PrefixModel)
	if err != nil {
		t.Fatal(err)
	}

	entries := append([]Entry{
		{Name: archive.EntryParams, Data: []byte("# Session 1\n")},
		{Name: archive.EntryMetadata, Data: []byte(`{"schema_version":1,"session_id":"s1","timestamp":"2026-03-14T09:26:00Z","model_type":"dqn"}`)},
		{Name: archive.EntryConfig, Data: []byte("learning_rate: 0.001\n")},
	}, modelEntries...)

	target := filepath.Join(dir, "pacman_run_001_20260314_0926_dqn_pacman.zip")
	result, err := Build(context.Background(), target, entries)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return result
}

func TestBuildAndRead(t *testing.T) {
	dir := t.TempDir()
	result := buildTestContainer(t, dir)

	if result.EntryCount != 4 {
		t.Errorf("entry count = %d, want 4", result.EntryCount)
	}
	if len(result.Digest) != 32 {
		t.Errorf("digest = %q, want 32 hex chars", result.Digest)
	}

	// Sidecar published alongside, md5sum format.
	body, err := os.ReadFile(result.SidecarPath)
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	digest, name, err := archive.ParseSidecar(string(body))
	if err != nil {
		t.Fatal(err)
	}
	if digest != result.Digest || name != filepath.Base(result.ArchivePath) {
		t.Errorf("sidecar = %q/%q", digest, name)
	}

	r, err := Open(result.ArchivePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close() //nolint:errcheck

	if !r.Has(archive.EntryMetadata) || !r.Has("model/weights.pth") {
		t.Errorf("entries = %v", r.Entries())
	}

	meta, err := r.Metadata()
	if err != nil {
		t.Fatalf("Metadata: %v", err)
	}
	if meta.SessionID != "s1" {
		t.Errorf("session_id = %q", meta.SessionID)
	}

	data, err := r.ReadEntry("model/weights.pth")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "weights-bytes" {
		t.Errorf("model entry = %q", data)
	}
}

func TestBuildRefusesExistingTarget(t *testing.T) {
	dir := t.TempDir()
	result := buildTestContainer(t, dir)

	_, err := Build(context.Background(), result.ArchivePath, []Entry{{Name: "x", Data: []byte("y")}})
	if !errors.Is(err, archive.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestBuildFailureLeavesNoTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "broken.zip")

	_, err := Build(context.Background(), target, []Entry{
		{Name: "ok", Data: []byte("fine")},
		{Name: "missing", SourcePath: filepath.Join(dir, "does-not-exist")},
	})
	if err == nil {
		t.Fatal("expected build failure")
	}

	if _, statErr := os.Stat(target); !os.IsNotExist(statErr) {
		t.Error("failed build must not leave a published container")
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "*.stage-*"))
	if len(leftovers) != 0 {
		t.Errorf("staged files left behind: %v", leftovers)
	}
}

func TestBuildHonorsCancellation(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, filepath.Join(dir, "c.zip"), []Entry{{Name: "x", Data: []byte("y")}})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestExtractAll(t *testing.T) {
	dir := t.TempDir()
	result := buildTestContainer(t, dir)

	r, err := Open(result.ArchivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close() //nolint:errcheck

	dest := filepath.Join(dir, "restored")
	n, err := r.ExtractAll(context.Background(), dest)
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if n != 4 {
		t.Errorf("extracted = %d, want 4", n)
	}

	data, err := os.ReadFile(filepath.Join(dest, "model", "weights.pth"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "weights-bytes" {
		t.Errorf("restored model = %q", data)
	}
}

func TestExtractFiltered(t *testing.T) {
	dir := t.TempDir()
	result := buildTestContainer(t, dir)

	r, err := Open(result.ArchivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close() //nolint:errcheck

	dest := filepath.Join(dir, "partial")
	n, err := r.Extract(context.Background(), dest, func(name string) bool {
		return strings.HasPrefix(name, archive.PrefixModel)
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("extracted = %d, want 1", n)
	}
	if _, err := os.Stat(filepath.Join(dest, archive.EntryMetadata)); !os.IsNotExist(err) {
		t.Error("filtered extraction must skip metadata.json")
	}
}

func TestSafeJoinRejectsTraversal(t *testing.T) {
	if _, err := safeJoin("/tmp/dest", "../../etc/passwd"); !errors.Is(err, archive.ErrStructure) {
		t.Errorf("expected ErrStructure, got %v", err)
	}
	if _, err := safeJoin("/tmp/dest", "model/weights.pth"); err != nil {
		t.Errorf("legitimate path rejected: %v", err)
	}
}

func TestVerifySidecar(t *testing.T) {
	dir := t.TempDir()
	result := buildTestContainer(t, dir)

	found, err := VerifySidecar(result.ArchivePath)
	if err != nil {
		t.Fatalf("VerifySidecar: %v", err)
	}
	if !found {
		t.Fatal("sidecar should be present")
	}

	// Flip one byte in the container body: digest must mismatch.
	data, err := os.ReadFile(result.ArchivePath)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)/2] ^= 0xff
	if err := os.WriteFile(result.ArchivePath, data, 0o640); err != nil {
		t.Fatal(err)
	}

	_, err = VerifySidecar(result.ArchivePath)
	if !errors.Is(err, archive.ErrIntegrity) {
		t.Errorf("expected ErrIntegrity after bit flip, got %v", err)
	}

	// Absent sidecar is not an error.
	if err := os.Remove(result.SidecarPath); err != nil {
		t.Fatal(err)
	}
	found, err = VerifySidecar(result.ArchivePath)
	if err != nil {
		t.Fatalf("absent sidecar must not error: %v", err)
	}
	if found {
		t.Error("sidecar should be reported absent")
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.zip"))
	if !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenCorrupt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.zip")
	if err := os.WriteFile(path, []byte("not a zip"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := Open(path)
	if !errors.Is(err, archive.ErrIntegrity) {
		t.Errorf("expected ErrIntegrity, got %v", err)
	}
}
