// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/config"
	"github.com/tomtom215/runvault/internal/container"
)

func testValidateConfig() config.ValidateConfig {
	return config.ValidateConfig{
		MaxArchiveSize: 10 << 20,
		MaxDepth:       5,
		AllowedExtensions: []string{
			".md", ".json", ".yaml", ".txt", ".log", ".pth", ".png",
		},
	}
}

func metadataJSON(t *testing.T, mutate func(*archive.Metadata)) []byte {
	t.Helper()
	m := &archive.Metadata{
		SchemaVersion: archive.SchemaVersion,
		SessionID:     "s1",
		SessionNumber: 1,
		Timestamp:     time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC),
		ModelType:     "dqn",
		AgentType:     "pacman",
		TotalEpisodes: 1000,
		WinRate:       0.5,
	}
	if mutate != nil {
		mutate(m)
	}
	data, err := archive.MarshalMetadata(m)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func buildArchive(t *testing.T, dir string, entries []container.Entry) string {
	t.Helper()
	target := filepath.Join(dir, "pacman_run_001_20260314_0926_dqn_pacman.zip")
	if _, err := container.Build(context.Background(), target, entries); err != nil {
		t.Fatalf("Build: %v", err)
	}
	return target
}

func defaultEntries(t *testing.T) []container.Entry {
	return []container.Entry{
		{Name: archive.EntryParams, Data: []byte("# Session 1\n")},
		{Name: archive.EntryMetadata, Data: metadataJSON(t, nil)},
		{Name: archive.EntryConfig, Data: []byte("learning_rate: 0.001\n")},
		{Name: "model/weights.pth", Data: []byte("weights")},
		{Name: "logs/train.log", Data: []byte("episode 1\n")},
	}
}

func TestValidateHealthyArchive(t *testing.T) {
	dir := t.TempDir()
	path := buildArchive(t, dir, defaultEntries(t))
	v := New(testValidateConfig(), filepath.Join(dir, "quarantine"))

	result := v.Validate(context.Background(), path, Checks{})

	if !result.IsValid {
		t.Fatalf("expected valid, errors: %v", result.Errors)
	}
	if len(result.ChecksPerformed) != 3 {
		t.Errorf("checks = %v, want all three", result.ChecksPerformed)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", result.Warnings)
	}
	if result.Statistics["file_count"] != 5 {
		t.Errorf("file_count = %v", result.Statistics["file_count"])
	}
	if result.Statistics["files_model"] != 1 || result.Statistics["files_logs"] != 1 {
		t.Errorf("classification stats = %v", result.Statistics)
	}
}

func TestValidateShortCircuitsOnCorruption(t *testing.T) {
	dir := t.TempDir()
	path := buildArchive(t, dir, defaultEntries(t))

	// Flip one byte: the sidecar digest no longer matches.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)/2] ^= 0xff
	if err := os.WriteFile(path, data, 0o640); err != nil {
		t.Fatal(err)
	}

	v := New(testValidateConfig(), filepath.Join(dir, "quarantine"))
	result := v.Validate(context.Background(), path, Checks{})

	if result.IsValid {
		t.Fatal("bit-flipped archive must fail validation")
	}
	if len(result.ChecksPerformed) != 1 || result.ChecksPerformed[0] != "integrity_check" {
		t.Errorf("expected short-circuit after integrity, got %v", result.ChecksPerformed)
	}
}

func TestValidateMissingSidecarIsWarning(t *testing.T) {
	dir := t.TempDir()
	path := buildArchive(t, dir, defaultEntries(t))
	if err := os.Remove(archive.SidecarPath(path)); err != nil {
		t.Fatal(err)
	}

	v := New(testValidateConfig(), filepath.Join(dir, "quarantine"))
	result := v.Validate(context.Background(), path, Checks{})

	if !result.IsValid {
		t.Fatalf("missing sidecar must not fail validation: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning about the missing sidecar")
	}
}

func TestValidateStructureFailures(t *testing.T) {
	dir := t.TempDir()
	v := New(testValidateConfig(), filepath.Join(dir, "quarantine"))

	t.Run("missing required entries", func(t *testing.T) {
		path := buildArchive(t, filepath.Join(dir, "a"), []container.Entry{
			{Name: archive.EntryMetadata, Data: metadataJSON(t, nil)},
		})
		result := v.Validate(context.Background(), path, Checks{})
		if result.IsValid {
			t.Error("archive without params.md/config.yaml must fail")
		}
	})

	t.Run("disallowed extension", func(t *testing.T) {
		entries := append(defaultEntries(t), container.Entry{Name: "model/payload.exe", Data: []byte("x")})
		path := buildArchive(t, filepath.Join(dir, "b"), entries)
		result := v.Validate(context.Background(), path, Checks{})
		if result.IsValid {
			t.Error("disallowed extension must fail structure check")
		}
	})

	t.Run("deep nesting warns only", func(t *testing.T) {
		entries := append(defaultEntries(t),
			container.Entry{Name: "logs/a/b/c/d/e/f/deep.log", Data: []byte("x")})
		path := buildArchive(t, filepath.Join(dir, "c"), entries)
		result := v.Validate(context.Background(), path, Checks{})
		if !result.IsValid {
			t.Errorf("deep nesting must not fail: %v", result.Errors)
		}
		if len(result.Warnings) == 0 {
			t.Error("expected nesting warning")
		}
	})
}

func TestValidateContentAnomalies(t *testing.T) {
	dir := t.TempDir()
	v := New(testValidateConfig(), filepath.Join(dir, "quarantine"))

	t.Run("malformed metadata", func(t *testing.T) {
		entries := []container.Entry{
			{Name: archive.EntryParams, Data: []byte("# x\n")},
			{Name: archive.EntryMetadata, Data: []byte(`{"session_id": `)},
			{Name: archive.EntryConfig, Data: []byte("a: 1\n")},
		}
		path := buildArchive(t, filepath.Join(dir, "a"), entries)
		result := v.Validate(context.Background(), path, Checks{})
		if result.IsValid {
			t.Error("malformed metadata.json must fail content check")
		}
	})

	t.Run("zero episodes with win rate warns", func(t *testing.T) {
		entries := []container.Entry{
			{Name: archive.EntryParams, Data: []byte("# x\n")},
			{Name: archive.EntryMetadata, Data: metadataJSON(t, func(m *archive.Metadata) {
				m.TotalEpisodes = 0
				m.WinRate = 0.9
			})},
			{Name: archive.EntryConfig, Data: []byte("a: 1\n")},
		}
		path := buildArchive(t, filepath.Join(dir, "b"), entries)
		result := v.Validate(context.Background(), path, Checks{})
		if !result.IsValid {
			t.Errorf("plausibility anomaly must warn, not fail: %v", result.Errors)
		}
		if len(result.Warnings) == 0 {
			t.Error("expected anomaly warning")
		}
	})
}

func TestValidateMissingArchive(t *testing.T) {
	v := New(testValidateConfig(), t.TempDir())
	result := v.Validate(context.Background(), "/nonexistent/a.zip", Checks{})
	if result.IsValid {
		t.Error("missing archive must be invalid")
	}
	if len(result.ChecksPerformed) != 0 {
		t.Errorf("no checks should run on a missing archive, got %v", result.ChecksPerformed)
	}
}

func TestQuarantineMovesNotDeletes(t *testing.T) {
	dir := t.TempDir()
	path := buildArchive(t, dir, defaultEntries(t))
	quarantineDir := filepath.Join(dir, "quarantine")
	v := New(testValidateConfig(), quarantineDir)

	result := v.Validate(context.Background(), path, Checks{})
	result.IsValid = false
	result.Errors = append(result.Errors, "forced for test")

	dest, err := v.Quarantine(result)
	if err != nil {
		t.Fatalf("Quarantine: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("original archive path should be vacated")
	}
	if _, err := os.Stat(dest); err != nil {
		t.Errorf("quarantined archive missing: %v", err)
	}
	if _, err := os.Stat(archive.SidecarPath(dest)); err != nil {
		t.Errorf("sidecar should follow the archive: %v", err)
	}

	reportData, err := os.ReadFile(dest + ".report.json")
	if err != nil {
		t.Fatalf("report missing: %v", err)
	}
	var report Result
	if err := json.Unmarshal(reportData, &report); err != nil {
		t.Fatalf("report not valid JSON: %v", err)
	}
	if report.IsValid {
		t.Error("report must record the failure")
	}
}
