// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package archive

import (
	"testing"
	"time"
)

func TestFilename(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session uint64
		model   string
		agent   string
		want    string
	}{
		{"basic", 7, "dqn", "pacman", "pacman_run_007_20260314_0926_dqn_pacman.zip"},
		{"truncated", 123, "convolutional", "reinforcement", "pacman_run_123_20260314_0926_convolutio_reinforcem.zip"},
		{"spaces", 1, "deep q", "pac man", "pacman_run_001_20260314_0926_deep_q_pac_man.zip"},
		{"hostile chars", 2, "dqn/..", "agent", "pacman_run_002_20260314_0926_dqn_agent.zip"},
		{"empty token", 3, "", "agent", "pacman_run_003_20260314_0926_unknown_agent.zip"},
		{"wide counter", 1234, "dqn", "pacman", "pacman_run_1234_20260314_0926_dqn_pacman.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filename(tt.session, ts, tt.model, tt.agent)
			if got != tt.want {
				t.Errorf("Filename() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFilename(t *testing.T) {
	info, ok := ParseFilename("pacman_run_007_20260314_0926_dqn_pacman.zip")
	if !ok {
		t.Fatal("expected parse to succeed")
	}
	if info.SessionNumber != 7 {
		t.Errorf("session = %d, want 7", info.SessionNumber)
	}
	if info.ModelType != "dqn" || info.AgentType != "pacman" {
		t.Errorf("model/agent = %q/%q", info.ModelType, info.AgentType)
	}
	want := time.Date(2026, 3, 14, 9, 26, 0, 0, time.Local)
	if !info.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", info.Timestamp, want)
	}
}

func TestParseFilenameRejects(t *testing.T) {
	for _, name := range []string{
		"run_007_20260314_0926_dqn_pacman.zip",
		"pacman_run_abc_20260314_0926_dqn_pacman.zip",
		"pacman_run_007_2026_0926_dqn_pacman.zip",
		"pacman_run_007_20260314_0926_dqn_pacman.tar",
		"notes.txt",
	} {
		if _, ok := ParseFilename(name); ok {
			t.Errorf("ParseFilename(%q) should fail", name)
		}
	}
}

func TestFilenameParseRoundTrip(t *testing.T) {
	ts := time.Date(2026, 8, 23, 18, 4, 0, 0, time.Local)
	name := Filename(55, ts, "dqn", "pacman")

	info, ok := ParseFilename(name)
	if !ok {
		t.Fatalf("ParseFilename(%q) failed", name)
	}
	if info.SessionNumber != 55 || !info.Timestamp.Equal(ts) {
		t.Errorf("round trip lost fields: %+v", info)
	}
}

func TestSidecar(t *testing.T) {
	body := FormatSidecar("d41d8cd98f00b204e9800998ecf8427e", "pacman_run_001_20260314_0926_dqn_pacman.zip")
	want := "d41d8cd98f00b204e9800998ecf8427e  pacman_run_001_20260314_0926_dqn_pacman.zip\n"
	if body != want {
		t.Errorf("FormatSidecar = %q, want %q", body, want)
	}

	digest, name, err := ParseSidecar(body)
	if err != nil {
		t.Fatalf("ParseSidecar: %v", err)
	}
	if digest != "d41d8cd98f00b204e9800998ecf8427e" {
		t.Errorf("digest = %q", digest)
	}
	if name != "pacman_run_001_20260314_0926_dqn_pacman.zip" {
		t.Errorf("name = %q", name)
	}

	if _, _, err := ParseSidecar("garbage"); err == nil {
		t.Error("expected error for malformed sidecar")
	}
}
