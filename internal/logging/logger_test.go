// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"disabled", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		if got := parseLevel(tt.input); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestInitWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: false, Output: &buf})
	defer Init(DefaultConfig())

	Info().Str("archive", "pacman_run_001.zip").Msg("published")

	out := buf.String()
	if !strings.Contains(out, `"archive":"pacman_run_001.zip"`) {
		t.Errorf("expected structured field in output, got %q", out)
	}
	if !strings.Contains(out, `"message":"published"`) {
		t.Errorf("expected message in output, got %q", out)
	}
}

func TestComponentField(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Timestamp: false, Output: &buf})
	defer Init(DefaultConfig())

	regLog := Component("registry")
	regLog.Info().Msg("loaded")

	if !strings.Contains(buf.String(), `"component":"registry"`) {
		t.Errorf("expected component field, got %q", buf.String())
	}
}

func TestSlogHandlerForwardsAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := slog.New(NewSlogHandlerWithLogger(base))
	logger.Info("restore complete", slog.String("session", "abc"), slog.Int("files", 4))

	out := buf.String()
	for _, want := range []string{`"session":"abc"`, `"files":4`, `"message":"restore complete"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %s: %q", want, out)
		}
	}
}

func TestSlogHandlerGroups(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	logger := slog.New(NewSlogHandlerWithLogger(base)).WithGroup("sweep")
	logger.Info("done", slog.Int("removed", 2))

	if !strings.Contains(buf.String(), `"sweep.removed":2`) {
		t.Errorf("expected group-prefixed key, got %q", buf.String())
	}
}
