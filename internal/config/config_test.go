// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := defaultConfig()
	if err := cfg.Check(); err != nil {
		t.Fatalf("default config must pass checks: %v", err)
	}
	if cfg.Registry.WinRateHigh != 0.8 || cfg.Registry.WinRateGood != 0.6 || cfg.Registry.WinRateLow != 0.3 {
		t.Errorf("unexpected win-rate bands: %+v", cfg.Registry)
	}
	if cfg.Optimizer.EntropyCutoff != 0.8 {
		t.Errorf("entropy cutoff = %v, want 0.8", cfg.Optimizer.EntropyCutoff)
	}
	if cfg.Resume.ParamPenalty != 0.1 || cfg.Resume.MetricPenaltyCap != 0.5 {
		t.Errorf("unexpected compatibility penalties: %+v", cfg.Resume)
	}
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  port: 9100
optimizer:
  level: aggressive
registry:
  win_rate_high: 0.9
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9100 {
		t.Errorf("server.port = %d, want 9100 from file", cfg.Server.Port)
	}
	if cfg.Optimizer.Level != "aggressive" {
		t.Errorf("optimizer.level = %q, want aggressive", cfg.Optimizer.Level)
	}
	if cfg.Registry.WinRateHigh != 0.9 {
		t.Errorf("registry.win_rate_high = %v, want 0.9", cfg.Registry.WinRateHigh)
	}
	// Untouched values keep defaults.
	if cfg.Retention.SweepInterval != 1*time.Hour {
		t.Errorf("retention.sweep_interval = %v, want default 1h", cfg.Retention.SweepInterval)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9200")
	t.Setenv("ARCHIVE_DIR", filepath.Join(dir, "archives"))
	t.Setenv("VALIDATE_ALLOWED_EXTENSIONS", ".json, .yaml,.pth")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9200 {
		t.Errorf("server.port = %d, want env override 9200", cfg.Server.Port)
	}
	if cfg.Storage.ArchiveDir != filepath.Join(dir, "archives") {
		t.Errorf("storage.archive_dir = %q", cfg.Storage.ArchiveDir)
	}
	want := []string{".json", ".yaml", ".pth"}
	if len(cfg.Validate.AllowedExtensions) != len(want) {
		t.Fatalf("allowed_extensions = %v, want %v", cfg.Validate.AllowedExtensions, want)
	}
	for i, ext := range want {
		if cfg.Validate.AllowedExtensions[i] != ext {
			t.Errorf("allowed_extensions[%d] = %q, want %q", i, cfg.Validate.AllowedExtensions[i], ext)
		}
	}
}

func TestEnvTransformDropsUnknownKeys(t *testing.T) {
	if got := envTransformFunc("PATH"); got != "" {
		t.Errorf("unknown env var should map to empty path, got %q", got)
	}
	if got := envTransformFunc("HTTP_PORT"); got != "server.port" {
		t.Errorf("HTTP_PORT mapped to %q", got)
	}
}

func TestCheckRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"empty archive dir", func(c *Config) { c.Storage.ArchiveDir = "" }},
		{"quarantine equals archive dir", func(c *Config) { c.Storage.QuarantineDir = c.Storage.ArchiveDir }},
		{"bad optimizer level", func(c *Config) { c.Optimizer.Level = "turbo" }},
		{"entropy cutoff above one", func(c *Config) { c.Optimizer.EntropyCutoff = 1.5 }},
		{"inverted win-rate bands", func(c *Config) { c.Registry.WinRateGood = 0.95 }},
		{"inverted model-size bands", func(c *Config) { c.Registry.SmallModelSize = c.Registry.LargeModelSize + 1 }},
		{"negative keep_best", func(c *Config) { c.Retention.KeepBest = -1 }},
		{"penalty cap above one", func(c *Config) { c.Resume.MetricPenaltyCap = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			if err := cfg.Check(); err == nil {
				t.Error("expected a config error, got nil")
			}
		})
	}
}
