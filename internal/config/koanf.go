// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/runvault/config.yaml",
	"/etc/runvault/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the effective configuration in three layers:
//
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults. The result is validated before it
// is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Check(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, checking the
// CONFIG_PATH env var before the default search paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"validate.allowed_extensions",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML or defaults)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - ARCHIVE_DIR        -> storage.archive_dir
//   - HTTP_PORT          -> server.port
//   - OPTIMIZER_LEVEL    -> optimizer.level
//   - RETENTION_KEEP_BEST -> retention.keep_best
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_enabled":      "server.enabled",
		"http_host":         "server.host",
		"http_port":         "server.port",
		"http_timeout":      "server.timeout",
		"rate_limit_reqs":   "server.rate_limit_reqs",
		"rate_limit_window": "server.rate_limit_window",

		// Storage roots
		"archive_dir":         "storage.archive_dir",
		"quarantine_dir":      "storage.quarantine_dir",
		"restore_dir":         "storage.restore_dir",
		"registry_path":       "storage.registry_path",
		"fingerprint_db_path": "storage.fingerprint_db_path",

		// Archive creation
		"archive_include_model": "archive.include_model",
		"archive_include_logs":  "archive.include_logs",
		"archive_max_archives":  "archive.max_archives",

		// Validation bounds
		"validate_max_archive_size":   "validate.max_archive_size",
		"validate_max_depth":          "validate.max_depth",
		"validate_allowed_extensions": "validate.allowed_extensions",

		// Optimizer
		"optimizer_level":             "optimizer.level",
		"optimizer_min_compress_size": "optimizer.min_compress_size",
		"optimizer_sample_size":       "optimizer.sample_size",
		"optimizer_entropy_cutoff":    "optimizer.entropy_cutoff",

		// Registry classification policy
		"registry_win_rate_high":         "registry.win_rate_high",
		"registry_win_rate_good":         "registry.win_rate_good",
		"registry_win_rate_low":          "registry.win_rate_low",
		"registry_learning_rate_high":    "registry.learning_rate_high",
		"registry_learning_rate_low":     "registry.learning_rate_low",
		"registry_gamma_long_term":       "registry.gamma_long_term",
		"registry_gamma_short_term":      "registry.gamma_short_term",
		"registry_category_best":         "registry.category_best",
		"registry_category_experimental": "registry.category_experimental",
		"registry_large_model_size":      "registry.large_model_size",
		"registry_small_model_size":      "registry.small_model_size",

		// Resume
		"resume_param_penalty":      "resume.param_penalty",
		"resume_metric_penalty_cap": "resume.metric_penalty_cap",
		"resume_verify_checksum":    "resume.verify_checksum",

		// Retention sweeper
		"retention_enabled":        "retention.enabled",
		"retention_sweep_interval": "retention.sweep_interval",
		"retention_max_age_days":   "retention.max_age_days",
		"retention_keep_best":      "retention.keep_best",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown variables are dropped rather than guessed into paths.
	return ""
}
