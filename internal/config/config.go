// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

/*
config.go - Runvault Configuration Model

Defines the complete configuration surface of the archive engine. Every
policy threshold that drives automatic tagging, categorization,
compressibility estimation and session compatibility scoring lives here
rather than as a hard-coded constant, so operators can tune classification
behavior without a rebuild.

Layering (lowest to highest precedence): struct defaults, YAML config file,
environment variables.
*/

package config

import "time"

// Config is the root configuration for the Runvault daemon and libraries.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Validate  ValidateConfig  `koanf:"validate"`
	Optimizer OptimizerConfig `koanf:"optimizer"`
	Registry  RegistryConfig  `koanf:"registry"`
	Resume    ResumeConfig    `koanf:"resume"`
	Retention RetentionConfig `koanf:"retention"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Timeout         time.Duration `koanf:"timeout"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// StorageConfig locates every on-disk root the engine writes to.
type StorageConfig struct {
	// ArchiveDir holds published containers and their digest sidecars.
	ArchiveDir string `koanf:"archive_dir"`

	// QuarantineDir receives containers that fail validation. Moved, never
	// deleted.
	QuarantineDir string `koanf:"quarantine_dir"`

	// RestoreDir is the base directory session restores materialize under.
	RestoreDir string `koanf:"restore_dir"`

	// RegistryPath is the single JSON document backing the version registry.
	RegistryPath string `koanf:"registry_path"`

	// FingerprintDBPath is the Badger database caching file fingerprints
	// across optimization runs.
	FingerprintDBPath string `koanf:"fingerprint_db_path"`
}

// ArchiveConfig controls container creation.
type ArchiveConfig struct {
	IncludeModel bool `koanf:"include_model"`
	IncludeLogs  bool `koanf:"include_logs"`

	// MaxArchives bounds how many containers the archive directory keeps;
	// oldest are removed first once exceeded. 0 disables the bound.
	MaxArchives int `koanf:"max_archives"`
}

// ValidateConfig bounds what the structure phase of validation accepts.
type ValidateConfig struct {
	// MaxArchiveSize is the largest container the validator accepts, in bytes.
	MaxArchiveSize int64 `koanf:"max_archive_size"`

	// MaxDepth flags (never fails) entries nested deeper than this.
	MaxDepth int `koanf:"max_depth"`

	// AllowedExtensions is the entry extension allow-list. Empty disables
	// the check.
	AllowedExtensions []string `koanf:"allowed_extensions"`
}

// OptimizerConfig tunes the compression optimizer.
type OptimizerConfig struct {
	// Level is the default optimization policy: minimal, balanced, aggressive.
	Level string `koanf:"level"`

	// MinCompressSize skips compression-suitability analysis for files
	// smaller than this many bytes.
	MinCompressSize int64 `koanf:"min_compress_size"`

	// SampleSize is how many leading bytes feed the byte-diversity estimate.
	SampleSize int `koanf:"sample_size"`

	// EntropyCutoff is the unique-byte-ratio above which a sample is
	// considered already high-entropy and not worth compressing.
	EntropyCutoff float64 `koanf:"entropy_cutoff"`
}

// RegistryConfig carries the classification policy for automatic tags and
// categories. The bands are deliberately configuration, not constants.
type RegistryConfig struct {
	// Win-rate tag bands.
	WinRateHigh float64 `koanf:"win_rate_high"` // > assigns high_performance
	WinRateGood float64 `koanf:"win_rate_good"` // > assigns good_performance
	WinRateLow  float64 `koanf:"win_rate_low"`  // < assigns low_performance

	// Hyperparameter tag bands.
	LearningRateHigh float64 `koanf:"learning_rate_high"`
	LearningRateLow  float64 `koanf:"learning_rate_low"`
	GammaLongTerm    float64 `koanf:"gamma_long_term"`
	GammaShortTerm   float64 `koanf:"gamma_short_term"`

	// Category bands on win rate.
	CategoryBest         float64 `koanf:"category_best"`         // > best
	CategoryExperimental float64 `koanf:"category_experimental"` // < experimental

	// Model-size category bands, in bytes.
	LargeModelSize int64 `koanf:"large_model_size"`
	SmallModelSize int64 `koanf:"small_model_size"`
}

// ResumeConfig tunes session resumption and comparison.
type ResumeConfig struct {
	// ParamPenalty is the compatibility-score penalty per differing
	// hyperparameter.
	ParamPenalty float64 `koanf:"param_penalty"`

	// MetricPenaltyCap bounds the per-metric penalty contribution.
	MetricPenaltyCap float64 `koanf:"metric_penalty_cap"`

	// VerifyChecksum recomputes the container digest before restoring.
	VerifyChecksum bool `koanf:"verify_checksum"`
}

// RetentionConfig drives the background retention sweeper.
type RetentionConfig struct {
	Enabled bool `koanf:"enabled"`

	// SweepInterval is how often the sweeper scans the archive directory.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// MaxAgeDays removes archives older than this many days. 0 disables
	// age-based cleanup.
	MaxAgeDays int `koanf:"max_age_days"`

	// KeepBest protects the top-N archives by win rate from cleanup.
	KeepBest int `koanf:"keep_best"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all default values. These are applied
// first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enabled:         true,
			Host:            "0.0.0.0",
			Port:            8490,
			Timeout:         30 * time.Second,
			RateLimitReqs:   100,
			RateLimitWindow: 1 * time.Minute,
		},
		Storage: StorageConfig{
			ArchiveDir:        "/data/archives",
			QuarantineDir:     "/data/quarantine",
			RestoreDir:        "/data/restored",
			RegistryPath:      "/data/registry.json",
			FingerprintDBPath: "/data/fingerprints",
		},
		Archive: ArchiveConfig{
			IncludeModel: true,
			IncludeLogs:  true,
			MaxArchives:  50,
		},
		Validate: ValidateConfig{
			MaxArchiveSize: 500 << 20, // 500MB
			MaxDepth:       5,
			AllowedExtensions: []string{
				".md", ".json", ".yaml", ".yml", ".txt", ".log", ".csv",
				".pth", ".pt", ".h5", ".pkl", ".npz", ".npy", ".ckpt",
				".png", ".jpg", ".svg",
			},
		},
		Optimizer: OptimizerConfig{
			Level:           "balanced",
			MinCompressSize: 1024, // 1KB
			SampleSize:      4096,
			EntropyCutoff:   0.8,
		},
		Registry: RegistryConfig{
			WinRateHigh:          0.8,
			WinRateGood:          0.6,
			WinRateLow:           0.3,
			LearningRateHigh:     0.01,
			LearningRateLow:      0.0001,
			GammaLongTerm:        0.99,
			GammaShortTerm:       0.9,
			CategoryBest:         0.7,
			CategoryExperimental: 0.4,
			LargeModelSize:       100 << 20, // 100MB
			SmallModelSize:       10 << 20,  // 10MB
		},
		Resume: ResumeConfig{
			ParamPenalty:     0.1,
			MetricPenaltyCap: 0.5,
			VerifyChecksum:   true,
		},
		Retention: RetentionConfig{
			Enabled:       true,
			SweepInterval: 1 * time.Hour,
			MaxAgeDays:    0, // Count-based cleanup only unless set
			KeepBest:      5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
