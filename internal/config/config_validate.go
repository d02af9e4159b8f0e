// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package config

import "fmt"

// Check inspects the configuration for values that would make the engine
// misbehave at runtime. It fails fast on the first violation.
func (c *Config) Check() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateValidate(); err != nil {
		return err
	}
	if err := c.validateOptimizer(); err != nil {
		return err
	}
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateResume(); err != nil {
		return err
	}
	return c.validateRetention()
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %v", c.Server.Timeout)
	}
	return nil
}

func (c *Config) validateStorage() error {
	if c.Storage.ArchiveDir == "" {
		return fmt.Errorf("storage.archive_dir is required")
	}
	if c.Storage.QuarantineDir == "" {
		return fmt.Errorf("storage.quarantine_dir is required")
	}
	if c.Storage.RegistryPath == "" {
		return fmt.Errorf("storage.registry_path is required")
	}
	if c.Storage.QuarantineDir == c.Storage.ArchiveDir {
		return fmt.Errorf("storage.quarantine_dir must differ from storage.archive_dir")
	}
	return nil
}

func (c *Config) validateValidate() error {
	if c.Validate.MaxArchiveSize <= 0 {
		return fmt.Errorf("validate.max_archive_size must be positive, got %d", c.Validate.MaxArchiveSize)
	}
	if c.Validate.MaxDepth < 1 {
		return fmt.Errorf("validate.max_depth must be at least 1, got %d", c.Validate.MaxDepth)
	}
	return nil
}

func (c *Config) validateOptimizer() error {
	switch c.Optimizer.Level {
	case "minimal", "balanced", "aggressive":
	default:
		return fmt.Errorf("optimizer.level must be minimal, balanced or aggressive, got %q", c.Optimizer.Level)
	}
	if c.Optimizer.EntropyCutoff <= 0 || c.Optimizer.EntropyCutoff > 1 {
		return fmt.Errorf("optimizer.entropy_cutoff must be in (0, 1], got %v", c.Optimizer.EntropyCutoff)
	}
	if c.Optimizer.SampleSize < 1 {
		return fmt.Errorf("optimizer.sample_size must be positive, got %d", c.Optimizer.SampleSize)
	}
	return nil
}

func (c *Config) validateRegistry() error {
	r := c.Registry
	for _, band := range []struct {
		name string
		val  float64
	}{
		{"registry.win_rate_high", r.WinRateHigh},
		{"registry.win_rate_good", r.WinRateGood},
		{"registry.win_rate_low", r.WinRateLow},
		{"registry.category_best", r.CategoryBest},
		{"registry.category_experimental", r.CategoryExperimental},
	} {
		if band.val < 0 || band.val > 1 {
			return fmt.Errorf("%s must be in [0, 1], got %v", band.name, band.val)
		}
	}
	if r.WinRateGood > r.WinRateHigh {
		return fmt.Errorf("registry.win_rate_good (%v) must not exceed registry.win_rate_high (%v)",
			r.WinRateGood, r.WinRateHigh)
	}
	if r.CategoryExperimental > r.CategoryBest {
		return fmt.Errorf("registry.category_experimental (%v) must not exceed registry.category_best (%v)",
			r.CategoryExperimental, r.CategoryBest)
	}
	if r.SmallModelSize > r.LargeModelSize {
		return fmt.Errorf("registry.small_model_size (%d) must not exceed registry.large_model_size (%d)",
			r.SmallModelSize, r.LargeModelSize)
	}
	return nil
}

func (c *Config) validateResume() error {
	if c.Resume.ParamPenalty < 0 {
		return fmt.Errorf("resume.param_penalty must be non-negative, got %v", c.Resume.ParamPenalty)
	}
	if c.Resume.MetricPenaltyCap < 0 || c.Resume.MetricPenaltyCap > 1 {
		return fmt.Errorf("resume.metric_penalty_cap must be in [0, 1], got %v", c.Resume.MetricPenaltyCap)
	}
	return nil
}

func (c *Config) validateRetention() error {
	if !c.Retention.Enabled {
		return nil
	}
	if c.Retention.SweepInterval <= 0 {
		return fmt.Errorf("retention.sweep_interval must be positive, got %v", c.Retention.SweepInterval)
	}
	if c.Retention.KeepBest < 0 {
		return fmt.Errorf("retention.keep_best must be non-negative, got %d", c.Retention.KeepBest)
	}
	if c.Retention.MaxAgeDays < 0 {
		return fmt.Errorf("retention.max_age_days must be non-negative, got %d", c.Retention.MaxAgeDays)
	}
	return nil
}
