// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package service

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/runvault/internal/config"
	"github.com/tomtom215/runvault/internal/fingerprint"
	"github.com/tomtom215/runvault/internal/logging"
	"github.com/tomtom215/runvault/internal/metrics"
	"github.com/tomtom215/runvault/internal/optimize"
	"github.com/tomtom215/runvault/internal/registry"
	"github.com/tomtom215/runvault/internal/resume"
	"github.com/tomtom215/runvault/internal/validate"
)

// Service wires the engine's components together.
type Service struct {
	cfg       *config.Config
	registry  *registry.Registry
	validator *validate.Validator
	optimizer *optimize.Optimizer
	resumer   *resume.Resumer
	cache     *fingerprint.Store
	log       zerolog.Logger
}

// New opens the fingerprint cache and registry and assembles the service.
func New(cfg *config.Config) (*Service, error) {
	cache, err := fingerprint.OpenStore(cfg.Storage.FingerprintDBPath)
	if err != nil {
		return nil, fmt.Errorf("open fingerprint cache: %w", err)
	}

	reg, err := registry.Open(cfg.Storage.RegistryPath, cfg.Registry)
	if err != nil {
		_ = cache.Close()
		return nil, fmt.Errorf("open registry: %w", err)
	}

	svc := &Service{
		cfg:       cfg,
		registry:  reg,
		validator: validate.New(cfg.Validate, cfg.Storage.QuarantineDir),
		optimizer: optimize.New(cfg.Optimizer, cache),
		resumer:   resume.New(cfg.Resume, cfg.Storage.RestoreDir),
		cache:     cache,
		log:       logging.Component("service"),
	}
	svc.publishRegistryGauges()
	return svc, nil
}

// Close releases the fingerprint cache.
func (s *Service) Close() error {
	return s.cache.Close()
}

// Registry exposes the version registry for search, tagging and export.
func (s *Service) Registry() *registry.Registry {
	return s.registry
}

// Resumer exposes session restore, comparison and merge operations.
func (s *Service) Resumer() *resume.Resumer {
	return s.resumer
}

func (s *Service) publishRegistryGauges() {
	stats := s.registry.Statistics()
	metrics.UpdateRegistryGauges(stats.TotalVersions, stats.BestWinRate)
}
