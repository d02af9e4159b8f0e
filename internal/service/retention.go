// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package service

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/metrics"
)

// CleanupItemError records one archive the sweep could not remove.
type CleanupItemError struct {
	SessionID string `json:"session_id,omitempty"`
	Path      string `json:"path"`
	Err       string `json:"error"`
}

// CleanupReport summarizes one retention sweep.
type CleanupReport struct {
	Removed        []string           `json:"removed"`
	Protected      []string           `json:"protected"`
	OrphansPruned  []string           `json:"orphans_pruned,omitempty"`
	ItemErrors     []CleanupItemError `json:"item_errors,omitempty"`
	SweepStartedAt time.Time          `json:"sweep_started_at"`
	SweepDuration  time.Duration      `json:"sweep_duration"`
}

// Cleanup applies the retention policy: registry records whose container has
// vanished are pruned, age-expired archives are removed, then the
// archive-count bound is enforced oldest-first. The top-N sessions by win
// rate are never removed. Failures accumulate per item rather than aborting
// the sweep.
func (s *Service) Cleanup(ctx context.Context) (*CleanupReport, error) {
	start := time.Now()
	report := &CleanupReport{SweepStartedAt: start.UTC()}
	metrics.RetentionSweeps.Inc()

	orphans, orphanErrs, err := s.registry.CleanupOrphaned()
	if err != nil {
		return report, fmt.Errorf("prune orphaned records: %w", err)
	}
	report.OrphansPruned = orphans
	for _, ie := range orphanErrs {
		report.ItemErrors = append(report.ItemErrors, CleanupItemError{SessionID: ie.SessionID, Err: ie.Err})
	}

	protected := s.protectedSessions()
	for id := range protected {
		report.Protected = append(report.Protected, id)
	}
	sort.Strings(report.Protected)

	if err := s.cleanupExpired(ctx, protected, report); err != nil {
		return report, err
	}
	if err := s.cleanupExcess(ctx, protected, report); err != nil {
		return report, err
	}

	s.publishRegistryGauges()
	report.SweepDuration = time.Since(start)
	s.log.Info().Int("removed", len(report.Removed)).Int("errors", len(report.ItemErrors)).
		Dur("elapsed", report.SweepDuration).Msg("Retention sweep finished")
	return report, nil
}

// protectedSessions returns the session IDs retention must never touch.
func (s *Service) protectedSessions() map[string]bool {
	protected := map[string]bool{}
	if s.cfg.Retention.KeepBest <= 0 {
		return protected
	}
	for _, rec := range s.registry.Best("win_rate", s.cfg.Retention.KeepBest) {
		protected[rec.Metadata.SessionID] = true
	}
	return protected
}

// cleanupExpired removes registered archives older than the age bound.
func (s *Service) cleanupExpired(ctx context.Context, protected map[string]bool, report *CleanupReport) error {
	if s.cfg.Retention.MaxAgeDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -s.cfg.Retention.MaxAgeDays)

	for _, rec := range s.registry.List() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if protected[rec.Metadata.SessionID] || !rec.Metadata.Timestamp.Before(cutoff) {
			continue
		}
		s.removeArchive(rec.Metadata.SessionID, rec.ArchivePath, report)
	}
	return nil
}

// cleanupExcess enforces the archive-count bound, removing the oldest
// registered sessions first.
func (s *Service) cleanupExcess(ctx context.Context, protected map[string]bool, report *CleanupReport) error {
	if s.cfg.Archive.MaxArchives <= 0 {
		return nil
	}

	records := s.registry.List() // newest first
	excess := len(records) - s.cfg.Archive.MaxArchives
	for i := len(records) - 1; i >= 0 && excess > 0; i-- {
		if err := ctx.Err(); err != nil {
			return err
		}
		rec := records[i]
		if protected[rec.Metadata.SessionID] {
			continue
		}
		s.removeArchive(rec.Metadata.SessionID, rec.ArchivePath, report)
		excess--
	}
	return nil
}

// removeArchive deletes one container, its sidecar and its registry record,
// accumulating failures into the report.
func (s *Service) removeArchive(sessionID, path string, report *CleanupReport) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		report.ItemErrors = append(report.ItemErrors,
			CleanupItemError{SessionID: sessionID, Path: path, Err: err.Error()})
		return
	}
	if err := os.Remove(archive.SidecarPath(path)); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("archive", path).Msg("Failed to remove sidecar")
	}
	if err := s.registry.Remove(sessionID); err != nil {
		report.ItemErrors = append(report.ItemErrors,
			CleanupItemError{SessionID: sessionID, Path: path, Err: err.Error()})
		return
	}
	report.Removed = append(report.Removed, sessionID)
	metrics.RetentionArchivesRemoved.Inc()
	s.log.Info().Str("session", sessionID).Str("archive", path).Msg("Archive removed by retention")
}

// enforceArchiveBound applies only the count bound, for the post-create
// fast path.
func (s *Service) enforceArchiveBound() (int, error) {
	if s.cfg.Archive.MaxArchives <= 0 {
		return 0, nil
	}
	report := &CleanupReport{SweepStartedAt: time.Now().UTC()}
	if err := s.cleanupExcess(context.Background(), s.protectedSessions(), report); err != nil {
		return len(report.Removed), err
	}
	if len(report.ItemErrors) > 0 {
		return len(report.Removed), fmt.Errorf("%d archives could not be removed", len(report.ItemErrors))
	}
	return len(report.Removed), nil
}

// Sweeper runs Cleanup on an interval as a supervised service.
//
// It adapts the periodic sweep to suture's Serve pattern: tick, sweep, and
// exit with the context error on shutdown so the supervisor does not
// restart it.
type Sweeper struct {
	svc      *Service
	interval time.Duration
}

// NewSweeper builds the retention sweeper service.
func NewSweeper(svc *Service) *Sweeper {
	return &Sweeper{svc: svc, interval: svc.cfg.Retention.SweepInterval}
}

// Serve implements suture.Service.
func (w *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.svc.Cleanup(ctx); err != nil {
				w.svc.log.Error().Err(err).Msg("Retention sweep failed")
			}
		}
	}
}

// String implements fmt.Stringer for supervisor logging.
func (w *Sweeper) String() string {
	return "retention-sweeper"
}
