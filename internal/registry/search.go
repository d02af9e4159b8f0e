// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package registry

import (
	"sort"
	"strings"
	"time"
)

// SearchQuery filters version records. All set predicates must match
// (conjunction); zero values mean "no constraint". Within the Tags and
// Categories lists matching is any-of: carrying one listed value is enough.
type SearchQuery struct {
	ModelType  string
	AgentType  string
	Tags       []string // any listed tag matches
	Categories []string // any listed category matches
	MinWinRate float64
	MaxWinRate float64 // 0 disables the upper bound

	MinSessionNumber uint64
	MaxSessionNumber uint64 // 0 disables the upper bound

	StartDate time.Time
	EndDate   time.Time

	// Metric names a metrics-map entry (or "win_rate") bounded by
	// MinMetricValue/MaxMetricValue; records lacking the metric are
	// excluded.
	Metric         string
	MinMetricValue float64
	MaxMetricValue float64 // 0 disables the upper bound

	// Text matches case-insensitively against session id, notes, tags and
	// categories.
	Text string

	// Limit caps the result count. 0 returns everything.
	Limit int
}

// Search returns matching records, newest session number first.
func (r *Registry) Search(q SearchQuery) []*VersionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*VersionRecord
	for _, rec := range r.doc.Versions {
		if matches(rec, q) {
			out = append(out, cloneRecord(rec))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.SessionNumber > out[j].Metadata.SessionNumber
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matches(rec *VersionRecord, q SearchQuery) bool {
	meta := rec.Metadata

	if q.ModelType != "" && !strings.EqualFold(meta.ModelType, q.ModelType) {
		return false
	}
	if q.AgentType != "" && !strings.EqualFold(meta.AgentType, q.AgentType) {
		return false
	}
	if meta.WinRate < q.MinWinRate {
		return false
	}
	if q.MaxWinRate > 0 && meta.WinRate > q.MaxWinRate {
		return false
	}
	if meta.SessionNumber < q.MinSessionNumber {
		return false
	}
	if q.MaxSessionNumber > 0 && meta.SessionNumber > q.MaxSessionNumber {
		return false
	}
	if !q.StartDate.IsZero() && meta.Timestamp.Before(q.StartDate) {
		return false
	}
	if !q.EndDate.IsZero() && meta.Timestamp.After(q.EndDate) {
		return false
	}
	if len(q.Tags) > 0 && !containsAnyFold(meta.Tags, q.Tags) {
		return false
	}
	if len(q.Categories) > 0 && !containsAnyFold(rec.Categories, q.Categories) {
		return false
	}
	if q.Metric != "" {
		value, ok := metricValue(rec, q.Metric)
		if !ok || value < q.MinMetricValue {
			return false
		}
		if q.MaxMetricValue > 0 && value > q.MaxMetricValue {
			return false
		}
	}
	if q.Text != "" && !matchesText(rec, q.Text) {
		return false
	}
	return true
}

func matchesText(rec *VersionRecord, text string) bool {
	needle := strings.ToLower(text)

	if strings.Contains(strings.ToLower(rec.Metadata.SessionID), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(rec.Metadata.Notes), needle) {
		return true
	}
	for _, tag := range rec.Metadata.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	for _, cat := range rec.Categories {
		if strings.Contains(strings.ToLower(cat), needle) {
			return true
		}
	}
	return false
}

func containsFold(list []string, want string) bool {
	for _, s := range list {
		if strings.EqualFold(s, want) {
			return true
		}
	}
	return false
}

func containsAnyFold(list, wanted []string) bool {
	for _, want := range wanted {
		if containsFold(list, want) {
			return true
		}
	}
	return false
}

// lowerIsBetter names metrics where smaller values rank higher.
var lowerIsBetter = map[string]bool{
	"loss":  true,
	"error": true,
	"cost":  true,
}

// Best ranks records by a metric and returns the top n. "win_rate" reads
// the metadata field directly; any other name reads the metrics map, and
// records without that metric are excluded. For loss/error/cost the order
// inverts so the smallest value wins.
func (r *Registry) Best(metric string, n int) []*VersionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	type ranked struct {
		rec   *VersionRecord
		value float64
	}

	var candidates []ranked
	for _, rec := range r.doc.Versions {
		value, ok := metricValue(rec, metric)
		if !ok {
			continue
		}
		candidates = append(candidates, ranked{rec: cloneRecord(rec), value: value})
	}

	asc := lowerIsBetter[strings.ToLower(metric)]
	sort.Slice(candidates, func(i, j int) bool {
		if asc {
			return candidates[i].value < candidates[j].value
		}
		return candidates[i].value > candidates[j].value
	})

	if n > 0 && len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]*VersionRecord, len(candidates))
	for i, c := range candidates {
		out[i] = c.rec
	}
	return out
}

func metricValue(rec *VersionRecord, metric string) (float64, bool) {
	if metric == "" || strings.EqualFold(metric, "win_rate") {
		return rec.Metadata.WinRate, true
	}
	value, ok := rec.Metadata.Metrics[metric]
	return value, ok
}
