// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package resume

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/container"
)

// ParamDiff records one hyperparameter that differs between two sessions.
type ParamDiff struct {
	Name  string  `json:"name"`
	A     float64 `json:"a"`
	B     float64 `json:"b"`
	Delta float64 `json:"delta"`
}

// MetricDiff records one performance metric that differs between two
// sessions.
type MetricDiff struct {
	Name      string  `json:"name"`
	A         float64 `json:"a"`
	B         float64 `json:"b"`
	PctChange float64 `json:"pct_change"`
	Improved  bool    `json:"improved"`
}

// SessionComparison is the result of comparing two archived sessions.
type SessionComparison struct {
	SessionA           string       `json:"session_a"`
	SessionB           string       `json:"session_b"`
	ParameterDiffs     []ParamDiff  `json:"parameter_diffs"`
	MetricDiffs        []MetricDiff `json:"metric_diffs"`
	CompatibilityScore float64      `json:"compatibility_score"`
	Recommendations    []string     `json:"recommendations,omitempty"`
}

// Metrics where a decrease is an improvement.
var lowerIsBetter = map[string]bool{
	"loss":  true,
	"error": true,
	"cost":  true,
}

// CompareSessions reads both archives' metadata and reports hyperparameter
// differences, metric deltas and a compatibility score in [0, 1]. Comparing
// a session against itself scores exactly 1.
func (r *Resumer) CompareSessions(ctx context.Context, pathA, pathB string) (*SessionComparison, error) {
	metaA, err := readMetadata(pathA)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metaB, err := readMetadata(pathB)
	if err != nil {
		return nil, err
	}

	cmp := &SessionComparison{
		SessionA:       metaA.SessionID,
		SessionB:       metaB.SessionID,
		ParameterDiffs: paramDiffs(metaA, metaB),
		MetricDiffs:    metricDiffs(metaA, metaB),
	}
	cmp.CompatibilityScore = r.compatibility(cmp)
	cmp.Recommendations = recommendations(cmp)

	r.log.Debug().Str("a", cmp.SessionA).Str("b", cmp.SessionB).
		Float64("compatibility", cmp.CompatibilityScore).Msg("Sessions compared")
	return cmp, nil
}

func readMetadata(path string) (*archive.Metadata, error) {
	reader, err := container.Open(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close() //nolint:errcheck // read-only handle
	return reader.Metadata()
}

func paramDiffs(a, b *archive.Metadata) []ParamDiff {
	params := []struct {
		name string
		a, b float64
	}{
		{"learning_rate", a.LearningRate, b.LearningRate},
		{"gamma", a.Gamma, b.Gamma},
		{"epsilon", a.Epsilon, b.Epsilon},
		{"batch_size", float64(a.BatchSize), float64(b.BatchSize)},
		{"buffer_size", float64(a.BufferSize), float64(b.BufferSize)},
	}

	var diffs []ParamDiff
	for _, p := range params {
		if p.a != p.b {
			diffs = append(diffs, ParamDiff{Name: p.name, A: p.a, B: p.b, Delta: p.b - p.a})
		}
	}
	return diffs
}

func metricDiffs(a, b *archive.Metadata) []MetricDiff {
	names := map[string]bool{"win_rate": true}
	for name := range a.Metrics {
		names[name] = true
	}
	for name := range b.Metrics {
		names[name] = true
	}

	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	diffs := make([]MetricDiff, 0, len(ordered))
	for _, name := range ordered {
		va, vb := metricValue(a, name), metricValue(b, name)
		if va == vb {
			// Identical values are not a diff; self-comparison must come
			// back empty.
			continue
		}
		d := MetricDiff{Name: name, A: va, B: vb, PctChange: pctChange(va, vb)}
		if lowerIsBetter[name] {
			d.Improved = vb < va
		} else {
			d.Improved = vb > va
		}
		diffs = append(diffs, d)
	}
	return diffs
}

func metricValue(m *archive.Metadata, name string) float64 {
	if name == "win_rate" {
		return m.WinRate
	}
	return m.Metrics[name]
}

func pctChange(a, b float64) float64 {
	if a == 0 {
		if b == 0 {
			return 0
		}
		return 100
	}
	return (b - a) / math.Abs(a) * 100
}

// compatibility penalizes each differing hyperparameter by a fixed amount
// and each metric by its capped relative change, then inverts the sum.
func (r *Resumer) compatibility(cmp *SessionComparison) float64 {
	penalty := float64(len(cmp.ParameterDiffs)) * r.paramPenalty
	for _, d := range cmp.MetricDiffs {
		penalty += math.Min(math.Abs(d.PctChange)/100, r.metricCap)
	}
	return 1 - math.Min(1, penalty)
}

func recommendations(cmp *SessionComparison) []string {
	var recs []string

	switch {
	case cmp.CompatibilityScore >= 0.8:
		recs = append(recs, "sessions are highly compatible, resuming either is low risk")
	case cmp.CompatibilityScore >= 0.5:
		recs = append(recs, "sessions diverge moderately, verify hyperparameters before resuming")
	default:
		recs = append(recs, "sessions diverge strongly, prefer a fresh session over resuming")
	}

	for _, d := range cmp.ParameterDiffs {
		if d.Name == "learning_rate" {
			recs = append(recs, "learning rate differs, consider a warm-up phase after resuming")
			break
		}
	}
	for _, d := range cmp.MetricDiffs {
		if d.Name == "win_rate" && d.Improved && d.PctChange > 10 {
			recs = append(recs, fmt.Sprintf("session %s outperforms %s on win rate, resume from it",
				cmp.SessionB, cmp.SessionA))
		}
	}
	return recs
}

// String renders a short human-readable summary.
func (c *SessionComparison) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s vs %s: compatibility %.2f, %d parameter diffs, %d metrics",
		c.SessionA, c.SessionB, c.CompatibilityScore, len(c.ParameterDiffs), len(c.MetricDiffs))
	return b.String()
}
