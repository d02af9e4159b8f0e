// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package archive

import (
	"fmt"
	"strings"
	"time"
)

// RenderParams produces the params.md report for a session: hyperparameters
// with a short qualitative reading of each, performance metrics, and when
// the previous session is known, a delta comparison plus an automatic
// observation about the trend.
func RenderParams(m *Metadata, prev *Metadata) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Session %d - %s\n\n", m.SessionNumber, m.Timestamp.Format(time.RFC3339))

	b.WriteString("## Training parameters\n\n")
	fmt.Fprintf(&b, "- **Learning Rate**: %g (%s)\n", m.LearningRate, describeLearningRate(m.LearningRate))
	fmt.Fprintf(&b, "- **Gamma**: %g (%s)\n", m.Gamma, describeGamma(m.Gamma))
	fmt.Fprintf(&b, "- **Epsilon**: %g (%s)\n", m.Epsilon, describeEpsilon(m.Epsilon))
	fmt.Fprintf(&b, "- **Batch Size**: %d\n", m.BatchSize)
	fmt.Fprintf(&b, "- **Buffer Size**: %d\n\n", m.BufferSize)

	b.WriteString("## Performance\n\n")
	fmt.Fprintf(&b, "- **Total episodes**: %d\n", m.TotalEpisodes)
	fmt.Fprintf(&b, "- **Win rate**: %.2f%%\n", m.WinRate*100)

	if prev != nil {
		episodeDiff := int64(m.TotalEpisodes) - int64(prev.TotalEpisodes)
		winRateDiff := m.WinRate - prev.WinRate

		b.WriteString("\n## Compared to previous session\n\n")
		fmt.Fprintf(&b, "- **Episodes**: %+d vs session %d\n", episodeDiff, prev.SessionNumber)
		fmt.Fprintf(&b, "- **Win rate**: %+.2f%% (%.2f%% → %.2f%%)\n",
			winRateDiff*100, prev.WinRate*100, m.WinRate*100)

		b.WriteString("\n## Observation\n\n")
		b.WriteString(describeTrend(winRateDiff))
		b.WriteString("\n")
	}

	if len(m.Tags) > 0 {
		b.WriteString("\n## Tags\n\n")
		quoted := make([]string, len(m.Tags))
		for i, tag := range m.Tags {
			quoted[i] = "`" + tag + "`"
		}
		b.WriteString(strings.Join(quoted, ", "))
		b.WriteString("\n")
	}

	if m.Notes != "" {
		b.WriteString("\n## Notes\n\n")
		b.WriteString(m.Notes)
		b.WriteString("\n")
	}

	return b.String()
}

func describeLearningRate(lr float64) string {
	switch {
	case lr > 0.01:
		return "high: fast learning, risk of instability"
	case lr >= 0.001:
		return "medium: stable, good trade-off"
	case lr >= 0.0001:
		return "low: slow but stable convergence"
	default:
		return "very low: very slow convergence"
	}
}

func describeGamma(gamma float64) string {
	switch {
	case gamma > 0.95:
		return "strong: plans far into the future"
	case gamma > 0.85:
		return "medium: balances short and long term"
	default:
		return "weak: focuses on immediate rewards"
	}
}

func describeEpsilon(epsilon float64) string {
	switch {
	case epsilon > 0.3:
		return "high: strong exploration"
	case epsilon > 0.1:
		return "moderate: balanced exploration/exploitation"
	default:
		return "low: mostly exploitative"
	}
}

// describeTrend classifies the win-rate delta against the previous session.
func describeTrend(winRateDiff float64) string {
	switch {
	case winRateDiff > 0.15:
		return "Significant improvement. The current configuration looks very effective."
	case winRateDiff > 0.05:
		return "Moderate improvement. Training is progressing well."
	case winRateDiff > -0.05:
		return "Performance is stable. Possibly reached a plateau."
	case winRateDiff > -0.15:
		return "Slight regression. Check hyperparameters or exploration settings."
	default:
		return "Significant regression. Review the training configuration."
	}
}
