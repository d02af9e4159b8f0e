// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package registry

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// ExportFormat names a registry export encoding.
type ExportFormat string

const (
	ExportJSON     ExportFormat = "json"
	ExportCSV      ExportFormat = "csv"
	ExportMarkdown ExportFormat = "markdown"
)

// Export renders the records matching q in the requested format, newest
// first. A zero query exports the whole registry.
func (r *Registry) Export(format ExportFormat, q SearchQuery) ([]byte, error) {
	records := r.Search(q)

	switch format {
	case ExportJSON:
		return json.MarshalIndent(records, "", "  ")
	case ExportCSV:
		return exportCSV(records)
	case ExportMarkdown:
		return exportMarkdown(records, r.Statistics()), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

var csvHeader = []string{
	"session_id", "session_number", "timestamp", "model_type", "agent_type",
	"win_rate", "total_episodes", "tags", "categories", "notes",
}

func exportCSV(records []*VersionRecord) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		m := rec.Metadata
		row := []string{
			m.SessionID,
			strconv.FormatUint(m.SessionNumber, 10),
			m.Timestamp.Format(time.RFC3339),
			m.ModelType,
			m.AgentType,
			strconv.FormatFloat(m.WinRate, 'f', -1, 64),
			strconv.FormatUint(m.TotalEpisodes, 10),
			strings.Join(m.Tags, ";"),
			strings.Join(rec.Categories, ";"),
			m.Notes,
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func exportMarkdown(records []*VersionRecord, stats Statistics) []byte {
	var b strings.Builder

	b.WriteString("# Version Registry\n\n")
	fmt.Fprintf(&b, "- Versions: %d\n", stats.TotalVersions)
	fmt.Fprintf(&b, "- Tags: %d\n", stats.TotalTags)
	fmt.Fprintf(&b, "- Categories: %d\n", stats.TotalCategories)
	if stats.BestSessionID != "" {
		fmt.Fprintf(&b, "- Best win rate: %.2f%% (session %s)\n", stats.BestWinRate*100, stats.BestSessionID)
	}
	b.WriteString("\n| Session | # | Model | Agent | Win rate | Episodes | Tags | Categories |\n")
	b.WriteString("|---------|---|-------|-------|----------|----------|------|------------|\n")

	for _, rec := range records {
		m := rec.Metadata
		fmt.Fprintf(&b, "| %s | %d | %s | %s | %.2f%% | %d | %s | %s |\n",
			m.SessionID, m.SessionNumber, m.ModelType, m.AgentType,
			m.WinRate*100, m.TotalEpisodes,
			strings.Join(m.Tags, ", "), strings.Join(rec.Categories, ", "))
	}
	return []byte(b.String())
}
