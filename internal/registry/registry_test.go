// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package registry

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/config"
)

func testPolicy() config.RegistryConfig {
	return config.RegistryConfig{
		WinRateHigh:          0.8,
		WinRateGood:          0.6,
		WinRateLow:           0.3,
		LearningRateHigh:     0.01,
		LearningRateLow:      0.0001,
		GammaLongTerm:        0.99,
		GammaShortTerm:       0.9,
		CategoryBest:         0.7,
		CategoryExperimental: 0.4,
		LargeModelSize:       100 << 20,
		SmallModelSize:       10 << 20,
	}
}

func openTestRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	r, err := Open(filepath.Join(dir, "registry.json"), testPolicy())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func meta(id string, winRate float64, mutate func(*archive.Metadata)) *archive.Metadata {
	m := &archive.Metadata{
		SchemaVersion: archive.SchemaVersion,
		SessionID:     id,
		Timestamp:     time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC),
		ModelType:     "dqn",
		AgentType:     "pacman",
		TotalEpisodes: 1000,
		WinRate:       winRate,
		LearningRate:  0.001,
		Gamma:         0.95,
		Epsilon:       0.1,
	}
	if mutate != nil {
		mutate(m)
	}
	return m
}

func register(t *testing.T, r *Registry, m *archive.Metadata, modelSize int64) *VersionRecord {
	t.Helper()
	n, err := r.AllocateSessionNumber()
	if err != nil {
		t.Fatalf("AllocateSessionNumber: %v", err)
	}
	m.SessionNumber = n
	rec, err := r.Register(m, "/archives/"+m.SessionID+".zip", modelSize)
	if err != nil {
		t.Fatalf("Register(%s): %v", m.SessionID, err)
	}
	return rec
}

func TestSessionNumbersMonotonicAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	r := openTestRegistry(t, dir)
	register(t, r, meta("a", 0.5, nil), 0)
	register(t, r, meta("b", 0.5, nil), 0)

	// Allocate without registering: the counter must still advance durably.
	if _, err := r.AllocateSessionNumber(); err != nil {
		t.Fatal(err)
	}

	// Reopen from disk, as after a process restart.
	r2 := openTestRegistry(t, dir)
	rec := register(t, r2, meta("c", 0.5, nil), 0)

	if rec.Metadata.SessionNumber != 4 {
		t.Errorf("session number after restart = %d, want 4", rec.Metadata.SessionNumber)
	}

	seen := map[uint64]bool{}
	for _, v := range r2.List() {
		if seen[v.Metadata.SessionNumber] {
			t.Errorf("duplicate session number %d", v.Metadata.SessionNumber)
		}
		seen[v.Metadata.SessionNumber] = true
	}
}

func TestStatisticsCountsByType(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("a", 0.5, nil), 0)
	register(t, r, meta("b", 0.9, nil), 0)
	register(t, r, meta("c", 0.4, func(m *archive.Metadata) {
		m.ModelType = "ppo"
		m.AgentType = "ghost"
	}), 0)

	stats := r.Statistics()
	if stats.TotalVersions != 3 {
		t.Errorf("total versions = %d, want 3", stats.TotalVersions)
	}
	if stats.ByModelType["dqn"] != 2 || stats.ByModelType["ppo"] != 1 {
		t.Errorf("by model type = %v", stats.ByModelType)
	}
	if stats.ByAgentType["pacman"] != 2 || stats.ByAgentType["ghost"] != 1 {
		t.Errorf("by agent type = %v", stats.ByAgentType)
	}
	if stats.BestSessionID != "b" || stats.BestWinRate != 0.9 {
		t.Errorf("best = %s (%v), want b (0.9)", stats.BestSessionID, stats.BestWinRate)
	}
}

func TestRegisterDuplicateConflicts(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("dup", 0.5, nil), 0)

	_, err := r.Register(meta("dup", 0.5, nil), "/archives/dup.zip", 0)
	if !errors.Is(err, archive.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestAutoTagsAndCategories(t *testing.T) {
	tests := []struct {
		name      string
		winRate   float64
		mutate    func(*archive.Metadata)
		modelSize int64
		wantTags  []string
		wantCats  []string
	}{
		{
			name: "high performer long term", winRate: 0.85,
			mutate:   func(m *archive.Metadata) { m.Gamma = 0.995 },
			wantTags: []string{"high_performance", "long_term"},
			wantCats: []string{"all", "model_dqn", "best"},
		},
		{
			name: "good performer", winRate: 0.65,
			wantTags: []string{"good_performance"},
			wantCats: []string{"all", "model_dqn", "baseline"},
		},
		{
			name: "low performer high lr", winRate: 0.1,
			mutate:   func(m *archive.Metadata) { m.LearningRate = 0.05 },
			wantTags: []string{"low_performance", "high_lr"},
			wantCats: []string{"all", "model_dqn", "experimental"},
		},
		{
			name: "short term small model", winRate: 0.5,
			mutate:    func(m *archive.Metadata) { m.Gamma = 0.8 },
			modelSize: 1 << 20,
			wantTags:  []string{"short_term"},
			wantCats:  []string{"all", "model_dqn", "baseline", "small_model"},
		},
		{
			name: "large model", winRate: 0.5,
			modelSize: 200 << 20,
			wantCats:  []string{"all", "model_dqn", "baseline", "large_model"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := openTestRegistry(t, t.TempDir())
			rec := register(t, r, meta("s", tt.winRate, tt.mutate), tt.modelSize)

			for _, tag := range tt.wantTags {
				if !containsFold(rec.Metadata.Tags, tag) {
					t.Errorf("missing tag %q in %v", tag, rec.Metadata.Tags)
				}
			}
			if len(rec.Categories) != len(tt.wantCats) {
				t.Errorf("categories = %v, want %v", rec.Categories, tt.wantCats)
			}
			for _, cat := range tt.wantCats {
				if !containsFold(rec.Categories, cat) {
					t.Errorf("missing category %q in %v", cat, rec.Categories)
				}
			}
		})
	}
}

func TestIndicesStayConsistent(t *testing.T) {
	dir := t.TempDir()
	r := openTestRegistry(t, dir)
	register(t, r, meta("a", 0.85, nil), 0)
	register(t, r, meta("b", 0.85, nil), 0)

	if err := r.AddTag("a", "reference"); err != nil {
		t.Fatal(err)
	}
	if err := r.RemoveTag("b", "high_performance"); err != nil {
		t.Fatal(err)
	}

	// Reopen: indices were persisted with the records in one document.
	r2 := openTestRegistry(t, dir)

	ids := r2.doc.TagIndex["reference"]
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("tag_index[reference] = %v", ids)
	}
	ids = r2.doc.TagIndex["high_performance"]
	if len(ids) != 1 || ids[0] != "a" {
		t.Errorf("tag_index[high_performance] = %v", ids)
	}

	// Every index entry points at an existing record carrying that tag.
	for tag, members := range r2.doc.TagIndex {
		for _, id := range members {
			rec, ok := r2.doc.Versions[id]
			if !ok {
				t.Fatalf("tag %q indexes missing session %q", tag, id)
			}
			if !containsFold(rec.Metadata.Tags, tag) {
				t.Errorf("session %q indexed under %q but does not carry it", id, tag)
			}
		}
	}
}

func TestParentChildLinks(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("parent", 0.5, nil), 0)
	register(t, r, meta("child", 0.5, func(m *archive.Metadata) {
		m.PreviousSessionID = "parent"
	}), 0)

	parent, err := r.Get("parent")
	if err != nil {
		t.Fatal(err)
	}
	if len(parent.ChildVersions) != 1 || parent.ChildVersions[0] != "child" {
		t.Errorf("child links = %v", parent.ChildVersions)
	}

	child, err := r.Get("child")
	if err != nil {
		t.Fatal(err)
	}
	if child.ParentVersion != "parent" {
		t.Errorf("parent link = %q", child.ParentVersion)
	}

	// Removing the parent clears the dangling relation.
	if err := r.Remove("parent"); err != nil {
		t.Fatal(err)
	}
	child, err = r.Get("child")
	if err != nil {
		t.Fatal(err)
	}
	if child.ParentVersion != "" {
		t.Errorf("dangling parent link %q", child.ParentVersion)
	}
}

func TestRegisterRollbackUnlinksParent(t *testing.T) {
	dir := t.TempDir()
	r := openTestRegistry(t, dir)
	register(t, r, meta("parent", 0.5, nil), 0)

	// Replace the registry file with a directory so the next persist's
	// rename fails after the in-memory mutation.
	regPath := filepath.Join(dir, "registry.json")
	if err := os.Remove(regPath); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(regPath, 0o750); err != nil {
		t.Fatal(err)
	}

	child := meta("child", 0.5, func(m *archive.Metadata) {
		m.PreviousSessionID = "parent"
	})
	child.SessionNumber = 2
	if _, err := r.Register(child, "/archives/child.zip", 0); err == nil {
		t.Fatal("Register must fail when the registry cannot persist")
	}

	// The failed registration leaves no trace: no record, no child link.
	if _, err := r.Get("child"); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("child record should be gone, got %v", err)
	}
	parent, err := r.Get("parent")
	if err != nil {
		t.Fatal(err)
	}
	if len(parent.ChildVersions) != 0 {
		t.Errorf("dangling child links after rollback: %v", parent.ChildVersions)
	}
}

func TestSearchConjunction(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("a", 0.85, nil), 0)
	register(t, r, meta("b", 0.85, func(m *archive.Metadata) { m.ModelType = "ppo" }), 0)
	register(t, r, meta("c", 0.2, func(m *archive.Metadata) { m.Notes = "exploratory tweak" }), 0)

	got := r.Search(SearchQuery{ModelType: "dqn", MinWinRate: 0.8})
	if len(got) != 1 || got[0].Metadata.SessionID != "a" {
		t.Errorf("conjunction search = %v", ids(got))
	}

	got = r.Search(SearchQuery{Text: "exploratory"})
	if len(got) != 1 || got[0].Metadata.SessionID != "c" {
		t.Errorf("text search = %v", ids(got))
	}

	got = r.Search(SearchQuery{Tags: []string{"high_performance"}})
	if len(got) != 2 {
		t.Errorf("tag search = %v", ids(got))
	}

	// Default ordering: newest session number first.
	got = r.Search(SearchQuery{})
	if len(got) != 3 || got[0].Metadata.SessionID != "c" {
		t.Errorf("default order = %v", ids(got))
	}
}

func TestSearchTagsMatchAnyOf(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("tagged", 0.5, func(m *archive.Metadata) { m.Tags = []string{"t1"} }), 0)

	// A record carrying only t1 still matches a query listing t1 and t2.
	got := r.Search(SearchQuery{Tags: []string{"t1", "t2"}})
	if len(got) != 1 || got[0].Metadata.SessionID != "tagged" {
		t.Errorf("any-of tag search = %v, want [tagged]", ids(got))
	}

	got = r.Search(SearchQuery{Tags: []string{"t2", "t3"}})
	if len(got) != 0 {
		t.Errorf("unrelated tags matched %v", ids(got))
	}

	got = r.Search(SearchQuery{Categories: []string{"baseline", "no-such-category"}})
	if len(got) != 1 {
		t.Errorf("any-of category search = %v, want [tagged]", ids(got))
	}
}

func TestSearchRangePredicates(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("early", 0.5, func(m *archive.Metadata) {
		m.Timestamp = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	}), 0)
	register(t, r, meta("mid", 0.5, func(m *archive.Metadata) {
		m.Timestamp = time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
		m.Metrics = map[string]float64{"loss": 0.2}
	}), 0)
	register(t, r, meta("late", 0.5, func(m *archive.Metadata) {
		m.Timestamp = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
		m.Metrics = map[string]float64{"loss": 0.9}
	}), 0)

	got := r.Search(SearchQuery{MinSessionNumber: 2, MaxSessionNumber: 2})
	if len(got) != 1 || got[0].Metadata.SessionID != "mid" {
		t.Errorf("session-number range = %v, want [mid]", ids(got))
	}

	got = r.Search(SearchQuery{
		StartDate: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
	})
	if len(got) != 1 || got[0].Metadata.SessionID != "mid" {
		t.Errorf("date range = %v, want [mid]", ids(got))
	}

	// Metric bounds exclude records lacking the metric entirely.
	got = r.Search(SearchQuery{Metric: "loss", MinMetricValue: 0.1, MaxMetricValue: 0.5})
	if len(got) != 1 || got[0].Metadata.SessionID != "mid" {
		t.Errorf("metric range = %v, want [mid]", ids(got))
	}
}

func TestBestRanking(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("a", 0.9, func(m *archive.Metadata) { m.Metrics = map[string]float64{"loss": 0.5} }), 0)
	register(t, r, meta("b", 0.4, func(m *archive.Metadata) { m.Metrics = map[string]float64{"loss": 0.1} }), 0)
	register(t, r, meta("c", 0.7, nil), 0)

	best := r.Best("win_rate", 2)
	if len(best) != 2 || best[0].Metadata.SessionID != "a" || best[1].Metadata.SessionID != "c" {
		t.Errorf("best by win_rate = %v", ids(best))
	}

	// loss is lower-is-better; c has no loss metric and is excluded.
	best = r.Best("loss", 0)
	if len(best) != 2 || best[0].Metadata.SessionID != "b" {
		t.Errorf("best by loss = %v", ids(best))
	}
}

func TestExportFormats(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("a", 0.85, func(m *archive.Metadata) { m.Notes = "baseline, improved" }), 0)

	jsonOut, err := r.Export(ExportJSON, SearchQuery{})
	if err != nil {
		t.Fatalf("json export: %v", err)
	}
	if !strings.Contains(string(jsonOut), `"session_id": "a"`) {
		t.Errorf("json export missing record: %s", jsonOut)
	}

	csvOut, err := r.Export(ExportCSV, SearchQuery{})
	if err != nil {
		t.Fatalf("csv export: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(csvOut)), "\n")
	if len(lines) != 2 {
		t.Fatalf("csv lines = %d, want header + 1", len(lines))
	}
	if lines[0] != strings.Join(csvHeader, ",") {
		t.Errorf("csv header = %q", lines[0])
	}
	// Notes contain a comma, so the field must be quoted.
	if !strings.Contains(lines[1], `"baseline, improved"`) {
		t.Errorf("csv row = %q", lines[1])
	}

	mdOut, err := r.Export(ExportMarkdown, SearchQuery{})
	if err != nil {
		t.Fatalf("markdown export: %v", err)
	}
	if !strings.Contains(string(mdOut), "| a | 1 | dqn |") {
		t.Errorf("markdown export:\n%s", mdOut)
	}

	if _, err := r.Export("xml", SearchQuery{}); err == nil {
		t.Error("unknown format must error")
	}
}

func TestExportHonorsFilter(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("keep", 0.85, nil), 0)
	register(t, r, meta("drop", 0.85, func(m *archive.Metadata) { m.ModelType = "ppo" }), 0)

	csvOut, err := r.Export(ExportCSV, SearchQuery{ModelType: "dqn"})
	if err != nil {
		t.Fatalf("filtered export: %v", err)
	}
	body := string(csvOut)
	if !strings.Contains(body, "keep") {
		t.Errorf("filtered export missing matching record:\n%s", body)
	}
	if strings.Contains(body, "drop") {
		t.Errorf("filtered export leaked non-matching record:\n%s", body)
	}
}

func TestCleanupOrphaned(t *testing.T) {
	dir := t.TempDir()
	r := openTestRegistry(t, dir)

	// "kept" points at a real file, "ghost" at a missing one.
	keptPath := filepath.Join(dir, "kept.zip")
	if err := os.WriteFile(keptPath, []byte("zip"), 0o600); err != nil {
		t.Fatal(err)
	}

	n, _ := r.AllocateSessionNumber()
	m := meta("kept", 0.5, nil)
	m.SessionNumber = n
	if _, err := r.Register(m, keptPath, 0); err != nil {
		t.Fatal(err)
	}
	register(t, r, meta("ghost", 0.5, nil), 0)

	removed, itemErrors, err := r.CleanupOrphaned()
	if err != nil {
		t.Fatalf("CleanupOrphaned: %v", err)
	}
	if len(itemErrors) != 0 {
		t.Errorf("item errors = %v", itemErrors)
	}
	if len(removed) != 1 || removed[0] != "ghost" {
		t.Errorf("removed = %v, want [ghost]", removed)
	}
	if _, err := r.Get("kept"); err != nil {
		t.Errorf("kept record should survive: %v", err)
	}
	if _, err := r.Get("ghost"); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("ghost record should be gone, got %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	r := openTestRegistry(t, t.TempDir())
	register(t, r, meta("a", 0.85, nil), 0)

	rec, err := r.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	rec.Metadata.Notes = "mutated by caller"
	rec.Categories[0] = "hacked"

	again, err := r.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if again.Metadata.Notes == "mutated by caller" || again.Categories[0] == "hacked" {
		t.Error("Get must return copies, not aliases")
	}
}

func ids(records []*VersionRecord) []string {
	out := make([]string, len(records))
	for i, rec := range records {
		out[i] = rec.Metadata.SessionID
	}
	return out
}
