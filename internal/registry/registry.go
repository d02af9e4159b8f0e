// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/config"
	"github.com/tomtom215/runvault/internal/logging"
)

// VersionRecord wraps one session's metadata with its container location
// and derived classification. Parent/child links are relations between
// session IDs, never ownership.
type VersionRecord struct {
	Metadata      *archive.Metadata `json:"metadata"`
	ArchivePath   string            `json:"archive_path"`
	Categories    []string          `json:"categories"`
	ParentVersion string            `json:"parent_version,omitempty"`
	ChildVersions []string          `json:"child_versions,omitempty"`
	ModelSize     int64             `json:"model_size"`
	RegisteredAt  time.Time         `json:"registered_at"`
}

// Statistics summarizes the registry, refreshed on every mutation.
type Statistics struct {
	TotalVersions   int            `json:"total_versions"`
	TotalTags       int            `json:"total_tags"`
	TotalCategories int            `json:"total_categories"`
	ByModelType     map[string]int `json:"by_model_type,omitempty"`
	ByAgentType     map[string]int `json:"by_agent_type,omitempty"`
	BestWinRate     float64        `json:"best_win_rate"`
	BestSessionID   string         `json:"best_session_id,omitempty"`
	LastUpdated     time.Time      `json:"last_updated"`
}

// document is the single persisted unit: counter, records and both derived
// indices live and die together.
type document struct {
	NextSessionNumber uint64                    `json:"next_session_number"`
	Versions          map[string]*VersionRecord `json:"versions"`
	TagIndex          map[string][]string       `json:"tag_index"`
	CategoryIndex     map[string][]string       `json:"category_index"`
	Statistics        Statistics                `json:"statistics"`
}

// Registry is the version index. Safe for concurrent use; mutations are
// serialized by a writer lock and each one persists the whole document
// atomically before returning.
type Registry struct {
	mu     sync.RWMutex
	path   string
	doc    *document
	policy config.RegistryConfig
	log    zerolog.Logger
}

// Open loads the registry document at path, creating an empty one when the
// file does not exist yet.
func Open(path string, policy config.RegistryConfig) (*Registry, error) {
	r := &Registry{
		path:   path,
		policy: policy,
		log:    logging.Component("registry"),
	}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		r.doc = &document{
			NextSessionNumber: 1,
			Versions:          map[string]*VersionRecord{},
			TagIndex:          map[string][]string{},
			CategoryIndex:     map[string][]string{},
		}
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("%w: read registry %s: %v", archive.ErrIO, path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: registry document corrupt: %v", archive.ErrContent, err)
	}
	if doc.Versions == nil {
		doc.Versions = map[string]*VersionRecord{}
	}
	if doc.TagIndex == nil {
		doc.TagIndex = map[string][]string{}
	}
	if doc.CategoryIndex == nil {
		doc.CategoryIndex = map[string][]string{}
	}
	if doc.NextSessionNumber == 0 {
		doc.NextSessionNumber = 1
	}
	r.doc = &doc

	r.log.Info().Int("versions", len(doc.Versions)).Uint64("next_session", doc.NextSessionNumber).
		Msg("Registry loaded")
	return r, nil
}

// persist writes the whole document via temp file + rename. Must be called
// with the write lock held.
func (r *Registry) persist() error {
	r.refreshStatistics()

	data, err := json.MarshalIndent(r.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode registry: %v", archive.ErrIO, err)
	}

	tmp := r.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("%w: create registry dir: %v", archive.ErrIO, err)
	}
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("%w: write registry: %v", archive.ErrIO, err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: publish registry: %v", archive.ErrIO, err)
	}
	return nil
}

// refreshStatistics recomputes the summary block. Write lock held.
func (r *Registry) refreshStatistics() {
	stats := Statistics{
		TotalVersions:   len(r.doc.Versions),
		TotalTags:       len(r.doc.TagIndex),
		TotalCategories: len(r.doc.CategoryIndex),
		ByModelType:     map[string]int{},
		ByAgentType:     map[string]int{},
		LastUpdated:     time.Now().UTC(),
	}
	for id, rec := range r.doc.Versions {
		stats.ByModelType[rec.Metadata.ModelType]++
		stats.ByAgentType[rec.Metadata.AgentType]++
		if rec.Metadata.WinRate > stats.BestWinRate {
			stats.BestWinRate = rec.Metadata.WinRate
			stats.BestSessionID = id
		}
	}
	r.doc.Statistics = stats
}

// AllocateSessionNumber hands out the next session number and durably
// advances the counter, so numbers stay strictly increasing across process
// restarts even when a registration later fails.
func (r *Registry) AllocateSessionNumber() (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.doc.NextSessionNumber
	r.doc.NextSessionNumber++
	if err := r.persist(); err != nil {
		r.doc.NextSessionNumber = n
		return 0, err
	}
	return n, nil
}

// Register records a published container. The metadata must already carry
// its allocated session number. Automatic tags and categories are derived
// from the configured policy bands, parent/child links are connected, and
// the whole document is persisted in one write.
func (r *Registry) Register(meta *archive.Metadata, archivePath string, modelSize int64) (*VersionRecord, error) {
	if meta == nil || meta.SessionID == "" {
		return nil, fmt.Errorf("%w: metadata with session_id required", archive.ErrContent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.doc.Versions[meta.SessionID]; exists {
		return nil, fmt.Errorf("%w: session %s already registered", archive.ErrConflict, meta.SessionID)
	}
	if meta.SessionNumber >= r.doc.NextSessionNumber {
		r.doc.NextSessionNumber = meta.SessionNumber + 1
	}

	stored := meta.Clone()
	stored.Tags = mergeTags(stored.Tags, r.autoTags(stored))

	rec := &VersionRecord{
		Metadata:     stored,
		ArchivePath:  archivePath,
		Categories:   r.autoCategories(stored, modelSize),
		ModelSize:    modelSize,
		RegisteredAt: time.Now().UTC(),
	}

	var parent *VersionRecord
	if prev := stored.PreviousSessionID; prev != "" {
		if p, ok := r.doc.Versions[prev]; ok {
			rec.ParentVersion = prev
			parent = p
			parent.ChildVersions = append(parent.ChildVersions, stored.SessionID)
		}
	}

	r.doc.Versions[stored.SessionID] = rec
	r.reindexLocked()

	if err := r.persist(); err != nil {
		// Undo the whole registration, including the parent's child link,
		// so a failed persist leaves no dangling lineage.
		delete(r.doc.Versions, stored.SessionID)
		if parent != nil {
			parent.ChildVersions = parent.ChildVersions[:len(parent.ChildVersions)-1]
		}
		r.reindexLocked()
		return nil, err
	}

	r.log.Info().Str("session", stored.SessionID).Uint64("number", stored.SessionNumber).
		Strs("tags", stored.Tags).Strs("categories", rec.Categories).Msg("Version registered")
	return cloneRecord(rec), nil
}

// Get returns a copy of one record.
func (r *Registry) Get(sessionID string) (*VersionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.doc.Versions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", archive.ErrNotFound, sessionID)
	}
	return cloneRecord(rec), nil
}

// List returns copies of all records, newest session number first.
func (r *Registry) List() []*VersionRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*VersionRecord, 0, len(r.doc.Versions))
	for _, rec := range r.doc.Versions {
		out = append(out, cloneRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Metadata.SessionNumber > out[j].Metadata.SessionNumber
	})
	return out
}

// Statistics returns the current summary block.
func (r *Registry) Statistics() Statistics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := r.doc.Statistics
	stats.ByModelType = cloneCounts(r.doc.Statistics.ByModelType)
	stats.ByAgentType = cloneCounts(r.doc.Statistics.ByAgentType)
	return stats
}

func cloneCounts(counts map[string]int) map[string]int {
	out := make(map[string]int, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}

// NextSessionNumber reports the counter without advancing it.
func (r *Registry) NextSessionNumber() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.doc.NextSessionNumber
}

// reindexLocked rebuilds both derived indices from the record map. Write
// lock held. Rebuilding wholesale keeps every mutation path trivially
// consistent.
func (r *Registry) reindexLocked() {
	tagIndex := map[string][]string{}
	categoryIndex := map[string][]string{}

	ids := make([]string, 0, len(r.doc.Versions))
	for id := range r.doc.Versions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		rec := r.doc.Versions[id]
		for _, tag := range rec.Metadata.Tags {
			tagIndex[tag] = append(tagIndex[tag], id)
		}
		for _, cat := range rec.Categories {
			categoryIndex[cat] = append(categoryIndex[cat], id)
		}
	}

	r.doc.TagIndex = tagIndex
	r.doc.CategoryIndex = categoryIndex
}

func cloneRecord(rec *VersionRecord) *VersionRecord {
	out := *rec
	out.Metadata = rec.Metadata.Clone()
	out.Categories = append([]string(nil), rec.Categories...)
	out.ChildVersions = append([]string(nil), rec.ChildVersions...)
	return &out
}

func mergeTags(existing, auto []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, tag := range append(existing, auto...) {
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
