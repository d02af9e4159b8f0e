// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package registry

import (
	"fmt"
	"os"

	"github.com/tomtom215/runvault/internal/archive"
)

// AddTag attaches a tag to a session and persists the reindexed document.
func (r *Registry) AddTag(sessionID, tag string) error {
	return r.mutate(sessionID, func(rec *VersionRecord) error {
		if containsFold(rec.Metadata.Tags, tag) {
			return nil
		}
		rec.Metadata.Tags = append(rec.Metadata.Tags, tag)
		return nil
	})
}

// RemoveTag detaches a tag. Removing an absent tag is not an error.
func (r *Registry) RemoveTag(sessionID, tag string) error {
	return r.mutate(sessionID, func(rec *VersionRecord) error {
		rec.Metadata.Tags = remove(rec.Metadata.Tags, tag)
		return nil
	})
}

// AddCategory attaches a category to a session.
func (r *Registry) AddCategory(sessionID, category string) error {
	return r.mutate(sessionID, func(rec *VersionRecord) error {
		if containsFold(rec.Categories, category) {
			return nil
		}
		rec.Categories = append(rec.Categories, category)
		return nil
	})
}

// RemoveCategory detaches a category. The universal "all" category cannot
// be removed.
func (r *Registry) RemoveCategory(sessionID, category string) error {
	if category == "all" {
		return fmt.Errorf("%w: the all category is fixed", archive.ErrConflict)
	}
	return r.mutate(sessionID, func(rec *VersionRecord) error {
		rec.Categories = remove(rec.Categories, category)
		return nil
	})
}

// UpdateNotes replaces a session's notes.
func (r *Registry) UpdateNotes(sessionID, notes string) error {
	return r.mutate(sessionID, func(rec *VersionRecord) error {
		rec.Metadata.Notes = notes
		return nil
	})
}

// mutate applies fn to a record under the writer lock, reindexes and
// persists. fn mutates the live record; persistence failure is returned to
// the caller with the mutation still applied in memory and retried on the
// next successful persist.
func (r *Registry) mutate(sessionID string, fn func(*VersionRecord) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.doc.Versions[sessionID]
	if !ok {
		return fmt.Errorf("%w: session %s", archive.ErrNotFound, sessionID)
	}
	if err := fn(rec); err != nil {
		return err
	}
	r.reindexLocked()
	return r.persist()
}

// CleanupItemError records one failed cleanup item.
type CleanupItemError struct {
	SessionID string `json:"session_id"`
	Err       string `json:"error"`
}

// CleanupOrphaned removes records whose container no longer exists on
// disk. Failures are accumulated per item rather than aborting the sweep;
// the cleaned document persists once at the end.
func (r *Registry) CleanupOrphaned() (removed []string, itemErrors []CleanupItemError, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.doc.Versions {
		_, statErr := os.Stat(rec.ArchivePath)
		switch {
		case statErr == nil:
			continue
		case os.IsNotExist(statErr):
			delete(r.doc.Versions, id)
			removed = append(removed, id)
		default:
			itemErrors = append(itemErrors, CleanupItemError{SessionID: id, Err: statErr.Error()})
		}
	}

	if len(removed) > 0 {
		r.unlink(removed)
		r.reindexLocked()
		if err := r.persist(); err != nil {
			return removed, itemErrors, err
		}
		r.log.Info().Strs("removed", removed).Int("errors", len(itemErrors)).
			Msg("Orphaned registry records pruned")
	}
	return removed, itemErrors, nil
}

// Remove deletes one record outright (used when its container is deleted by
// retention cleanup).
func (r *Registry) Remove(sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.doc.Versions[sessionID]; !ok {
		return fmt.Errorf("%w: session %s", archive.ErrNotFound, sessionID)
	}
	delete(r.doc.Versions, sessionID)
	r.unlink([]string{sessionID})
	r.reindexLocked()
	return r.persist()
}

// unlink clears dangling parent/child relations to the removed IDs. Write
// lock held.
func (r *Registry) unlink(removedIDs []string) {
	gone := map[string]bool{}
	for _, id := range removedIDs {
		gone[id] = true
	}
	for _, rec := range r.doc.Versions {
		if gone[rec.ParentVersion] {
			rec.ParentVersion = ""
		}
		kept := rec.ChildVersions[:0]
		for _, child := range rec.ChildVersions {
			if !gone[child] {
				kept = append(kept, child)
			}
		}
		rec.ChildVersions = kept
	}
}

func remove(list []string, item string) []string {
	out := list[:0]
	for _, s := range list {
		if s != item {
			out = append(out, s)
		}
	}
	return out
}
