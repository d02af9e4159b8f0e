// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package optimize

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/runvault/internal/archive"
	"github.com/tomtom215/runvault/internal/config"
	"github.com/tomtom215/runvault/internal/container"
	"github.com/tomtom215/runvault/internal/fingerprint"
	"github.com/tomtom215/runvault/internal/logging"
)

// Level selects the optimization policy.
type Level string

const (
	LevelMinimal    Level = "minimal"
	LevelBalanced   Level = "balanced"
	LevelAggressive Level = "aggressive"
)

// ParseLevel validates a policy name.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(s)) {
	case LevelMinimal:
		return LevelMinimal, nil
	case LevelBalanced:
		return LevelBalanced, nil
	case LevelAggressive:
		return LevelAggressive, nil
	default:
		return "", fmt.Errorf("unknown optimization level %q", s)
	}
}

// Stats reports the outcome of one optimization run.
type Stats struct {
	OriginalSize        int64   `json:"original_size"`
	OptimizedSize       int64   `json:"optimized_size"`
	CompressionRatio    float64 `json:"compression_ratio"`
	TimeTakenSeconds    float64 `json:"time_taken_seconds"`
	Algorithm           string  `json:"algorithm"`
	FilesProcessed      int     `json:"files_processed"`
	DuplicateFilesFound int     `json:"duplicate_files_found"`
	SpaceSaved          int64   `json:"space_saved"`
}

// Optimizer rewrites containers under a configured policy.
type Optimizer struct {
	est   *fingerprint.Estimator
	cache *fingerprint.Store // optional, nil disables caching
	log   zerolog.Logger
}

// New builds an optimizer. cache may be nil; fingerprints are then
// recomputed on every run.
func New(cfg config.OptimizerConfig, cache *fingerprint.Store) *Optimizer {
	return &Optimizer{
		est:   fingerprint.NewEstimator(cfg.MinCompressSize, cfg.SampleSize, cfg.EntropyCutoff),
		cache: cache,
		log:   logging.Component("optimizer"),
	}
}

// Optimize rewrites the container at archivePath under the given level and
// atomically replaces it (and its digest sidecar). On any error the
// original container is left untouched.
func (o *Optimizer) Optimize(ctx context.Context, archivePath string, level Level) (*Stats, error) {
	start := time.Now()

	origInfo, err := os.Stat(archivePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", archive.ErrNotFound, archivePath)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", archive.ErrIO, archivePath, err)
	}

	workDir, err := os.MkdirTemp(filepath.Dir(archivePath), ".optimize-")
	if err != nil {
		return nil, fmt.Errorf("%w: create work dir: %v", archive.ErrIO, err)
	}
	defer os.RemoveAll(workDir) //nolint:errcheck // best-effort cleanup

	names, err := o.extract(ctx, archivePath, workDir)
	if err != nil {
		return nil, err
	}

	prints, err := o.analyze(ctx, workDir, names)
	if err != nil {
		return nil, err
	}

	entries, duplicates, err := o.planEntries(workDir, prints, level)
	if err != nil {
		return nil, err
	}

	// Stage the rewritten container next to the original, then swap both
	// the container and its sidecar into place.
	optPath := archivePath + ".opt"
	_ = os.Remove(optPath)
	_ = os.Remove(archive.SidecarPath(optPath))
	result, err := container.Build(ctx, optPath, entries)
	if err != nil {
		return nil, err
	}
	if err := os.Rename(result.ArchivePath, archivePath); err != nil {
		_ = os.Remove(result.ArchivePath)
		_ = os.Remove(result.SidecarPath)
		return nil, fmt.Errorf("%w: replace container: %v", archive.ErrIO, err)
	}
	if err := os.Rename(result.SidecarPath, archive.SidecarPath(archivePath)); err != nil {
		return nil, fmt.Errorf("%w: replace sidecar: %v", archive.ErrIO, err)
	}

	newInfo, err := os.Stat(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: stat optimized container: %v", archive.ErrIO, err)
	}

	ratio := 0.0
	if origInfo.Size() > 0 {
		ratio = float64(newInfo.Size()) / float64(origInfo.Size())
	}
	stats := &Stats{
		OriginalSize:        origInfo.Size(),
		OptimizedSize:       newInfo.Size(),
		CompressionRatio:    ratio,
		TimeTakenSeconds:    time.Since(start).Seconds(),
		Algorithm:           "optimized_zip_" + string(level),
		FilesProcessed:      len(prints),
		DuplicateFilesFound: duplicates,
		SpaceSaved:          origInfo.Size() - newInfo.Size(),
	}

	o.log.Info().Str("archive", filepath.Base(archivePath)).Str("level", string(level)).
		Int64("original_size", stats.OriginalSize).Int64("optimized_size", stats.OptimizedSize).
		Int("duplicates", duplicates).Msg("Archive optimized")
	return stats, nil
}

// extract materializes the container into workDir and returns entry names.
func (o *Optimizer) extract(ctx context.Context, archivePath, workDir string) ([]string, error) {
	r, err := container.Open(archivePath)
	if err != nil {
		return nil, err
	}
	defer r.Close() //nolint:errcheck // read-only handle

	if _, err := r.ExtractAll(ctx, workDir); err != nil {
		return nil, err
	}
	return r.Entries(), nil
}

// analyze fingerprints every extracted file, consulting the cache when one
// is configured.
func (o *Optimizer) analyze(ctx context.Context, workDir string, names []string) ([]*fingerprint.Fingerprint, error) {
	prints := make([]*fingerprint.Fingerprint, 0, len(names))

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("optimization canceled: %w", err)
		}

		path := filepath.Join(workDir, filepath.FromSlash(name))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}

		if o.cache != nil {
			if fp, ok, err := o.cache.Lookup(name, info.Size(), info.ModTime().UTC()); err == nil && ok {
				prints = append(prints, fp)
				continue
			}
		}

		fp, err := fingerprint.Compute(path, name, o.est)
		if err != nil {
			return nil, err
		}
		prints = append(prints, fp)

		if o.cache != nil {
			if err := o.cache.Put(fp); err != nil {
				o.log.Debug().Err(err).Str("file", name).Msg("Fingerprint cache write failed")
			}
		}
	}
	return prints, nil
}

// planEntries converts fingerprints into the entry list for the rewritten
// container and counts distinct duplicated contents.
func (o *Optimizer) planEntries(workDir string, prints []*fingerprint.Fingerprint, level Level) ([]container.Entry, int, error) {
	duplicates := 0
	byHash := map[string][]*fingerprint.Fingerprint{}
	for _, fp := range prints {
		byHash[fp.SHA256] = append(byHash[fp.SHA256], fp)
	}
	for _, group := range byHash {
		if len(group) > 1 {
			duplicates++
		}
	}

	if level == LevelMinimal {
		entries := make([]container.Entry, 0, len(prints))
		for _, fp := range prints {
			entries = append(entries, o.fileEntry(workDir, fp, level))
		}
		return entries, duplicates, nil
	}

	// balanced/aggressive: required entries stay canonical, the rest is
	// deduplicated into content-addressed blobs.
	var entries []container.Entry
	mapping := map[string]string{}
	blobs := map[string]string{}

	// Deterministic blob order keeps rewrites reproducible.
	ordered := make([]*fingerprint.Fingerprint, len(prints))
	copy(ordered, prints)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].RelativePath < ordered[j].RelativePath })

	for _, fp := range ordered {
		if isRequiredEntry(fp.RelativePath) {
			entries = append(entries, o.fileEntry(workDir, fp, level))
			continue
		}

		// One blob per distinct content. The first-seen path donates the
		// extension; every later same-content path maps to that same blob
		// even when its own extension differs.
		blobName, ok := blobs[fp.SHA256]
		if !ok {
			blobName = archive.PrefixContent + fp.SHA256[:16] + filepath.Ext(fp.RelativePath)
			blobs[fp.SHA256] = blobName

			entry := o.fileEntry(workDir, fp, level)
			entry.Name = blobName
			entries = append(entries, entry)
		}
		mapping[fp.RelativePath] = blobName
	}

	mappingData, err := json.MarshalIndent(mapping, "", "  ")
	if err != nil {
		return nil, 0, fmt.Errorf("%w: encode file mapping: %v", archive.ErrIO, err)
	}
	entries = append(entries, container.Entry{Name: archive.EntryFileMapping, Data: mappingData})

	return entries, duplicates, nil
}

// fileEntry builds one file-backed entry, deciding the storage method from
// the fingerprint and policy.
func (o *Optimizer) fileEntry(workDir string, fp *fingerprint.Fingerprint, level Level) container.Entry {
	path := filepath.Join(workDir, filepath.FromSlash(fp.RelativePath))

	deflate := fp.CompressionSuitable
	if level == LevelAggressive && !deflate {
		deflate = fingerprint.IsText(path)
	}

	return container.Entry{
		Name:       fp.RelativePath,
		SourcePath: path,
		Store:      !deflate,
	}
}

func isRequiredEntry(name string) bool {
	for _, required := range archive.RequiredEntries {
		if name == required {
			return true
		}
	}
	return name == archive.EntryFileMapping
}
