// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package registry

import (
	"strings"

	"github.com/tomtom215/runvault/internal/archive"
)

// autoTags derives performance and hyperparameter tags from the configured
// policy bands.
func (r *Registry) autoTags(meta *archive.Metadata) []string {
	var tags []string

	switch {
	case meta.WinRate > r.policy.WinRateHigh:
		tags = append(tags, "high_performance")
	case meta.WinRate > r.policy.WinRateGood:
		tags = append(tags, "good_performance")
	case meta.WinRate < r.policy.WinRateLow:
		tags = append(tags, "low_performance")
	}

	if meta.LearningRate > r.policy.LearningRateHigh {
		tags = append(tags, "high_lr")
	} else if meta.LearningRate < r.policy.LearningRateLow {
		tags = append(tags, "low_lr")
	}

	if meta.Gamma > r.policy.GammaLongTerm {
		tags = append(tags, "long_term")
	} else if meta.Gamma < r.policy.GammaShortTerm {
		tags = append(tags, "short_term")
	}

	return tags
}

// autoCategories derives the category set: the universal "all", the model
// family, a quality band, and optionally a model-size band.
func (r *Registry) autoCategories(meta *archive.Metadata, modelSize int64) []string {
	categories := []string{"all"}

	if meta.ModelType != "" {
		categories = append(categories, "model_"+sanitizeCategory(meta.ModelType))
	}

	switch {
	case meta.WinRate > r.policy.CategoryBest:
		categories = append(categories, "best")
	case meta.WinRate < r.policy.CategoryExperimental:
		categories = append(categories, "experimental")
	default:
		categories = append(categories, "baseline")
	}

	switch {
	case modelSize > r.policy.LargeModelSize:
		categories = append(categories, "large_model")
	case modelSize > 0 && modelSize < r.policy.SmallModelSize:
		categories = append(categories, "small_model")
	}

	return categories
}

func sanitizeCategory(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}
