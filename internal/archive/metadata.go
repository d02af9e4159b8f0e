// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package archive

import (
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
)

// SchemaVersion is the current metadata.json schema version. Readers accept
// documents with a lower version; writers always emit the current one.
const SchemaVersion = 1

// Metadata is the canonical record describing one training session. It is
// stored as metadata.json inside every container and mirrored into the
// version registry.
type Metadata struct {
	SchemaVersion int       `json:"schema_version"`
	SessionID     string    `json:"session_id"     validate:"required"`
	SessionNumber uint64    `json:"session_number"`
	Timestamp     time.Time `json:"timestamp"      validate:"required"`
	ModelType     string    `json:"model_type"     validate:"required"`
	AgentType     string    `json:"agent_type"`

	TotalEpisodes uint64  `json:"total_episodes"`
	WinRate       float64 `json:"win_rate"      validate:"gte=0,lte=1"`
	LearningRate  float64 `json:"learning_rate" validate:"gte=0"`
	Gamma         float64 `json:"gamma"         validate:"gte=0,lte=1"`
	Epsilon       float64 `json:"epsilon"       validate:"gte=0"`
	BatchSize     int     `json:"batch_size"    validate:"gte=0"`
	BufferSize    int     `json:"buffer_size"   validate:"gte=0"`

	// Metrics holds arbitrary named training metrics (loss, reward, score).
	Metrics map[string]float64 `json:"metrics,omitempty"`

	Tags              []string `json:"tags,omitempty"`
	PreviousSessionID string   `json:"previous_session_id,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

var metadataValidator = validator.New(validator.WithRequiredStructEnabled())

// MarshalMetadata serializes metadata to the canonical indented JSON form
// used inside containers.
func MarshalMetadata(m *Metadata) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil metadata", ErrContent)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode metadata: %v", ErrContent, err)
	}
	return data, nil
}

// UnmarshalMetadata parses and validates a metadata.json document. Malformed
// JSON, missing required fields and out-of-range values all surface as
// ErrContent so callers can treat them uniformly as content violations.
func UnmarshalMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: decode metadata: %v", ErrContent, err)
	}
	if m.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: metadata schema version %d is newer than supported %d",
			ErrContent, m.SchemaVersion, SchemaVersion)
	}
	if err := metadataValidator.Struct(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContent, err)
	}
	return &m, nil
}

// Validate checks the record against the schema without serializing it.
func (m *Metadata) Validate() error {
	if err := metadataValidator.Struct(m); err != nil {
		return fmt.Errorf("%w: %v", ErrContent, err)
	}
	return nil
}

// Clone returns a deep copy; registry mutations never alias caller state.
func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	out := *m
	if m.Metrics != nil {
		out.Metrics = make(map[string]float64, len(m.Metrics))
		for k, v := range m.Metrics {
			out.Metrics[k] = v
		}
	}
	if m.Tags != nil {
		out.Tags = append([]string(nil), m.Tags...)
	}
	return &out
}
