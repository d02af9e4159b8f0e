// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package archive

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// filenameTimeLayout renders timestamps with minute precision; two archives
// created in the same minute are distinguished by their session number.
const filenameTimeLayout = "20060102_1504"

// Filename builds the deterministic container filename:
//
//	pacman_run_{session:03d}_{yyyymmdd_hhmm}_{model}_{agent}.zip
//
// Model and agent tokens are sanitized and truncated to 10 characters so
// the name stays filesystem-safe and scannable in a directory listing.
func Filename(sessionNumber uint64, ts time.Time, modelType, agentType string) string {
	return fmt.Sprintf("pacman_run_%03d_%s_%s_%s.zip",
		sessionNumber,
		ts.Format(filenameTimeLayout),
		sanitizeToken(modelType),
		sanitizeToken(agentType))
}

// sanitizeToken makes a name component filesystem-safe: spaces become
// underscores, anything outside [A-Za-z0-9_-] is dropped, and the result is
// truncated to 10 characters.
func sanitizeToken(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "_")

	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		out = "unknown"
	}
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

// FilenameInfo is metadata recovered from an archive filename. It is the
// fallback source when a container's metadata.json cannot be read.
type FilenameInfo struct {
	SessionNumber uint64
	Timestamp     time.Time
	ModelType     string
	AgentType     string
}

// Tokens containing underscores make the model/agent split ambiguous; the
// non-greedy model group mirrors how the names were originally parsed.
var filenameRe = regexp.MustCompile(`^pacman_run_(\d+)_(\d{8})_(\d{4})_(.+?)_([^_]+)\.zip$`)

// ParseFilename recovers session metadata from a container filename. The
// parse is best-effort: ok is false when the name does not follow the
// naming scheme.
func ParseFilename(name string) (*FilenameInfo, bool) {
	m := filenameRe.FindStringSubmatch(name)
	if m == nil {
		return nil, false
	}

	session, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return nil, false
	}
	ts, err := time.ParseInLocation(filenameTimeLayout, m[2]+"_"+m[3], time.Local)
	if err != nil {
		return nil, false
	}

	return &FilenameInfo{
		SessionNumber: session,
		Timestamp:     ts,
		ModelType:     m[4],
		AgentType:     m[5],
	}, true
}
