// Runvault - Training Session Archive and Version Management
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/runvault

package archive

import (
	"fmt"
	"strings"
)

// Container entry layout. Paths are zip-internal and always use forward
// slashes regardless of host OS.
const (
	// EntryParams is the human-readable parameter report.
	EntryParams = "params.md"

	// EntryMetadata is the machine-readable session record.
	EntryMetadata = "metadata.json"

	// EntryConfig is the full training configuration snapshot.
	EntryConfig = "config.yaml"

	// EntryFileMapping maps original model paths to deduplicated blobs.
	// Present only when the optimizer ran at balanced or aggressive level.
	EntryFileMapping = "file_mapping.json"

	// PrefixModel holds model weights and checkpoints.
	PrefixModel = "model/"

	// PrefixLogs holds training logs.
	PrefixLogs = "logs/"

	// PrefixContent holds content-addressed deduplicated blobs.
	PrefixContent = "content/"
)

// RequiredEntries are the entries every valid container must carry.
var RequiredEntries = []string{EntryMetadata, EntryParams, EntryConfig}

// SidecarSuffix is appended to the container filename to form the digest
// sidecar path.
const SidecarSuffix = ".md5"

// SidecarPath returns the digest sidecar path for an archive path.
func SidecarPath(archivePath string) string {
	return archivePath + SidecarSuffix
}

// FormatSidecar renders the sidecar body: hex digest, two spaces, the
// archive's base filename, trailing newline. The format matches md5sum(1)
// so the sidecar can be checked by hand.
func FormatSidecar(digest, archiveName string) string {
	return fmt.Sprintf("%s  %s\n", digest, archiveName)
}

// ParseSidecar extracts the hex digest and filename from a sidecar body.
func ParseSidecar(body string) (digest, archiveName string, err error) {
	fields := strings.Fields(strings.TrimSpace(body))
	if len(fields) < 2 {
		return "", "", fmt.Errorf("%w: malformed digest sidecar", ErrIntegrity)
	}
	return fields[0], fields[1], nil
}
