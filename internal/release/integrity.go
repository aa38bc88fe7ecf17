// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package release

import (
	"os"
	"path/filepath"
)

const sentinelMissingManifest = "<current-or-manifest-missing>"

// IntegrityCheck verifies that every file in the current release's
// manifest exists and hashes to its declared value.
func IntegrityCheck(root string, mode IntegrityMode) IntegrityResult {
	if mode == ModeOff {
		return IntegrityResult{OK: true}
	}

	sha, err := CurrentSHA(root)
	if err != nil || sha == "" {
		return IntegrityResult{
			OK:      mode != ModeStrict,
			Missing: []string{sentinelMissingManifest},
		}
	}

	manifest, err := ReadManifest(root, sha)
	if err != nil {
		return IntegrityResult{
			OK:      mode != ModeStrict,
			Missing: []string{sentinelMissingManifest},
		}
	}

	releaseDir := filepath.Join(root, "releases", sha)
	result := IntegrityResult{Checked: len(manifest.Files)}

	for rel, want := range manifest.Files {
		path := filepath.Join(releaseDir, rel)
		if _, err := os.Stat(path); err != nil {
			result.Missing = append(result.Missing, rel)
			continue
		}
		got, err := sha256File(path)
		if err != nil || got != want {
			result.Mismatches = append(result.Mismatches, rel)
		}
	}

	result.OK = (len(result.Missing) == 0 && len(result.Mismatches) == 0) || mode == ModeWarn
	return result
}
