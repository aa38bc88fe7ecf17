// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ReadArtifact reads and parses ArtifactFile from a task's worktree. A
// missing file is reported as a plain *PathError so callers can
// distinguish "worker never wrote one" (os.IsNotExist) from a malformed
// file.
func ReadArtifact(worktreeDir string) (Artifact, error) {
	path := filepath.Join(worktreeDir, ArtifactFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, err
	}

	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return Artifact{}, fmt.Errorf("parse %s: %w", ArtifactFile, err)
	}
	return a, nil
}
