// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package doctor implements the on-demand diagnostics snapshot and the
// startup integrity gate. The diagnostics/doctor CLI
// itself is an external collaborator; this package is
// the thin, real interface a daemon or CLI calls into: a snapshot of
// orchestrator/dispatch health plus a release integrity check, written
// under DATA_DIR/diagnostics/<timestamp>/, and the exit-code policy that
// gates daemon startup on STARTUP_INTEGRITY_MODE.
package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wingedpig/orchestrator/internal/config"
	"github.com/wingedpig/orchestrator/internal/dispatch"
	"github.com/wingedpig/orchestrator/internal/release"
	"github.com/wingedpig/orchestrator/internal/task"
)

// Snapshot is the combined diagnostics payload written to disk and
// printed by the control CLI.
type Snapshot struct {
	Timestamp time.Time                `json:"timestamp" yaml:"timestamp"`
	Task      task.Health              `json:"task" yaml:"task"`
	Outbox    *dispatch.HealthSnapshot `json:"outbox,omitempty" yaml:"outbox,omitempty"`
	Bridge    *dispatch.HealthSnapshot `json:"bridge,omitempty" yaml:"bridge,omitempty"`
	Integrity release.IntegrityResult  `json:"integrity" yaml:"integrity"`
}

// Collect gathers a diagnostics snapshot from the live components. outbox,
// bridge, and rel may be nil if the daemon runs without them configured.
func Collect(ctx context.Context, orch *task.Orchestrator, outbox *dispatch.Outbox, bridge *dispatch.Bridge, rel *release.Manager, integrityMode release.IntegrityMode, now time.Time) Snapshot {
	snap := Snapshot{Timestamp: now, Task: orch.Health()}
	if outbox != nil {
		h := outbox.Health()
		snap.Outbox = &h
	}
	if bridge != nil {
		h := bridge.Health()
		snap.Bridge = &h
	}
	if rel != nil {
		snap.Integrity = rel.IntegrityCheck(ctx, integrityMode)
	}
	return snap
}

// Write persists snap to dataDir/diagnostics/<timestamp>/, as both
// summary.json (machine-readable) and summary.yaml (for a human
// operator), the way cmd/trellis-ctl/main.go's status output pairs a
// structured and a readable rendering of the same data.
func Write(dataDir string, snap Snapshot) (string, error) {
	dir := filepath.Join(dataDir, "diagnostics", snap.Timestamp.UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create diagnostics dir: %w", err)
	}

	jsonBytes, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diagnostics json: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.json"), jsonBytes, 0o644); err != nil {
		return "", fmt.Errorf("write diagnostics json: %w", err)
	}

	yamlBytes, err := yaml.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal diagnostics yaml: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "summary.yaml"), yamlBytes, 0o644); err != nil {
		return "", fmt.Errorf("write diagnostics yaml: %w", err)
	}

	return dir, nil
}

// StartupIntegrityOutcome is the result of gating daemon startup on a
// release integrity check: strict + not ok is fatal; warn + not ok logs
// and continues; off is skipped.
type StartupIntegrityOutcome struct {
	Fatal   bool
	Skipped bool
	Message string
}

// CheckStartupIntegrity applies the exit-code policy to an integrity
// check result already computed under mode.
func CheckStartupIntegrity(mode config.IntegrityMode, result release.IntegrityResult) StartupIntegrityOutcome {
	if mode == config.IntegrityOff {
		return StartupIntegrityOutcome{Skipped: true}
	}
	if result.OK {
		return StartupIntegrityOutcome{Message: "release integrity check passed"}
	}

	msg := fmt.Sprintf("release integrity check failed: %d missing, %d mismatched", len(result.Missing), len(result.Mismatches))
	if mode == config.IntegrityStrict {
		return StartupIntegrityOutcome{Fatal: true, Message: msg}
	}
	return StartupIntegrityOutcome{Message: msg}
}
