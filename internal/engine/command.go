// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package engine

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMissingEngineCommand is the validation error returned when
// ENGINE_MODE=process but no command is configured.
var ErrMissingEngineCommand = errors.New("missing_engine_command")

// BuildCommand constructs the argv the worker launcher should run inside a
// task's detached session. Mock mode never shells out to a real engine: it
// writes a deterministic success artifact itself. Process mode execs the
// configured engine command with the task's context exported as
// environment variables.
func BuildCommand(cfg Config, req Request) ([]string, error) {
	switch cfg.Mode {
	case ModeProcess:
		if strings.TrimSpace(cfg.Command) == "" {
			return nil, ErrMissingEngineCommand
		}
		return processCommand(cfg, req), nil
	case ModeMock, "":
		return mockCommand(req)
	default:
		return nil, fmt.Errorf("unknown engine mode %q", cfg.Mode)
	}
}

func processCommand(cfg Config, req Request) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "export TASK_ID=%s TASK_REPO_ID=%s TASK_TEXT=%s TASK_WORKTREE_DIR=%s TASK_BRANCH=%s TASK_AUTO_COMMIT=%s TASK_AUTO_PR=%s TASK_ARTIFACT_FILE=%s; exec %s",
		shellQuote(req.TaskID),
		shellQuote(req.RepoID),
		shellQuote(req.Text),
		shellQuote(req.WorktreeDir),
		shellQuote(req.Branch),
		shellQuote(boolEnv(cfg.AutoCommit)),
		shellQuote(boolEnv(cfg.AutoPR)),
		shellQuote(ArtifactFile),
		cfg.Command,
	)
	return []string{"sh", "-c", b.String()}
}

// mockCommand builds a shell command that writes a deterministic success
// artifact (echoing the task text back in Summary) without running any
// real engine. The artifact bytes are base64-encoded so the command
// avoids shell quoting of arbitrary task text entirely.
func mockCommand(req Request) ([]string, error) {
	artifact := Artifact{
		Outcome:    OutcomeSuccess,
		Summary:    fmt.Sprintf("mock engine echo: %s", req.Text),
		Retriable:  false,
		Branch:     req.Branch,
		FinishedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal mock artifact: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	script := fmt.Sprintf("echo %s | base64 -d > %s", encoded, shellQuote(ArtifactFile))
	return []string{"sh", "-c", script}, nil
}

// shellQuote wraps s in single quotes for embedding in a POSIX sh -c
// script, escaping any embedded single quote.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func boolEnv(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
