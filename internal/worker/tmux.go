// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// RealTmuxExecutor shells out to the tmux binary on PATH.
type RealTmuxExecutor struct {
	Binary string // defaults to "tmux" if empty
}

// NewRealTmuxExecutor creates a tmux executor using the given binary name
// (e.g. a full path), or "tmux" if binary is empty.
func NewRealTmuxExecutor(binary string) *RealTmuxExecutor {
	if binary == "" {
		binary = "tmux"
	}
	return &RealTmuxExecutor{Binary: binary}
}

// HasSession checks if a session exists.
func (e *RealTmuxExecutor) HasSession(ctx context.Context, session string) bool {
	cmd := exec.CommandContext(ctx, e.Binary, "has-session", "-t", session)
	return cmd.Run() == nil
}

// ListSessions lists all live tmux session names.
func (e *RealTmuxExecutor) ListSessions(ctx context.Context) ([]string, error) {
	cmd := exec.CommandContext(ctx, e.Binary, "list-sessions", "-F", "#{session_name}")
	output, err := cmd.Output()
	if err != nil {
		if strings.Contains(err.Error(), "no server running") {
			return nil, nil
		}
		return nil, err
	}

	var sessions []string
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			sessions = append(sessions, line)
		}
	}
	return sessions, nil
}

// NewSession creates a detached tmux session running command in workdir.
func (e *RealTmuxExecutor) NewSession(ctx context.Context, session, workdir string, command []string) error {
	args := []string{"new-session", "-d", "-s", session}
	if workdir != "" {
		args = append(args, "-c", workdir)
	}
	args = append(args, command...)

	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Env = filterTMUXEnv(os.Environ())

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("tmux new-session failed: %s: %w", strings.TrimSpace(stderr.String()), err)
	}
	return nil
}

// KillSession kills a tmux session.
func (e *RealTmuxExecutor) KillSession(ctx context.Context, session string) error {
	cmd := exec.CommandContext(ctx, e.Binary, "kill-session", "-t", session)
	return cmd.Run()
}

// PanePID returns the PID of the process running in the session's first
// pane.
func (e *RealTmuxExecutor) PanePID(ctx context.Context, session string) (int, error) {
	cmd := exec.CommandContext(ctx, e.Binary, "list-panes", "-t", session, "-F", "#{pane_pid}")
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("tmux list-panes failed: %w", err)
	}

	var pid int
	if _, err := fmt.Sscanf(strings.TrimSpace(string(output)), "%d", &pid); err != nil {
		return 0, fmt.Errorf("parse pane pid: %w", err)
	}
	return pid, nil
}

// filterTMUXEnv strips TMUX= from the environment so a session can be
// created even when the daemon itself runs inside a tmux client.
func filterTMUXEnv(env []string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "TMUX=") {
			result = append(result, e)
		}
	}
	return result
}
