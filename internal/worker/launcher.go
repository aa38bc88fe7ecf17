// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wingedpig/orchestrator/internal/events"
	"github.com/wingedpig/orchestrator/internal/slug"
)

// ErrWaitTimeout is returned by WaitForExit when the session outlives the
// deadline.
var ErrWaitTimeout = errors.New("timed out waiting for session to exit")

// Launcher starts and supervises the detached tmux session a task's engine
// invocation runs inside.
type Launcher struct {
	tmux   TmuxExecutor
	bus    events.EventBus
	prefix string
}

// NewLauncher creates a launcher. prefix defaults to "dev-agent" if empty.
func NewLauncher(tmux TmuxExecutor, bus events.EventBus, prefix string) *Launcher {
	if prefix == "" {
		prefix = "dev-agent"
	}
	return &Launcher{tmux: tmux, bus: bus, prefix: prefix}
}

// SessionName computes the deterministic session name for a task:
// "<prefix>-<repoSlug>-<todoSlug>-<idSuffix>".
func (l *Launcher) SessionName(repoID, taskID, taskText string) string {
	return SessionName(l.prefix, repoID, taskID, taskText)
}

// SessionName computes the deterministic session name for a task:
// "<prefix>-<repoSlug>-<todoSlug>-<idSuffix>".
func SessionName(prefix, repoID, taskID, taskText string) string {
	repoSlug := slug.Make(repoID, "repo", 24)
	todoFallback := slug.Make(taskID, "task", 16)
	todoSlug := slug.Make(taskText, todoFallback, 24)
	idSuffix := slug.LastN(slug.Make(taskID, "task", 12), 8)
	return fmt.Sprintf("%s-%s-%s-%s", prefix, repoSlug, todoSlug, idSuffix)
}

// StartSession kills any existing session with the same name (tolerating
// "not found"), then creates a fresh detached session running command in
// cwd.
func (l *Launcher) StartSession(ctx context.Context, name, cwd string, command []string) error {
	_ = l.tmux.KillSession(ctx, name) // tolerate not-found

	if err := l.tmux.NewSession(ctx, name, cwd, command); err != nil {
		return fmt.Errorf("start session %s: %w", name, err)
	}

	if l.bus != nil {
		l.bus.Publish(ctx, events.Event{
			Type:  events.EventWorkerStarted,
			Scope: name,
			Payload: map[string]interface{}{
				"session": name,
				"cwd":     cwd,
			},
		})
	}
	return nil
}

// HasSession reports whether a session is currently live.
func (l *Launcher) HasSession(ctx context.Context, name string) bool {
	return l.tmux.HasSession(ctx, name)
}

// WaitForExit polls until the session disappears or the timeout elapses.
func (l *Launcher) WaitForExit(ctx context.Context, name string, timeout time.Duration, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		if !l.tmux.HasSession(ctx, name) {
			if l.bus != nil {
				l.bus.Publish(ctx, events.Event{
					Type:  events.EventWorkerExited,
					Scope: name,
					Payload: map[string]interface{}{
						"session": name,
					},
				})
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: session %s", ErrWaitTimeout, name)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// KillSession kills a session, tolerating the case where it no longer
// exists.
func (l *Launcher) KillSession(ctx context.Context, name string) error {
	err := l.tmux.KillSession(ctx, name)

	if l.bus != nil {
		l.bus.Publish(ctx, events.Event{
			Type:  events.EventWorkerKilled,
			Scope: name,
			Payload: map[string]interface{}{
				"session": name,
			},
		})
	}
	// tmux returns a non-zero exit status (wrapped as *exec.ExitError) when
	// the session is already gone; that is not a failure for this caller.
	_ = err
	return nil
}

// ListSessions lists currently live session names.
func (l *Launcher) ListSessions(ctx context.Context) ([]string, error) {
	return l.tmux.ListSessions(ctx)
}

// IsEngineAlive cross-checks a session's pane process against the OS
// process table, rather than trusting tmux's has-session report alone: a
// tmux session can remain registered with the server after the command it
// was launched with has exited (e.g. a leftover shell).
func (l *Launcher) IsEngineAlive(ctx context.Context, name string) bool {
	if !l.tmux.HasSession(ctx, name) {
		return false
	}
	pid, err := l.tmux.PanePID(ctx, name)
	if err != nil {
		return false
	}
	return ProcessAlive(pid)
}
