// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worker

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/creack/pty"
)

// PtyExecutor is a TmuxExecutor fallback for hosts without a tmux binary:
// each "session" is a detached process attached to its own pseudo-terminal
// instead of a tmux pane. It supports exactly the operations the launcher
// needs; there is no multi-window or attach support, since nothing in this
// daemon streams a worker's terminal back to a caller.
type PtyExecutor struct {
	mu       sync.Mutex
	sessions map[string]*ptySession
}

type ptySession struct {
	cmd *exec.Cmd
}

// NewPtyExecutor creates a pty-backed session executor.
func NewPtyExecutor() *PtyExecutor {
	return &PtyExecutor{sessions: make(map[string]*ptySession)}
}

// HasSession reports whether the named session's process is still running.
func (p *PtyExecutor) HasSession(ctx context.Context, session string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[session]
	if !ok {
		return false
	}
	if s.cmd.ProcessState != nil && s.cmd.ProcessState.Exited() {
		delete(p.sessions, session)
		return false
	}
	return ProcessAlive(s.cmd.Process.Pid)
}

// ListSessions lists names of sessions with a live process.
func (p *PtyExecutor) ListSessions(ctx context.Context) ([]string, error) {
	p.mu.Lock()
	names := make([]string, 0, len(p.sessions))
	for name := range p.sessions {
		names = append(names, name)
	}
	p.mu.Unlock()

	var live []string
	for _, name := range names {
		if p.HasSession(ctx, name) {
			live = append(live, name)
		}
	}
	return live, nil
}

// NewSession starts command in workdir attached to a fresh pty, replacing
// any prior session registered under the same name.
func (p *PtyExecutor) NewSession(ctx context.Context, session, workdir string, command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("pty session %s: empty command", session)
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = workdir

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("pty start for session %s: %w", session, err)
	}
	// The launcher never attaches interactively, so the master side is
	// closed immediately; the child keeps running against the slave.
	ptmx.Close()

	// Reap the child when it exits, so ProcessState is populated and the
	// process doesn't linger as a zombie that HasSession keeps reporting
	// live.
	go cmd.Wait()

	p.mu.Lock()
	p.sessions[session] = &ptySession{cmd: cmd}
	p.mu.Unlock()
	return nil
}

// KillSession terminates the session's process, tolerating the case where
// it has already exited.
func (p *PtyExecutor) KillSession(ctx context.Context, session string) error {
	p.mu.Lock()
	s, ok := p.sessions[session]
	delete(p.sessions, session)
	p.mu.Unlock()

	if !ok || s.cmd.Process == nil {
		return nil
	}
	_ = s.cmd.Process.Kill()
	return nil
}

// PanePID returns the session's process PID.
func (p *PtyExecutor) PanePID(ctx context.Context, session string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.sessions[session]
	if !ok || s.cmd.Process == nil {
		return 0, fmt.Errorf("no such session: %s", session)
	}
	return s.cmd.Process.Pid, nil
}
