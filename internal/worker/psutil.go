// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worker

import "github.com/mitchellh/go-ps"

// ProcessAlive cross-checks a recorded PID against the OS process table.
// Used as a belt-and-suspenders check before trusting tmux's own
// has-session report: a tmux session can outlive the command it was
// launched with (e.g. a shell left behind after the engine process exits),
// so callers that care about the *engine* process specifically should
// confirm its PID is still scheduled rather than trusting session
// presence alone.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := ps.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc != nil
}
