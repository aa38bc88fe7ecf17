// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package worker

import "fmt"

// terminalState enumerates the task states ShouldCleanup considers
// terminal. Mirrors the subset of task.State relevant to session
// retention, kept local to avoid an import cycle with internal/task.
type terminalState string

const (
	StateDone      terminalState = "done"
	StateFailed    terminalState = "failed"
	StateBlocked   terminalState = "blocked"
	StateCancelled terminalState = "cancelled"
)

// CleanupPolicy holds the knobs ShouldCleanup consults.
type CleanupPolicy struct {
	AutoCleanup          bool
	FailedRetentionHours int
}

// ShouldCleanup decides whether a task's session should be torn down once
// it reaches a terminal state.
func ShouldCleanup(state terminalState, policy CleanupPolicy) CleanupDecision {
	if !policy.AutoCleanup {
		return CleanupDecision{Cleanup: false, Reason: "autocleanup_disabled"}
	}

	if (state == StateFailed || state == StateBlocked) && policy.FailedRetentionHours > 0 {
		return CleanupDecision{
			Cleanup: false,
			Reason:  fmt.Sprintf("retained_for_%dh", policy.FailedRetentionHours),
		}
	}
	if state == StateFailed || state == StateBlocked {
		return CleanupDecision{Cleanup: true, Reason: "failed_cleanup_immediate"}
	}

	return CleanupDecision{Cleanup: true, Reason: "terminal_cleanup"}
}
