// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package task

import "errors"

var (
	// ErrNoRepoRegistered is returned by SubmitTask when no repoId is given
	// and no default repo registration exists.
	ErrNoRepoRegistered = errors.New("no_repo_registered")

	// ErrIllegalTransition is returned (wrapped) when a caller requests a
	// transition the state machine does not permit from the task's current
	// state.
	ErrIllegalTransition = errors.New("illegal_transition")

	// ErrUnknownTask is returned when an operation names a task id the
	// orchestrator has no record of.
	ErrUnknownTask = errors.New("unknown_task")

	// ErrEmptyText is returned when SubmitTask is called with blank text.
	ErrEmptyText = errors.New("task_text_required")
)
