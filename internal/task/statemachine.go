// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package task

import (
	"fmt"
	"time"
)

// The functions in this file are the only place Task.State is mutated.
// Each enforces the directed transition graph and appends exactly one
// event per call, including illegal attempts (recorded, not applied).

func appendEvent(t *Task, now time.Time, kind, message string, details map[string]string) {
	t.Events = append(t.Events, Event{At: now, Kind: kind, Message: message, Details: details})
	t.UpdatedAt = now
}

func illegal(t *Task, now time.Time, action string) error {
	appendEvent(t, now, "illegal_"+action, fmt.Sprintf("%s not permitted from state %s", action, t.State), nil)
	return fmt.Errorf("%w: %s from %s", ErrIllegalTransition, action, t.State)
}

// start moves a queued task to running.
func start(t *Task, now time.Time) error {
	if t.State != StateQueued {
		return illegal(t, now, "start")
	}
	t.State = StateRunning
	if t.StartedAt == nil {
		ts := now
		t.StartedAt = &ts
	}
	appendEvent(t, now, "start", "task started", nil)
	return nil
}

// completeSuccess moves a running task to done.
func completeSuccess(t *Task, now time.Time, artifact *Artifact) error {
	if t.State != StateRunning {
		return illegal(t, now, "complete")
	}
	t.State = StateDone
	t.Artifact = artifact
	fin := now
	t.FinishedAt = &fin
	appendEvent(t, now, "complete_success", "task completed successfully", nil)
	return nil
}

// completeFailure applies the retry policy: retriable failures under the
// retry budget return the task to queued with retryCount incremented;
// anything else pins the task to failed with escalationRequired set.
func completeFailure(t *Task, now time.Time, retriable bool, errMsg string) error {
	if t.State != StateRunning {
		return illegal(t, now, "complete_failure")
	}
	if retriable && t.RetryCount < t.MaxRetries {
		t.RetryCount++
		t.State = StateQueued
		t.Error = errMsg
		appendEvent(t, now, "retry", fmt.Sprintf("retrying (%d/%d)", t.RetryCount, t.MaxRetries),
			map[string]string{"error": errMsg})
		return nil
	}

	t.State = StateFailed
	t.EscalationRequired = true
	t.Error = errMsg
	fin := now
	t.FinishedAt = &fin
	appendEvent(t, now, "fail", "task failed", map[string]string{
		"error":     errMsg,
		"retriable": fmt.Sprintf("%t", retriable),
	})
	return nil
}

// block moves a running task to blocked, pending human intervention.
func block(t *Task, now time.Time, reason string) error {
	if t.State != StateRunning {
		return illegal(t, now, "block")
	}
	t.State = StateBlocked
	appendEvent(t, now, "block", reason, nil)
	return nil
}

// unblock returns a blocked task to the queue. blocked → failed is not a
// valid edge: only a human calling unblock or cancel moves it onward.
func unblock(t *Task, now time.Time) error {
	if t.State != StateBlocked {
		return illegal(t, now, "unblock")
	}
	t.State = StateQueued
	appendEvent(t, now, "unblock", "task returned to queue", nil)
	return nil
}

// requestCancel applies a cancel() call. From queued/blocked it resolves
// immediately to cancelled. From running it only flags cancelRequested;
// the caller (the execution loop) is responsible for killing the worker
// session and calling finishCancel or cancelTimeout once that resolves.
func requestCancel(t *Task, now time.Time) (immediate bool, err error) {
	switch t.State {
	case StateRunning:
		t.CancelRequested = true
		appendEvent(t, now, "cancel_requested", "cancellation requested, killing worker session", nil)
		return false, nil
	case StateQueued, StateBlocked:
		t.CancelRequested = true
		t.State = StateCancelled
		fin := now
		t.FinishedAt = &fin
		appendEvent(t, now, "cancel", "task cancelled", nil)
		return true, nil
	default:
		return false, illegal(t, now, "cancel")
	}
}

// finishCancel completes a cancellation once the worker session has
// confirmed exit within the cancel timeout.
func finishCancel(t *Task, now time.Time) error {
	if t.State != StateRunning {
		return illegal(t, now, "finish_cancel")
	}
	t.State = StateCancelled
	fin := now
	t.FinishedAt = &fin
	appendEvent(t, now, "cancel", "task cancelled after worker exit", nil)
	return nil
}

// cancelTimeout records that a cancellation did not complete within
// cancelTimeoutMs: the task is pinned to failed rather than left running
// forever with an orphaned kill request.
func cancelTimeout(t *Task, now time.Time) error {
	if t.State != StateRunning {
		return illegal(t, now, "cancel_timeout")
	}
	t.State = StateFailed
	t.EscalationRequired = true
	t.Error = "cancel_timeout"
	fin := now
	t.FinishedAt = &fin
	appendEvent(t, now, "cancel_timeout", "worker did not exit within cancel timeout", nil)
	return nil
}
