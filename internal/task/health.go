// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package task

import "time"

// failingWindow is how long the orchestrator may go without terminal
// progress (markTerminalProgress) while failed tasks exist before health
// reports "failing"; the state clears at the next terminal progress.
const failingWindow = 15 * time.Minute

// staleQueuedAge and staleRunningAge flag tasks that have sat in a
// non-terminal state long enough to suggest the execution loop (or a
// worker session) has stalled. staleWorktreeAge flags checkouts left on
// disk past any plausible task lifetime.
const (
	staleQueuedAge   = 5 * time.Minute
	staleRunningAge  = 2 * time.Hour
	staleWorktreeAge = 24 * time.Hour
)

// Health computes the orchestrator's self-reported health snapshot.
func (o *Orchestrator) Health() Health {
	staleWorktrees, _ := o.wt.ListStale(staleWorktreeAge)

	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	var m Metrics
	m.TotalTasks = len(o.tasks)

	for _, t := range o.tasks {
		switch t.State {
		case StateQueued:
			m.Queued++
			if now.Sub(t.UpdatedAt) >= staleQueuedAge {
				m.StaleQueued++
			}
		case StateRunning:
			m.Running++
			if now.Sub(t.UpdatedAt) >= staleRunningAge {
				m.StaleRunning++
			}
		case StateDone:
			m.Done++
		case StateFailed:
			m.Failed++
		case StateBlocked:
			m.Blocked++
		case StateCancelled:
			m.Cancelled++
		}
	}

	for id := range o.runtime {
		t, ok := o.tasks[id]
		if !ok || t.State != StateRunning {
			m.OrphanedWorkerSlots++
		}
	}
	m.StaleWorktrees = len(staleWorktrees)

	var issues []string
	status := HealthOK

	if m.StaleQueued > 0 {
		issues = append(issues, "tasks stuck in queued beyond the staleness horizon")
	}
	if m.StaleRunning > 0 {
		issues = append(issues, "tasks stuck in running beyond the staleness horizon")
	}
	if m.StaleWorktrees > 0 {
		issues = append(issues, "worktrees on disk older than the staleness horizon")
	}
	if m.OrphanedWorkerSlots > 0 {
		issues = append(issues, "worker slots tracked without a matching running task")
	}
	if len(issues) > 0 {
		status = HealthDegraded
	}

	if m.Failed > 0 && now.Sub(o.lastTerminalProgress) >= failingWindow {
		status = HealthFailing
		issues = append(issues, "failed tasks present with no newer terminal progress")
	}

	return Health{
		Status:    status,
		CheckedAt: now,
		Issues:    issues,
		Metrics:   m,
	}
}
