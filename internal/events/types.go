// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package events provides the in-memory event bus shared by every core
// component (task orchestrator, release manager, outbox/bridge supervisor).
// Components publish after every durable state change; nothing subscribes
// to drive state itself. The bus is observability, not control flow.
package events

import (
	"context"
	"time"
)

// Event represents an immutable event record.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Scope     string                 `json:"scope"` // repoId, task id, or release sha depending on Type
	Payload   map[string]interface{} `json:"payload"`
}

// EventHandler processes received events.
type EventHandler func(ctx context.Context, event Event) error

// SubscriptionID uniquely identifies a subscription.
type SubscriptionID string

// EventFilter for querying event history.
type EventFilter struct {
	Types []string  // Event types to match (supports wildcards)
	Scope string    // Filter by scope
	Since time.Time // Events after this time
	Until time.Time // Events before this time
	Limit int       // Maximum events to return
}

// EventBus is the core event pub/sub system.
type EventBus interface {
	// Publish emits an event to all matching subscribers.
	Publish(ctx context.Context, event Event) error

	// Subscribe registers a synchronous handler for events matching pattern.
	Subscribe(pattern string, handler EventHandler) (SubscriptionID, error)

	// SubscribeAsync registers an async handler with buffered channel.
	SubscribeAsync(pattern string, handler EventHandler, bufferSize int) (SubscriptionID, error)

	// Unsubscribe removes a subscription.
	Unsubscribe(id SubscriptionID) error

	// History retrieves past events matching filter.
	History(filter EventFilter) ([]Event, error)

	// SetDefaultScope sets the default scope for events that don't specify one.
	SetDefaultScope(scope string)

	// Close shuts down the event bus gracefully.
	Close() error
}

// Common event types published by core components.
const (
	// Task lifecycle
	EventTaskSubmitted  = "task.submitted"
	EventTaskStarted    = "task.started"
	EventTaskBlocked    = "task.blocked"
	EventTaskDone       = "task.done"
	EventTaskFailed     = "task.failed"
	EventTaskCancelled  = "task.cancelled"
	EventTaskRetrying   = "task.retrying"
	EventTaskEscalation = "task.escalation_required"

	// Worktree lifecycle
	EventWorktreeCreated   = "worktree.created"
	EventWorktreeDestroyed = "worktree.destroyed"

	// Worker session lifecycle
	EventWorkerStarted = "worker.started"
	EventWorkerExited  = "worker.exited"
	EventWorkerKilled  = "worker.killed"

	// Release lifecycle
	EventReleaseSnapshotted = "release.snapshotted"
	EventReleaseActivated   = "release.activated"
	EventReleaseRolledBack  = "release.rolled_back"
	EventReleaseIntegrity   = "release.integrity_checked"

	// Outbox / bridge dispatch
	EventDispatchQueued   = "dispatch.queued"
	EventDispatchSent     = "dispatch.sent"
	EventDispatchRetrying = "dispatch.retrying"
	EventDispatchPoison   = "dispatch.poison"
)
