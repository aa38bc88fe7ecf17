// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/wingedpig/orchestrator/internal/events"
)

// Sender performs a single outbound transport send attempt.
type Sender func(ctx context.Context, payload json.RawMessage) error

// Outbox is the outbound transport dispatch queue: durable,
// at-least-once, deduplicated on caller-supplied
// idempotency keys.
type Outbox struct {
	*Supervisor
}

// NewOutbox creates an outbox persisted at dataDir/outbox-state.json.
func NewOutbox(dataDir string, backoff BackoffConfig, sender Sender, bus events.EventBus) (*Outbox, error) {
	sup, err := NewSupervisor(Config{
		StatePath:     filepath.Join(dataDir, "outbox-state.json"),
		SuccessStatus: StatusSent,
		Backoff:       backoff,
		Bus:           bus,
		QueuedEvent:   events.EventDispatchQueued,
		SentEvent:     events.EventDispatchSent,
		RetryEvent:    events.EventDispatchRetrying,
		PoisonEvent:   events.EventDispatchPoison,
		Send: func(ctx context.Context, payload json.RawMessage) (string, error) {
			return "", sender(ctx, payload)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Outbox{Supervisor: sup}, nil
}

// Enqueue durably records payload for at-least-once delivery under
// idempotencyKey, returning the existing record if one is already queued,
// retrying, sent, or acked for that key.
func (o *Outbox) Enqueue(idempotencyKey string, payload json.RawMessage) (Record, error) {
	res, err := o.Supervisor.Enqueue(idempotencyKey, payload)
	if err != nil {
		return Record{}, err
	}
	return *res.Record, nil
}
