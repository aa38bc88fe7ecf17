// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package dispatch

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/wingedpig/orchestrator/internal/events"
)

// Envelope is an authenticated inbound message describing an external
// event, delivered into the bridge supervisor.
type Envelope struct {
	MessageID string          `json:"messageId"`
	Source    string          `json:"source"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// AcceptStatus is the caller-visible outcome of Bridge.Accept.
type AcceptStatus string

const (
	AcceptQueued    AcceptStatus = "queued"
	AcceptDuplicate AcceptStatus = "duplicate"
	AcceptRejected  AcceptStatus = "rejected"
)

// AcceptResult is returned by Bridge.Accept.
type AcceptResult struct {
	Status AcceptStatus `json:"status"`
	Ack    bool         `json:"ack"`
	TaskID string       `json:"taskId,omitempty"`
}

// SubmitFunc performs task submission for an accepted envelope, returning
// the resulting task id.
type SubmitFunc func(ctx context.Context, env Envelope) (taskID string, err error)

// Bridge is the inbound webhook/chat-transport side of the dispatch
// supervisor: HMAC-authenticated, deduplicated on messageId, durable,
// at-least-once submission into the task orchestrator.
type Bridge struct {
	*Supervisor
	sharedSecret []byte
}

// NewBridge creates a bridge persisted at dataDir/bridge-state.json.
// sharedSecret authenticates every Accept call via constant-time HMAC
// comparison.
func NewBridge(dataDir string, sharedSecret string, backoff BackoffConfig, submit SubmitFunc, bus events.EventBus) (*Bridge, error) {
	sup, err := NewSupervisor(Config{
		StatePath:     filepath.Join(dataDir, "bridge-state.json"),
		SuccessStatus: StatusAcked,
		Backoff:       backoff,
		Bus:           bus,
		QueuedEvent:   events.EventDispatchQueued,
		SentEvent:     events.EventDispatchSent,
		RetryEvent:    events.EventDispatchRetrying,
		PoisonEvent:   events.EventDispatchPoison,
		Send: func(ctx context.Context, payload json.RawMessage) (string, error) {
			var env Envelope
			if err := json.Unmarshal(payload, &env); err != nil {
				return "", err
			}
			return submit(ctx, env)
		},
	})
	if err != nil {
		return nil, err
	}
	return &Bridge{Supervisor: sup, sharedSecret: []byte(sharedSecret)}, nil
}

// authenticate reports whether providedSecret matches the bridge's shared
// secret. Both sides are HMAC'd under a fixed key before comparison, so
// hmac.Equal's constant-time guarantee isn't undermined by the two
// strings having different lengths.
func (b *Bridge) authenticate(providedSecret string) bool {
	if len(b.sharedSecret) == 0 {
		return false
	}
	return hmac.Equal(b.digest(b.sharedSecret), b.digest([]byte(providedSecret)))
}

func (b *Bridge) digest(message []byte) []byte {
	mac := hmac.New(sha256.New, b.sharedSecret)
	mac.Write(message)
	return mac.Sum(nil)
}

// Accept authenticates env against providedSecret, deduplicates on
// env.MessageID, and, if new, durably enqueues it for the pump to
// dispatch via SubmitFunc.
func (b *Bridge) Accept(env Envelope, providedSecret string) (AcceptResult, error) {
	if !b.authenticate(providedSecret) {
		return AcceptResult{Status: AcceptRejected, Ack: false}, nil
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return AcceptResult{}, err
	}

	res, err := b.Supervisor.Enqueue(env.MessageID, payload)
	if err != nil {
		return AcceptResult{}, err
	}

	if res.Duplicate {
		return AcceptResult{Status: AcceptDuplicate, Ack: true, TaskID: res.Record.TaskID}, nil
	}
	return AcceptResult{Status: AcceptQueued, Ack: true}, nil
}
