// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// Task mirrors internal/task.Task across the wire.
type Task struct {
	ID                 string     `json:"id"`
	State              string     `json:"state"`
	Source             string     `json:"source"`
	Text               string     `json:"text"`
	RepoID             string     `json:"repoId"`
	WorkerSessionKey   string     `json:"workerSessionKey"`
	RetryCount         int        `json:"retryCount"`
	MaxRetries         int        `json:"maxRetries"`
	EscalationRequired bool       `json:"escalationRequired"`
	Artifact           *Artifact  `json:"artifact,omitempty"`
	Children           []string   `json:"children,omitempty"`
	ParentTaskID       string     `json:"parentTaskId,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	FinishedAt         *time.Time `json:"finishedAt,omitempty"`
	CancelRequested    bool       `json:"cancelRequested"`
	Events             []TaskEvent `json:"events"`
	Error              string     `json:"error,omitempty"`
}

// Artifact mirrors internal/task.Artifact.
type Artifact struct {
	Summary       string `json:"summary,omitempty"`
	WorktreePath  string `json:"worktreePath,omitempty"`
	Branch        string `json:"branch,omitempty"`
	CommitSHA     string `json:"commitSha,omitempty"`
	PRURL         string `json:"prUrl,omitempty"`
	ChecksSummary string `json:"checksSummary,omitempty"`
}

// TaskEvent mirrors internal/task.Event.
type TaskEvent struct {
	At      time.Time         `json:"at"`
	Kind    string            `json:"kind"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// SubmitTaskRequest is the input to TaskClient.Submit.
type SubmitTaskRequest struct {
	Text         string   `json:"text"`
	RepoID       string   `json:"repoId,omitempty"`
	SessionKey   string   `json:"sessionKey,omitempty"`
	ParentTaskID string   `json:"parentTaskId,omitempty"`
	Fanout       []string `json:"fanout,omitempty"`
}

// TaskClient provides access to task submission, inspection, and control.
type TaskClient struct {
	c *Client
}

// Submit enqueues a new task.
func (t *TaskClient) Submit(ctx context.Context, req SubmitTaskRequest) (*Task, error) {
	data, err := t.c.postJSON(ctx, "/v1/tasks", req)
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// List returns every task the orchestrator currently tracks.
func (t *TaskClient) List(ctx context.Context) ([]Task, error) {
	data, err := t.c.get(ctx, "/v1/tasks")
	if err != nil {
		return nil, err
	}
	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	return tasks, nil
}

// Get fetches a single task by id.
func (t *TaskClient) Get(ctx context.Context, id string) (*Task, error) {
	data, err := t.c.get(ctx, "/v1/tasks/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// Cancel requests cancellation of a task.
func (t *TaskClient) Cancel(ctx context.Context, id string) error {
	_, err := t.c.post(ctx, "/v1/tasks/"+url.PathEscape(id)+"/cancel")
	return err
}

// Unblock returns a blocked task to the queue.
func (t *TaskClient) Unblock(ctx context.Context, id string) (*Task, error) {
	data, err := t.c.post(ctx, "/v1/tasks/"+url.PathEscape(id)+"/unblock")
	if err != nil {
		return nil, err
	}
	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("decode task: %w", err)
	}
	return &task, nil
}

// ReleaseInfo mirrors internal/release.Info.
type ReleaseInfo struct {
	SHA          string    `json:"sha"`
	SourceDir    string    `json:"sourceDir"`
	CreatedAt    time.Time `json:"createdAt"`
	ManifestFile string    `json:"manifestFile"`
}

// IntegrityResult mirrors internal/release.IntegrityResult.
type IntegrityResult struct {
	OK         bool     `json:"ok"`
	Checked    int      `json:"checked"`
	Missing    []string `json:"missing,omitempty"`
	Mismatches []string `json:"mismatches,omitempty"`
}

// ReleaseClient provides access to the content-addressed release manager.
type ReleaseClient struct {
	c *Client
}

// Snapshot creates a new content-addressed release from sourceDir.
func (r *ReleaseClient) Snapshot(ctx context.Context, sourceDir string) (*ReleaseInfo, error) {
	data, err := r.c.postJSON(ctx, "/v1/releases/snapshot", map[string]string{"sourceDir": sourceDir})
	if err != nil {
		return nil, err
	}
	var info ReleaseInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode release info: %w", err)
	}
	return &info, nil
}

// Activate atomically swaps the current release symlink to sha.
func (r *ReleaseClient) Activate(ctx context.Context, sha string) error {
	_, err := r.c.postJSON(ctx, "/v1/releases/activate", map[string]string{"sha": sha})
	return err
}

// Rollback swaps current back to target ("previous" or an explicit sha).
func (r *ReleaseClient) Rollback(ctx context.Context, target string) error {
	_, err := r.c.postJSON(ctx, "/v1/releases/rollback", map[string]string{"target": target})
	return err
}

// Current returns the sha the current symlink points at.
func (r *ReleaseClient) Current(ctx context.Context) (string, error) {
	data, err := r.c.get(ctx, "/v1/releases/current")
	if err != nil {
		return "", err
	}
	var out struct {
		SHA string `json:"sha"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("decode current release: %w", err)
	}
	return out.SHA, nil
}

// Integrity runs a manifest integrity check under the given mode ("off",
// "warn", or "strict").
func (r *ReleaseClient) Integrity(ctx context.Context, mode string) (*IntegrityResult, error) {
	path := "/v1/releases/integrity"
	if mode != "" {
		path += "?mode=" + url.QueryEscape(mode)
	}
	data, err := r.c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var result IntegrityResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode integrity result: %w", err)
	}
	return &result, nil
}

// BridgeEnvelope mirrors internal/dispatch.Envelope.
type BridgeEnvelope struct {
	MessageID string          `json:"messageId"`
	Source    string          `json:"source"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// BridgeAcceptResult mirrors internal/dispatch.AcceptResult.
type BridgeAcceptResult struct {
	Status string `json:"status"`
	Ack    bool   `json:"ack"`
	TaskID string `json:"taskId,omitempty"`
}

// BridgeClient provides access to the inbound webhook ingress.
type BridgeClient struct {
	c *Client
}

// Accept submits an authenticated envelope to the bridge supervisor.
// secret is sent as X-Bridge-Secret rather than in the JSON body.
func (b *BridgeClient) Accept(ctx context.Context, env BridgeEnvelope, secret string) (*BridgeAcceptResult, error) {
	data, err := b.c.postJSONWithHeaders(ctx, "/v1/webhook", env, map[string]string{"X-Bridge-Secret": secret})
	if err != nil {
		return nil, err
	}
	var result BridgeAcceptResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("decode accept result: %w", err)
	}
	return &result, nil
}

// HealthSnapshot mirrors internal/dispatch.HealthSnapshot.
type HealthSnapshot struct {
	Counts    map[string]int `json:"counts"`
	LastError string         `json:"lastError,omitempty"`
}

// TaskHealth mirrors internal/task.Health.
type TaskHealth struct {
	Status    string         `json:"status"`
	CheckedAt time.Time      `json:"checkedAt"`
	Issues    []string       `json:"issues"`
	Metrics   map[string]int `json:"metrics"`
}

// HealthReport is the combined control-plane health response.
type HealthReport struct {
	Task   TaskHealth      `json:"task"`
	Outbox *HealthSnapshot `json:"outbox,omitempty"`
	Bridge *HealthSnapshot `json:"bridge,omitempty"`
}

// HealthClient reports the combined orchestrator/dispatch health
// snapshot.
type HealthClient struct {
	c *Client
}

// Get fetches the current health report.
func (h *HealthClient) Get(ctx context.Context) (*HealthReport, error) {
	data, err := h.c.get(ctx, "/v1/health")
	if err != nil {
		return nil, err
	}
	var report HealthReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode health report: %w", err)
	}
	return &report, nil
}

// Event mirrors internal/events.Event.
type Event struct {
	ID        string                 `json:"id"`
	Version   string                 `json:"version"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Scope     string                 `json:"scope,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
}

// EventClient provides access to the event history.
type EventClient struct {
	c *Client
}

// History returns recorded events, optionally filtered by type.
func (e *EventClient) History(ctx context.Context, types []string, limit int) ([]Event, error) {
	q := url.Values{}
	for _, t := range types {
		q.Add("type", t)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	path := "/v1/events"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}
	data, err := e.c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}
	return events, nil
}
