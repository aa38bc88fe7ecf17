// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wingedpig/orchestrator/internal/config"
	"github.com/wingedpig/orchestrator/internal/dispatch"
	"github.com/wingedpig/orchestrator/internal/engine"
	"github.com/wingedpig/orchestrator/internal/events"
	"github.com/wingedpig/orchestrator/internal/release"
	"github.com/wingedpig/orchestrator/internal/session"
	"github.com/wingedpig/orchestrator/internal/task"
	"github.com/wingedpig/orchestrator/internal/worker"
	"github.com/wingedpig/orchestrator/internal/worktree"
)

// Mock implementations for the orchestrator's collaborators. The
// orchestrator itself is real; the handler layer is exercised over it
// with httptest.

type mockRepos struct {
	repos []config.RepoConfig
}

func (m *mockRepos) Repo(id string) (config.RepoConfig, bool) {
	for _, r := range m.repos {
		if r.ID == id {
			return r, true
		}
	}
	return config.RepoConfig{}, false
}

func (m *mockRepos) DefaultRepo() (config.RepoConfig, bool) {
	for _, r := range m.repos {
		if r.IsDefault {
			return r, true
		}
	}
	return config.RepoConfig{}, false
}

type mockWorktrees struct {
	root string
}

func (m *mockWorktrees) CreateWorktree(ctx context.Context, repoID, repoPath, defaultBranch, taskID string) (worktree.Result, error) {
	path := filepath.Join(m.root, repoID+"-"+taskID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return worktree.Result{}, err
	}
	return worktree.Result{Path: path, Branch: "task-" + taskID, BaseRef: "main"}, nil
}

func (m *mockWorktrees) DestroyWorktree(ctx context.Context, repoPath, path string) error {
	return os.RemoveAll(path)
}

func (m *mockWorktrees) ListStale(ageThreshold time.Duration) ([]worktree.StaleWorktree, error) {
	return nil, nil
}

type mockLauncher struct{}

func (m *mockLauncher) SessionName(repoID, taskID, taskText string) string {
	return worker.SessionName("dev-agent", repoID, taskID, taskText)
}

func (m *mockLauncher) StartSession(ctx context.Context, name, cwd string, command []string) error {
	return nil
}

func (m *mockLauncher) HasSession(ctx context.Context, name string) bool { return false }

func (m *mockLauncher) KillSession(ctx context.Context, name string) error { return nil }

// newTestOrchestrator builds a real orchestrator over mocks. The mock
// launcher reports every session as already exited, so a submitted task
// drains to failed (no artifact) almost immediately; handler tests
// assert on response envelopes and sentinel-error mapping, not on live
// task state.
func newTestOrchestrator(t *testing.T, repos []config.RepoConfig) *task.Orchestrator {
	t.Helper()
	dir := t.TempDir()
	orch, err := task.NewOrchestrator(
		task.Config{PollInterval: 5 * time.Millisecond, StaleReapInterval: time.Hour},
		&mockRepos{repos: repos},
		&mockWorktrees{root: filepath.Join(dir, "worktrees")},
		&mockLauncher{},
		engine.Config{Mode: engine.ModeMock},
		worker.CleanupPolicy{},
		nil, dir)
	require.NoError(t, err)
	t.Cleanup(func() { orch.Close() })
	return orch
}

func defaultRepos() []config.RepoConfig {
	return []config.RepoConfig{{ID: "repo-a", Path: "/src/repo-a", DefaultBranch: "main", IsDefault: true}}
}

// testResponse mirrors the wire envelope with the data left raw so each
// test can decode it into the type it expects.
type testResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorInfo      `json:"error"`
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) testResponse {
	t.Helper()
	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func postJSON(t *testing.T, target string, body interface{}) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return httptest.NewRequest("POST", target, bytes.NewReader(data))
}

// Task handler

func TestTaskHandler_SubmitAndGet(t *testing.T) {
	h := NewTaskHandler(newTestOrchestrator(t, defaultRepos()))

	rec := httptest.NewRecorder()
	h.Submit(rec, postJSON(t, "/v1/tasks", map[string]string{"text": "fix the build"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
	var created task.Task
	require.NoError(t, json.Unmarshal(resp.Data, &created))
	assert.Equal(t, "repo-a", created.RepoID)
	assert.Equal(t, task.StateQueued, created.State)

	req := httptest.NewRequest("GET", "/v1/tasks/"+created.ID, nil)
	req = mux.SetURLVars(req, map[string]string{"id": created.ID})
	rec = httptest.NewRecorder()
	h.Get(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var fetched task.Task
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
}

func TestTaskHandler_Submit_NoRepoRegistered(t *testing.T) {
	h := NewTaskHandler(newTestOrchestrator(t, nil))

	rec := httptest.NewRecorder()
	h.Submit(rec, postJSON(t, "/v1/tasks", map[string]string{"text": "orphan"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrNoRepo, resp.Error.Code)
}

func TestTaskHandler_Submit_InvalidBody(t *testing.T) {
	h := NewTaskHandler(newTestOrchestrator(t, defaultRepos()))

	req := httptest.NewRequest("POST", "/v1/tasks", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.Submit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTaskHandler_List(t *testing.T) {
	orch := newTestOrchestrator(t, defaultRepos())
	_, err := orch.SubmitTask(context.Background(), task.SubmitRequest{Text: "one"})
	require.NoError(t, err)
	h := NewTaskHandler(orch)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest("GET", "/v1/tasks", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var tasks []task.Task
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &tasks))
	assert.Len(t, tasks, 1)
}

func TestTaskHandler_Get_NotFound(t *testing.T) {
	h := NewTaskHandler(newTestOrchestrator(t, defaultRepos()))

	req := httptest.NewRequest("GET", "/v1/tasks/unknown", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "unknown"})
	rec := httptest.NewRecorder()
	h.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTaskHandler_Cancel_NotFound(t *testing.T) {
	h := NewTaskHandler(newTestOrchestrator(t, defaultRepos()))

	req := httptest.NewRequest("POST", "/v1/tasks/unknown/cancel", nil)
	req = mux.SetURLVars(req, map[string]string{"id": "unknown"})
	rec := httptest.NewRecorder()
	h.Cancel(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrNotFound, resp.Error.Code)
}

func TestTaskHandler_Unblock_Illegal(t *testing.T) {
	orch := newTestOrchestrator(t, defaultRepos())
	created, err := orch.SubmitTask(context.Background(), task.SubmitRequest{Text: "never blocked"})
	require.NoError(t, err)
	h := NewTaskHandler(orch)

	req := httptest.NewRequest("POST", "/v1/tasks/"+created.ID+"/unblock", nil)
	req = mux.SetURLVars(req, map[string]string{"id": created.ID})
	rec := httptest.NewRecorder()
	h.Unblock(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrBadTransition, resp.Error.Code)
}

// Release handler

func newTestReleaseManager(t *testing.T) *release.Manager {
	t.Helper()
	mgr := release.NewManager(t.TempDir(), nil)
	t.Cleanup(func() { mgr.Close() })
	return mgr
}

func writeReleaseSource(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644))
	return dir
}

func TestReleaseHandler_SnapshotActivateCurrent(t *testing.T) {
	h := NewReleaseHandler(newTestReleaseManager(t))
	src := writeReleaseSource(t)

	rec := httptest.NewRecorder()
	h.Snapshot(rec, postJSON(t, "/v1/releases/snapshot", map[string]string{"sourceDir": src}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var info release.Info
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &info))
	require.Len(t, info.SHA, 12)

	rec = httptest.NewRecorder()
	h.Activate(rec, postJSON(t, "/v1/releases/activate", map[string]string{"sha": info.SHA}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.Current(rec, httptest.NewRequest("GET", "/v1/releases/current", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var current map[string]string
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &current))
	assert.Equal(t, info.SHA, current["sha"])
}

func TestReleaseHandler_Snapshot_MissingSourceDir(t *testing.T) {
	h := NewReleaseHandler(newTestReleaseManager(t))

	rec := httptest.NewRecorder()
	h.Snapshot(rec, postJSON(t, "/v1/releases/snapshot", map[string]string{}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReleaseHandler_Activate_UnknownSHA(t *testing.T) {
	h := NewReleaseHandler(newTestReleaseManager(t))

	rec := httptest.NewRecorder()
	h.Activate(rec, postJSON(t, "/v1/releases/activate", map[string]string{"sha": "deadbeef0000"}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReleaseHandler_Rollback_NoPrevious(t *testing.T) {
	h := NewReleaseHandler(newTestReleaseManager(t))

	rec := httptest.NewRecorder()
	h.Rollback(rec, postJSON(t, "/v1/releases/rollback", map[string]string{}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReleaseHandler_Integrity_OffMode(t *testing.T) {
	h := NewReleaseHandler(newTestReleaseManager(t))

	rec := httptest.NewRecorder()
	h.Integrity(rec, httptest.NewRequest("GET", "/v1/releases/integrity?mode=off", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result release.IntegrityResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &result))
	assert.True(t, result.OK)
	assert.Zero(t, result.Checked)
}

// Bridge handler

func newTestBridge(t *testing.T) *dispatch.Bridge {
	t.Helper()
	submit := func(ctx context.Context, env dispatch.Envelope) (string, error) {
		return "task-from-bridge", nil
	}
	bridge, err := dispatch.NewBridge(t.TempDir(), "bridge-secret",
		dispatch.BackoffConfig{RetryBaseMs: 5, RetryMaxMs: 20, MaxRetries: 2}, submit, nil)
	require.NoError(t, err)
	t.Cleanup(func() { bridge.Stop() })
	return bridge
}

func TestBridgeHandler_Accept(t *testing.T) {
	h := NewBridgeHandler(newTestBridge(t))

	env := dispatch.Envelope{
		MessageID: "m-1",
		Source:    "github",
		Type:      "push",
		Payload:   json.RawMessage(`{"text":"hello"}`),
		Timestamp: time.Now(),
	}
	req := postJSON(t, "/v1/webhook", env)
	req.Header.Set("X-Bridge-Secret", "bridge-secret")
	rec := httptest.NewRecorder()
	h.Accept(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var result dispatch.AcceptResult
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &result))
	assert.Equal(t, dispatch.AcceptQueued, result.Status)
	assert.True(t, result.Ack)
}

func TestBridgeHandler_Accept_WrongSecret(t *testing.T) {
	h := NewBridgeHandler(newTestBridge(t))

	env := dispatch.Envelope{MessageID: "m-2", Source: "github", Type: "push", Payload: json.RawMessage(`{}`), Timestamp: time.Now()}
	req := postJSON(t, "/v1/webhook", env)
	req.Header.Set("X-Bridge-Secret", "wrong")
	rec := httptest.NewRecorder()
	h.Accept(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrUnauthorized, resp.Error.Code)
}

func TestBridgeHandler_Accept_InvalidBody(t *testing.T) {
	h := NewBridgeHandler(newTestBridge(t))

	req := httptest.NewRequest("POST", "/v1/webhook", bytes.NewReader([]byte("{broken")))
	req.Header.Set("X-Bridge-Secret", "bridge-secret")
	rec := httptest.NewRecorder()
	h.Accept(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBridgeHandler_Health(t *testing.T) {
	h := NewBridgeHandler(newTestBridge(t))

	rec := httptest.NewRecorder()
	h.Health(rec, httptest.NewRequest("GET", "/v1/bridge/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var snap dispatch.HealthSnapshot
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &snap))
	assert.NotNil(t, snap.Counts)
}

// Session handler

func TestSessionHandler_AliasLifecycle(t *testing.T) {
	h := NewSessionHandler(session.NewStore(t.TempDir()))

	rec := httptest.NewRecorder()
	h.SetAlias(rec, postJSON(t, "/v1/sessions/aliases", map[string]string{"alias": "  My-Alias  ", "sessionKey": "key-1"}))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created session.Alias
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &created))
	assert.Equal(t, "my-alias", created.Alias)

	req := httptest.NewRequest("GET", "/v1/sessions/aliases/my-alias", nil)
	req = mux.SetURLVars(req, map[string]string{"alias": "my-alias"})
	rec = httptest.NewRecorder()
	h.ResolveAlias(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resolved map[string]string
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &resolved))
	assert.Equal(t, "key-1", resolved["sessionKey"])

	req = httptest.NewRequest("GET", "/v1/sessions/aliases/unknown", nil)
	req = mux.SetURLVars(req, map[string]string{"alias": "unknown"})
	rec = httptest.NewRecorder()
	h.ResolveAlias(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_SetAlias_Invalid(t *testing.T) {
	h := NewSessionHandler(session.NewStore(t.TempDir()))

	rec := httptest.NewRecorder()
	h.SetAlias(rec, postJSON(t, "/v1/sessions/aliases", map[string]string{"alias": "has space", "sessionKey": "k"}))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionHandler_StateRoundTrip(t *testing.T) {
	h := NewSessionHandler(session.NewStore(t.TempDir()))

	req := httptest.NewRequest("PUT", "/v1/sessions/k1/state", bytes.NewReader([]byte(`{"step":"review"}`)))
	req = mux.SetURLVars(req, map[string]string{"key": "k1"})
	rec := httptest.NewRecorder()
	h.SetState(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/v1/sessions/k1/state", nil)
	req = mux.SetURLVars(req, map[string]string{"key": "k1"})
	rec = httptest.NewRecorder()
	h.State(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var state map[string]string
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &state))
	assert.Equal(t, "review", state["step"])
}

func TestSessionHandler_State_NotFound(t *testing.T) {
	h := NewSessionHandler(session.NewStore(t.TempDir()))

	req := httptest.NewRequest("GET", "/v1/sessions/nothing/state", nil)
	req = mux.SetURLVars(req, map[string]string{"key": "nothing"})
	rec := httptest.NewRecorder()
	h.State(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionHandler_ContextReadAndClear(t *testing.T) {
	store := session.NewStore(t.TempDir())
	require.NoError(t, store.AppendLine("k1", session.ContextFile, map[string]string{"taskId": "t-1"}))
	h := NewSessionHandler(store)

	req := httptest.NewRequest("GET", "/v1/sessions/k1/context", nil)
	req = mux.SetURLVars(req, map[string]string{"key": "k1"})
	rec := httptest.NewRecorder()
	h.Context(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var lines []json.RawMessage
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &lines))
	assert.Len(t, lines, 1)

	req = httptest.NewRequest("DELETE", "/v1/sessions/k1/data", nil)
	req = mux.SetURLVars(req, map[string]string{"key": "k1"})
	rec = httptest.NewRecorder()
	h.Clear(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest("GET", "/v1/sessions/k1/context", nil)
	req = mux.SetURLVars(req, map[string]string{"key": "k1"})
	rec = httptest.NewRecorder()
	h.Context(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &lines))
	assert.Empty(t, lines)
}

// Health handler

func TestHealthHandler_Get(t *testing.T) {
	h := NewHealthHandler(newTestOrchestrator(t, defaultRepos()), nil, nil)

	rec := httptest.NewRecorder()
	h.Get(rec, httptest.NewRequest("GET", "/v1/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		Task task.Health `json:"task"`
	}
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &report))
	assert.Equal(t, task.HealthOK, report.Task.Status)
}

// Event handler

func TestEventHandler_History(t *testing.T) {
	bus := events.NewMemoryEventBus(events.MemoryBusConfig{HistoryMaxEvents: 100})
	t.Cleanup(func() { bus.Close() })

	require.NoError(t, bus.Publish(context.Background(), events.Event{
		Type:      events.EventTaskSubmitted,
		Timestamp: time.Now(),
		Scope:     "t-1",
		Payload:   map[string]interface{}{"taskId": "t-1"},
	}))

	h := NewEventHandler(bus)
	rec := httptest.NewRecorder()
	h.History(rec, httptest.NewRequest("GET", "/v1/events?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var list []events.Event
	require.NoError(t, json.Unmarshal(decodeResponse(t, rec).Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, events.EventTaskSubmitted, list[0].Type)
}
