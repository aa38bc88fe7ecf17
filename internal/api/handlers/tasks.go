// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/orchestrator/internal/task"
)

// TaskHandler exposes the task orchestrator over HTTP.
type TaskHandler struct {
	orch *task.Orchestrator
}

// NewTaskHandler returns a TaskHandler wired to orch.
func NewTaskHandler(orch *task.Orchestrator) *TaskHandler {
	return &TaskHandler{orch: orch}
}

type submitTaskRequest struct {
	Text         string   `json:"text"`
	RepoID       string   `json:"repoId"`
	SessionKey   string   `json:"sessionKey"`
	ParentTaskID string   `json:"parentTaskId"`
	Fanout       []string `json:"fanout"`
}

// Submit handles POST /v1/tasks.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}

	t, err := h.orch.SubmitTask(r.Context(), task.SubmitRequest{
		Text:         req.Text,
		RepoID:       req.RepoID,
		SessionKey:   req.SessionKey,
		Source:       task.SourceOperator,
		ParentTaskID: req.ParentTaskID,
		Fanout:       req.Fanout,
	})
	if err != nil {
		writeTaskError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, t)
}

// List handles GET /v1/tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.orch.ListTasks())
}

// Get handles GET /v1/tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	t, ok := h.orch.GetTask(id)
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "task not found")
		return
	}
	WriteJSON(w, http.StatusOK, t)
}

// Cancel handles POST /v1/tasks/{id}/cancel.
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.orch.Cancel(r.Context(), id); err != nil {
		writeTaskError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"id": id, "state": string(task.StateCancelled)})
}

// Unblock handles POST /v1/tasks/{id}/unblock.
func (h *TaskHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.orch.Unblock(r.Context(), id); err != nil {
		writeTaskError(w, err)
		return
	}
	t, _ := h.orch.GetTask(id)
	WriteJSON(w, http.StatusOK, t)
}

// writeTaskError maps the task package's sentinel errors onto the
// control-plane error envelope.
func writeTaskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, task.ErrUnknownTask):
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
	case errors.Is(err, task.ErrNoRepoRegistered):
		WriteError(w, http.StatusBadRequest, ErrNoRepo, err.Error())
	case errors.Is(err, task.ErrEmptyText):
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
	case errors.Is(err, task.ErrIllegalTransition):
		WriteError(w, http.StatusConflict, ErrBadTransition, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
	}
}
