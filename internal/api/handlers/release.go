// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wingedpig/orchestrator/internal/release"
)

// ReleaseHandler exposes the content-addressed release manager over HTTP.
type ReleaseHandler struct {
	mgr *release.Manager
}

// NewReleaseHandler returns a ReleaseHandler wired to mgr.
func NewReleaseHandler(mgr *release.Manager) *ReleaseHandler {
	return &ReleaseHandler{mgr: mgr}
}

type snapshotRequest struct {
	SourceDir string `json:"sourceDir"`
}

// Snapshot handles POST /v1/releases/snapshot.
func (h *ReleaseHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SourceDir == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "sourceDir is required")
		return
	}
	info, err := h.mgr.CreateSnapshot(r.Context(), req.SourceDir)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, info)
}

type activateRequest struct {
	SHA string `json:"sha"`
}

// Activate handles POST /v1/releases/activate.
func (h *ReleaseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req activateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SHA == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "sha is required")
		return
	}
	if err := h.mgr.Activate(r.Context(), req.SHA); err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"sha": req.SHA, "activated": "true"})
}

type rollbackRequest struct {
	Target string `json:"target"`
}

// Rollback handles POST /v1/releases/rollback.
func (h *ReleaseHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	var req rollbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.Target == "" {
		req.Target = "previous"
	}
	if err := h.mgr.Rollback(r.Context(), req.Target); err != nil {
		WriteError(w, http.StatusNotFound, ErrNotFound, err.Error())
		return
	}
	sha, _ := h.mgr.CurrentSHA()
	WriteJSON(w, http.StatusOK, map[string]string{"sha": sha})
}

// Current handles GET /v1/releases/current.
func (h *ReleaseHandler) Current(w http.ResponseWriter, r *http.Request) {
	sha, err := h.mgr.CurrentSHA()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"sha": sha})
}

// Integrity handles GET /v1/releases/integrity.
func (h *ReleaseHandler) Integrity(w http.ResponseWriter, r *http.Request) {
	mode := release.IntegrityMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = release.ModeWarn
	}
	result := h.mgr.IntegrityCheck(r.Context(), mode)
	WriteJSON(w, http.StatusOK, result)
}
