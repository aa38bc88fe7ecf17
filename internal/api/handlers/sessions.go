// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/wingedpig/orchestrator/internal/session"
)

// SessionHandler exposes the per-session filesystem namespace over HTTP:
// context/log read-back, state blobs, and the alias map.
type SessionHandler struct {
	store *session.Store
}

// NewSessionHandler returns a SessionHandler wired to store.
func NewSessionHandler(store *session.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

// Context handles GET /v1/sessions/{key}/context.
func (h *SessionHandler) Context(w http.ResponseWriter, r *http.Request) {
	h.readLines(w, r, session.ContextFile)
}

// Log handles GET /v1/sessions/{key}/log.
func (h *SessionHandler) Log(w http.ResponseWriter, r *http.Request) {
	h.readLines(w, r, session.LogFile)
}

func (h *SessionHandler) readLines(w http.ResponseWriter, r *http.Request, file string) {
	key := mux.Vars(r)["key"]
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	lines, err := h.store.ReadJSONLines(key, file, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, lines)
}

// State handles GET /v1/sessions/{key}/state.
func (h *SessionHandler) State(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var state json.RawMessage
	if err := h.store.ReadSessionState(key, &state); err != nil {
		if os.IsNotExist(err) {
			WriteError(w, http.StatusNotFound, ErrNotFound, "no state recorded for session")
			return
		}
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, state)
}

// SetState handles PUT /v1/sessions/{key}/state: replaces the session's
// state blob with the request body.
func (h *SessionHandler) SetState(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	var state json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "state body must be valid JSON")
		return
	}
	if err := h.store.WriteSessionState(key, state); err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]bool{"written": true})
}

// Clear handles DELETE /v1/sessions/{key}/data: best-effort removal of the
// session's context and log files, leaving any state blob intact.
func (h *SessionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	h.store.ClearSessionData(key)
	WriteJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

// Aliases handles GET /v1/sessions/aliases.
func (h *SessionHandler) Aliases(w http.ResponseWriter, r *http.Request) {
	aliases, err := h.store.ReadAliases()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, aliases)
}

type setAliasRequest struct {
	Alias      string `json:"alias"`
	SessionKey string `json:"sessionKey"`
}

// SetAlias handles POST /v1/sessions/aliases.
func (h *SessionHandler) SetAlias(w http.ResponseWriter, r *http.Request) {
	var req setAliasRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SessionKey == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "alias and sessionKey are required")
		return
	}
	rec, err := h.store.SetAlias(req.Alias, req.SessionKey)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	WriteJSON(w, http.StatusCreated, rec)
}

// ResolveAlias handles GET /v1/sessions/aliases/{alias}.
func (h *SessionHandler) ResolveAlias(w http.ResponseWriter, r *http.Request) {
	alias := mux.Vars(r)["alias"]
	key, ok, err := h.store.ResolveAlias(alias)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, ErrInternalError, err.Error())
		return
	}
	if !ok {
		WriteError(w, http.StatusNotFound, ErrNotFound, "alias not found")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"alias": alias, "sessionKey": key})
}
