// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/wingedpig/orchestrator/internal/dispatch"
)

// BridgeHandler exposes the inbound webhook bridge supervisor over HTTP.
type BridgeHandler struct {
	bridge *dispatch.Bridge
}

// NewBridgeHandler returns a BridgeHandler wired to bridge.
func NewBridgeHandler(bridge *dispatch.Bridge) *BridgeHandler {
	return &BridgeHandler{bridge: bridge}
}

// Accept handles POST /v1/webhook. The shared secret travels in
// the X-Bridge-Secret header rather than the JSON body, so it never ends
// up persisted alongside the envelope.
func (h *BridgeHandler) Accept(w http.ResponseWriter, r *http.Request) {
	var env dispatch.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid envelope")
		return
	}

	secret := r.Header.Get("X-Bridge-Secret")
	result, err := h.bridge.Accept(env, secret)
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, err.Error())
		return
	}
	if result.Status == dispatch.AcceptRejected {
		WriteError(w, http.StatusUnauthorized, ErrUnauthorized, "envelope authentication failed")
		return
	}
	WriteJSON(w, http.StatusAccepted, result)
}

// Health handles GET /v1/bridge/health.
func (h *BridgeHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.bridge.Health())
}
