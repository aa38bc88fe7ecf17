// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/wingedpig/orchestrator/internal/dispatch"
	"github.com/wingedpig/orchestrator/internal/task"
)

// HealthHandler combines the task orchestrator's self-reported health
// with the outbox and bridge dispatch snapshots into a single
// control-plane health endpoint.
type HealthHandler struct {
	orch   *task.Orchestrator
	outbox *dispatch.Outbox
	bridge *dispatch.Bridge
}

// NewHealthHandler returns a HealthHandler. outbox and bridge may be nil
// if the daemon was started without them configured.
func NewHealthHandler(orch *task.Orchestrator, outbox *dispatch.Outbox, bridge *dispatch.Bridge) *HealthHandler {
	return &HealthHandler{orch: orch, outbox: outbox, bridge: bridge}
}

type healthResponse struct {
	Task   task.Health              `json:"task"`
	Outbox *dispatch.HealthSnapshot `json:"outbox,omitempty"`
	Bridge *dispatch.HealthSnapshot `json:"bridge,omitempty"`
}

// Get handles GET /v1/health.
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Task: h.orch.Health()}
	if h.outbox != nil {
		snap := h.outbox.Health()
		resp.Outbox = &snap
	}
	if h.bridge != nil {
		snap := h.bridge.Health()
		resp.Bridge = &snap
	}
	WriteJSON(w, http.StatusOK, resp)
}
