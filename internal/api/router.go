// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api implements the control-plane HTTP surface:
// an interface onto the task orchestrator, release manager, and bridge
// supervisor for operators and the out-of-scope HTTP/socket server layer
// to drive. The full web server (TLS, virtual hosting, static assets) is
// deliberately out of scope; this package is the thin JSON surface that
// server embeds.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wingedpig/orchestrator/internal/api/handlers"
	"github.com/wingedpig/orchestrator/internal/api/middleware"
	"github.com/wingedpig/orchestrator/internal/api/version"
	"github.com/wingedpig/orchestrator/internal/dispatch"
	"github.com/wingedpig/orchestrator/internal/events"
	"github.com/wingedpig/orchestrator/internal/release"
	"github.com/wingedpig/orchestrator/internal/session"
	"github.com/wingedpig/orchestrator/internal/task"
)

// Dependencies wires the control-plane components this router exposes.
// Outbox and Bridge are optional: a daemon configured without a
// BRIDGE_SHARED_SECRET runs with Bridge nil and simply has no /v1/webhook
// route registered.
type Dependencies struct {
	Orchestrator *task.Orchestrator
	Release      *release.Manager
	Outbox       *dispatch.Outbox
	Bridge       *dispatch.Bridge
	Sessions     *session.Store
	Bus          events.EventBus
	AuthToken    string
}

// NewRouter builds the control-plane HTTP mux.
func NewRouter(deps Dependencies) http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS)
	r.Use(version.Middleware)
	r.Use(middleware.Auth(deps.AuthToken))

	api := r.PathPrefix("/v1").Subrouter()

	// Registered ahead of /tasks/{id} so that /tasks/stream is not
	// captured as a task id.
	if deps.Bus != nil {
		ev := handlers.NewEventHandler(deps.Bus)
		api.HandleFunc("/events", ev.History).Methods(http.MethodGet)
		api.HandleFunc("/tasks/stream", ev.WebSocket).Methods(http.MethodGet)
	}

	tasks := handlers.NewTaskHandler(deps.Orchestrator)
	api.HandleFunc("/tasks", tasks.Submit).Methods(http.MethodPost)
	api.HandleFunc("/tasks", tasks.List).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", tasks.Get).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}/cancel", tasks.Cancel).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}/unblock", tasks.Unblock).Methods(http.MethodPost)

	if deps.Release != nil {
		rel := handlers.NewReleaseHandler(deps.Release)
		api.HandleFunc("/releases/snapshot", rel.Snapshot).Methods(http.MethodPost)
		api.HandleFunc("/releases/activate", rel.Activate).Methods(http.MethodPost)
		api.HandleFunc("/releases/rollback", rel.Rollback).Methods(http.MethodPost)
		api.HandleFunc("/releases/current", rel.Current).Methods(http.MethodGet)
		api.HandleFunc("/releases/integrity", rel.Integrity).Methods(http.MethodGet)
	}

	if deps.Bridge != nil {
		bridge := handlers.NewBridgeHandler(deps.Bridge)
		api.HandleFunc("/webhook", bridge.Accept).Methods(http.MethodPost)
		api.HandleFunc("/bridge/health", bridge.Health).Methods(http.MethodGet)
	}

	if deps.Sessions != nil {
		sess := handlers.NewSessionHandler(deps.Sessions)
		api.HandleFunc("/sessions/aliases", sess.Aliases).Methods(http.MethodGet)
		api.HandleFunc("/sessions/aliases", sess.SetAlias).Methods(http.MethodPost)
		api.HandleFunc("/sessions/aliases/{alias}", sess.ResolveAlias).Methods(http.MethodGet)
		api.HandleFunc("/sessions/{key}/context", sess.Context).Methods(http.MethodGet)
		api.HandleFunc("/sessions/{key}/log", sess.Log).Methods(http.MethodGet)
		api.HandleFunc("/sessions/{key}/state", sess.State).Methods(http.MethodGet)
		api.HandleFunc("/sessions/{key}/state", sess.SetState).Methods(http.MethodPut)
		api.HandleFunc("/sessions/{key}/data", sess.Clear).Methods(http.MethodDelete)
	}

	health := handlers.NewHealthHandler(deps.Orchestrator, deps.Outbox, deps.Bridge)
	api.HandleFunc("/health", health.Get).Methods(http.MethodGet)

	return r
}
