// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package version implements Stripe-style date-based API versioning for
// the orchestrator control-plane API. Clients send the version they were
// built against via the Orchestrator-Version header; when absent, the
// latest version is used.
package version

import (
	"context"
	"net/http"
)

// LatestVersion is the current default API version.
const LatestVersion = "2026-01-01"

// Header is the HTTP header used to specify the API version.
const Header = "Orchestrator-Version"

type contextKey string

const versionKey contextKey = "api-version"

// FromContext returns the API version associated with ctx, or
// LatestVersion if none was set.
func FromContext(ctx context.Context) string {
	v, ok := ctx.Value(versionKey).(string)
	if !ok || v == "" {
		return LatestVersion
	}
	return v
}

// Middleware stamps the request's API version onto its context from the
// Orchestrator-Version header, defaulting to LatestVersion.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := r.Header.Get(Header)
		if v == "" {
			v = LatestVersion
		}
		ctx := context.WithValue(r.Context(), versionKey, v)
		w.Header().Set(Header, LatestVersion)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
