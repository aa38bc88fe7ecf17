// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package middleware

import (
	"crypto/hmac"
	"crypto/sha256"
	"net/http"
	"strings"
)

// Auth returns middleware enforcing a bearer token against token
// (CONTROL_AUTH_TOKEN). An empty token disables auth entirely, the way a
// local development daemon runs without one configured.
func Auth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		want := digest(token)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if got == "" || !hmac.Equal(digest(got), want) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"missing or invalid bearer token"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func digest(s string) []byte {
	mac := hmac.New(sha256.New, []byte("control-auth"))
	mac.Write([]byte(s))
	return mac.Sum(nil)
}
