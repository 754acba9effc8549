// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package auth checks the admin token on operator endpoints.
package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ManuGH/mpdgate/internal/log"
)

// HeaderAdminToken is accepted for clients that cannot set Authorization.
const HeaderAdminToken = "X-Admin-Token"

// ExtractToken retrieves the admin token from the request.
// 1. Authorization: Bearer <token>
// 2. Header: X-Admin-Token
// Query parameters are never consulted: tokens would end up in access logs.
func ExtractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(r.Header.Get(HeaderAdminToken))
}

// AuthorizeToken returns true if got matches expected using constant-time comparison.
// Empty tokens are always treated as unauthorized.
func AuthorizeToken(got, expected string) bool {
	if strings.TrimSpace(expected) == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(expected)) == 1
}

// RequireToken guards next with the expected token. An empty expected token
// hides the endpoint behind a 404.
func RequireToken(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(expected) == "" {
				http.NotFound(w, r)
				return
			}
			if !AuthorizeToken(ExtractToken(r), expected) {
				logger := log.WithComponentFromContext(r.Context(), "auth")
				logger.Warn().
					Str(log.FieldEvent, "auth.rejected").
					Str(log.FieldPath, r.URL.Path).
					Msg("admin token missing or invalid")
				w.Header().Set("WWW-Authenticate", `Bearer realm="mpdgate"`)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
