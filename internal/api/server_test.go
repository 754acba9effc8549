// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ManuGH/mpdgate/internal/api/middleware"
	"github.com/ManuGH/mpdgate/internal/contentdetail"
	"github.com/ManuGH/mpdgate/internal/health"
	"github.com/ManuGH/mpdgate/internal/resolver"
	"github.com/ManuGH/mpdgate/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `<MPD><Period/></MPD>`

type fakeResolver struct {
	result *resolver.Result
	err    error
	gotID  string
	gotCr  session.Credentials
}

func (f *fakeResolver) Resolve(_ context.Context, id string, creds session.Credentials) (*resolver.Result, error) {
	f.gotID = id
	f.gotCr = creds
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeCache struct {
	cleared atomic.Int32
	err     error

	mu        sync.Mutex
	forgotten []string
}

func (f *fakeCache) Invalidate(context.Context) error {
	f.cleared.Add(1)
	return f.err
}

func (f *fakeCache) Forget(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.forgotten = append(f.forgotten, id)
	return nil
}

type sessionFunc func() (session.Credentials, error)

func (f sessionFunc) Credentials(context.Context) (session.Credentials, error) { return f() }

var loggedIn = session.Static{SubscriberID: "1001", Token: "tok"}

func newTestServer(t *testing.T, res *fakeResolver, sessions session.Provider) (*Server, *fakeCache) {
	t.Helper()
	cache := &fakeCache{}
	srv := New(Deps{
		Resolver:   res,
		Sessions:   sessions,
		Cache:      cache,
		AdminToken: "admin-secret",
		Stack: middleware.StackConfig{
			EnableCORS:            true,
			EnableSecurityHeaders: true,
			EnableLogging:         true,
		},
	})
	return srv, cache
}

func do(srv *Server, method, target string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestManifest_Success(t *testing.T) {
	res := &fakeResolver{result: &resolver.Result{
		ContentID: "42",
		Manifest:  []byte(testManifest),
		FromCache: true,
	}}
	srv, _ := newTestServer(t, res, loggedIn)

	rec := do(srv, http.MethodGet, "/api/content/manifest/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testManifest, rec.Body.String())

	h := rec.Header()
	assert.Equal(t, "application/dash+xml", h.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="tp42.mpd"`, h.Get("Content-Disposition"))
	assert.Equal(t, "nosniff", h.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", h.Get("X-Frame-Options"))
	assert.Equal(t, "1; mode=block", h.Get("X-XSS-Protection"))
	assert.Equal(t, "default-src 'self';", h.Get("Content-Security-Policy"))
	assert.Equal(t, "*", h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET, POST, OPTIONS", h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type, Authorization", h.Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "HIT", h.Get("X-Cache"))
	assert.Empty(t, h.Get("X-Mpdgate-Degraded"))

	assert.Equal(t, "42", res.gotID)
	assert.Equal(t, session.Credentials(loggedIn), res.gotCr)
}

func TestManifest_DegradedStagesAreReported(t *testing.T) {
	res := &fakeResolver{result: &resolver.Result{
		Manifest: []byte(testManifest),
		Degraded: []resolver.Stage{resolver.StageRedirect, resolver.StageSegmentFetch},
	}}
	srv, _ := newTestServer(t, res, loggedIn)

	rec := do(srv, http.MethodGet, "/api/content/manifest/42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	assert.Equal(t, "redirect,segment_fetch", rec.Header().Get("X-Mpdgate-Degraded"))
}

func TestManifest_ContentIDHandling(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		status   int
		wantID   string
		filename string
	}{
		{"nfc normalised", "/api/content/manifest/cafe%CC%81", http.StatusOK, "café", "tpcaf%C3%A9.mpd"},
		{"spaces escaped", "/api/content/manifest/a%20b", http.StatusOK, "a b", "tpa%20b.mpd"},
		{"quote escaped", "/api/content/manifest/a%22b", http.StatusOK, "a\"b", "tpa%22b.mpd"},
		{"escaped percent", "/api/content/manifest/100%25", http.StatusOK, "100%", "tp100%25.mpd"},
		{"escaped percent with raw path", "/api/content/manifest/50%25%2B1", http.StatusOK, "50%+1", "tp50%25%2B1.mpd"},
		{"missing", "/api/content/manifest/", http.StatusBadRequest, "", ""},
		{"blank", "/api/content/manifest/%20", http.StatusBadRequest, "", ""},
		{"encoded slash", "/api/content/manifest/a%2Fb", http.StatusBadRequest, "", ""},
		{"control char", "/api/content/manifest/a%0Ab", http.StatusBadRequest, "", ""},
		{"too long", "/api/content/manifest/" + strings.Repeat("x", maxContentIDLen+1), http.StatusBadRequest, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := &fakeResolver{result: &resolver.Result{Manifest: []byte(testManifest)}}
			srv, _ := newTestServer(t, res, loggedIn)

			rec := do(srv, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status != http.StatusOK {
				assert.Empty(t, res.gotID, "resolver must not run")
				return
			}
			assert.Equal(t, tt.wantID, res.gotID)
			assert.Equal(t, `attachment; filename="`+tt.filename+`"`, rec.Header().Get("Content-Disposition"))
		})
	}
}

func TestManifest_SessionErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		body   string
	}{
		{session.ErrNoSession, http.StatusUnauthorized, "Login required"},
		{session.ErrInvalidSession, http.StatusForbidden, "Invalid login data"},
		{errors.New("permission denied reading /data/login.json"), http.StatusInternalServerError, "Failed to fetch MPD content"},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			res := &fakeResolver{}
			srv, _ := newTestServer(t, res, sessionFunc(func() (session.Credentials, error) {
				return session.Credentials{}, tt.err
			}))

			rec := do(srv, http.MethodGet, "/api/content/manifest/42", nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body+"\n", rec.Body.String())
			assert.Empty(t, res.gotID)
		})
	}
}

func TestManifest_ResolveErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"no pointer", fmt.Errorf("content_detail: %w", contentdetail.ErrNotFound), http.StatusNotFound, "dashPlayreadyPlayUrl not found"},
		{"token rejected", fmt.Errorf("content_detail: %w", contentdetail.ErrUnauthorized), http.StatusForbidden, "Invalid login data"},
		{"upstream down", fmt.Errorf("content_detail: %w", contentdetail.ErrUpstreamUnavailable), http.StatusInternalServerError, "Failed to fetch MPD content"},
		{"manifest fetch", &resolver.StageError{
			Stage: resolver.StageManifestFetch,
			Err:   fmt.Errorf("%w: https://cdn.example/live.mpd?hdnts=secret-token", resolver.ErrManifestFetch),
		}, http.StatusInternalServerError, "Failed to fetch MPD content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeResolver{err: tt.err}, loggedIn)
			rec := do(srv, http.MethodGet, "/api/content/manifest/42", nil)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.body+"\n", rec.Body.String())
			assert.NotContains(t, rec.Body.String(), "secret-token")
		})
	}
}

func TestManifest_Passthrough(t *testing.T) {
	target := "https://cdn.example/plain/manifest.mpd?exp=1"
	res := &fakeResolver{result: &resolver.Result{ManifestURL: target, Passthrough: true}}
	srv, _ := newTestServer(t, res, loggedIn)

	rec := do(srv, http.MethodGet, "/api/content/manifest/7", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, target, rec.Header().Get("Location"))
}

func TestHealthEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, &fakeResolver{}, loggedIn)

	rec := do(srv, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, map[string]string{"status": "OK", "message": "Server is running"}, body)

	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, do(srv, http.MethodGet, "/readyz", nil).Code)

	metrics := do(srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, metrics.Code)
	assert.Contains(t, metrics.Body.String(), "go_goroutines")
}

func TestReadyz_ReflectsCheckers(t *testing.T) {
	mgr := health.NewManager("test")
	mgr.RegisterChecker(health.NewSessionChecker(session.Static{}))
	srv := New(Deps{Resolver: &fakeResolver{}, Sessions: session.Static{}, Cache: &fakeCache{}, Health: mgr})

	rec := do(srv, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code, "a missing login only degrades readiness")
	assert.Contains(t, rec.Body.String(), `"status":"degraded"`)
}

func TestClearCache(t *testing.T) {
	srv, cache := newTestServer(t, &fakeResolver{}, loggedIn)

	rec := do(srv, http.MethodDelete, "/api/cache", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(srv, http.MethodDelete, "/api/cache", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, cache.cleared.Load())

	rec = do(srv, http.MethodDelete, "/api/cache", http.Header{"Authorization": {"Bearer admin-secret"}})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.EqualValues(t, 1, cache.cleared.Load())

	cache.err = errors.New("disk full")
	rec = do(srv, http.MethodDelete, "/api/cache", http.Header{"Authorization": {"Bearer admin-secret"}})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestForgetCached(t *testing.T) {
	srv, cache := newTestServer(t, &fakeResolver{}, loggedIn)
	admin := http.Header{"Authorization": {"Bearer admin-secret"}}

	rec := do(srv, http.MethodDelete, "/api/cache/42", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, cache.forgotten)

	rec = do(srv, http.MethodDelete, "/api/cache/42", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = do(srv, http.MethodDelete, "/api/cache/cafe%CC%81", admin)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"42", "café"}, cache.forgotten)
	assert.Zero(t, cache.cleared.Load(), "a single id must not clear the whole cache")

	rec = do(srv, http.MethodDelete, "/api/cache/a%2Fb", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	cache.err = errors.New("disk full")
	rec = do(srv, http.MethodDelete, "/api/cache/42", admin)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClearCache_DisabledWithoutToken(t *testing.T) {
	cache := &fakeCache{}
	srv := New(Deps{Resolver: &fakeResolver{}, Sessions: loggedIn, Cache: cache})

	rec := do(srv, http.MethodDelete, "/api/cache", http.Header{"Authorization": {"Bearer "}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Zero(t, cache.cleared.Load())

	rec = do(srv, http.MethodDelete, "/api/cache/42", http.Header{"Authorization": {"Bearer "}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, cache.forgotten)
}

func TestPreflight(t *testing.T) {
	srv, _ := newTestServer(t, &fakeResolver{}, loggedIn)
	rec := do(srv, http.MethodOptions, "/api/content/manifest/42", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
