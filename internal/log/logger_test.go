// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LogsStatus(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf, Service: "test"})

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/api/content/manifest/42", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	assert.Equal(t, "request.handled", entry[FieldEvent])
	assert.Equal(t, float64(http.StatusTeapot), entry[FieldStatus])
	assert.Equal(t, "/api/content/manifest/42", entry[FieldPath])
	assert.Equal(t, "test", entry["service"])
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example/x/manifest.mpd?hdntl=exp=1~acl=*", "https://cdn.example/x/manifest.mpd?redacted"},
		{"https://user:pw@cdn.example/a.mpd", "https://cdn.example/a.mpd"},
		{"https://cdn.example/a.mpd#frag", "https://cdn.example/a.mpd"},
		{"://bad", "invalid-url-redacted"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactURL(tt.in), tt.in)
	}
}

func TestRedactError(t *testing.T) {
	err := RedactError(&url.Error{
		Op:  "Get",
		URL: "http://127.0.0.1:1/cdn/manifest.mpd?hdntl=exp=1~hmac=SECRETHMAC",
		Err: errors.New("connection refused"),
	})
	assert.NotContains(t, err.Error(), "SECRETHMAC")
	assert.Contains(t, err.Error(), "/cdn/manifest.mpd?redacted")

	var ue *url.Error
	assert.ErrorAs(t, err, &ue)
	assert.Equal(t, "connection refused", ue.Err.Error())

	plain := errors.New("plain")
	assert.Same(t, plain, RedactError(plain))
	assert.NoError(t, RedactError(nil))
}
