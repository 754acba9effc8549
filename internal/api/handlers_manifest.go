// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ManuGH/mpdgate/internal/api/middleware"
	"github.com/ManuGH/mpdgate/internal/contentdetail"
	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/ManuGH/mpdgate/internal/session"
)

// Response bodies are plain text and never carry internals.
const (
	msgMissingID    = "Missing content ID"
	msgInvalidID    = "Invalid content ID"
	msgLogin        = "Login required"
	msgInvalidLogin = "Invalid login data"
	msgNoPointer    = "dashPlayreadyPlayUrl not found"
	msgFetchFailed  = "Failed to fetch MPD content"
)

func (s *Server) handleMissingID(w http.ResponseWriter, _ *http.Request) {
	http.Error(w, msgMissingID, http.StatusBadRequest)
}

// handleManifest serves GET /api/content/manifest/{id}.
func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	id, err := contentIDParam(r)
	switch {
	case errors.Is(err, errMissingID):
		http.Error(w, msgMissingID, http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, msgInvalidID, http.StatusBadRequest)
		return
	}

	ctx := xglog.ContextWithContentID(r.Context(), id)
	logger := xglog.WithComponentFromContext(ctx, "api")

	creds, err := s.deps.Sessions.Credentials(ctx)
	if err != nil {
		status, msg := sessionStatus(err)
		if status == http.StatusInternalServerError {
			logger.Error().Err(err).Str(xglog.FieldEvent, "manifest.session_error").Msg("reading login record failed")
		}
		http.Error(w, msg, status)
		return
	}

	res, err := s.deps.Resolver.Resolve(ctx, id, creds)
	if err != nil {
		if ctx.Err() != nil {
			logger.Debug().Err(err).Str(xglog.FieldEvent, "manifest.client_gone").Msg("client went away")
			return
		}
		status, msg := resolveStatus(err)
		evt := logger.Warn()
		if status >= http.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.Err(err).
			Str(xglog.FieldEvent, "manifest.failed").
			Int(xglog.FieldStatus, status).
			Msg("manifest resolution failed")
		http.Error(w, msg, status)
		return
	}

	if res.Passthrough {
		http.Redirect(w, r, res.ManifestURL, http.StatusFound)
		return
	}

	setManifestHeaders(w.Header(), id)
	w.Header().Set("X-Cache", cacheHeader(res.FromCache))
	if len(res.Degraded) > 0 {
		stages := make([]string, len(res.Degraded))
		for i, st := range res.Degraded {
			stages[i] = string(st)
		}
		w.Header().Set("X-Mpdgate-Degraded", strings.Join(stages, ","))
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Manifest)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(res.Manifest); err != nil {
		logger.Debug().Err(err).Str(xglog.FieldEvent, "manifest.write_failed").Msg("writing manifest failed")
	}
}

func setManifestHeaders(h http.Header, id string) {
	h.Set("Content-Security-Policy", middleware.DefaultCSP)
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", middleware.AllowMethods)
	h.Set("Access-Control-Allow-Headers", middleware.AllowHeaders)
	h.Set("Content-Type", "application/dash+xml")
	h.Set("Content-Disposition", `attachment; filename="tp`+encodeURIComponent(id)+`.mpd"`)
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}

func sessionStatus(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized, msgLogin
	case errors.Is(err, session.ErrInvalidSession):
		return http.StatusForbidden, msgInvalidLogin
	default:
		return http.StatusInternalServerError, msgFetchFailed
	}
}

// resolveStatus maps resolution errors onto the response. Only the cases a
// client can act on get their own status.
func resolveStatus(err error) (int, string) {
	switch {
	case errors.Is(err, contentdetail.ErrNotFound):
		return http.StatusNotFound, msgNoPointer
	case errors.Is(err, contentdetail.ErrUnauthorized):
		return http.StatusForbidden, msgInvalidLogin
	default:
		return http.StatusInternalServerError, msgFetchFailed
	}
}

