// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	xglog "github.com/ManuGH/mpdgate/internal/log"
)

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth keeps the response shape existing clients poll for.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "OK",
		"message": "Server is running",
	})
}

// handleClearCache serves DELETE /api/cache.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	logger := xglog.WithComponentFromContext(r.Context(), "api")
	if err := s.deps.Cache.Invalidate(r.Context()); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "cache.clear_failed").Msg("clearing url cache failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache clear failed"})
		return
	}
	logger.Info().Str(xglog.FieldEvent, "cache.cleared").Msg("url cache cleared by operator")
	w.WriteHeader(http.StatusNoContent)
}

// handleForgetCached serves DELETE /api/cache/{id}.
func (s *Server) handleForgetCached(w http.ResponseWriter, r *http.Request) {
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
	if err := s.deps.Cache.Forget(ctx, id); err != nil {
		logger.Error().Err(err).Str(xglog.FieldEvent, "cache.forget_failed").Msg("dropping cached url failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache delete failed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
