// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/unicode/norm"
)

const maxContentIDLen = 128

var (
	errMissingID = errors.New("missing content id")
	errInvalidID = errors.New("invalid content id")
)

// contentIDParam returns the normalised {id} path parameter. chi matches on
// r.URL.RawPath when the request carried escapes net/url would not produce
// itself, and on the already decoded r.URL.Path otherwise; only the former
// leaves escapes in the parameter.
func contentIDParam(r *http.Request) (string, error) {
	raw := chi.URLParam(r, "id")
	if r.URL.RawPath != "" {
		var err error
		if raw, err = url.PathUnescape(raw); err != nil {
			return "", errInvalidID
		}
	}
	return normalizeContentID(raw)
}

// normalizeContentID NFC-normalises a decoded id so that the same id always
// maps to the same cache key.
func normalizeContentID(id string) (string, error) {
	if !utf8.ValidString(id) {
		return "", errInvalidID
	}
	id = strings.TrimSpace(norm.NFC.String(id))
	if id == "" {
		return "", errMissingID
	}
	if utf8.RuneCountInString(id) > maxContentIDLen {
		return "", errInvalidID
	}
	for _, r := range id {
		if unicode.IsControl(r) || r == '/' {
			return "", errInvalidID
		}
	}
	return id, nil
}

// encodeURIComponent escapes s the way browsers do for a URI component.
func encodeURIComponent(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
