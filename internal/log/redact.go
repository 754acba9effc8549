// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"net/url"
)

// RedactURL strips credentials, query and fragment from a URL so it can be
// logged. Playback URLs carry signed tokens in the query string.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	if u.RawQuery != "" {
		u.RawQuery = "redacted"
	}
	u.Fragment = ""
	return u.String()
}

// RedactError returns a copy of a *url.Error with its URL passed through
// RedactURL. net/http transport errors embed the full request URL, token
// included, in their message. err must be the error as returned by the
// client: a wrapping error has already rendered its message and is returned
// unchanged.
func RedactError(err error) error {
	ue, ok := err.(*url.Error)
	if !ok {
		return err
	}
	return &url.Error{Op: ue.Op, URL: RedactURL(ue.URL), Err: ue.Err}
}
