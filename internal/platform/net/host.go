// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package net

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

// NormalizeHost lowercases a host and converts internationalized names to
// their ASCII form so hosts compare reliably. Ports and IPv6 brackets are
// stripped.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.ContainsAny(host, "/@%") {
		return "", fmt.Errorf("invalid host: %s", raw)
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ContainsMarker reports whether any marker occurs in the normalized host or
// in the path of u. Empty markers never match.
func ContainsMarker(u *url.URL, markers []string) bool {
	if u == nil {
		return false
	}
	host, err := NormalizeHost(u.Host)
	if err != nil {
		host = strings.ToLower(u.Host)
	}
	for _, m := range markers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if strings.Contains(host, m) || strings.Contains(u.Path, m) {
			return true
		}
	}
	return false
}
