// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package session exposes the subscriber credentials written by the login
// flow. The login flow itself lives elsewhere; this package only reads its
// persisted record.
package session

import (
	"context"
	"errors"
)

var (
	// ErrNoSession means nobody is logged in.
	ErrNoSession = errors.New("session: login required")
	// ErrInvalidSession means the login record lacks the subscriber id or token.
	ErrInvalidSession = errors.New("session: invalid login data")
)

// Credentials authenticate content-detail lookups.
type Credentials struct {
	SubscriberID string
	Token        string
}

// Valid reports whether both fields are present.
func (c Credentials) Valid() bool {
	return c.SubscriberID != "" && c.Token != ""
}

// Provider returns the current credentials.
type Provider interface {
	Credentials(ctx context.Context) (Credentials, error)
}

// Static always returns the same credentials.
type Static Credentials

func (s Static) Credentials(context.Context) (Credentials, error) {
	c := Credentials(s)
	if c == (Credentials{}) {
		return Credentials{}, ErrNoSession
	}
	if !c.Valid() {
		return Credentials{}, ErrInvalidSession
	}
	return c, nil
}
