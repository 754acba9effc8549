// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	xglog "github.com/ManuGH/mpdgate/internal/log"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// LoginFileName is the record the login flow writes into the data dir.
const LoginFileName = "login.json"

type loginRecord struct {
	Data struct {
		SubscriberID          string `json:"subscriberId"`
		UserAuthenticateToken string `json:"userAuthenticateToken"`
	} `json:"data"`
}

// FileProvider serves credentials from the login record and follows changes
// to it. Removing the record ends the session and runs the teardown hooks.
type FileProvider struct {
	path   string
	logger zerolog.Logger

	mu    sync.RWMutex
	creds Credentials
	err   error

	hookMu     sync.Mutex
	onTeardown []func(context.Context)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewFileProvider loads dir/login.json. A missing file is not an error; the
// provider reports ErrNoSession until one appears.
func NewFileProvider(dir string) *FileProvider {
	p := &FileProvider{
		path:   filepath.Join(dir, LoginFileName),
		logger: xglog.WithComponent("session"),
	}
	p.reload()
	return p
}

// Path returns the watched login record.
func (p *FileProvider) Path() string { return p.path }

// Credentials returns the last loaded credentials.
func (p *FileProvider) Credentials(context.Context) (Credentials, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.err != nil {
		return Credentials{}, p.err
	}
	return p.creds, nil
}

// OnTeardown registers fn to run whenever the login record disappears.
func (p *FileProvider) OnTeardown(fn func(context.Context)) {
	p.hookMu.Lock()
	defer p.hookMu.Unlock()
	p.onTeardown = append(p.onTeardown, fn)
}

// Start watches the data dir until ctx is cancelled or Close is called.
// The directory is watched rather than the file so a record that is deleted
// and written again is picked up.
func (p *FileProvider) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch data dir: %w", err)
	}

	p.watcher = watcher
	p.done = make(chan struct{})
	p.reload()

	p.logger.Info().
		Str(xglog.FieldEvent, "session.watcher_started").
		Str(xglog.FieldPath, p.path).
		Msg("watching login record")

	go p.watchLoop(ctx)
	return nil
}

// Close stops the watcher and waits for its goroutine.
func (p *FileProvider) Close() error {
	if p.watcher == nil {
		return nil
	}
	err := p.watcher.Close()
	<-p.done
	return err
}

func (p *FileProvider) watchLoop(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			_ = p.watcher.Close()
			return

		case event, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(p.path) {
				continue
			}
			p.logger.Debug().
				Str(xglog.FieldEvent, "session.file_changed").
				Str("op", event.Op.String()).
				Msg("login record changed")

			hadSession := p.active()
			p.reload()
			if hadSession && (event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) && !p.active() {
				p.teardown(ctx)
			}

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error().Err(err).
				Str(xglog.FieldEvent, "session.watcher_error").
				Msg("login record watcher error")
		}
	}
}

func (p *FileProvider) active() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return !errors.Is(p.err, ErrNoSession)
}

func (p *FileProvider) reload() {
	creds, err := readLogin(p.path)
	p.mu.Lock()
	p.creds, p.err = creds, err
	p.mu.Unlock()

	switch {
	case err == nil:
		p.logger.Info().Str(xglog.FieldEvent, "session.loaded").Msg("login record loaded")
	case errors.Is(err, ErrNoSession):
		p.logger.Debug().Str(xglog.FieldEvent, "session.absent").Msg("no login record")
	default:
		p.logger.Warn().Err(err).Str(xglog.FieldEvent, "session.invalid").Msg("login record unusable")
	}
}

func (p *FileProvider) teardown(ctx context.Context) {
	p.logger.Info().Str(xglog.FieldEvent, "session.teardown").Msg("login record removed")
	p.hookMu.Lock()
	hooks := append([]func(context.Context){}, p.onTeardown...)
	p.hookMu.Unlock()
	for _, fn := range hooks {
		fn(ctx)
	}
}

func readLogin(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Credentials{}, ErrNoSession
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	var rec loginRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Credentials{}, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	creds := Credentials{SubscriberID: rec.Data.SubscriberID, Token: rec.Data.UserAuthenticateToken}
	if !creds.Valid() {
		return Credentials{}, ErrInvalidSession
	}
	return creds, nil
}
