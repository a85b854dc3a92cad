// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session id is unknown or expired.
var ErrSessionNotFound = errors.New("editing session not found")

// Registry holds the open editing sessions, one per designer tab. Each
// session still owns its canvas exclusively; the registry only routes.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	idle     time.Duration
	clock    Clock
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry that closes sessions idle for longer than
// idle. It starts a background goroutine that sweeps once a minute.
func NewRegistry(idle time.Duration, clock Clock) *Registry {
	if clock == nil {
		clock = SystemClock{}
	}
	r := &Registry{
		sessions: make(map[string]*Session),
		idle:     idle,
		clock:    clock,
		stopCh:   make(chan struct{}),
	}

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.Sweep(context.Background())
			case <-r.stopCh:
				return
			}
		}
	}()

	return r
}

// Open creates a session from opts and registers it under a new id.
func (r *Registry) Open(opts Options) (string, *Session, error) {
	if opts.Clock == nil {
		opts.Clock = r.clock
	}
	s, err := NewSession(opts)
	if err != nil {
		return "", nil, err
	}
	id := uuid.New().String()

	r.mu.Lock()
	r.sessions[id] = s
	r.mu.Unlock()

	slog.Info("editor session opened", "session_id", id, "template_id", opts.TemplateID)
	return id, s, nil
}

// Get returns the session registered under id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close closes and unregisters a session.
func (r *Registry) Close(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	slog.Info("editor session closed", "session_id", id, "template_id", s.TemplateID())
	return s.Close(ctx)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep closes every session idle for longer than the registry's idle
// window. Close errors are logged; the session is dropped either way.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.clock.Now().Add(-r.idle)

	r.mu.Lock()
	var stale []string
	for id, s := range r.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, id)
		}
	}
	r.mu.Unlock()

	for _, id := range stale {
		if err := r.Close(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			slog.Warn("idle session close failed", "session_id", id, "error", err)
		}
	}
	return len(stale)
}

// Shutdown stops the sweeper and closes every session, flushing unsaved
// edits where the session was opened with FlushOnClose.
func (r *Registry) Shutdown(ctx context.Context) {
	r.stopOnce.Do(func() { close(r.stopCh) })

	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.Close(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
			slog.Warn("session close on shutdown failed", "session_id", id, "error", err)
		}
	}
}
