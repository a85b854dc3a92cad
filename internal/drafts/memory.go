// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package drafts

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps drafts in process memory. Expiry is left to the
// Store.
type MemoryBackend struct {
	mu     sync.RWMutex
	owners map[string]map[string]Entry
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{owners: make(map[string]map[string]Entry)}
}

// Put stores data under owner/key.
func (b *MemoryBackend) Put(_ context.Context, owner, key string, data []byte, savedAt time.Time, _ time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, ok := b.owners[owner]
	if !ok {
		m = make(map[string]Entry)
		b.owners[owner] = m
	}
	buf := append([]byte(nil), data...)
	m[key] = Entry{Key: key, Data: buf, Size: int64(len(buf)), SavedAt: savedAt}
	return nil
}

// Get returns the entry for owner/key, or nil.
func (b *MemoryBackend) Get(_ context.Context, owner, key string) (*Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.owners[owner][key]
	if !ok {
		return nil, nil
	}
	e.Data = append([]byte(nil), e.Data...)
	return &e, nil
}

// Delete removes owner/key.
func (b *MemoryBackend) Delete(_ context.Context, owner, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.owners[owner], key)
	if len(b.owners[owner]) == 0 {
		delete(b.owners, owner)
	}
	return nil
}

// List returns owner's entries without their data.
func (b *MemoryBackend) List(_ context.Context, owner string) ([]Entry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Entry, 0, len(b.owners[owner]))
	for _, e := range b.owners[owner] {
		e.Data = nil
		out = append(out, e)
	}
	return out, nil
}
