// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package drafts persists a customer's in-progress personalization of a
// template. Drafts are keyed by owner (the customer) and template id, expire
// after a fixed time, and are held to a per-owner storage quota: when a
// write would push usage past the eviction threshold, the oldest drafts
// beyond a retained count are dropped first.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"mockupstudio/internal/scene"
)

var (
	// ErrQuotaExceeded means the draft could not be stored even after
	// eviction. It is recoverable: the customer keeps editing.
	ErrQuotaExceeded = errors.New("draft storage quota exceeded")

	// ErrEmbeddedImage means an image value was inline data instead of an
	// uploaded URL.
	ErrEmbeddedImage = errors.New("draft images must be uploaded URLs, not embedded data")
)

// Policy bounds draft storage per owner.
type Policy struct {
	Quota   int64         // bytes
	EvictAt float64       // fraction of Quota that triggers eviction
	Retain  int           // most recent drafts kept when evicting
	TTL     time.Duration // lifetime of a draft
}

// DefaultPolicy is 5 MB, evict at 80%, keep 5, expire after 24 hours.
var DefaultPolicy = Policy{
	Quota:   5 << 20,
	EvictAt: 0.8,
	Retain:  5,
	TTL:     24 * time.Hour,
}

func (p Policy) withDefaults() Policy {
	if p.Quota <= 0 {
		p.Quota = DefaultPolicy.Quota
	}
	if p.EvictAt <= 0 || p.EvictAt > 1 {
		p.EvictAt = DefaultPolicy.EvictAt
	}
	if p.Retain < 0 {
		p.Retain = DefaultPolicy.Retain
	}
	if p.TTL <= 0 {
		p.TTL = DefaultPolicy.TTL
	}
	return p
}

// Draft is a customer's saved work on one template.
type Draft struct {
	TemplateID  string            `json:"templateId"`
	TextValues  map[string]string `json:"textValues"`
	ImageValues map[string]string `json:"imageValues"`
	ColorValues map[string]string `json:"colorValues,omitempty"`
	CanvasState string            `json:"canvasState,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// Entry is one stored draft as a backend sees it.
type Entry struct {
	Key     string
	Data    []byte
	Size    int64
	SavedAt time.Time
}

// Backend stores raw draft bytes per owner. List may omit Data.
type Backend interface {
	Put(ctx context.Context, owner, key string, data []byte, savedAt time.Time, ttl time.Duration) error
	Get(ctx context.Context, owner, key string) (*Entry, error)
	Delete(ctx context.Context, owner, key string) error
	List(ctx context.Context, owner string) ([]Entry, error)
}

// Store applies the expiry and quota policy over a backend.
type Store struct {
	backend Backend
	policy  Policy
	now     func() time.Time
}

// NewStore creates a draft store. Zero policy fields take DefaultPolicy
// values.
func NewStore(backend Backend, policy Policy) *Store {
	return &Store{backend: backend, policy: policy.withDefaults(), now: time.Now}
}

// Policy returns the effective policy.
func (s *Store) Policy() Policy {
	return s.policy
}

func (s *Store) expired(e Entry) bool {
	return !s.now().Before(e.SavedAt.Add(s.policy.TTL))
}

// Save stores d for owner, stamping it with the current time.
func (s *Store) Save(ctx context.Context, owner string, d Draft) error {
	if d.TemplateID == "" {
		return fmt.Errorf("save draft: template id is required")
	}
	for key, v := range d.ImageValues {
		if scene.IsDataURL(v) {
			return fmt.Errorf("save draft image %q: %w", key, ErrEmbeddedImage)
		}
	}
	if strings.Contains(d.CanvasState, `"data:`) {
		return fmt.Errorf("save draft canvas: %w", ErrEmbeddedImage)
	}

	d.Timestamp = s.now().UTC()
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal draft: %w", err)
	}
	size := int64(len(data))

	others, err := s.live(ctx, owner, d.TemplateID)
	if err != nil {
		return err
	}

	usage := size
	for _, e := range others {
		usage += e.Size
	}
	if float64(usage) > s.policy.EvictAt*float64(s.policy.Quota) {
		usage, err = s.evict(ctx, owner, others, size)
		if err != nil {
			return err
		}
	}
	if usage > s.policy.Quota {
		return fmt.Errorf("save draft %s: %w: %d of %d bytes", d.TemplateID, ErrQuotaExceeded, usage, s.policy.Quota)
	}

	if err := s.backend.Put(ctx, owner, d.TemplateID, data, d.Timestamp, s.policy.TTL); err != nil {
		return fmt.Errorf("save draft %s: %w", d.TemplateID, err)
	}
	return nil
}

// live lists owner's unexpired drafts other than skip, purging expired
// ones along the way.
func (s *Store) live(ctx context.Context, owner, skip string) ([]Entry, error) {
	entries, err := s.backend.List(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}
	var out []Entry
	for _, e := range entries {
		if s.expired(e) {
			if err := s.backend.Delete(ctx, owner, e.Key); err != nil {
				slog.Warn("purge expired draft failed", "owner", owner, "template_id", e.Key, "error", err)
			}
			continue
		}
		if e.Key != skip {
			out = append(out, e)
		}
	}
	return out, nil
}

// evict deletes the oldest drafts beyond the retained count and returns
// the resulting usage including the pending write.
func (s *Store) evict(ctx context.Context, owner string, others []Entry, pending int64) (int64, error) {
	sort.Slice(others, func(i, j int) bool { return others[i].SavedAt.After(others[j].SavedAt) })
	usage := pending
	evicted := 0
	for i, e := range others {
		if i < s.policy.Retain {
			usage += e.Size
			continue
		}
		if err := s.backend.Delete(ctx, owner, e.Key); err != nil {
			return 0, fmt.Errorf("evict draft %s: %w", e.Key, err)
		}
		evicted++
	}
	if evicted > 0 {
		slog.Info("drafts evicted", "owner", owner, "evicted", evicted, "usage", usage, "quota", s.policy.Quota)
	}
	return usage, nil
}

// Load returns owner's draft for templateID. It returns (nil, nil) when
// there is none or it has expired.
func (s *Store) Load(ctx context.Context, owner, templateID string) (*Draft, error) {
	e, err := s.backend.Get(ctx, owner, templateID)
	if err != nil {
		return nil, fmt.Errorf("load draft %s: %w", templateID, err)
	}
	if e == nil {
		return nil, nil
	}
	if s.expired(*e) {
		if err := s.backend.Delete(ctx, owner, templateID); err != nil {
			slog.Warn("purge expired draft failed", "owner", owner, "template_id", templateID, "error", err)
		}
		return nil, nil
	}
	var d Draft
	if err := json.Unmarshal(e.Data, &d); err != nil {
		slog.Warn("discarding corrupt draft", "owner", owner, "template_id", templateID, "error", err)
		_ = s.backend.Delete(ctx, owner, templateID)
		return nil, nil
	}
	return &d, nil
}

// Delete removes owner's draft for templateID.
func (s *Store) Delete(ctx context.Context, owner, templateID string) error {
	if err := s.backend.Delete(ctx, owner, templateID); err != nil {
		return fmt.Errorf("delete draft %s: %w", templateID, err)
	}
	return nil
}

// Usage returns the bytes held by owner's unexpired drafts.
func (s *Store) Usage(ctx context.Context, owner string) (int64, error) {
	entries, err := s.live(ctx, owner, "")
	if err != nil {
		return 0, err
	}
	var n int64
	for _, e := range entries {
		n += e.Size
	}
	return n, nil
}
