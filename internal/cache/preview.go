// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// preview.go provides a Valkey-backed cache of rendered customer images.
// Keys include the template version, so saving a template makes its old
// renders unreachable; InvalidateTemplate just reclaims the memory early.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// previewKeyPrefix is the Valkey key prefix for cached renders.
	previewKeyPrefix = "preview:"

	// DefaultPreviewTTL is how long a rendered image stays cached.
	DefaultPreviewTTL = 10 * time.Minute

	// MaxPreviewBytes caps the size of a single cached render. Print
	// exports are usually larger and are not cached.
	MaxPreviewBytes = 4 << 20
)

// PreviewCache stores encoded render output in Valkey.
type PreviewCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPreviewCache creates a new preview cache backed by the given Valkey client.
func NewPreviewCache(client *redis.Client, ttl time.Duration) *PreviewCache {
	if ttl == 0 {
		ttl = DefaultPreviewTTL
	}
	return &PreviewCache{client: client, ttl: ttl}
}

// PreviewKey builds the cache key for one render. values is hashed after
// JSON encoding, which orders map keys, so equal inputs share a key.
func PreviewKey(templateID string, version int, variant string, values any) (string, error) {
	data, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("preview key: %w", err)
	}
	return fmt.Sprintf("%s:v%d:%s:%016x", templateID, version, variant, xxhash.Sum64(data)), nil
}

// Get retrieves a cached render. Returns false on miss or error.
func (pc *PreviewCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := pc.client.Get(ctx, previewKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("preview cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("preview cache hit", "key", key)
	return val, true
}

// Set stores a render with the configured TTL. Oversized renders are skipped.
func (pc *PreviewCache) Set(ctx context.Context, key string, data []byte) {
	if len(data) > MaxPreviewBytes {
		slog.Debug("preview too large to cache", "key", key, "bytes", len(data))
		return
	}
	if err := pc.client.Set(ctx, previewKeyPrefix+key, data, pc.ttl).Err(); err != nil {
		slog.Warn("preview cache set error", "key", key, "error", err)
	}
}

// InvalidateTemplate removes every cached render of a template by
// scanning for its key prefix.
func (pc *PreviewCache) InvalidateTemplate(ctx context.Context, templateID string) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := pc.client.Scan(ctx, cursor, previewKeyPrefix+templateID+":*", 100).Result()
		if err != nil {
			slog.Warn("preview cache scan error", "template_id", templateID, "error", err)
			return
		}
		if len(keys) > 0 {
			if err := pc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("preview cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if deleted > 0 {
		slog.Info("preview cache cleared", "template_id", templateID, "deleted", deleted)
	}
}
