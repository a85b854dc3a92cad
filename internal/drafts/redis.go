// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package drafts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisKeyPrefix namespaces draft keys in Valkey.
const redisKeyPrefix = "draft:"

// RedisBackend stores each draft as a string key with a TTL, and keeps a
// per-owner sorted set of template ids scored by save time for listing.
//
//	draft:<owner>:<templateID>  → draft JSON
//	draft:<owner>               → ZSET templateID → saved-at (unix ms)
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend creates a backend on an existing Valkey client.
func NewRedisBackend(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

func indexKey(owner string) string     { return redisKeyPrefix + owner }
func dataKey(owner, key string) string { return redisKeyPrefix + owner + ":" + key }

// Put stores data and indexes it. The index expires with the newest draft.
func (b *RedisBackend) Put(ctx context.Context, owner, key string, data []byte, savedAt time.Time, ttl time.Duration) error {
	_, err := b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, dataKey(owner, key), data, ttl)
		p.ZAdd(ctx, indexKey(owner), redis.Z{Score: float64(savedAt.UnixMilli()), Member: key})
		p.Expire(ctx, indexKey(owner), ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("valkey put draft: %w", err)
	}
	return nil
}

// Get returns the entry for owner/key, or nil when absent.
func (b *RedisBackend) Get(ctx context.Context, owner, key string) (*Entry, error) {
	data, err := b.client.Get(ctx, dataKey(owner, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		b.client.ZRem(ctx, indexKey(owner), key)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("valkey get draft: %w", err)
	}
	score, err := b.client.ZScore(ctx, indexKey(owner), key).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("valkey get draft time: %w", err)
	}
	return &Entry{
		Key:     key,
		Data:    data,
		Size:    int64(len(data)),
		SavedAt: time.UnixMilli(int64(score)),
	}, nil
}

// Delete removes the draft and its index entry.
func (b *RedisBackend) Delete(ctx context.Context, owner, key string) error {
	_, err := b.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, dataKey(owner, key))
		p.ZRem(ctx, indexKey(owner), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("valkey delete draft: %w", err)
	}
	return nil
}

// List returns owner's drafts with sizes. Index members whose data key has
// expired are dropped.
func (b *RedisBackend) List(ctx context.Context, owner string) ([]Entry, error) {
	members, err := b.client.ZRangeWithScores(ctx, indexKey(owner), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("valkey list drafts: %w", err)
	}
	if len(members) == 0 {
		return nil, nil
	}

	sizes := make([]*redis.IntCmd, len(members))
	if _, err := b.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, m := range members {
			sizes[i] = p.StrLen(ctx, dataKey(owner, m.Member.(string)))
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("valkey draft sizes: %w", err)
	}

	out := make([]Entry, 0, len(members))
	var stale []any
	for i, m := range members {
		key := m.Member.(string)
		n := sizes[i].Val()
		if n == 0 {
			stale = append(stale, key)
			continue
		}
		out = append(out, Entry{Key: key, Size: n, SavedAt: time.UnixMilli(int64(m.Score))})
	}
	if len(stale) > 0 {
		b.client.ZRem(ctx, indexKey(owner), stale...)
	}
	return out, nil
}
