// Package cache keeps read-through snapshots of documents and their versions.
// Snapshots never contain per-actor data; allowed actions are computed on every read.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"edms/internal/model"
)

// Snapshot is the cached, actor-independent part of a document view.
// Generation is the value Generation returned before the snapshot was loaded.
type Snapshot struct {
	Document   model.Document          `json:"document"`
	Versions   []model.DocumentVersion `json:"versions"`
	Generation int64                   `json:"generation"`
}

// DocumentCache stores snapshots keyed by document id.
//
// Every Invalidate bumps the document's generation. A snapshot loaded before an
// invalidation carries the old generation and is treated as a miss, so a slow
// reader cannot put stale data back after a writer has invalidated it.
type DocumentCache interface {
	// Get reports a miss as (nil, false, nil).
	Get(ctx context.Context, id string) (*Snapshot, bool, error)
	// Generation must be read before loading the data that goes into Set.
	Generation(ctx context.Context, id string) (int64, error)
	Set(ctx context.Context, snap *Snapshot) error
	Invalidate(ctx context.Context, id string) error
}

// RedisClient is the subset of Redis commands the cache needs.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Incr(ctx context.Context, key string) (int64, error)
}

type redisDocumentCache struct {
	client RedisClient
	ttl    time.Duration
}

// NewRedisDocumentCache returns a cache that expires snapshots after ttl (60s when ttl <= 0).
func NewRedisDocumentCache(client RedisClient, ttl time.Duration) DocumentCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	return &redisDocumentCache{client: client, ttl: ttl}
}

func (c *redisDocumentCache) Get(ctx context.Context, id string) (*Snapshot, bool, error) {
	raw, err := c.client.Get(ctx, Key(id))
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get snapshot failed: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached snapshot failed: %w", err)
	}
	gen, err := c.Generation(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if snap.Generation != gen {
		return nil, false, nil
	}
	return &snap, true, nil
}

func (c *redisDocumentCache) Generation(ctx context.Context, id string) (int64, error) {
	raw, err := c.client.Get(ctx, GenerationKey(id))
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get generation failed: %w", err)
	}
	gen, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse generation %q: %w", raw, err)
	}
	return gen, nil
}

func (c *redisDocumentCache) Set(ctx context.Context, snap *Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot failed: %w", err)
	}
	if err := c.client.Set(ctx, Key(snap.Document.ID), payload, c.ttl); err != nil {
		return fmt.Errorf("redis set snapshot failed: %w", err)
	}
	return nil
}

// Invalidate bumps the generation first; deleting the snapshot afterwards only frees memory.
func (c *redisDocumentCache) Invalidate(ctx context.Context, id string) error {
	if _, err := c.client.Incr(ctx, GenerationKey(id)); err != nil {
		return fmt.Errorf("redis bump generation failed: %w", err)
	}
	if err := c.client.Del(ctx, Key(id)); err != nil {
		return fmt.Errorf("redis delete snapshot failed: %w", err)
	}
	return nil
}

// Key is the Redis key of a document snapshot.
func Key(id string) string {
	return "edms:doc:" + id
}

// GenerationKey holds the invalidation counter of a document.
func GenerationKey(id string) string {
	return "edms:doc:" + id + ":gen"
}

// Noop never stores anything; every Get is a miss.
type Noop struct{}

func (Noop) Get(context.Context, string) (*Snapshot, bool, error) { return nil, false, nil }
func (Noop) Generation(context.Context, string) (int64, error)    { return 0, nil }
func (Noop) Set(context.Context, *Snapshot) error                 { return nil }
func (Noop) Invalidate(context.Context, string) error             { return nil }
