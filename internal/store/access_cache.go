package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"retail-backoffice/internal/domain"
)

const accessKeyPrefix = "access:cache:"

// AccessCache keeps serialized access records in a KV store. Only the
// stored matrices are cached; every Get returns a fresh instance whose rule
// set has not been built yet.
type AccessCache struct {
	kv  KV
	ttl time.Duration
}

func NewAccessCache(kv KV, ttl time.Duration) *AccessCache {
	return &AccessCache{kv: kv, ttl: ttl}
}

func accessKey(id string) string { return accessKeyPrefix + id }

// Get returns ErrMiss when the access is not cached.
func (c *AccessCache) Get(ctx context.Context, id string) (*domain.Access, error) {
	raw, err := c.kv.Get(ctx, accessKey(id))
	if err != nil {
		return nil, err
	}
	var a domain.Access
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return nil, fmt.Errorf("failed to decode cached access %s: %w", id, err)
	}
	return &a, nil
}

func (c *AccessCache) Put(ctx context.Context, a *domain.Access) error {
	b, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode access %s: %w", a.ID, err)
	}
	return c.kv.Set(ctx, accessKey(a.ID), string(b), c.ttl)
}

func (c *AccessCache) Invalidate(ctx context.Context, id string) error {
	return c.kv.Del(ctx, accessKey(id))
}

// Flush drops every cached access and returns how many were removed.
func (c *AccessCache) Flush(ctx context.Context) (int, error) {
	keys, err := c.kv.ScanKeys(ctx, accessKeyPrefix+"*")
	if err != nil {
		return 0, fmt.Errorf("failed to scan access keys: %w", err)
	}
	if err := c.kv.Del(ctx, keys...); err != nil {
		return 0, fmt.Errorf("failed to delete access keys: %w", err)
	}
	return len(keys), nil
}
