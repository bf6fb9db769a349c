// Package cache holds the Redis-backed tenant projection cache consulted
// by the tenant resolver before it reaches the database.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tenant-auth/internal/model"
)

// TenantProjection is the minimal serializable view of a tenant stored
// in the cache.  Only routing-relevant fields are cached; credentials
// and secrets never enter Redis.
type TenantProjection struct {
	ID        uint64             `json:"id"`
	Subdomain string             `json:"subdomain"`
	Status    model.TenantStatus `json:"status"`
}

// TenantCache caches tenant projections keyed by subdomain with a TTL.
// A nil client disables the cache: Get always misses and Set is a no-op,
// so resolution falls through to the database.  Concurrent misses may
// race on Set; last write wins and the TTL bounds staleness.
type TenantCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTenantCache(rdb *redis.Client, ttl time.Duration) *TenantCache {
	return &TenantCache{rdb: rdb, ttl: ttl}
}

func key(subdomain string) string { return "tenant:sub:" + subdomain }

// Get returns the cached projection for a subdomain, or ok=false on
// miss, decode failure or any Redis error.
func (c *TenantCache) Get(ctx context.Context, subdomain string) (TenantProjection, bool) {
	if c == nil || c.rdb == nil {
		return TenantProjection{}, false
	}
	bs, err := c.rdb.Get(ctx, key(subdomain)).Bytes()
	if err != nil {
		return TenantProjection{}, false
	}
	var p TenantProjection
	if err := json.Unmarshal(bs, &p); err != nil {
		return TenantProjection{}, false
	}
	return p, true
}

// Set stores a projection under its subdomain.  Errors are swallowed:
// the cache is an optimization, never a source of truth.
func (c *TenantCache) Set(ctx context.Context, p TenantProjection) {
	if c == nil || c.rdb == nil {
		return
	}
	bs, err := json.Marshal(p)
	if err != nil {
		return
	}
	_ = c.rdb.SetEx(ctx, key(p.Subdomain), bs, c.ttl).Err()
}

// Invalidate drops a cached projection, used after admin status
// transitions so a suspended tenant stops resolving promptly.
func (c *TenantCache) Invalidate(ctx context.Context, subdomain string) {
	if c == nil || c.rdb == nil {
		return
	}
	_ = c.rdb.Del(ctx, key(subdomain)).Err()
}
