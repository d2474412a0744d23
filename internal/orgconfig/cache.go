package orgconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a short-TTL read-through cache for account configurations.
// Misses and redis failures fall back to the repository silently.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache wraps a redis client. ttl <= 0 defaults to 30s.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(orgID int64) string {
	return fmt.Sprintf("orgconfig:%d", orgID)
}

// Get returns a cached configuration when present.
func (c *Cache) Get(ctx context.Context, orgID int64) (Configuration, bool) {
	if c == nil || c.client == nil {
		return Configuration{}, false
	}
	payload, err := c.client.Get(ctx, cacheKey(orgID)).Bytes()
	if err != nil {
		return Configuration{}, false
	}
	var cfg Configuration
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return Configuration{}, false
	}
	return cfg, true
}

// Put stores a configuration under the org key.
func (c *Cache) Put(ctx context.Context, cfg Configuration) {
	if c == nil || c.client == nil {
		return
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	_ = c.client.Set(ctx, cacheKey(cfg.OrgID), payload, c.ttl).Err()
}

// Invalidate drops the cached configuration after an upsert.
func (c *Cache) Invalidate(ctx context.Context, orgID int64) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Del(ctx, cacheKey(orgID)).Err()
}
