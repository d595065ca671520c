package report

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "rollcall:report:"

// Cache keeps rendered PDFs of completed sessions in Redis. A nil *Cache
// always misses and drops writes.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache returns nil when client is nil.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if client == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Cache{client: client, ttl: ttl}
}

func cacheKey(sessionID string) string { return keyPrefix + sessionID }

// Get returns the cached PDF and whether it was present.
func (c *Cache) Get(ctx context.Context, sessionID string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, cacheKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (c *Cache) Put(ctx context.Context, sessionID string, pdf []byte) error {
	if c == nil {
		return nil
	}
	return c.client.Set(ctx, cacheKey(sessionID), pdf, c.ttl).Err()
}
