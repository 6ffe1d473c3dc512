package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a prefix-keyed TTL cache over Redis. Every key is namespaced
// so flushing one concern never clobbers another.
type Cache struct {
	client redis.Cmdable
	prefix string
}

func New(client redis.Cmdable, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return fmt.Sprintf("%s:%s", c.prefix, k)
}

// Get returns the cached value and whether it was present. A miss is not
// an error.
func (c *Cache) Get(ctx context.Context, k string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.key(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %s: %w", k, err)
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, k string, val []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(k), val, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", k, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, k string) error {
	if err := c.client.Del(ctx, c.key(k)).Err(); err != nil {
		return fmt.Errorf("cache del %s: %w", k, err)
	}
	return nil
}
