package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// TTLDaily is the default lifetime of cached reference rows
const TTLDaily = 24 * time.Hour // 거래일 캘린더, 거래정지

// Cache stores reference rows as JSON under <prefix>:ref:<key>.
// Every method is a no-op on a disabled client.
// ⭐ SSOT: 캐시 헬퍼는 여기서만
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a cache over client with a key prefix
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	return c.prefix + ":ref:" + k
}

// Get decodes the value under key into dest and reports whether it was present
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	data, err := c.client.Redis().Get(ctx, c.key(key)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

// GetOrSet fills dest from the cache, or from load on a miss.
// dest is filled through JSON in both cases so hits and misses look the same.
// A failed write is ignored: the next call loads again.
func (c *Cache) GetOrSet(ctx context.Context, key string, dest interface{}, ttl time.Duration, load func() (interface{}, error)) error {
	found, err := c.Get(ctx, key, dest)
	if err != nil {
		return err
	}
	if found {
		return nil
	}

	value, err := load()
	if err != nil {
		return err
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache decode %s: %w", key, err)
	}

	if c.client.Enabled() {
		_ = c.client.Redis().Set(ctx, c.key(key), data, ttl).Err()
	}
	return nil
}

// InvalidatePrefix deletes every key starting with prefix and returns the count
func (c *Cache) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	if !c.client.Enabled() {
		return 0, nil
	}

	rdb := c.client.Redis()
	n := 0
	iter := rdb.Scan(ctx, 0, c.key(prefix)+"*", 500).Iterator()
	for iter.Next(ctx) {
		if err := rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return n, fmt.Errorf("cache delete %s: %w", iter.Val(), err)
		}
		n++
	}
	if err := iter.Err(); err != nil {
		return n, fmt.Errorf("cache scan %s: %w", prefix, err)
	}
	return n, nil
}

// Key prefixes, one per reference table
const (
	calendarKeyPrefix   = "calendar:"
	suspensionKeyPrefix = "suspension:"
)

// CalendarKey is the cache key for one exchange's calendar rows
func CalendarKey(exchange string) string {
	return calendarKeyPrefix + exchange
}

// SuspensionKey is the cache key for suspension rows in a date range
func SuspensionKey(start, end string) string {
	return suspensionKeyPrefix + start + ":" + end
}

// CalendarKeys matches every cached calendar
func CalendarKeys() string { return calendarKeyPrefix }

// SuspensionKeys matches every cached suspension range
func SuspensionKeys() string { return suspensionKeyPrefix }
