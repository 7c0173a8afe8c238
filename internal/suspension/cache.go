package suspension

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/pkg/logger"
	"github.com/wonny/aiqdata/pkg/redis"
)

// CachedSource memoizes another SuspensionSource per date range
type CachedSource struct {
	inner contracts.SuspensionSource
	cache *redis.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedSource wraps inner with a Redis cache
func NewCachedSource(inner contracts.SuspensionSource, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedSource {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedSource{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   log.WithModule("suspension"),
	}
}

// LoadSuspensions implements contracts.SuspensionSource
func (c *CachedSource) LoadSuspensions(ctx context.Context, start, end contracts.Date) ([]contracts.SuspensionRecord, error) {
	var rows []contracts.SuspensionRecord
	loaded := false

	key := redis.SuspensionKey(start.Compact(), end.Compact())
	err := c.cache.GetOrSet(ctx, key, &rows, c.ttl, func() (interface{}, error) {
		loaded = true
		return c.inner.LoadSuspensions(ctx, start, end)
	})
	if err != nil {
		return nil, fmt.Errorf("suspensions: %w", err)
	}

	c.log.WithFields(map[string]interface{}{
		"rows":   len(rows),
		"cached": !loaded,
	}).Debug("suspensions loaded")

	return rows, nil
}
