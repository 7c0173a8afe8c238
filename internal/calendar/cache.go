package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aiqdata/internal/contracts"
	"github.com/wonny/aiqdata/pkg/logger"
	"github.com/wonny/aiqdata/pkg/redis"
)

// CachedLoader memoizes another CalendarSource in Redis.
// With Redis disabled every call goes to the inner source.
type CachedLoader struct {
	inner contracts.CalendarSource
	cache *redis.Cache
	ttl   time.Duration
	log   *logger.Logger
}

// NewCachedLoader wraps inner with a Redis cache
func NewCachedLoader(inner contracts.CalendarSource, cache *redis.Cache, ttl time.Duration, log *logger.Logger) *CachedLoader {
	if ttl <= 0 {
		ttl = redis.TTLDaily
	}
	if log == nil {
		log = logger.Nop()
	}
	return &CachedLoader{
		inner: inner,
		cache: cache,
		ttl:   ttl,
		log:   log.WithModule("calendar"),
	}
}

// LoadCalendar implements contracts.CalendarSource
func (c *CachedLoader) LoadCalendar(ctx context.Context, exchange string) ([]contracts.CalendarEntry, error) {
	var entries []contracts.CalendarEntry
	loaded := false

	err := c.cache.GetOrSet(ctx, redis.CalendarKey(exchange), &entries, c.ttl, func() (interface{}, error) {
		loaded = true
		return c.inner.LoadCalendar(ctx, exchange)
	})
	if err != nil {
		return nil, fmt.Errorf("calendar %s: %w", exchange, err)
	}

	c.log.WithFields(map[string]interface{}{
		"exchange": exchange,
		"rows":     len(entries),
		"cached":   !loaded,
	}).Debug("calendar loaded")

	return entries, nil
}

// Build loads exchange's rows from src and constructs a Provider
func Build(ctx context.Context, src contracts.CalendarSource, exchange string) (*Provider, error) {
	entries, err := src.LoadCalendar(ctx, exchange)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, &contracts.ConfigurationError{
			Field:   "exchange",
			Message: fmt.Sprintf("no calendar rows for %q", exchange),
		}
	}
	return New(entries)
}
