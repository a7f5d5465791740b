package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"luckygas-dispatch/internal/core/cache"
	"luckygas-dispatch/internal/core/logger"
	"luckygas-dispatch/internal/features/routes/domain"
	"luckygas-dispatch/internal/features/routes/ports"

	"go.uber.org/zap"
)

// CachedProvider is a read-through cache in front of a RouteProvider. Route
// assignments change a few times a day, so a short TTL keeps the ERP out of
// the hot sync path without serving stale plans for long.
type CachedProvider struct {
	inner ports.RouteProvider
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedProvider wraps inner with a cache using the given TTL.
func NewCachedProvider(inner ports.RouteProvider, c cache.Cache, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		inner: inner,
		cache: c,
		ttl:   ttl,
	}
}

func routeCacheKey(driverID string) string {
	return "routes:driver:" + driverID
}

// RoutesForDriver serves from cache when possible, falling back to the
// inner provider and populating the cache on a miss. Cache failures are
// logged and bypassed, never surfaced.
func (p *CachedProvider) RoutesForDriver(ctx context.Context, driverID string) ([]domain.Route, error) {
	key := routeCacheKey(driverID)

	if data, err := p.cache.Get(ctx, key); err == nil {
		var routes []domain.Route
		if err := json.Unmarshal(data, &routes); err == nil {
			return routes, nil
		}
		logger.Get().Warn("corrupt route cache entry, refetching", zap.String("key", key))
	}

	routes, err := p.inner.RoutesForDriver(ctx, driverID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch routes: %w", err)
	}

	if data, err := json.Marshal(routes); err == nil {
		if err := p.cache.Set(ctx, key, data, p.ttl); err != nil {
			logger.Get().Warn("failed to cache routes", zap.String("key", key), zap.Error(err))
		}
	}

	return routes, nil
}
