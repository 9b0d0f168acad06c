package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/core/ports"
	"github.com/campustour/campustour/internal/pkg/metrics"
)

// fetchTimeout bounds a shared route lookup once it no longer follows the
// caller that started it.
const fetchTimeout = 30 * time.Second

// RouteService resolves the walking route for a tour version. Lookups go
// through an in-process memo, then the shared cache, then the directions
// provider. Concurrent misses for the same version share one provider call.
type RouteService struct {
	provider ports.DirectionsProvider
	cache    ports.CacheService
	profile  string
	ttl      time.Duration

	group singleflight.Group
	mu    sync.RWMutex
	memo  map[string]*domain.Route
}

// NewRouteService creates a new RouteService. cache may be nil.
func NewRouteService(provider ports.DirectionsProvider, cache ports.CacheService, profile string, ttl time.Duration) *RouteService {
	return &RouteService{
		provider: provider,
		cache:    cache,
		profile:  profile,
		ttl:      ttl,
		memo:     make(map[string]*domain.Route),
	}
}

// RouteCacheKey is the cache key for a tour version under a routing profile.
func RouteCacheKey(profile, version string) string {
	return fmt.Sprintf("route:%s:%s", profile, version)
}

// Profile returns the routing profile used for every lookup.
func (s *RouteService) Profile() string { return s.profile }

// Route returns the route for t, fetching it at most once per waypoint-list version.
func (s *RouteService) Route(ctx context.Context, t *domain.Tour) (*domain.Route, error) {
	key := RouteCacheKey(s.profile, t.Version())

	s.mu.RLock()
	r, ok := s.memo[key]
	s.mu.RUnlock()
	if ok {
		return r, nil
	}

	return s.shared(ctx, key, func(fctx context.Context) (*domain.Route, error) {
		if r := s.fromCache(fctx, key); r != nil {
			s.remember(key, r)
			return r, nil
		}
		return s.fetch(fctx, key, t)
	})
}

// Refresh bypasses memo and cache and rewrites both on success.
func (s *RouteService) Refresh(ctx context.Context, t *domain.Tour) (*domain.Route, error) {
	key := RouteCacheKey(s.profile, t.Version())
	return s.shared(ctx, "refresh:"+key, func(fctx context.Context) (*domain.Route, error) {
		return s.fetch(fctx, key, t)
	})
}

// shared runs fn once per flight key. The flight runs on a context detached
// from any single caller so that one caller giving up does not fail the
// others; each caller still returns as soon as its own ctx is done.
func (s *RouteService) shared(ctx context.Context, flight string, fn func(context.Context) (*domain.Route, error)) (*domain.Route, error) {
	ch := s.group.DoChan(flight, func() (any, error) {
		fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fetchTimeout)
		defer cancel()
		return fn(fctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.Route), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *RouteService) fetch(ctx context.Context, key string, t *domain.Tour) (*domain.Route, error) {
	r, err := s.provider.Directions(ctx, t.Coordinates(), s.profile)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRouteUnavailable, err)
	}
	r.TourVersion = t.Version()
	if r.Profile == "" {
		r.Profile = s.profile
	}

	s.remember(key, r)
	if s.cache != nil {
		if data, err := json.Marshal(r); err == nil {
			if err := s.cache.Set(ctx, key, data, int(s.ttl.Seconds())); err != nil {
				slog.Warn("route cache write failed", "key", key, "error", err)
			}
		}
	}
	return r, nil
}

func (s *RouteService) fromCache(ctx context.Context, key string) *domain.Route {
	if s.cache == nil {
		return nil
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("route").Inc()
		return nil
	}
	var r domain.Route
	if err := json.Unmarshal(data, &r); err != nil {
		metrics.CacheMisses.WithLabelValues("route").Inc()
		return nil
	}
	metrics.CacheHits.WithLabelValues("route").Inc()
	return &r
}

func (s *RouteService) remember(key string, r *domain.Route) {
	s.mu.Lock()
	s.memo[key] = r
	s.mu.Unlock()
}
