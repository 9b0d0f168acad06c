package ports

import (
	"context"

	"github.com/campustour/campustour/internal/core/domain"
)

// DirectionsProvider fetches a route through an ordered list of coordinates.
// The result has one leg per consecutive coordinate pair.
type DirectionsProvider interface {
	Directions(ctx context.Context, coords []domain.GeoPoint, profile string) (*domain.Route, error)
}

// EventPublisher publishes tour events to a message broker.
type EventPublisher interface {
	PublishTourEvent(ctx context.Context, event *domain.TourEvent) error
}

// Subscription is a live feed registration that must be released.
type Subscription interface {
	Unsubscribe() error
}

// LocationFeed delivers geolocation samples for a session.
type LocationFeed interface {
	SubscribeLocations(ctx context.Context, sessionID string, handler func(ctx context.Context, s domain.LocationSample) error) (Subscription, error)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
