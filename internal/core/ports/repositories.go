package ports

import (
	"context"

	"github.com/campustour/campustour/internal/core/domain"
)

// WaypointRepository loads the static tour definition.
type WaypointRepository interface {
	// LoadTour returns the tour identified by slug.
	LoadTour(ctx context.Context, slug string) (*domain.Tour, error)
}

// TourWriter persists a tour definition (used by the seed command).
type TourWriter interface {
	UpsertTour(ctx context.Context, tour *domain.Tour) error
}
