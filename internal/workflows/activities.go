package workflows

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/core/ports"
	"github.com/campustour/campustour/internal/core/usecases"
)

// RouteSummary is what a prefetch run reports back.
type RouteSummary struct {
	TourVersion string
	Legs        int
	Distance    float64 // meters
	Duration    float64 // seconds
}

// RouteActivities holds the activity implementations for the prefetch workflow.
type RouteActivities struct {
	Tours  ports.WaypointRepository
	Routes *usecases.RouteService
}

// LoadTour reads the tour. A missing or invalid tour will not fix itself on retry.
func (a *RouteActivities) LoadTour(ctx context.Context, slug string) (*domain.Tour, error) {
	t, err := a.Tours.LoadTour(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrTourNotFound) {
			return nil, temporal.NewNonRetryableApplicationError(err.Error(), "TourNotFound", err)
		}
		return nil, fmt.Errorf("load tour %s: %w", slug, err)
	}
	if err := t.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidTour", err)
	}
	return t, nil
}

// RefreshRoute fetches directions for the tour and overwrites the cached route.
func (a *RouteActivities) RefreshRoute(ctx context.Context, t *domain.Tour) (RouteSummary, error) {
	r, err := a.Routes.Refresh(ctx, t)
	if err != nil {
		return RouteSummary{}, err
	}
	slog.Info("route refreshed", "tour", t.Slug, "version", r.TourVersion, "legs", len(r.Legs))
	return RouteSummary{
		TourVersion: r.TourVersion,
		Legs:        len(r.Legs),
		Distance:    r.Distance,
		Duration:    r.Duration,
	}, nil
}
