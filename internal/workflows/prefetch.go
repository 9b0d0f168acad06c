package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/campustour/campustour/internal/core/domain"
)

// PrefetchInput is the input for the route prefetch workflow.
type PrefetchInput struct {
	TourSlug string
}

// RoutePrefetchWorkflow loads the tour and warms the route cache so that the
// first visitor after a deploy or a waypoint edit does not wait on the
// directions provider.
func RoutePrefetchWorkflow(ctx workflow.Context, input PrefetchInput) (RouteSummary, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting route prefetch", "tour", input.TourSlug)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 2 * time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var t *domain.Tour
	if err := workflow.ExecuteActivity(ctx, "LoadTour", input.TourSlug).Get(ctx, &t); err != nil {
		return RouteSummary{}, err
	}

	var summary RouteSummary
	if err := workflow.ExecuteActivity(ctx, "RefreshRoute", t).Get(ctx, &summary); err != nil {
		logger.Warn("route prefetch failed", "tour", input.TourSlug, "error", err)
		return RouteSummary{}, err
	}

	logger.Info("Route cached", "version", summary.TourVersion, "legs", summary.Legs)
	return summary, nil
}
