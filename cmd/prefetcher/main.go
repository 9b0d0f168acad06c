package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"github.com/campustour/campustour/internal/adapters/directions"
	"github.com/campustour/campustour/internal/adapters/postgres"
	"github.com/campustour/campustour/internal/adapters/tourfile"
	"github.com/campustour/campustour/internal/adapters/valkey"
	"github.com/campustour/campustour/internal/core/ports"
	"github.com/campustour/campustour/internal/core/usecases"
	"github.com/campustour/campustour/internal/pkg/config"
	"github.com/campustour/campustour/internal/pkg/logging"
	"github.com/campustour/campustour/internal/workflows"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: prefetcher <worker|trigger>")
	}

	cfg, err := config.Load("campustour-prefetcher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	switch os.Args[1] {
	case "worker":
		runWorker(c, cfg)
	case "trigger":
		trigger(c, cfg)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runWorker(c client.Client, cfg *config.Config) {
	ctx := context.Background()

	if cfg.Directions.AccessToken == "" {
		log.Fatal("directions.access_token is required")
	}

	var tours ports.WaypointRepository = tourfile.NewRepo(cfg.Tour.File)
	if cfg.Tour.Source == "postgres" {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		tours = postgres.NewWaypointRepo(db)
	}

	// Prefetching only pays off if the API reads the same cache.
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		log.Fatalf("valkey: %v", err)
	}
	defer cache.Close()

	provider := directions.New(directions.Config{
		BaseURL:     cfg.Directions.BaseURL,
		Owner:       cfg.Directions.Owner,
		AccessToken: cfg.Directions.AccessToken,
		Timeout:     cfg.Directions.Timeout,
	})

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.RoutePrefetchWorkflow)
	w.RegisterActivity(&workflows.RouteActivities{
		Tours:  tours,
		Routes: usecases.NewRouteService(provider, cache, cfg.Directions.Profile, cfg.Directions.CacheTTL),
	})

	slog.Info("prefetch worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}

func trigger(c client.Client, cfg *config.Config) {
	ctx := context.Background()
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        "route-prefetch-" + cfg.Tour.Slug,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, workflows.RoutePrefetchWorkflow, workflows.PrefetchInput{TourSlug: cfg.Tour.Slug})
	if err != nil {
		log.Fatalf("start workflow: %v", err)
	}

	var summary workflows.RouteSummary
	if err := run.Get(ctx, &summary); err != nil {
		log.Fatalf("prefetch %s: %v", cfg.Tour.Slug, err)
	}
	slog.Info("route prefetched",
		"tour", cfg.Tour.Slug,
		"version", summary.TourVersion,
		"legs", summary.Legs,
		"distance_m", summary.Distance,
		"duration_s", summary.Duration,
	)
}
