package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/campustour/campustour/internal/adapters/directions"
	"github.com/campustour/campustour/internal/adapters/http"
	natsadapter "github.com/campustour/campustour/internal/adapters/nats"
	"github.com/campustour/campustour/internal/adapters/postgres"
	"github.com/campustour/campustour/internal/adapters/tourfile"
	"github.com/campustour/campustour/internal/adapters/valkey"
	"github.com/campustour/campustour/internal/core/ports"
	"github.com/campustour/campustour/internal/core/tour"
	"github.com/campustour/campustour/internal/core/usecases"
	"github.com/campustour/campustour/internal/pkg/config"
	"github.com/campustour/campustour/internal/pkg/logging"
	"github.com/campustour/campustour/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("campustour-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format, cfg.Log.File)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{}

	// Tour source
	var tours ports.WaypointRepository
	switch cfg.Tour.Source {
	case "postgres":
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		deps.DB = db
		tours = postgres.NewWaypointRepo(db)
	default:
		tours = tourfile.NewRepo(cfg.Tour.File)
	}

	t, err := tours.LoadTour(ctx, cfg.Tour.Slug)
	if err != nil {
		log.Fatalf("load tour %s: %v", cfg.Tour.Slug, err)
	}
	slog.Info("tour loaded", "slug", t.Slug, "waypoints", t.Len(), "version", t.Version())

	// Cache
	var cache ports.CacheService
	vc, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, routes cached in memory only", "error", err)
	} else {
		defer vc.Close()
		cache = vc
		deps.Cache = vc
	}

	// NATS: events go out on JetStream, location samples come in on core subjects.
	var (
		publisher ports.EventPublisher
		feed      ports.LocationFeed
	)
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, events will not be published", "error", err)
	} else {
		defer pub.Close()
		publisher = pub
		feed = natsadapter.NewSubscriber(pub.Conn())
	}

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
		deps.NATS = natsConn
	}

	// Directions
	var routes *usecases.RouteService
	if cfg.Directions.AccessToken == "" {
		slog.Warn("directions.access_token not set, step instructions disabled")
	} else {
		client := directions.New(directions.Config{
			BaseURL:     cfg.Directions.BaseURL,
			Owner:       cfg.Directions.Owner,
			AccessToken: cfg.Directions.AccessToken,
			Timeout:     cfg.Directions.Timeout,
		})
		routes = usecases.NewRouteService(client, cache, cfg.Directions.Profile, cfg.Directions.CacheTTL)
	}

	// Use cases
	tourSvc, err := usecases.NewTourService(t, routes, feed, publisher, usecases.TourServiceConfig{
		Options: tour.Options{
			GeofenceRadius:    cfg.Tour.GeofenceRadiusM,
			MinSampleInterval: cfg.Tour.LocationMinInterval,
		},
		IdleTimeout: cfg.Tour.SessionIdleTimeout,
	})
	if err != nil {
		log.Fatalf("tour service: %v", err)
	}
	deps.Tours = tourSvc

	if cfg.Tour.SessionIdleTimeout > 0 {
		go tourSvc.RunReaper(ctx, time.Minute)
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "Campus Tour API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// Ends every session so subscribers see session_ended before NATS closes.
	tourSvc.Shutdown()
	cancel()

	slog.Info("server stopped")
}
