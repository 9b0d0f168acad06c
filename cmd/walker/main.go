package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	natsadapter "github.com/campustour/campustour/internal/adapters/nats"
	"github.com/campustour/campustour/internal/adapters/tourfile"
	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/pkg/config"
	"github.com/campustour/campustour/internal/pkg/geospatial"
)

// walker replays a visitor walking the tour at a steady pace, publishing
// samples on tour.location.<session> so a live session can be exercised
// without a phone.
func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: walker <session-id> [speed m/s]")
	}
	sessionID := os.Args[1]

	speed := 1.4
	if len(os.Args) > 2 {
		v, err := strconv.ParseFloat(os.Args[2], 64)
		if err != nil || v <= 0 {
			log.Fatalf("invalid speed %q", os.Args[2])
		}
		speed = v
	}

	cfg, err := config.Load("campustour-walker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	t, err := tourfile.NewRepo(cfg.Tour.File).LoadTour(ctx, cfg.Tour.Slug)
	if err != nil {
		log.Fatalf("load tour: %v", err)
	}

	nc, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer nc.Drain()

	path := t.Coordinates()
	cum := geospatial.Cumulative(path)
	total := cum[len(cum)-1]

	interval := cfg.Tour.LocationMinInterval
	if interval <= 0 {
		interval = 3 * time.Second
	}
	step := speed * interval.Seconds()

	log.Printf("walking %s (%.0f m) for session %s at %.1f m/s", t.Slug, total, sessionID, speed)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	dist := 0.0
	for {
		p := geospatial.Interpolate(path, cum, dist)
		sample := domain.LocationSample{Point: p, Timestamp: time.Now().UTC()}
		if err := natsadapter.PublishLocation(nc, sessionID, sample); err != nil {
			log.Printf("publish: %v", err)
		}
		if dist >= total {
			log.Printf("reached %s", t.Waypoints[len(t.Waypoints)-1].Name)
			return
		}

		select {
		case <-ticker.C:
			dist += step
		case sig := <-quit:
			log.Printf("received signal %v, stopping walker", sig)
			return
		}
	}
}
