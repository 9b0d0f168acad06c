package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/campustour/campustour/internal/adapters/postgres"
	"github.com/campustour/campustour/internal/adapters/tourfile"
	"github.com/campustour/campustour/internal/pkg/config"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|seed> [tour.json]")
	}

	cfg, err := config.Load("campustour-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, db)
	case "seed":
		path := cfg.Tour.File
		if len(os.Args) > 2 {
			path = os.Args[2]
		}
		seed(ctx, db, path)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runMigrations(ctx context.Context, db *postgres.DB) {
	files := []string{
		"migrations/001_tours.sql",
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("all migrations applied")
}

// seed copies a tour file into the database, replacing any tour with the same slug.
func seed(ctx context.Context, db *postgres.DB, path string) {
	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	t, err := tourfile.Decode(f)
	if err != nil {
		log.Fatalf("decode %s: %v", path, err)
	}

	if err := postgres.NewWaypointRepo(db).UpsertTour(ctx, t); err != nil {
		log.Fatalf("seed %s: %v", t.Slug, err)
	}
	fmt.Printf("OK  %s (%d waypoints)\n", t.Slug, t.Len())
}
