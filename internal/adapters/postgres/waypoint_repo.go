package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/campustour/campustour/internal/core/domain"
)

// WaypointRepo implements ports.WaypointRepository and ports.TourWriter with pgx.
type WaypointRepo struct {
	db *DB
}

// NewWaypointRepo creates a new WaypointRepo.
func NewWaypointRepo(db *DB) *WaypointRepo {
	return &WaypointRepo{db: db}
}

// LoadTour returns the tour and its waypoints in visiting order.
func (r *WaypointRepo) LoadTour(ctx context.Context, slug string) (*domain.Tour, error) {
	t := domain.Tour{Slug: slug}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT name, COALESCE(welcome, '') FROM tours WHERE slug = $1
	`, slug).Scan(&t.Name, &t.Welcome)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tour %q: %w", slug, domain.ErrTourNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query tour: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT name, COALESCE(description, ''), COALESCE(short_description, ''),
		       COALESCE(images, '{}'), lon, lat
		FROM waypoints
		WHERE tour_slug = $1
		ORDER BY position
	`, slug)
	if err != nil {
		return nil, fmt.Errorf("query waypoints: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var w domain.Waypoint
		if err := rows.Scan(&w.Name, &w.Description, &w.ShortDescription,
			&w.Images, &w.Coordinate.Lon, &w.Coordinate.Lat); err != nil {
			return nil, fmt.Errorf("scan waypoint: %w", err)
		}
		t.Waypoints = append(t.Waypoints, w)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &t, nil
}

// UpsertTour replaces the tour's waypoint list in one transaction.
func (r *WaypointRepo) UpsertTour(ctx context.Context, t *domain.Tour) error {
	if err := t.Validate(); err != nil {
		return err
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO tours (slug, name, welcome, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (slug) DO UPDATE
		SET name = EXCLUDED.name, welcome = EXCLUDED.welcome, updated_at = now()
	`, t.Slug, t.Name, t.Welcome); err != nil {
		return fmt.Errorf("upsert tour: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM waypoints WHERE tour_slug = $1`, t.Slug); err != nil {
		return fmt.Errorf("clear waypoints: %w", err)
	}

	batch := &pgx.Batch{}
	for i, w := range t.Waypoints {
		images := w.Images
		if images == nil {
			images = []string{}
		}
		batch.Queue(`
			INSERT INTO waypoints (tour_slug, position, name, description, short_description, images, lon, lat)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, t.Slug, i, w.Name, w.Description, w.ShortDescription, images,
			w.Coordinate.Lon, w.Coordinate.Lat)
	}
	br := tx.SendBatch(ctx, batch)
	for range t.Waypoints {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("batch close: %w", err)
	}

	return tx.Commit(ctx)
}
