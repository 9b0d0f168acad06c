package http

import (
	"github.com/nats-io/nats.go"

	"github.com/campustour/campustour/internal/adapters/postgres"
	"github.com/campustour/campustour/internal/adapters/valkey"
	"github.com/campustour/campustour/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
// Infrastructure fields are nil when the component is not configured.
type Dependencies struct {
	Tours *usecases.TourService
	NATS  *nats.Conn
	DB    *postgres.DB
	Cache *valkey.Cache
}
