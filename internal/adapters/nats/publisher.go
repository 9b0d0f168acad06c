package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/campustour/campustour/internal/core/domain"
)

// Subject prefixes.
const (
	EventSubjectPrefix    = "tour.events."
	LocationSubjectPrefix = "tour.location."
)

// EventSubject is the subject a session's tour events are published on.
func EventSubject(sessionID string) string { return EventSubjectPrefix + sessionID }

// LocationSubject is the subject a session's geolocation samples arrive on.
func LocationSubject(sessionID string) string { return LocationSubjectPrefix + sessionID }

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:      "TOUR_EVENTS",
		Subjects:  []string{EventSubjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    24 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			conn.Close()
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishTourEvent stores the event on the TOUR_EVENTS stream.
// JetStream also delivers it to plain subscribers such as the WebSocket relay.
func (p *Publisher) PublishTourEvent(ctx context.Context, event *domain.TourEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(EventSubject(event.SessionID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("campustour"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

// PublishLocation sends a sample on a session's location subject over core NATS.
func PublishLocation(conn *nats.Conn, sessionID string, s domain.LocationSample) error {
	data, err := json.Marshal(LocationMessage{
		Lon:       s.Point.Lon,
		Lat:       s.Point.Lat,
		Timestamp: s.Timestamp,
		Error:     s.Error,
	})
	if err != nil {
		return err
	}
	return conn.Publish(LocationSubject(sessionID), data)
}
