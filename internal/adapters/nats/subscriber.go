package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/core/ports"
)

// LocationMessage is the wire shape of a geolocation sample.
type LocationMessage struct {
	Lon       float64   `json:"lon"`
	Lat       float64   `json:"lat"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Sample converts the message into a domain sample.
func (m LocationMessage) Sample() domain.LocationSample {
	return domain.LocationSample{
		Point:     domain.GeoPoint{Lon: m.Lon, Lat: m.Lat},
		Timestamp: m.Timestamp,
		Error:     m.Error,
	}
}

// DecodeLocation parses a location message. Coordinates are only checked when
// the message does not report a sensor error.
func DecodeLocation(data []byte) (domain.LocationSample, error) {
	var m LocationMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return domain.LocationSample{}, fmt.Errorf("decode location: %w", err)
	}
	s := m.Sample()
	if s.Error == "" && !s.Point.Valid() {
		return domain.LocationSample{}, fmt.Errorf("decode location: %w", domain.ErrInvalidCoordinate)
	}
	return s, nil
}

// Subscriber implements ports.LocationFeed over core NATS subjects.
// Samples are ephemeral, so there is no JetStream consumer behind them.
type Subscriber struct {
	conn *nats.Conn
}

// NewSubscriber creates a subscriber sharing a NATS connection.
func NewSubscriber(conn *nats.Conn) *Subscriber {
	return &Subscriber{conn: conn}
}

// SubscribeLocations delivers samples published on tour.location.<sessionID> to handler.
// Malformed messages are logged and dropped.
func (s *Subscriber) SubscribeLocations(ctx context.Context, sessionID string, handler func(ctx context.Context, sample domain.LocationSample) error) (ports.Subscription, error) {
	subject := LocationSubject(sessionID)
	sub, err := s.conn.Subscribe(subject, func(msg *nats.Msg) {
		sample, err := DecodeLocation(msg.Data)
		if err != nil {
			slog.Warn("dropping location message", "subject", subject, "error", err)
			return
		}
		if err := handler(ctx, sample); err != nil {
			slog.Debug("location handler", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}
