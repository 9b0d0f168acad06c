package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/campustour/campustour/internal/adapters/nats"
	"github.com/campustour/campustour/internal/pkg/metrics"
)

// wsSnapshot is the first frame a client receives.
type wsSnapshot struct {
	Type string `json:"type"` // "snapshot"
	SessionResponse
}

// SessionExistsMiddleware rejects upgrades for unknown sessions before the handshake.
func SessionExistsMiddleware(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := deps.Tours.Get(c.Params("id")); err != nil {
			return errFromDomain(c, err)
		}
		return c.Next()
	}
}

// SessionEventsHandler relays a session's tour events from NATS to the client.
// It sends the current step card first and closes when the session ends or the
// client disconnects.
func SessionEventsHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		id := c.Params("id")
		log := slog.Default().With("session_id", id, "remote", c.RemoteAddr().String())

		sess, err := deps.Tours.Get(id)
		if err != nil {
			_ = c.WriteJSON(fiber.Map{"error": "session not found"})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		log.Info("ws client connected")

		relay := &eventRelay{write: c.WriteMessage}
		snapshot := func() (any, error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			view, err := sess.View(ctx)
			if err != nil {
				return nil, err
			}
			return wsSnapshot{Type: "snapshot", SessionResponse: SessionResponse{SessionID: id, StepView: view}}, nil
		}

		if deps.NATS == nil {
			if v, err := snapshot(); err == nil {
				_ = relay.sendJSON(v)
			}
			_ = relay.sendJSON(fiber.Map{"error": "event stream unavailable"})
			return
		}
		sub, err := relay.start(deps.NATS, natsadapter.EventSubject(id), snapshot)
		if err != nil {
			log.Warn("ws relay start failed", "error", err)
			_ = relay.sendJSON(fiber.Map{"error": err.Error()})
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		// Reader: the client sends nothing meaningful, but reading surfaces disconnects.
		gone := make(chan struct{})
		go func() {
			defer close(gone)
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := relay.send(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-sess.Done():
				relay.finish(deps.NATS, sub, time.Second)
				log.Info("ws closing, session ended")
				return
			case <-gone:
				log.Info("ws client disconnected")
				return
			}
		}
	}
}

// eventSource is the part of a NATS connection the relay uses.
type eventSource interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
	FlushTimeout(timeout time.Duration) error
}

// eventRelay serializes frames to one websocket client.
type eventRelay struct {
	mu    sync.Mutex
	write func(messageType int, data []byte) error
}

func (r *eventRelay) send(messageType int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(messageType, data)
}

func (r *eventRelay) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.send(websocket.TextMessage, data)
}

// start subscribes to subject and then writes the snapshot. The write lock is
// held across both, so events published while the snapshot is being read are
// queued behind it instead of lost or sent ahead of it.
func (r *eventRelay) start(src eventSource, subject string, snapshot func() (any, error)) (*nats.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, err := src.Subscribe(subject, func(msg *nats.Msg) {
		_ = r.send(websocket.TextMessage, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	v, err := snapshot()
	if err == nil {
		var data []byte
		if data, err = json.Marshal(v); err == nil {
			err = r.write(websocket.TextMessage, data)
		}
	}
	if err != nil {
		_ = sub.Unsubscribe()
		return nil, err
	}
	return sub, nil
}

// finish waits for events already sent to the subscription to reach the
// client: a server round trip, then the local pending queue, then any write
// in progress.
func (r *eventRelay) finish(src eventSource, sub *nats.Subscription, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	if err := src.FlushTimeout(timeout); err != nil {
		slog.Debug("ws flush failed", "error", err)
	}
	for time.Now().Before(deadline) {
		n, _, err := sub.Pending()
		if err != nil || n == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	// An in-flight callback write holds the lock until it completes.
	r.mu.Lock()
	defer r.mu.Unlock()
}
