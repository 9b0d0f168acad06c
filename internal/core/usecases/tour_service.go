package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/core/ports"
	"github.com/campustour/campustour/internal/core/tour"
	"github.com/campustour/campustour/internal/pkg/metrics"
)

const routeLoadTimeout = 30 * time.Second

// TourServiceConfig tunes session behaviour.
type TourServiceConfig struct {
	Options     tour.Options
	IdleTimeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// TourService owns the loaded tour and every open session.
type TourService struct {
	tour      *domain.Tour
	routes    *RouteService
	feed      ports.LocationFeed
	publisher ports.EventPublisher
	cfg       TourServiceConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewTourService validates the tour and options up front so that session
// creation cannot fail on configuration. routes, feed and publisher may be nil.
func NewTourService(t *domain.Tour, routes *RouteService, feed ports.LocationFeed, publisher ports.EventPublisher, cfg TourServiceConfig) (*TourService, error) {
	if _, err := tour.NewController(t, cfg.Options); err != nil {
		return nil, err
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TourService{
		tour:      t,
		routes:    routes,
		feed:      feed,
		publisher: publisher,
		cfg:       cfg,
		ctx:       ctx,
		cancel:    cancel,
		sessions:  make(map[string]*Session),
	}, nil
}

// Tour returns the loaded tour.
func (s *TourService) Tour() *domain.Tour { return s.tour }

// Route returns the walking route for the loaded tour.
func (s *TourService) Route(ctx context.Context) (*domain.Route, error) {
	if s.routes == nil {
		return nil, domain.ErrRouteUnavailable
	}
	return s.routes.Route(ctx, s.tour)
}

// Create opens a session in the given mode, subscribes it to the location feed
// and starts loading directions in the background.
func (s *TourService) Create(ctx context.Context, mode domain.Mode) (*Session, tour.StepView, error) {
	if mode == "" {
		mode = domain.ModeLive
	}
	if _, err := domain.ParseMode(string(mode)); err != nil {
		return nil, tour.StepView{}, err
	}

	ctrl, err := tour.NewController(s.tour, s.cfg.Options)
	if err != nil {
		return nil, tour.StepView{}, err
	}
	if _, err := ctrl.SetMode(mode); err != nil {
		return nil, tour.StepView{}, err
	}

	sess := newSession(s.ctx, uuid.NewString(), ctrl, s.publisher, s.cfg.Now)

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()
	metrics.SessionsActive.Inc()

	if s.feed != nil {
		sub, err := s.feed.SubscribeLocations(s.ctx, sess.ID(), func(ctx context.Context, sample domain.LocationSample) error {
			_, _, err := sess.Location(ctx, sample)
			return err
		})
		if err != nil {
			// HTTP location updates still work without the feed.
			slog.Warn("location feed unavailable", "session_id", sess.ID(), "error", err)
		} else {
			sess.attach(sub)
		}
	}

	r, err := sess.dispatch(ctx, "", func(*tour.Controller) (tour.Outcome, []domain.EventType, error) {
		return tour.SampleIgnored, []domain.EventType{domain.EventSessionStarted}, nil
	})
	if err != nil {
		_ = s.Close(sess.ID())
		return nil, tour.StepView{}, fmt.Errorf("start session: %w", err)
	}

	s.loadRoute(sess)

	slog.Info("session started", "session_id", sess.ID(), "mode", mode)
	return sess, r.view, nil
}

func (s *TourService) loadRoute(sess *Session) {
	if s.routes == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, routeLoadTimeout)
		defer cancel()

		route, err := s.routes.Route(ctx, s.tour)
		if err != nil {
			slog.Warn("directions unavailable", "session_id", sess.ID(), "error", err)
			_ = sess.setRouteFailed(ctx)
			return
		}
		_ = sess.setRoute(ctx, route.Legs)
	}()
}

// Get looks up an open session.
func (s *TourService) Get(id string) (*Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	return sess, nil
}

// Close ends a session and forgets it.
func (s *TourService) Close(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	sess.Close()
	metrics.SessionsActive.Dec()
	slog.Info("session ended", "session_id", id)
	return nil
}

// Count returns the number of open sessions.
func (s *TourService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// ReapIdle closes sessions whose last activity is older than the idle timeout.
func (s *TourService) ReapIdle(now time.Time) int {
	if s.cfg.IdleTimeout <= 0 {
		return 0
	}
	cutoff := now.Add(-s.cfg.IdleTimeout)

	var idle []string
	s.mu.RLock()
	for id, sess := range s.sessions {
		if sess.LastActive().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	s.mu.RUnlock()

	reaped := 0
	for _, id := range idle {
		if s.Close(id) == nil {
			reaped++
		}
	}
	if reaped > 0 {
		slog.Info("reaped idle sessions", "count", reaped)
	}
	return reaped
}

// RunReaper calls ReapIdle every interval until ctx is cancelled.
func (s *TourService) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ReapIdle(s.cfg.Now())
		}
	}
}

// Shutdown closes every session and waits for background route loads.
func (s *TourService) Shutdown() {
	s.mu.RLock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	for _, id := range ids {
		_ = s.Close(id)
	}
	s.cancel()
	s.wg.Wait()
}
