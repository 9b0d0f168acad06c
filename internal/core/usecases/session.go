package usecases

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/campustour/campustour/internal/core/domain"
	"github.com/campustour/campustour/internal/core/ports"
	"github.com/campustour/campustour/internal/core/tour"
	"github.com/campustour/campustour/internal/pkg/metrics"
)

// Step transition triggers, used as metric labels.
const (
	triggerManual   = "manual"
	triggerJump     = "jump"
	triggerGeofence = "geofence"
	triggerMode     = "mode"
	triggerReset    = "reset"
)

const publishTimeout = 2 * time.Second

type result struct {
	view    tour.StepView
	outcome tour.Outcome
	err     error
}

// command is applied to the controller on the session goroutine. It may name
// events that cannot be derived from a before/after state comparison.
type command struct {
	trigger string
	apply   func(c *tour.Controller) (tour.Outcome, []domain.EventType, error)
	reply   chan result
}

// Session is one visitor's walk through the tour. A single goroutine owns the
// controller; every method sends it a command and waits for the new view.
type Session struct {
	id        string
	ctrl      *tour.Controller
	publisher ports.EventPublisher
	now       func() time.Time

	cmds chan command
	done chan struct{}

	ctx    context.Context
	cancel context.CancelFunc

	lastActive atomic.Int64
	closeOnce  sync.Once
	subMu      sync.Mutex
	sub        ports.Subscription
}

func newSession(parent context.Context, id string, ctrl *tour.Controller, publisher ports.EventPublisher, now func() time.Time) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:        id,
		ctrl:      ctrl,
		publisher: publisher,
		now:       now,
		cmds:      make(chan command),
		done:      make(chan struct{}),
		ctx:       ctx,
		cancel:    cancel,
	}
	s.touch()
	go s.loop()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// LastActive is the time of the last visitor interaction or location sample.
func (s *Session) LastActive() time.Time { return time.Unix(0, s.lastActive.Load()) }

func (s *Session) touch() { s.lastActive.Store(s.now().UnixNano()) }

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			return
		case cmd := <-s.cmds:
			before := s.ctrl.State()
			outcome, explicit, err := cmd.apply(s.ctrl)
			after := s.ctrl.State()

			s.record(cmd.trigger, outcome, before, after)
			for _, typ := range append(explicit, diffEvents(before, after)...) {
				s.publish(typ, after)
			}
			cmd.reply <- result{view: s.ctrl.View(), outcome: outcome, err: err}
		}
	}
}

func (s *Session) record(trigger string, outcome tour.Outcome, before, after tour.State) {
	if trigger == triggerGeofence {
		metrics.LocationSamples.WithLabelValues(outcome.String()).Inc()
	}
	if before.CurrentStep != after.CurrentStep {
		metrics.StepTransitions.WithLabelValues(trigger).Inc()
	}
	if after.Completed && !before.Completed {
		metrics.ToursCompleted.Inc()
	}
}

// diffEvents derives events from a state change.
func diffEvents(before, after tour.State) []domain.EventType {
	var out []domain.EventType
	if before.Mode != after.Mode {
		out = append(out, domain.EventModeChanged)
	}
	if g := after.Geofenced(); g >= 0 && g != before.Geofenced() {
		out = append(out, domain.EventGeofenceEntered)
	}
	if before.CurrentStep != after.CurrentStep {
		out = append(out, domain.EventStepChanged)
		if after.Completed {
			out = append(out, domain.EventTourCompleted)
		}
	}
	if after.OffRoute && !before.OffRoute {
		out = append(out, domain.EventOffRoute)
	}
	if after.LocationUnavailable && !before.LocationUnavailable {
		out = append(out, domain.EventLocationUnavailable)
	}
	if after.DirectionsAvailable && !before.DirectionsAvailable {
		out = append(out, domain.EventRouteLoaded)
	}
	if after.RouteFailed && !before.RouteFailed {
		out = append(out, domain.EventRouteFailed)
	}
	return out
}

func (s *Session) publish(typ domain.EventType, st tour.State) {
	if s.publisher == nil {
		return
	}
	ev := &domain.TourEvent{
		SessionID: s.id,
		Type:      typ,
		Step:      st.CurrentStep,
		Mode:      st.Mode,
		Geofenced: st.GeofencedIndex,
		Completed: st.Completed,
		Time:      s.now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishTourEvent(ctx, ev); err != nil {
		slog.Warn("publish tour event", "session_id", s.id, "type", typ, "error", err)
	}
}

func (s *Session) dispatch(ctx context.Context, trigger string, apply func(c *tour.Controller) (tour.Outcome, []domain.EventType, error)) (result, error) {
	reply := make(chan result, 1)
	select {
	case s.cmds <- command{trigger: trigger, apply: apply, reply: reply}:
	case <-s.done:
		return result{}, domain.ErrSessionClosed
	case <-ctx.Done():
		return result{}, ctx.Err()
	}

	// The loop always replies to a command it accepted.
	r := <-reply
	return r, r.err
}

func (s *Session) intent(ctx context.Context, trigger string, fn func(c *tour.Controller) error) (tour.StepView, error) {
	s.touch()
	r, err := s.dispatch(ctx, trigger, func(c *tour.Controller) (tour.Outcome, []domain.EventType, error) {
		return tour.SampleIgnored, nil, fn(c)
	})
	return r.view, err
}

// View returns the current step card.
func (s *Session) View(ctx context.Context) (tour.StepView, error) {
	r, err := s.dispatch(ctx, "", func(*tour.Controller) (tour.Outcome, []domain.EventType, error) {
		return tour.SampleIgnored, nil, nil
	})
	return r.view, err
}

// Advance moves to the next waypoint.
func (s *Session) Advance(ctx context.Context) (tour.StepView, error) {
	return s.intent(ctx, triggerManual, func(c *tour.Controller) error { c.Advance(); return nil })
}

// Retreat moves to the previous waypoint.
func (s *Session) Retreat(ctx context.Context) (tour.StepView, error) {
	return s.intent(ctx, triggerManual, func(c *tour.Controller) error { c.Retreat(); return nil })
}

// JumpTo selects a waypoint directly. Out-of-range indices are clamped.
func (s *Session) JumpTo(ctx context.Context, index int) (tour.StepView, error) {
	return s.intent(ctx, triggerJump, func(c *tour.Controller) error { c.JumpTo(index); return nil })
}

// Reset restarts the tour from the first waypoint.
func (s *Session) Reset(ctx context.Context) (tour.StepView, error) {
	s.touch()
	r, err := s.dispatch(ctx, triggerReset, func(c *tour.Controller) (tour.Outcome, []domain.EventType, error) {
		c.Reset()
		return tour.SampleIgnored, []domain.EventType{domain.EventTourReset}, nil
	})
	return r.view, err
}

// SetMode switches between live and virtual.
func (s *Session) SetMode(ctx context.Context, m domain.Mode) (tour.StepView, error) {
	return s.intent(ctx, triggerMode, func(c *tour.Controller) error {
		_, err := c.SetMode(m)
		return err
	})
}

// Recenter points the camera at the visitor until the step changes.
// It reports false when no live location is known.
func (s *Session) Recenter(ctx context.Context) (tour.StepView, bool, error) {
	var ok bool
	v, err := s.intent(ctx, triggerManual, func(c *tour.Controller) error {
		ok = c.Recenter()
		return nil
	})
	return v, ok, err
}

// Location feeds a geolocation sample. Samples without a timestamp are stamped on arrival.
func (s *Session) Location(ctx context.Context, sample domain.LocationSample) (tour.StepView, tour.Outcome, error) {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = s.now()
	}
	s.touch()
	r, err := s.dispatch(ctx, triggerGeofence, func(c *tour.Controller) (tour.Outcome, []domain.EventType, error) {
		return c.OnLocationSample(sample), nil, nil
	})
	return r.view, r.outcome, err
}

func (s *Session) setRoute(ctx context.Context, legs []domain.RouteLeg) error {
	_, err := s.dispatch(ctx, "", func(c *tour.Controller) (tour.Outcome, []domain.EventType, error) {
		c.SetRoute(legs)
		return tour.SampleIgnored, nil, nil
	})
	return err
}

func (s *Session) setRouteFailed(ctx context.Context) error {
	_, err := s.dispatch(ctx, "", func(c *tour.Controller) (tour.Outcome, []domain.EventType, error) {
		c.SetRouteFailed()
		return tour.SampleIgnored, nil, nil
	})
	return err
}

func (s *Session) attach(sub ports.Subscription) {
	s.subMu.Lock()
	s.sub = sub
	s.subMu.Unlock()
}

// Close publishes session_ended, stops the loop and releases the location feed.
// It is safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.subMu.Lock()
		if s.sub != nil {
			if err := s.sub.Unsubscribe(); err != nil {
				slog.Warn("unsubscribe location feed", "session_id", s.id, "error", err)
			}
			s.sub = nil
		}
		s.subMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		_, _ = s.dispatch(ctx, "", func(*tour.Controller) (tour.Outcome, []domain.EventType, error) {
			return tour.SampleIgnored, []domain.EventType{domain.EventSessionEnded}, nil
		})
		cancel()

		s.cancel()
		<-s.done
	})
}

// Done is closed once the session loop has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }
