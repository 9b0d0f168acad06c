package http

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"
)

type fakeEventSource struct {
	mu        sync.Mutex
	calls     []string
	cb        nats.MsgHandler
	subErr    error
	flushedIn time.Duration
}

func (f *fakeEventSource) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "subscribe")
	if f.subErr != nil {
		return nil, f.subErr
	}
	f.cb = cb
	return &nats.Subscription{Subject: subj}, nil
}

func (f *fakeEventSource) FlushTimeout(timeout time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "flush")
	f.flushedIn = timeout
	return nil
}

func (f *fakeEventSource) deliver(data string) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb(&nats.Msg{Data: []byte(data)})
}

type frameRecorder struct {
	mu     sync.Mutex
	frames []string
}

func (w *frameRecorder) write(messageType int, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if messageType == websocket.TextMessage {
		w.frames = append(w.frames, string(data))
	}
	return nil
}

func (w *frameRecorder) snapshot() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.frames...)
}

func TestEventRelay_EventDuringSnapshotFollowsIt(t *testing.T) {
	src := &fakeEventSource{}
	rec := &frameRecorder{}
	relay := &eventRelay{write: rec.write}

	delivered := make(chan struct{})
	snapshot := func() (any, error) {
		src.mu.Lock()
		subscribed := src.cb != nil
		src.mu.Unlock()
		if !subscribed {
			t.Error("snapshot read before subscribing")
		}
		// An event published while the snapshot is being read.
		go func() {
			defer close(delivered)
			src.deliver(`{"type":"step_changed"}`)
		}()
		time.Sleep(20 * time.Millisecond)
		return map[string]string{"type": "snapshot"}, nil
	}

	if _, err := relay.start(src, "tour.events.s1", snapshot); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-delivered:
	case <-time.After(time.Second):
		t.Fatal("event was never written")
	}

	frames := rec.snapshot()
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %v", frames)
	}
	var first map[string]string
	if err := json.Unmarshal([]byte(frames[0]), &first); err != nil || first["type"] != "snapshot" {
		t.Errorf("expected snapshot first, got %q", frames[0])
	}
	if frames[1] != `{"type":"step_changed"}` {
		t.Errorf("expected event second, got %q", frames[1])
	}
}

func TestEventRelay_SubscribeFailureSkipsSnapshot(t *testing.T) {
	src := &fakeEventSource{subErr: errors.New("no responders")}
	rec := &frameRecorder{}
	relay := &eventRelay{write: rec.write}

	called := false
	_, err := relay.start(src, "tour.events.s1", func() (any, error) {
		called = true
		return nil, nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("snapshot should not be read without a subscription")
	}
	if n := len(rec.snapshot()); n != 0 {
		t.Errorf("expected no frames, got %d", n)
	}
}

func TestEventRelay_SnapshotFailureReturnsError(t *testing.T) {
	src := &fakeEventSource{}
	relay := &eventRelay{write: (&frameRecorder{}).write}

	want := errors.New("session closed")
	if _, err := relay.start(src, "tour.events.s1", func() (any, error) { return nil, want }); !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestEventRelay_FinishFlushesAndWaitsForWrite(t *testing.T) {
	src := &fakeEventSource{}
	rec := &frameRecorder{}
	gate := make(chan struct{})
	var gated sync.Once
	relay := &eventRelay{write: rec.write}

	sub, err := relay.start(src, "tour.events.s1", func() (any, error) { return "snapshot", nil })
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	// The session_ended write is still in progress when the session closes.
	writing := make(chan struct{})
	relay.write = func(mt int, data []byte) error {
		gated.Do(func() { close(writing) })
		<-gate
		return rec.write(mt, data)
	}
	go src.deliver(`{"type":"session_ended"}`)
	<-writing

	done := make(chan struct{})
	go func() {
		defer close(done)
		relay.finish(src, sub, time.Second)
	}()

	select {
	case <-done:
		t.Fatal("finish returned before the pending write completed")
	case <-time.After(50 * time.Millisecond):
	}
	close(gate)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("finish did not return")
	}

	frames := rec.snapshot()
	if len(frames) != 2 || frames[1] != `{"type":"session_ended"}` {
		t.Errorf("expected session_ended as last frame, got %v", frames)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.calls) != 2 || src.calls[1] != "flush" || src.flushedIn != time.Second {
		t.Errorf("expected subscribe then flush(1s), got %v (%v)", src.calls, src.flushedIn)
	}
}
