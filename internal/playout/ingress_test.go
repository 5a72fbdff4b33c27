package playout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// fakeSubscriber keeps handlers so tests can deliver messages directly.
type fakeSubscriber struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	unsubscribed []string
	failOn       string
}

func newFakeSubscriber() *fakeSubscriber {
	return &fakeSubscriber{handlers: make(map[string]mqtt.MessageHandler)}
}

func (s *fakeSubscriber) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if topic == s.failOn {
		return mqtt.ErrNotConnected
	}
	s.handlers[topic] = handler
	return nil
}

func (s *fakeSubscriber) Unsubscribe(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.handlers, topic)
	s.unsubscribed = append(s.unsubscribed, topic)
	return nil
}

func (s *fakeSubscriber) deliver(topic string, payload []byte) error {
	s.mu.Lock()
	h := s.handlers[topic]
	s.mu.Unlock()
	if h == nil {
		return errors.New("no handler for " + topic)
	}
	return h(topic, payload)
}

// recordingSink records calls in order.
type recordingSink struct {
	mu    sync.Mutex
	calls []string
	snaps []timeline.Snapshot
	times []time.Time
}

func (s *recordingSink) HandleState(_ context.Context, snap timeline.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "handle")
	s.snaps = append(s.snaps, snap)
}

func (s *recordingSink) PrepareForHandleState(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "prepare")
	s.times = append(s.times, t)
}

func (s *recordingSink) ClearFuture(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "clear")
	s.times = append(s.times, t)
}

func TestIngress_StateMessages(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantCalls []string
		wantErr   bool
	}{
		{
			name:      "plain",
			payload:   `{"time":1000,"layers":{"L1":{"id":"o1","content":{"value":"a"}}}}`,
			wantCalls: []string{"handle"},
		},
		{
			name:      "prepare",
			payload:   `{"time":1000,"prepare":true,"layers":{}}`,
			wantCalls: []string{"prepare", "handle"},
		},
		{
			name:    "missing time",
			payload: `{"layers":{}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			payload: `nope`,
			wantErr: true,
		},
		{
			name:    "bad layers",
			payload: `{"time":1000,"layers":[1,2]}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newFakeSubscriber()
			sink := &recordingSink{}
			in := NewIngress(sub, sink, 1)
			if err := in.Start(context.Background()); err != nil {
				t.Fatalf("Start() error = %v", err)
			}

			err := sub.deliver(mqtt.Topics{}.TimelineState(), []byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidMessage) {
					t.Errorf("deliver() error = %v, want ErrInvalidMessage", err)
				}
				if len(sink.calls) != 0 {
					t.Errorf("sink calls = %v, want none", sink.calls)
				}
				return
			}
			if err != nil {
				t.Fatalf("deliver() error = %v", err)
			}
			if len(sink.calls) != len(tt.wantCalls) {
				t.Fatalf("sink calls = %v, want %v", sink.calls, tt.wantCalls)
			}
			for i := range tt.wantCalls {
				if sink.calls[i] != tt.wantCalls[i] {
					t.Errorf("call[%d] = %s, want %s", i, sink.calls[i], tt.wantCalls[i])
				}
			}
			if !sink.snaps[0].Time.Equal(time.UnixMilli(1000)) {
				t.Errorf("snapshot time = %v, want 1000ms", sink.snaps[0].Time)
			}
		})
	}
}

func TestIngress_ClearMessage(t *testing.T) {
	sub := newFakeSubscriber()
	sink := &recordingSink{}
	in := NewIngress(sub, sink, 1)
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := sub.deliver(mqtt.Topics{}.TimelineClear(), []byte(`{"time":2500}`)); err != nil {
		t.Fatalf("deliver() error = %v", err)
	}
	if len(sink.calls) != 1 || sink.calls[0] != "clear" || !sink.times[0].Equal(time.UnixMilli(2500)) {
		t.Errorf("sink = %v %v, want one clear at 2500ms", sink.calls, sink.times)
	}

	if err := sub.deliver(mqtt.Topics{}.TimelineClear(), []byte(`{}`)); !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("deliver(no time) error = %v, want ErrInvalidMessage", err)
	}
}

func TestIngress_StartFailureUnsubscribes(t *testing.T) {
	sub := newFakeSubscriber()
	sub.failOn = mqtt.Topics{}.TimelineClear()

	in := NewIngress(sub, &recordingSink{}, 1)
	if err := in.Start(context.Background()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Fatalf("Start() error = %v, want ErrNotConnected", err)
	}
	stateTopic := mqtt.Topics{}.TimelineState()
	if len(sub.unsubscribed) != 1 || sub.unsubscribed[0] != stateTopic {
		t.Errorf("unsubscribed = %v, want the state topic", sub.unsubscribed)
	}
}

func TestIngress_Stop(t *testing.T) {
	sub := newFakeSubscriber()
	in := NewIngress(sub, &recordingSink{}, 1)
	if err := in.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	in.Stop()

	if len(sub.handlers) != 0 {
		t.Errorf("handlers left after Stop: %d", len(sub.handlers))
	}
}
