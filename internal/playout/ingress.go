package playout

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-playout/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// Subscriber is the MQTT surface Ingress needs. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Sink receives decoded timeline input. *Conductor satisfies it.
type Sink interface {
	HandleState(ctx context.Context, snap timeline.Snapshot)
	PrepareForHandleState(t time.Time)
	ClearFuture(t time.Time)
}

// StateMessage is the body of a timeline state message: the snapshot wire
// form plus an optional prepare flag.
type StateMessage struct {
	Snapshot timeline.Snapshot
	Prepare  bool
}

// ClearMessage is the body of a clear-future message.
type ClearMessage struct {
	// Time is Unix milliseconds.
	Time *int64 `json:"time"`
}

// Ingress feeds timeline messages from MQTT into a Sink.
//
// Messages are applied one at a time in arrival order, since paho may
// deliver on several goroutines and a device must see snapshots in order.
type Ingress struct {
	sub    Subscriber
	sink   Sink
	qos    byte
	logger Logger
	topics []string

	mu sync.Mutex
}

// NewIngress creates an ingress. Call Start to subscribe.
func NewIngress(sub Subscriber, sink Sink, qos byte) *Ingress {
	return &Ingress{
		sub:    sub,
		sink:   sink,
		qos:    qos,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger.
func (in *Ingress) SetLogger(logger Logger) {
	if logger != nil {
		in.logger = logger
	}
}

// Start subscribes to the timeline state and clear topics.
func (in *Ingress) Start(ctx context.Context) error {
	topics := mqtt.Topics{}

	stateTopic := topics.TimelineState()
	if err := in.sub.Subscribe(stateTopic, in.qos, func(_ string, payload []byte) error {
		return in.HandleStateMessage(ctx, payload)
	}); err != nil {
		return fmt.Errorf("subscribing to %s: %w", stateTopic, err)
	}
	in.topics = append(in.topics, stateTopic)

	clearTopic := topics.TimelineClear()
	if err := in.sub.Subscribe(clearTopic, in.qos, func(_ string, payload []byte) error {
		return in.HandleClearMessage(payload)
	}); err != nil {
		in.Stop()
		return fmt.Errorf("subscribing to %s: %w", clearTopic, err)
	}
	in.topics = append(in.topics, clearTopic)

	in.logger.Info("timeline ingress started", "state_topic", stateTopic, "clear_topic", clearTopic)
	return nil
}

// Stop unsubscribes from every topic Start subscribed to.
func (in *Ingress) Stop() {
	for _, topic := range in.topics {
		if err := in.sub.Unsubscribe(topic); err != nil {
			in.logger.Warn("unsubscribing", "topic", topic, "error", err)
		}
	}
	in.topics = nil
}

// DecodeStateMessage parses a timeline state message.
func DecodeStateMessage(payload []byte) (StateMessage, error) {
	var flags struct {
		Time    *int64 `json:"time"`
		Prepare bool   `json:"prepare"`
	}
	if err := json.Unmarshal(payload, &flags); err != nil {
		return StateMessage{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if flags.Time == nil {
		return StateMessage{}, fmt.Errorf("%w: missing time", ErrInvalidMessage)
	}

	var snap timeline.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return StateMessage{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return StateMessage{Snapshot: snap, Prepare: flags.Prepare}, nil
}

// HandleStateMessage decodes a state message and delivers it to the sink.
func (in *Ingress) HandleStateMessage(ctx context.Context, payload []byte) error {
	msg, err := DecodeStateMessage(payload)
	if err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if msg.Prepare {
		in.sink.PrepareForHandleState(msg.Snapshot.Time)
	}
	in.sink.HandleState(ctx, msg.Snapshot)
	in.logger.Debug("timeline state applied",
		"time", msg.Snapshot.Time,
		"layers", len(msg.Snapshot.Layers),
		"prepare", msg.Prepare,
	)
	return nil
}

// HandleClearMessage decodes a clear message and clears every device's
// future after the given time.
func (in *Ingress) HandleClearMessage(payload []byte) error {
	var msg ClearMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if msg.Time == nil {
		return fmt.Errorf("%w: missing time", ErrInvalidMessage)
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	t := time.UnixMilli(*msg.Time)
	in.sink.ClearFuture(t)
	in.logger.Debug("timeline future cleared", "after", t)
	return nil
}
