package dispatch

import (
	"context"
	"fmt"
	"time"
)

// Mode selects how due commands are executed.
type Mode int

const (
	// Burst fires co-due commands concurrently with no enforced spacing.
	Burst Mode = iota

	// InOrder fires commands strictly one after another.
	InOrder
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Burst:
		return "burst"
	case InOrder:
		return "in_order"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Command is a device-kind-specific instruction derived from a state
// difference. Payload is opaque to the queue.
type Command struct {
	// Kind names the instruction, e.g. "preset" or "added".
	Kind string `json:"kind"`

	// Key is the owning collection key for keyed device states.
	// Empty for flat states.
	Key string `json:"key,omitempty"`

	Payload any `json:"payload"`

	// OriginID is the timeline object that produced the value.
	OriginID string `json:"originId"`

	// Context is a human-readable diagnostic note.
	Context string `json:"context"`
}

// ScheduledCommand is a Command bound to an execution time.
type ScheduledCommand struct {
	ID      string    `json:"id"`
	Time    time.Time `json:"time"`
	Command Command   `json:"command"`

	seq uint64
}

// before orders by time, then by enqueue sequence.
func (sc ScheduledCommand) before(other ScheduledCommand) bool {
	if !sc.Time.Equal(other.Time) {
		return sc.Time.Before(other.Time)
	}
	return sc.seq < other.seq
}

// Executor performs one command. It should honour ctx, which is
// cancelled when the queue is disposed.
type Executor func(ctx context.Context, sc ScheduledCommand) error
