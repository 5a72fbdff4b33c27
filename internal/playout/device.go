package playout

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// Reconciler is the device-kind-specific half of a controller.
//
// Project and Diff must be pure: the same inputs always give equal outputs.
type Reconciler[S any] interface {
	// Kind is the device kind this reconciler projects for.
	Kind() timeline.DeviceKind

	// Default returns the state of a device that no layer drives.
	Default() S

	// Project reduces a snapshot to this device's state.
	Project(snap timeline.Snapshot, mapping timeline.Mapping, deviceID string) S

	// Diff returns the ordered commands that move the device from old to new.
	Diff(old, new S) []dispatch.Command
}

// Adapter executes one command against a real device.
type Adapter interface {
	Execute(ctx context.Context, cmd dispatch.Command) error
}

// AdapterFunc adapts a function to Adapter.
type AdapterFunc func(ctx context.Context, cmd dispatch.Command) error

// Execute implements Adapter.
func (f AdapterFunc) Execute(ctx context.Context, cmd dispatch.Command) error {
	return f(ctx, cmd)
}

// CompareMode selects how flat device states detect a changed field.
type CompareMode int

const (
	// CompareValue treats a field as changed when its value differs.
	CompareValue CompareMode = iota

	// CompareRecord treats a field as changed when its value or its
	// origin object differs.
	CompareRecord
)

// ParseCompareMode maps a config string to a CompareMode.
func ParseCompareMode(s string) CompareMode {
	if s == "record" {
		return CompareRecord
	}
	return CompareValue
}

// String returns the config name of the mode.
func (m CompareMode) String() string {
	if m == CompareRecord {
		return "record"
	}
	return "value"
}

// Status is a device's externally visible health.
type Status struct {
	DeviceID string              `json:"device_id"`
	Kind     timeline.DeviceKind `json:"kind"`

	// OK is derived from the connection state. Devices without a live
	// connection report OK constantly.
	OK bool `json:"ok"`

	// Connected is meaningful only when HasConnection is true.
	Connected     bool `json:"connected"`
	HasConnection bool `json:"has_connection"`

	Initialised bool   `json:"initialised"`
	Terminated  bool   `json:"terminated"`
	Pending     int    `json:"pending"`
	History     int    `json:"history"`
	LastError   string `json:"last_error,omitempty"`
}

// Device is the orchestrator-facing surface of one device instance.
type Device interface {
	ID() string
	Kind() timeline.DeviceKind

	Init(ctx context.Context) error
	HandleState(ctx context.Context, snap timeline.Snapshot)
	PrepareForHandleState(t time.Time)
	ClearFuture(t time.Time)
	CleanUpStates(before, after time.Time)
	Terminate(ctx context.Context) error

	Status() Status
	Queue() []dispatch.ScheduledCommand
}

// Deps carries the collaborators shared by every device controller.
// Device kind packages turn a DeviceConfig plus Deps into Options.
type Deps struct {
	Mapping  timeline.MappingSource
	Clock    clockwork.Clock
	Observer Observer
	Recorder Recorder
	Logger   Logger

	// Store is nil when history persistence is disabled.
	Store          HistoryStore
	RestoreHistory bool

	SlowThreshold time.Duration
	BurstLimit    int
	CompareMode   CompareMode
}

// WithDeps fills the shared collaborators of opts from d. Fields already
// set on opts are kept.
func WithDeps[S any](opts Options[S], d Deps) Options[S] {
	if opts.Mapping == nil {
		opts.Mapping = d.Mapping
	}
	if opts.Clock == nil {
		opts.Clock = d.Clock
	}
	if opts.Observer == nil {
		opts.Observer = d.Observer
	}
	if opts.Recorder == nil {
		opts.Recorder = d.Recorder
	}
	if opts.Logger == nil {
		opts.Logger = d.Logger
	}
	if opts.Store == nil {
		opts.Store = d.Store
		opts.RestoreHistory = d.RestoreHistory
	}
	if opts.SlowThreshold == 0 {
		opts.SlowThreshold = d.SlowThreshold
	}
	if opts.BurstLimit == 0 {
		opts.BurstLimit = d.BurstLimit
	}
	return opts
}
