package playout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// DeviceStatus is a Status plus the conductor's view of the device.
type DeviceStatus struct {
	Status
	Active    bool   `json:"active"`
	InitError string `json:"init_error,omitempty"`
}

// Conductor owns every device instance and fans timeline input out to them.
//
// Devices run independently: a snapshot is delivered to all active devices
// concurrently and a failure in one never affects another. Devices whose
// Init failed are terminated and excluded from fan-out.
//
// Thread Safety: All methods are safe for concurrent use. HandleState
// returns only after every device has finished its bookkeeping, so
// sequential calls stay in order per device.
type Conductor struct {
	clock  clockwork.Clock
	logger Logger

	mu      sync.RWMutex
	devices map[string]Device
	failed  map[string]error

	cleanupMu sync.Mutex
	cleanup   gocron.Scheduler
}

// NewConductor creates an empty conductor.
func NewConductor(clock clockwork.Clock) *Conductor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Conductor{
		clock:   clock,
		logger:  noopLogger{},
		devices: make(map[string]Device),
		failed:  make(map[string]error),
	}
}

// SetLogger sets the logger.
func (c *Conductor) SetLogger(logger Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// Add registers a device. IDs must be unique.
func (c *Conductor) Add(d Device) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.devices[d.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDevice, d.ID())
	}
	c.devices[d.ID()] = d
	return nil
}

// Get returns a registered device.
func (c *Conductor) Get(id string) (Device, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}
	return d, nil
}

// Devices returns every registered device ordered by ID.
func (c *Conductor) Devices() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedLocked(false)
}

func (c *Conductor) sortedLocked(activeOnly bool) []Device {
	out := make([]Device, 0, len(c.devices))
	for id, d := range c.devices {
		if activeOnly {
			if _, failed := c.failed[id]; failed {
				continue
			}
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (c *Conductor) active() []Device {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedLocked(true)
}

// InitAll initialises every device concurrently. A device that fails is
// terminated and marked inactive; the others are unaffected.
//
// Returns:
//   - int: Number of devices initialised successfully
//   - error: All init failures joined, or nil
func (c *Conductor) InitAll(ctx context.Context) (int, error) {
	devices := c.Devices()

	var mu sync.Mutex
	var errs []error
	ok := 0

	var g errgroup.Group
	for _, d := range devices {
		g.Go(func() error {
			err := d.Init(ctx)
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
				return nil
			}

			c.markFailed(d.ID(), err)
			c.logger.Error("device init failed, device disabled", "device", d.ID(), "error", err)
			if termErr := d.Terminate(ctx); termErr != nil {
				c.logger.Warn("terminating failed device", "device", d.ID(), "error", termErr)
			}

			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return ok, errors.Join(errs...)
}

func (c *Conductor) markFailed(id string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failed[id] = err
}

// HandleState delivers snap to every active device concurrently and waits
// for each to finish its queue bookkeeping.
func (c *Conductor) HandleState(ctx context.Context, snap timeline.Snapshot) {
	c.each(func(d Device) { d.HandleState(ctx, snap) })
}

// PrepareForHandleState forwards to every active device.
func (c *Conductor) PrepareForHandleState(t time.Time) {
	c.each(func(d Device) { d.PrepareForHandleState(t) })
}

// ClearFuture forwards to every active device.
func (c *Conductor) ClearFuture(t time.Time) {
	c.each(func(d Device) { d.ClearFuture(t) })
}

// CleanUpStates applies the retention window to every active device.
func (c *Conductor) CleanUpStates(before, after time.Time) {
	c.each(func(d Device) { d.CleanUpStates(before, after) })
}

func (c *Conductor) each(fn func(Device)) {
	var g errgroup.Group
	for _, d := range c.active() {
		g.Go(func() error {
			fn(d)
			return nil
		})
	}
	_ = g.Wait()
}

// StartCleanup schedules history cleanup every interval, keeping window of
// superseded history on each device.
func (c *Conductor) StartCleanup(interval, window time.Duration) error {
	c.cleanupMu.Lock()
	defer c.cleanupMu.Unlock()

	if c.cleanup != nil {
		return nil
	}

	s, err := gocron.NewScheduler(gocron.WithClock(c.clock))
	if err != nil {
		return fmt.Errorf("creating cleanup scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(c.runCleanup, window),
		gocron.WithName("playout-history-cleanup"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("scheduling cleanup: %w", err)
	}

	s.Start()
	c.cleanup = s
	c.logger.Info("history cleanup scheduled", "interval", interval, "window", window)
	return nil
}

func (c *Conductor) runCleanup(window time.Duration) {
	before := c.clock.Now().Add(-window)
	c.CleanUpStates(before, time.Time{})
	c.logger.Debug("history cleanup complete", "before", before)
}

// TerminateAll stops cleanup and terminates every device that is still
// active.
func (c *Conductor) TerminateAll(ctx context.Context) error {
	c.cleanupMu.Lock()
	if c.cleanup != nil {
		if err := c.cleanup.Shutdown(); err != nil {
			c.logger.Warn("stopping cleanup scheduler", "error", err)
		}
		c.cleanup = nil
	}
	c.cleanupMu.Unlock()

	var mu sync.Mutex
	var errs []error
	var g errgroup.Group
	for _, d := range c.active() {
		g.Go(func() error {
			if err := d.Terminate(ctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", d.ID(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Statuses returns every device's status ordered by ID.
func (c *Conductor) Statuses() []DeviceStatus {
	c.mu.RLock()
	devices := c.sortedLocked(false)
	c.mu.RUnlock()

	out := make([]DeviceStatus, 0, len(devices))
	for _, d := range devices {
		out = append(out, c.deviceStatus(d))
	}
	return out
}

// Status returns one device's status.
func (c *Conductor) Status(id string) (DeviceStatus, error) {
	d, err := c.Get(id)
	if err != nil {
		return DeviceStatus{}, err
	}
	return c.deviceStatus(d), nil
}

func (c *Conductor) deviceStatus(d Device) DeviceStatus {
	ds := DeviceStatus{Status: d.Status(), Active: true}

	c.mu.RLock()
	err, failed := c.failed[d.ID()]
	c.mu.RUnlock()

	if failed {
		ds.Active = false
		ds.OK = false
		ds.InitError = err.Error()
	}
	return ds
}
