package playout

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
	"github.com/nerrad567/gray-logic-playout/internal/monitor"
	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// persistBacklog bounds the number of history writes waiting for the store.
const persistBacklog = 64

// Options configures a Controller.
type Options[S any] struct {
	// ID is the device instance identifier used in mappings.
	ID string

	Reconciler Reconciler[S]
	Adapter    Adapter
	Mapping    timeline.MappingSource

	// Mode selects Burst or InOrder dispatch.
	Mode dispatch.Mode

	// Clock defaults to the real clock.
	Clock         clockwork.Clock
	SlowThreshold time.Duration
	BurstLimit    int

	// Monitor is nil for devices without a live connection.
	Monitor *monitor.Monitor

	// Validate checks required configuration during Init.
	Validate func() error

	Observer Observer
	Recorder Recorder
	Logger   Logger

	// Store persists accepted snapshots. Optional.
	Store HistoryStore

	// RestoreHistory loads persisted snapshots during Init.
	RestoreHistory bool
}

// persistJob mirrors one history mutation into the store. Set fields run
// in order: dropFrom, pruneBefore, entry.
type persistJob struct {
	dropFrom    time.Time
	pruneBefore time.Time
	entry       *HistoryEntry
}

// Controller drives one device instance from timeline snapshots.
//
// It owns the device's snapshot history and dispatch queue. HandleState
// only does queue bookkeeping; command execution happens on the queue.
//
// Thread Safety: All methods are safe for concurrent use. State-changing
// calls are serialised by an internal mutex; callers must still submit
// snapshots for one device in time order.
type Controller[S any] struct {
	id         string
	reconciler Reconciler[S]
	adapter    Adapter
	mapping    timeline.MappingSource
	clock      clockwork.Clock
	monitor    *monitor.Monitor
	validate   func() error
	observer   Observer
	recorder   Recorder
	logger     Logger
	store      HistoryStore
	restore    bool

	queue *dispatch.Queue

	mu          sync.Mutex
	history     History
	initialised bool
	terminated  bool
	lastErr     error

	persist chan persistJob
	wg      sync.WaitGroup
}

// New creates a controller and its dispatch queue. The device is not
// contacted until Init.
func New[S any](opts Options[S]) *Controller[S] {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Mapping == nil {
		opts.Mapping = timeline.StaticMapping(nil)
	}
	if opts.Observer == nil {
		opts.Observer = NopObserver{}
	}
	if opts.Recorder == nil {
		opts.Recorder = NopRecorder{}
	}
	if opts.Logger == nil {
		opts.Logger = noopLogger{}
	}

	c := &Controller[S]{
		id:         opts.ID,
		reconciler: opts.Reconciler,
		adapter:    opts.Adapter,
		mapping:    opts.Mapping,
		clock:      opts.Clock,
		monitor:    opts.Monitor,
		validate:   opts.Validate,
		observer:   opts.Observer,
		recorder:   opts.Recorder,
		logger:     opts.Logger,
		store:      opts.Store,
		restore:    opts.RestoreHistory,
	}

	c.queue = dispatch.New(c.execute, dispatch.Config{
		Mode:          opts.Mode,
		Clock:         opts.Clock,
		SlowThreshold: opts.SlowThreshold,
		BurstLimit:    opts.BurstLimit,
	})
	c.queue.SetLogger(opts.Logger)
	c.queue.SetOnError(c.onCommandError)
	c.queue.SetOnSlowCommand(c.onSlowCommand)
	c.queue.SetOnExecuted(c.onExecuted)

	if c.monitor != nil {
		c.monitor.SetOnChange(c.onConnectionChange)
	}

	return c
}

// ID returns the device instance identifier.
func (c *Controller[S]) ID() string {
	return c.id
}

// Kind returns the device kind.
func (c *Controller[S]) Kind() timeline.DeviceKind {
	return c.reconciler.Kind()
}

// Init validates configuration, restores persisted history if enabled and
// runs the first connection probe.
//
// Returns:
//   - error: ErrInitFailed wrapping the cause. The failure is scoped to
//     this device; the orchestrator decides whether to retry or disable it.
func (c *Controller[S]) Init(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return ErrTerminated
	}

	if c.validate != nil {
		if err := c.validate(); err != nil {
			c.lastErr = err
			return fmt.Errorf("%w: %s: %w", ErrInitFailed, c.id, err)
		}
	}

	if c.store != nil {
		if c.restore {
			c.restoreHistory(ctx)
		}
		c.startPersistence()
	}

	if c.monitor != nil {
		if err := c.monitor.Start(ctx); err != nil {
			c.lastErr = err
			return fmt.Errorf("%w: %s: %w", ErrInitFailed, c.id, err)
		}
	}

	c.initialised = true
	c.logger.Info("device initialised", "device", c.id, "kind", c.Kind(), "mode", c.queue.Mode())
	return nil
}

// HandleState reconciles the device toward snap.
//
// With T = max(now, snap.Time), the state in effect strictly before T is
// diffed against snap (or the reconciler default when none exists), every
// pending command at or after T is cancelled, and the resulting commands
// are scheduled at snap.Time. snap replaces every history entry at or
// after snap.Time.
func (c *Controller[S]) HandleState(ctx context.Context, snap timeline.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		c.observer.Warning(c.id, "snapshot ignored: controller terminated")
		return
	}

	mapping := c.mapping.Current()

	t := snap.Time
	if now := c.clock.Now(); now.After(t) {
		t = now
	}

	oldState := c.reconciler.Default()
	if entry, ok := c.history.Before(t); ok {
		oldState = c.reconciler.Project(entry.Snapshot, mapping, c.id)
	}
	newState := c.reconciler.Project(snap, mapping, c.id)
	cmds := c.reconciler.Diff(oldState, newState)

	if cancelled := c.queue.CancelFrom(t); cancelled > 0 {
		c.observer.Debug(c.id, fmt.Sprintf("cancelled %d pending commands from %s", cancelled, t.Format(time.RFC3339Nano)))
	}

	for _, cmd := range cmds {
		sc, err := c.queue.Schedule(snap.Time, cmd)
		if err != nil {
			c.observer.Error(c.id, "queue", err)
			continue
		}
		c.observer.Debug(c.id, fmt.Sprintf("scheduled %s at %s: %s", cmd.Kind, sc.Time.Format(time.RFC3339Nano), cmd.Context))
	}

	// Later entries were derived from a timeline snap replaces.
	c.history.DropFrom(snap.Time)
	c.history.Record(snap, snap.Time)
	c.recorder.RecordReconcile(c.id, len(cmds))

	if c.persist != nil {
		entry := HistoryEntry{Time: snap.Time, Snapshot: snap}
		c.enqueuePersist(persistJob{dropFrom: snap.Time, entry: &entry})
	}
}

// PrepareForHandleState cancels pending commands at or after t and
// discards history that a snapshot at t supersedes or makes unreachable.
func (c *Controller[S]) PrepareForHandleState(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.terminated {
		return
	}

	cancelled := c.queue.CancelFrom(t)
	dropped := c.history.DropFrom(t)
	pruned := c.history.PruneBefore(t)
	if c.persist != nil {
		c.enqueuePersist(persistJob{dropFrom: t, pruneBefore: t})
	}
	if cancelled+dropped+pruned > 0 {
		c.observer.Debug(c.id, fmt.Sprintf("prepared for %s: cancelled %d, dropped %d, pruned %d",
			t.Format(time.RFC3339Nano), cancelled, dropped, pruned))
	}
}

// ClearFuture cancels pending commands strictly after t. Commands due
// exactly at t and the state in effect are left alone.
func (c *Controller[S]) ClearFuture(t time.Time) {
	if cancelled := c.queue.CancelAfter(t); cancelled > 0 {
		c.observer.Debug(c.id, fmt.Sprintf("cleared %d commands after %s", cancelled, t.Format(time.RFC3339Nano)))
	}
}

// CleanUpStates applies a history retention window. Zero bounds are
// ignored. The state in effect at before is always kept.
func (c *Controller[S]) CleanUpStates(before, after time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history.CleanUp(before, after)
	if c.persist != nil && !(before.IsZero() && after.IsZero()) {
		c.enqueuePersist(persistJob{dropFrom: after, pruneBefore: before})
	}
}

// Terminate stops the connection monitor, disposes the queue and flushes
// pending history writes. The controller cannot be reused.
func (c *Controller[S]) Terminate(ctx context.Context) error {
	c.mu.Lock()
	if c.terminated {
		c.mu.Unlock()
		return nil
	}
	c.terminated = true
	persist := c.persist
	c.persist = nil
	c.mu.Unlock()

	var err error
	if c.monitor != nil {
		err = c.monitor.Stop()
	}
	c.queue.Dispose()

	if persist != nil {
		close(persist)
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			c.observer.Warning(c.id, "terminate: history flush abandoned")
		}
	}

	c.logger.Info("device terminated", "device", c.id)
	return err
}

// Status reports the device's health.
func (c *Controller[S]) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Controller[S]) statusLocked() Status {
	s := Status{
		DeviceID:    c.id,
		Kind:        c.Kind(),
		OK:          true,
		Initialised: c.initialised,
		Terminated:  c.terminated,
		Pending:     c.queue.Len(),
		History:     c.history.Len(),
	}
	if c.monitor != nil {
		s.HasConnection = true
		s.Connected = c.monitor.Connected()
		s.OK = s.Connected
		if err := c.monitor.LastError(); err != nil {
			s.LastError = err.Error()
		}
	}
	if s.LastError == "" && c.lastErr != nil {
		s.LastError = c.lastErr.Error()
	}
	return s
}

// Queue returns the pending commands in execution order.
func (c *Controller[S]) Queue() []dispatch.ScheduledCommand {
	return c.queue.Pending()
}

// History returns a copy of the snapshot history, oldest first.
func (c *Controller[S]) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Entries()
}

func (c *Controller[S]) execute(ctx context.Context, sc dispatch.ScheduledCommand) error {
	return c.adapter.Execute(ctx, sc.Command)
}

func (c *Controller[S]) onCommandError(err error, sc dispatch.ScheduledCommand) {
	c.observer.CommandError(c.id, err, commandContext(sc))
}

func (c *Controller[S]) onSlowCommand(msg string, sc dispatch.ScheduledCommand, _ time.Duration) {
	c.observer.SlowCommand(c.id, msg)
	c.recorder.RecordSlowCommand(c.id, sc.Command.Kind)
}

func (c *Controller[S]) onExecuted(sc dispatch.ScheduledCommand, lag, took time.Duration, err error) {
	c.recorder.RecordCommand(c.id, sc.Command.Kind, lag, took, err)
}

func (c *Controller[S]) onConnectionChange(connected bool, _ error) {
	c.recorder.RecordConnection(c.id, connected)

	// The monitor calls back from Init (under c.mu) as well as from its
	// own job, so the status is built without taking the lock.
	s := Status{
		DeviceID:      c.id,
		Kind:          c.Kind(),
		OK:            connected,
		Connected:     connected,
		HasConnection: true,
		Pending:       c.queue.Len(),
	}
	if err := c.monitor.LastError(); err != nil {
		s.LastError = err.Error()
	}
	c.observer.ConnectionChanged(c.id, s)
}

func (c *Controller[S]) restoreHistory(ctx context.Context) {
	entries, err := c.store.Load(ctx, c.id, time.Time{})
	if err != nil {
		c.observer.Error(c.id, "history", fmt.Errorf("restoring history: %w", err))
		return
	}
	for _, e := range entries {
		c.history.Record(e.Snapshot, e.Time)
	}
	c.logger.Info("history restored", "device", c.id, "entries", len(entries))
}

func (c *Controller[S]) startPersistence() {
	if c.persist != nil {
		return
	}
	c.persist = make(chan persistJob, persistBacklog)
	jobs := c.persist

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx := context.Background()
		for job := range jobs {
			if err := c.runPersistJob(ctx, job); err != nil {
				c.observer.Error(c.id, "history", err)
			}
		}
	}()
}

func (c *Controller[S]) runPersistJob(ctx context.Context, job persistJob) error {
	if !job.dropFrom.IsZero() {
		if _, err := c.store.DropFrom(ctx, c.id, job.dropFrom); err != nil {
			return err
		}
	}
	if !job.pruneBefore.IsZero() {
		if _, err := c.store.Prune(ctx, c.id, job.pruneBefore); err != nil {
			return err
		}
	}
	if job.entry != nil {
		return c.store.Record(ctx, c.id, job.entry.Time, job.entry.Snapshot)
	}
	return nil
}

// enqueuePersist never blocks reconciliation; a full backlog drops the write.
func (c *Controller[S]) enqueuePersist(job persistJob) {
	select {
	case c.persist <- job:
	default:
		c.observer.Warning(c.id, "history persistence backlog full, write dropped")
	}
}
