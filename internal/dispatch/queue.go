package dispatch

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// DefaultSlowThreshold is the lag above which a command counts as slow.
const DefaultSlowThreshold = 40 * time.Millisecond

// Logger is the logging surface the queue needs.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Config configures a Queue.
type Config struct {
	Mode Mode

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	// SlowThreshold defaults to DefaultSlowThreshold.
	SlowThreshold time.Duration

	// BurstLimit caps concurrent executions per Burst batch. 0 is unbounded.
	BurstLimit int
}

// Queue is a time-ordered command queue with cancel-by-time semantics.
//
// Thread Safety: All methods are safe for concurrent use.
type Queue struct {
	exec          Executor
	mode          Mode
	clock         clockwork.Clock
	slowThreshold time.Duration
	burstLimit    int

	mu       sync.Mutex
	pending  []ScheduledCommand
	seq      uint64
	disposed bool

	hooksMu    sync.RWMutex
	onError    func(err error, sc ScheduledCommand)
	onSlow     func(msg string, sc ScheduledCommand, lag time.Duration)
	onExecuted func(sc ScheduledCommand, lag, took time.Duration, err error)
	logger     Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wake     chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a queue and starts its dispatch loop. Call Dispose to stop it.
//
// Parameters:
//   - exec: Performs each command when it comes due
//   - cfg: Mode, clock and thresholds
//
// Returns:
//   - *Queue: Running queue
func New(exec Executor, cfg Config) *Queue {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.SlowThreshold <= 0 {
		cfg.SlowThreshold = DefaultSlowThreshold
	}

	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		exec:          exec,
		mode:          cfg.Mode,
		clock:         cfg.Clock,
		slowThreshold: cfg.SlowThreshold,
		burstLimit:    cfg.BurstLimit,
		logger:        noopLogger{},
		ctx:           ctx,
		cancel:        cancel,
		wake:          make(chan struct{}, 1),
		done:          make(chan struct{}),
	}

	q.wg.Add(1)
	go q.run()

	return q
}

// SetLogger sets the logger for dispatch diagnostics.
func (q *Queue) SetLogger(logger Logger) {
	q.hooksMu.Lock()
	defer q.hooksMu.Unlock()
	if logger != nil {
		q.logger = logger
	}
}

// SetOnError registers a callback for failed executions.
func (q *Queue) SetOnError(fn func(err error, sc ScheduledCommand)) {
	q.hooksMu.Lock()
	defer q.hooksMu.Unlock()
	q.onError = fn
}

// SetOnSlowCommand registers a callback for commands that started late.
func (q *Queue) SetOnSlowCommand(fn func(msg string, sc ScheduledCommand, lag time.Duration)) {
	q.hooksMu.Lock()
	defer q.hooksMu.Unlock()
	q.onSlow = fn
}

// SetOnExecuted registers a callback fired after every execution attempt.
// lag is start time minus scheduled time; took is the executor duration.
func (q *Queue) SetOnExecuted(fn func(sc ScheduledCommand, lag, took time.Duration, err error)) {
	q.hooksMu.Lock()
	defer q.hooksMu.Unlock()
	q.onExecuted = fn
}

// Mode returns the queue's dispatch mode.
func (q *Queue) Mode() Mode {
	return q.mode
}

// Now returns the queue's notion of the current time.
func (q *Queue) Now() time.Time {
	return q.clock.Now()
}

// Schedule enqueues cmd for execution at t. A t at or before Now executes
// as soon as the dispatch loop wakes.
//
// Returns:
//   - ScheduledCommand: The queued item, including its generated ID
//   - error: ErrDisposed if the queue has been disposed
func (q *Queue) Schedule(t time.Time, cmd Command) (ScheduledCommand, error) {
	q.mu.Lock()
	if q.disposed {
		q.mu.Unlock()
		return ScheduledCommand{}, ErrDisposed
	}

	q.seq++
	sc := ScheduledCommand{
		ID:      uuid.NewString(),
		Time:    t,
		Command: cmd,
		seq:     q.seq,
	}

	i := sort.Search(len(q.pending), func(i int) bool {
		return sc.before(q.pending[i])
	})
	q.pending = append(q.pending, ScheduledCommand{})
	copy(q.pending[i+1:], q.pending[i:])
	q.pending[i] = sc
	q.mu.Unlock()

	q.signal()
	return sc, nil
}

// CancelFrom drops every pending command scheduled at or after t.
// It returns how many were dropped.
func (q *Queue) CancelFrom(t time.Time) int {
	return q.removeWhere(func(sc ScheduledCommand) bool {
		return !sc.Time.Before(t)
	})
}

// CancelAfter drops every pending command scheduled strictly after t.
// It returns how many were dropped.
func (q *Queue) CancelAfter(t time.Time) int {
	return q.removeWhere(func(sc ScheduledCommand) bool {
		return sc.Time.After(t)
	})
}

// Pending returns a copy of the pending commands in execution order.
func (q *Queue) Pending() []ScheduledCommand {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]ScheduledCommand, len(q.pending))
	copy(out, q.pending)
	return out
}

// Len returns the number of pending commands.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Dispose drops all pending commands, cancels in-flight executions and
// stops the dispatch loop. It waits for running executors to return.
// Safe to call more than once.
func (q *Queue) Dispose() {
	q.stopOnce.Do(func() {
		q.mu.Lock()
		q.disposed = true
		q.pending = nil
		q.mu.Unlock()

		close(q.done)
		q.cancel()
		q.wg.Wait()
	})
}

func (q *Queue) removeWhere(match func(ScheduledCommand) bool) int {
	q.mu.Lock()
	kept := q.pending[:0]
	removed := 0
	for _, sc := range q.pending {
		if match(sc) {
			removed++
			continue
		}
		kept = append(kept, sc)
	}
	// Clear the tail so dropped payloads can be collected.
	for i := len(kept); i < len(q.pending); i++ {
		q.pending[i] = ScheduledCommand{}
	}
	q.pending = kept
	q.mu.Unlock()

	if removed > 0 {
		q.signal()
	}
	return removed
}

func (q *Queue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// takeDue removes and returns commands due now. InOrder takes at most one
// so cancellations between executions still apply to the rest.
func (q *Queue) takeDue() (due []ScheduledCommand, next time.Time, hasNext bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock.Now()
	n := 0
	for n < len(q.pending) && !q.pending[n].Time.After(now) {
		n++
		if q.mode == InOrder {
			break
		}
	}

	if n > 0 {
		due = make([]ScheduledCommand, n)
		copy(due, q.pending[:n])
		q.pending = q.pending[n:]
	}
	if len(q.pending) > 0 {
		return due, q.pending[0].Time, true
	}
	return due, time.Time{}, false
}

func (q *Queue) run() {
	defer q.wg.Done()

	for {
		due, next, hasNext := q.takeDue()
		if len(due) > 0 {
			q.dispatch(due)
			continue
		}

		var timer clockwork.Timer
		var fire <-chan time.Time
		if hasNext {
			timer = q.clock.NewTimer(next.Sub(q.clock.Now()))
			fire = timer.Chan()
		}

		select {
		case <-q.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-q.wake:
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (q *Queue) dispatch(due []ScheduledCommand) {
	select {
	case <-q.done:
		return
	default:
	}

	if q.mode == InOrder {
		for _, sc := range due {
			q.execute(sc)
		}
		return
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		var g errgroup.Group
		if q.burstLimit > 0 {
			g.SetLimit(q.burstLimit)
		}
		for _, sc := range due {
			g.Go(func() error {
				q.execute(sc)
				return nil
			})
		}
		_ = g.Wait()
	}()
}

func (q *Queue) execute(sc ScheduledCommand) {
	start := q.clock.Now()
	lag := start.Sub(sc.Time)
	if lag > q.slowThreshold {
		q.reportSlow(sc, lag)
	}

	err := q.safeExec(sc)
	took := q.clock.Since(start)

	q.hooksMu.RLock()
	onExecuted, onError, logger := q.onExecuted, q.onError, q.logger
	q.hooksMu.RUnlock()

	if onExecuted != nil {
		onExecuted(sc, lag, took, err)
	}
	if err != nil {
		logger.Debug("command failed", "id", sc.ID, "kind", sc.Command.Kind, "error", err)
		if onError != nil {
			onError(err, sc)
		}
	}
}

func (q *Queue) safeExec(sc ScheduledCommand) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrExecutorPanic, r)
		}
	}()
	return q.exec(q.ctx, sc)
}

func (q *Queue) reportSlow(sc ScheduledCommand, lag time.Duration) {
	q.hooksMu.RLock()
	onSlow := q.onSlow
	q.hooksMu.RUnlock()

	if onSlow == nil {
		return
	}
	msg := fmt.Sprintf("slow command: %s scheduled %s lagged %s",
		sc.Command.Kind, sc.Time.Format(time.RFC3339Nano), lag)
	onSlow(msg, sc, lag)
}
