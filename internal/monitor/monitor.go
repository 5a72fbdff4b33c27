package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// ProbeFunc checks device liveness. A nil error with true means connected.
type ProbeFunc func(ctx context.Context) (bool, error)

// Logger is the logging surface the monitor needs.
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

// Config configures a Monitor.
type Config struct {
	// Name identifies the monitored device in logs and the job name.
	Name string

	// Interval is the probe period.
	Interval time.Duration

	// ProbeTimeout bounds each probe. Zero means Interval.
	ProbeTimeout time.Duration

	// Clock defaults to the real clock. It also drives the gocron scheduler.
	Clock clockwork.Clock
}

// Monitor is an edge-triggered connection state machine driven by a probe.
//
// Thread Safety: All methods are safe for concurrent use.
type Monitor struct {
	probe ProbeFunc
	cfg   Config

	mu        sync.RWMutex
	connected bool
	lastErr   error
	lastProbe time.Time
	onChange  func(connected bool, err error)
	logger    Logger

	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
	started   bool
	stopOnce  sync.Once
}

// New creates a monitor. The probe does not run until Start.
func New(probe ProbeFunc, cfg Config) (*Monitor, error) {
	if cfg.Interval <= 0 {
		return nil, ErrInvalidInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = cfg.Interval
	}

	return &Monitor{
		probe:  probe,
		cfg:    cfg,
		logger: noopLogger{},
	}, nil
}

// SetLogger sets the logger.
func (m *Monitor) SetLogger(logger Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if logger != nil {
		m.logger = logger
	}
}

// SetOnChange registers the callback fired once per state flip. err is the
// probe error that caused a flip to Disconnected, if any.
func (m *Monitor) SetOnChange(fn func(connected bool, err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// Start runs the first probe synchronously and then schedules the
// periodic probe.
//
// Returns:
//   - error: ErrInitialProbeFailed wrapping the probe error, or a
//     scheduler error. The periodic probe is not running on error.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrAlreadyStarted
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.mu.Unlock()

	if err := m.Check(ctx); err != nil {
		m.cancel()
		return fmt.Errorf("%w: %w", ErrInitialProbeFailed, err)
	}

	s, err := gocron.NewScheduler(gocron.WithClock(m.cfg.Clock))
	if err != nil {
		m.cancel()
		return fmt.Errorf("creating probe scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(m.cfg.Interval),
		gocron.NewTask(m.tick),
		gocron.WithName(m.cfg.Name+"-probe"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		m.cancel()
		return fmt.Errorf("scheduling probe: %w", err)
	}

	m.mu.Lock()
	m.scheduler = s
	m.mu.Unlock()

	s.Start()
	return nil
}

// Stop cancels the periodic probe. Safe to call more than once, and
// before Start.
func (m *Monitor) Stop() error {
	var err error
	m.stopOnce.Do(func() {
		m.mu.Lock()
		s := m.scheduler
		cancel := m.cancel
		m.mu.Unlock()

		if cancel != nil {
			cancel()
		}
		if s != nil {
			err = s.Shutdown()
		}
	})
	return err
}

// Check runs one probe and applies the resulting transition. It returns
// the probe error, if any.
func (m *Monitor) Check(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	defer cancel()

	ok, err := m.probe(probeCtx)
	m.setConnected(ok && err == nil, err)
	return err
}

// Connected reports the current state.
func (m *Monitor) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// LastError returns the error from the most recent probe, if any.
func (m *Monitor) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// LastProbe returns when the most recent probe completed.
func (m *Monitor) LastProbe() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastProbe
}

func (m *Monitor) tick() {
	m.mu.RLock()
	ctx := m.ctx
	logger := m.logger
	m.mu.RUnlock()

	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := m.Check(ctx); err != nil {
		logger.Debug("probe failed", "device", m.cfg.Name, "error", err)
	}
}

func (m *Monitor) setConnected(connected bool, err error) {
	m.mu.Lock()
	m.lastErr = err
	m.lastProbe = m.cfg.Clock.Now()
	if m.connected == connected {
		m.mu.Unlock()
		return
	}
	m.connected = connected
	onChange := m.onChange
	logger := m.logger
	m.mu.Unlock()

	if connected {
		logger.Info("device connected", "device", m.cfg.Name)
	} else {
		logger.Warn("device disconnected", "device", m.cfg.Name, "error", err)
	}
	if onChange != nil {
		onChange(connected, err)
	}
}
