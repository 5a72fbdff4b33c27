package dispatch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// recorder collects executions in order.
type recorder struct {
	mu    sync.Mutex
	kinds []string
	ch    chan ScheduledCommand
}

func newRecorder() *recorder {
	return &recorder{ch: make(chan ScheduledCommand, 64)}
}

func (r *recorder) exec(_ context.Context, sc ScheduledCommand) error {
	r.mu.Lock()
	r.kinds = append(r.kinds, sc.Command.Kind)
	r.mu.Unlock()
	r.ch <- sc
	return nil
}

func (r *recorder) wait(t *testing.T, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for execution %d of %d", i+1, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.kinds...)
}

func (r *recorder) assertNone(t *testing.T) {
	t.Helper()
	select {
	case sc := <-r.ch:
		t.Fatalf("unexpected execution of %q", sc.Command.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func pendingKinds(q *Queue) []string {
	var kinds []string
	for _, sc := range q.Pending() {
		kinds = append(kinds, sc.Command.Kind)
	}
	return kinds
}

func TestQueue_DueCommandExecutesImmediately(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	rec := newRecorder()
	q := New(rec.exec, Config{Clock: clock})
	defer q.Dispose()

	sc, err := q.Schedule(t0, Command{Kind: "now"})
	if err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if sc.ID == "" {
		t.Error("Schedule() returned empty ID")
	}
	if _, err := q.Schedule(t0.Add(-time.Second), Command{Kind: "past"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	got := rec.wait(t, 2)
	if len(got) != 2 {
		t.Errorf("executed %v, want 2 commands", got)
	}
}

func TestQueue_FutureCommandWaitsForClock(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	clock := clockwork.NewFakeClockAt(t0)
	rec := newRecorder()
	q := New(rec.exec, Config{Clock: clock})
	defer q.Dispose()

	if _, err := q.Schedule(t0.Add(time.Second), Command{Kind: "later"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("BlockUntilContext() error = %v", err)
	}
	rec.assertNone(t)

	clock.Advance(time.Second)
	if got := rec.wait(t, 1); got[0] != "later" {
		t.Errorf("executed %v, want [later]", got)
	}
	if q.Len() != 0 {
		t.Errorf("Len() = %d after execution, want 0", q.Len())
	}
}

func TestQueue_CancelBoundaries(t *testing.T) {
	tests := []struct {
		name   string
		cancel func(q *Queue) int
		want   []string
	}{
		{
			name:   "cancelFrom is inclusive",
			cancel: func(q *Queue) int { return q.CancelFrom(t0.Add(2 * time.Second)) },
			want:   []string{"t1"},
		},
		{
			name:   "cancelAfter is exclusive",
			cancel: func(q *Queue) int { return q.CancelAfter(t0.Add(2 * time.Second)) },
			want:   []string{"t1", "t2"},
		},
		{
			name:   "cancelFrom before everything",
			cancel: func(q *Queue) int { return q.CancelFrom(t0) },
			want:   nil,
		},
		{
			name:   "cancelAfter past everything",
			cancel: func(q *Queue) int { return q.CancelAfter(t0.Add(time.Hour)) },
			want:   []string{"t1", "t2", "t3"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := clockwork.NewFakeClockAt(t0)
			rec := newRecorder()
			q := New(rec.exec, Config{Clock: clock})
			defer q.Dispose()

			for i, kind := range []string{"t1", "t2", "t3"} {
				if _, err := q.Schedule(t0.Add(time.Duration(i+1)*time.Second), Command{Kind: kind}); err != nil {
					t.Fatalf("Schedule() error = %v", err)
				}
			}

			removed := tt.cancel(q)
			got := pendingKinds(q)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("pending mismatch (-want +got):\n%s", diff)
			}
			if removed != 3-len(tt.want) {
				t.Errorf("removed = %d, want %d", removed, 3-len(tt.want))
			}
		})
	}
}

func TestQueue_PendingOrderedByTimeThenEnqueue(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	q := New(newRecorder().exec, Config{Clock: clock})
	defer q.Dispose()

	at := func(s int) time.Time { return t0.Add(time.Duration(s) * time.Second) }
	for _, in := range []struct {
		t    time.Time
		kind string
	}{
		{at(5), "c1"},
		{at(3), "a"},
		{at(5), "c2"},
		{at(4), "b"},
		{at(5), "c3"},
	} {
		if _, err := q.Schedule(in.t, Command{Kind: in.kind}); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
	}

	want := []string{"a", "b", "c1", "c2", "c3"}
	if diff := cmp.Diff(want, pendingKinds(q)); diff != "" {
		t.Errorf("pending order mismatch (-want +got):\n%s", diff)
	}
}

func TestQueue_InOrderAwaitsEachCommand(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)

	release := make(chan struct{})
	started := make(chan string, 8)
	var running, maxRunning atomic.Int32

	exec := func(_ context.Context, sc ScheduledCommand) error {
		n := running.Add(1)
		for {
			m := maxRunning.Load()
			if n <= m || maxRunning.CompareAndSwap(m, n) {
				break
			}
		}
		started <- sc.Command.Kind
		<-release
		running.Add(-1)
		return errors.New("device rejected")
	}

	q := New(exec, Config{Mode: InOrder, Clock: clock})
	defer q.Dispose()

	for _, kind := range []string{"first", "second", "third"} {
		if _, err := q.Schedule(t0, Command{Kind: kind}); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
	}

	var order []string
	for i := 0; i < 3; i++ {
		select {
		case kind := <-started:
			order = append(order, kind)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for command %d", i+1)
		}
		// The next command must not start before this one is released.
		select {
		case kind := <-started:
			t.Fatalf("%q started while %q was still running", kind, order[i])
		case <-time.After(20 * time.Millisecond):
		}
		release <- struct{}{}
	}

	if diff := cmp.Diff([]string{"first", "second", "third"}, order); diff != "" {
		t.Errorf("execution order mismatch (-want +got):\n%s", diff)
	}
	if maxRunning.Load() != 1 {
		t.Errorf("max concurrent executions = %d, want 1", maxRunning.Load())
	}
}

func TestQueue_InOrderCancelAppliesBetweenExecutions(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)

	release := make(chan struct{})
	started := make(chan string, 8)
	exec := func(_ context.Context, sc ScheduledCommand) error {
		started <- sc.Command.Kind
		<-release
		return nil
	}

	q := New(exec, Config{Mode: InOrder, Clock: clock})
	defer q.Dispose()

	if _, err := q.Schedule(t0, Command{Kind: "a"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if _, err := q.Schedule(t0, Command{Kind: "b"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	if kind := <-started; kind != "a" {
		t.Fatalf("first started = %q, want a", kind)
	}
	// b is due but not yet taken, so it is still cancellable.
	if removed := q.CancelFrom(t0); removed != 1 {
		t.Errorf("CancelFrom() removed %d, want 1", removed)
	}
	release <- struct{}{}

	select {
	case kind := <-started:
		t.Fatalf("cancelled command %q executed", kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestQueue_BurstRunsCoDueCommandsConcurrently(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)

	var arrived sync.WaitGroup
	arrived.Add(2)
	allArrived := make(chan struct{})
	go func() {
		arrived.Wait()
		close(allArrived)
	}()

	exec := func(_ context.Context, _ ScheduledCommand) error {
		arrived.Done()
		select {
		case <-allArrived:
			return nil
		case <-time.After(2 * time.Second):
			return errors.New("peer never started")
		}
	}

	errs := make(chan error, 2)
	q := New(exec, Config{Mode: Burst, Clock: clock})
	defer q.Dispose()
	q.SetOnExecuted(func(_ ScheduledCommand, _, _ time.Duration, err error) {
		errs <- err
	})

	for _, kind := range []string{"x", "y"} {
		if _, err := q.Schedule(t0, Command{Kind: kind}); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
	}

	for i := 0; i < 2; i++ {
		select {
		case err := <-errs:
			if err != nil {
				t.Errorf("burst execution error = %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Fatal("timed out waiting for burst executions")
		}
	}
}

func TestQueue_SlowCommandSignal(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	rec := newRecorder()
	q := New(rec.exec, Config{Clock: clock, SlowThreshold: 40 * time.Millisecond})
	defer q.Dispose()

	type slow struct {
		msg string
		lag time.Duration
	}
	slowCh := make(chan slow, 4)
	q.SetOnSlowCommand(func(msg string, _ ScheduledCommand, lag time.Duration) {
		slowCh <- slow{msg, lag}
	})

	// On time: no signal.
	if _, err := q.Schedule(t0, Command{Kind: "ontime"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	rec.wait(t, 1)

	// 100ms late: signal.
	if _, err := q.Schedule(t0.Add(-100*time.Millisecond), Command{Kind: "late"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	rec.wait(t, 1)

	select {
	case s := <-slowCh:
		if s.lag != 100*time.Millisecond {
			t.Errorf("lag = %v, want 100ms", s.lag)
		}
		if !strings.Contains(s.msg, "late") {
			t.Errorf("message %q does not name the command", s.msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no slow-command signal")
	}

	select {
	case s := <-slowCh:
		t.Errorf("unexpected extra slow signal: %s", s.msg)
	default:
	}
}

func TestQueue_FailureDoesNotStopLaterCommands(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)

	done := make(chan string, 4)
	exec := func(_ context.Context, sc ScheduledCommand) error {
		defer func() { done <- sc.Command.Kind }()
		switch sc.Command.Kind {
		case "fail":
			return errors.New("boom")
		case "panic":
			panic("adapter bug")
		}
		return nil
	}

	q := New(exec, Config{Mode: InOrder, Clock: clock})
	defer q.Dispose()

	var mu sync.Mutex
	var failures []error
	q.SetOnError(func(err error, _ ScheduledCommand) {
		mu.Lock()
		failures = append(failures, err)
		mu.Unlock()
	})

	for _, kind := range []string{"fail", "panic", "ok"} {
		if _, err := q.Schedule(t0, Command{Kind: kind}); err != nil {
			t.Fatalf("Schedule() error = %v", err)
		}
	}

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for execution %d", i+1)
		}
	}

	// onError runs after the executor returns; wait for the queue to drain.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(failures)
		mu.Unlock()
		if n == 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(failures) != 2 {
		t.Fatalf("failures = %v, want 2", failures)
	}
	if !errors.Is(failures[1], ErrExecutorPanic) {
		t.Errorf("panic failure = %v, want ErrExecutorPanic", failures[1])
	}
}

func TestQueue_Dispose(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	rec := newRecorder()
	q := New(rec.exec, Config{Clock: clock})

	if _, err := q.Schedule(t0.Add(time.Minute), Command{Kind: "never"}); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}

	q.Dispose()
	q.Dispose()

	if q.Len() != 0 {
		t.Errorf("Len() after Dispose = %d, want 0", q.Len())
	}
	if _, err := q.Schedule(t0, Command{Kind: "x"}); !errors.Is(err, ErrDisposed) {
		t.Errorf("Schedule() after Dispose error = %v, want ErrDisposed", err)
	}

	clock.Advance(time.Hour)
	rec.assertNone(t)
}

func TestMode_String(t *testing.T) {
	if Burst.String() != "burst" || InOrder.String() != "in_order" {
		t.Errorf("mode names = %q, %q", Burst, InOrder)
	}
	if Mode(9).String() != "mode(9)" {
		t.Errorf("unknown mode = %q", Mode(9))
	}
}
