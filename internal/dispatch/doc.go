// Package dispatch implements the timed command queue that device
// controllers schedule into.
//
// A Queue holds ScheduledCommands ordered by (time, enqueue sequence) and
// executes each one at most once, at or after its time, through an
// Executor. Commands whose time has already passed execute immediately.
//
// Cancellation is purely by time boundary:
//   - CancelFrom(t) drops every pending command with time >= t
//   - CancelAfter(t) drops every pending command with time > t
//
// Two modes control execution:
//   - Burst: every command due at one wake-up runs concurrently
//     (optionally bounded), and the queue never waits for them
//   - InOrder: commands run one at a time and each is awaited before the
//     next starts, even when they were scheduled for different times
//
// A command that starts later than its scheduled time by more than the
// slow threshold raises a slow-command signal. It is observability only.
//
// Time comes from a clockwork.Clock so tests can drive the queue with a
// fake clock.
package dispatch
