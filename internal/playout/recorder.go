package playout

import "time"

// Recorder receives dispatch and reconciliation measurements.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordCommand(deviceID, kind string, lag, took time.Duration, err error)
	RecordSlowCommand(deviceID, kind string)
	RecordConnection(deviceID string, connected bool)
	RecordReconcile(deviceID string, intents int)
}

// NopRecorder discards all measurements.
type NopRecorder struct{}

func (NopRecorder) RecordCommand(string, string, time.Duration, time.Duration, error) {}
func (NopRecorder) RecordSlowCommand(string, string)                                  {}
func (NopRecorder) RecordConnection(string, bool)                                     {}
func (NopRecorder) RecordReconcile(string, int)                                       {}

// MultiRecorder fans measurements out to several recorders.
type MultiRecorder []Recorder

func (m MultiRecorder) RecordCommand(deviceID, kind string, lag, took time.Duration, err error) {
	for _, r := range m {
		r.RecordCommand(deviceID, kind, lag, took, err)
	}
}

func (m MultiRecorder) RecordSlowCommand(deviceID, kind string) {
	for _, r := range m {
		r.RecordSlowCommand(deviceID, kind)
	}
}

func (m MultiRecorder) RecordConnection(deviceID string, connected bool) {
	for _, r := range m {
		r.RecordConnection(deviceID, connected)
	}
}

func (m MultiRecorder) RecordReconcile(deviceID string, intents int) {
	for _, r := range m {
		r.RecordReconcile(deviceID, intents)
	}
}
