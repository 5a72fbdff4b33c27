package playout

import (
	"time"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
)

// Logger is the logging surface used throughout this package.
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

// CommandContext describes a command whose execution failed.
type CommandContext struct {
	CommandID string    `json:"command_id"`
	Time      time.Time `json:"time"`
	Kind      string    `json:"kind"`
	Key       string    `json:"key,omitempty"`
	OriginID  string    `json:"origin_id"`
	Context   string    `json:"context"`
	Payload   any       `json:"payload,omitempty"`
}

func commandContext(sc dispatch.ScheduledCommand) CommandContext {
	return CommandContext{
		CommandID: sc.ID,
		Time:      sc.Time,
		Kind:      sc.Command.Kind,
		Key:       sc.Command.Key,
		OriginID:  sc.Command.OriginID,
		Context:   sc.Command.Context,
		Payload:   sc.Command.Payload,
	}
}

// Observer receives advisory events from controllers. No method may
// block for long or alter control flow.
type Observer interface {
	Debug(deviceID, msg string)
	Warning(deviceID, msg string)
	Error(deviceID, source string, err error)
	ConnectionChanged(deviceID string, status Status)
	SlowCommand(deviceID, msg string)
	CommandError(deviceID string, err error, cc CommandContext)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) Debug(string, string)                       {}
func (NopObserver) Warning(string, string)                     {}
func (NopObserver) Error(string, string, error)                {}
func (NopObserver) ConnectionChanged(string, Status)           {}
func (NopObserver) SlowCommand(string, string)                 {}
func (NopObserver) CommandError(string, error, CommandContext) {}

// MultiObserver fans every event out to each observer in order.
type MultiObserver []Observer

func (m MultiObserver) Debug(deviceID, msg string) {
	for _, o := range m {
		o.Debug(deviceID, msg)
	}
}

func (m MultiObserver) Warning(deviceID, msg string) {
	for _, o := range m {
		o.Warning(deviceID, msg)
	}
}

func (m MultiObserver) Error(deviceID, source string, err error) {
	for _, o := range m {
		o.Error(deviceID, source, err)
	}
}

func (m MultiObserver) ConnectionChanged(deviceID string, status Status) {
	for _, o := range m {
		o.ConnectionChanged(deviceID, status)
	}
}

func (m MultiObserver) SlowCommand(deviceID, msg string) {
	for _, o := range m {
		o.SlowCommand(deviceID, msg)
	}
}

func (m MultiObserver) CommandError(deviceID string, err error, cc CommandContext) {
	for _, o := range m {
		o.CommandError(deviceID, err, cc)
	}
}

// LogObserver writes events as structured log entries.
type LogObserver struct {
	Logger Logger
}

// NewLogObserver returns an observer writing to logger.
func NewLogObserver(logger Logger) *LogObserver {
	if logger == nil {
		logger = noopLogger{}
	}
	return &LogObserver{Logger: logger}
}

func (o *LogObserver) Debug(deviceID, msg string) {
	o.Logger.Debug(msg, "device", deviceID)
}

func (o *LogObserver) Warning(deviceID, msg string) {
	o.Logger.Warn(msg, "device", deviceID)
}

func (o *LogObserver) Error(deviceID, source string, err error) {
	o.Logger.Error("device error", "device", deviceID, "source", source, "error", err)
}

func (o *LogObserver) ConnectionChanged(deviceID string, status Status) {
	o.Logger.Info("connection changed", "device", deviceID, "connected", status.Connected, "ok", status.OK)
}

func (o *LogObserver) SlowCommand(deviceID, msg string) {
	o.Logger.Warn(msg, "device", deviceID)
}

func (o *LogObserver) CommandError(deviceID string, err error, cc CommandContext) {
	o.Logger.Error("command failed",
		"device", deviceID,
		"error", err,
		"command_id", cc.CommandID,
		"kind", cc.Kind,
		"key", cc.Key,
		"origin_id", cc.OriginID,
		"context", cc.Context,
	)
}
