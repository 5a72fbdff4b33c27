package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	promcollect "github.com/prometheus/client_golang/prometheus/collectors"
)

// DefaultNamespace prefixes every metric name when none is configured.
const DefaultNamespace = "graylogic_playout"

// Result labels.
const (
	resultOK    = "ok"
	resultError = "error"
)

// lagBuckets cover the range where a slow command is interesting,
// from well under the default 40ms threshold up to seconds late.
var lagBuckets = []float64{.001, .005, .01, .02, .04, .08, .16, .32, .64, 1.28, 2.56, 5}

// Recorder implements playout.Recorder with Prometheus metrics.
type Recorder struct {
	registry *prom.Registry

	commandLag      *prom.HistogramVec
	commandDuration *prom.HistogramVec
	commands        *prom.CounterVec
	slowCommands    *prom.CounterVec
	connected       *prom.GaugeVec
	reconcile       *prom.HistogramVec
}

// NewRecorder creates the playout metrics and registers them, together
// with the Go runtime and process collectors, on reg. A nil reg gets a
// fresh registry.
func NewRecorder(namespace string, reg *prom.Registry) *Recorder {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prom.NewRegistry()
	}

	r := &Recorder{
		registry: reg,
		commandLag: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "command_lag_seconds",
			Help:      "Delay between a command's scheduled time and the start of its execution",
			Buckets:   lagBuckets,
		}, []string{"device", "kind"}),
		commandDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Duration of device adapter calls",
			Buckets:   prom.DefBuckets,
		}, []string{"device", "kind"}),
		commands: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Executed commands by outcome",
		}, []string{"device", "kind", "result"}),
		slowCommands: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "slow_commands_total",
			Help:      "Commands that started later than the slow threshold",
		}, []string{"device", "kind"}),
		connected: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "device_connected",
			Help:      "1 when the device's connection probe succeeds",
		}, []string{"device"}),
		reconcile: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "reconcile_intents",
			Help:      "Commands produced per reconciled snapshot",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		}, []string{"device"}),
	}

	reg.MustRegister(
		r.commandLag, r.commandDuration, r.commands,
		r.slowCommands, r.connected, r.reconcile,
		promcollect.NewGoCollector(),
		promcollect.NewProcessCollector(promcollect.ProcessCollectorOpts{}),
	)
	return r
}

// Registry returns the registry the metrics are registered on.
func (r *Recorder) Registry() *prom.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// RecordCommand implements playout.Recorder.
func (r *Recorder) RecordCommand(deviceID, kind string, lag, took time.Duration, err error) {
	if r == nil {
		return
	}
	result := resultOK
	if err != nil {
		result = resultError
	}
	r.commandLag.WithLabelValues(deviceID, kind).Observe(lag.Seconds())
	r.commandDuration.WithLabelValues(deviceID, kind).Observe(took.Seconds())
	r.commands.WithLabelValues(deviceID, kind, result).Inc()
}

// RecordSlowCommand implements playout.Recorder.
func (r *Recorder) RecordSlowCommand(deviceID, kind string) {
	if r == nil {
		return
	}
	r.slowCommands.WithLabelValues(deviceID, kind).Inc()
}

// RecordConnection implements playout.Recorder.
func (r *Recorder) RecordConnection(deviceID string, connected bool) {
	if r == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	r.connected.WithLabelValues(deviceID).Set(v)
}

// RecordReconcile implements playout.Recorder.
func (r *Recorder) RecordReconcile(deviceID string, intents int) {
	if r == nil {
		return
	}
	r.reconcile.WithLabelValues(deviceID).Observe(float64(intents))
}
