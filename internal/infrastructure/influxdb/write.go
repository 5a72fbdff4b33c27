package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the playout recorder.
const (
	MeasurementCommand    = "playout_command"
	MeasurementConnection = "playout_connection"
	MeasurementReconcile  = "playout_reconcile"
)

// RecordCommand writes one executed device command.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Device instance identifier (e.g., "cam-1")
//   - kind: Command kind (e.g., "preset", "added")
//   - lag: How late execution started relative to the scheduled time
//   - took: How long the adapter call ran
//   - err: The adapter error, nil on success
func (c *Client) RecordCommand(deviceID, kind string, lag, took time.Duration, err error) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(commandPoint(deviceID, kind, lag, took, err, time.Now()))
}

// RecordSlowCommand marks a command that started later than the slow
// threshold. The lag itself is already carried by RecordCommand.
func (c *Client) RecordSlowCommand(deviceID, kind string) {
	if !c.IsConnected() {
		return
	}
	point := write.NewPoint(
		MeasurementCommand,
		map[string]string{"device_id": deviceID, "kind": kind},
		map[string]interface{}{"slow": true},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

// RecordConnection writes a connection state flip.
func (c *Client) RecordConnection(deviceID string, connected bool) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(connectionPoint(deviceID, connected, time.Now()))
}

// RecordReconcile writes how many commands one snapshot produced.
func (c *Client) RecordReconcile(deviceID string, intents int) {
	if !c.IsConnected() {
		return
	}
	point := write.NewPoint(
		MeasurementReconcile,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"intents": intents},
		time.Now(),
	)
	c.writeAPI.WritePoint(point)
}

func commandPoint(deviceID, kind string, lag, took time.Duration, err error, at time.Time) *write.Point {
	result := "ok"
	fields := map[string]interface{}{
		"lag_ms":      float64(lag) / float64(time.Millisecond),
		"duration_ms": float64(took) / float64(time.Millisecond),
	}
	if err != nil {
		result = "error"
		fields["error"] = err.Error()
	}
	return write.NewPoint(
		MeasurementCommand,
		map[string]string{"device_id": deviceID, "kind": kind, "result": result},
		fields,
		at,
	)
}

func connectionPoint(deviceID string, connected bool, at time.Time) *write.Point {
	state := 0
	if connected {
		state = 1
	}
	return write.NewPoint(
		MeasurementConnection,
		map[string]string{"device_id": deviceID},
		map[string]interface{}{"connected": state},
		at,
	)
}
