// Package influxdb provides InfluxDB connectivity for Gray Logic Playout.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched writes and health monitoring, and implements the
// playout Recorder so command timing reaches the time-series store.
//
// # Purpose
//
// This package records:
//   - Executed commands with dispatch lag and adapter duration
//     (measurement playout_command)
//   - Device connection flips (playout_connection)
//   - Commands produced per reconciled snapshot (playout_reconcile)
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	deps.Recorder = playout.MultiRecorder{metricsRecorder, client}
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package influxdb
