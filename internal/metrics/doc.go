// Package metrics exposes playout telemetry to Prometheus.
//
// Recorder implements playout.Recorder on a private registry, and Handler
// serves that registry for scraping. All Recorder methods are nil-safe so
// a disabled recorder can be passed around as a nil pointer.
package metrics
