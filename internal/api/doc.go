// Package api implements the HTTP status and control API for Gray Logic Playout.
//
// This package provides:
//   - Device status and pending-queue introspection
//   - Timeline state and clear-future submission, sharing the MQTT
//     ingress path so both inputs stay ordered
//   - Component health and runtime statistics
//   - Prometheus exposition at /metrics
//   - Middleware stack (request ID, logging, recovery, body limit)
//
// # Endpoints
//
//	GET  /api/v1/health
//	GET  /api/v1/system
//	GET  /api/v1/devices
//	GET  /api/v1/devices/{id}
//	GET  /api/v1/devices/{id}/queue
//	POST /api/v1/timeline/state
//	POST /api/v1/timeline/clear-future
//	GET  /metrics
//
// # Graceful Degradation
//
// The server operates without timeline input configured; status reads
// keep working and the control endpoints answer 503.
package api
