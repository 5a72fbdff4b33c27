// Package monitor tracks the liveness of a device with a live connection.
//
// A Monitor runs a probe once synchronously when started and then on a
// fixed period as a gocron job. It keeps a two-state machine, Disconnected
// (initial) and Connected, and notifies on every actual flip only.
//
// The first probe decides whether Start succeeds: a probe error fails
// Start, so device initialisation fails. Later probe errors only flip the
// state. A probe that returns false without error counts as reachable but
// not ready: Start succeeds and the state is Disconnected.
package monitor
