// Package playout turns timeline snapshots into timed device commands.
//
// Each device instance is driven by a Controller. On every snapshot the
// controller projects the state in effect before the snapshot and the
// snapshot itself down to the device's own state, diffs the two, cancels
// stale future commands and schedules the new ones on its dispatch queue:
//
//	snapshot -> Project(prior), Project(new) -> Diff -> CancelFrom(T) -> Schedule
//
// Device kinds plug in through two interfaces:
//   - Reconciler projects snapshots and diffs device states
//   - Adapter executes one command against the real device
//
// The Conductor owns all controllers, fans snapshots out to them
// concurrently and runs the periodic history cleanup. Ingress feeds the
// conductor from MQTT.
//
// Nothing in this package is process-fatal. Adapter failures, persistence
// failures and probe failures are reported through Observer and Recorder
// and never stop reconciliation. A device whose Init fails is isolated by
// the Conductor while the others keep running.
package playout
