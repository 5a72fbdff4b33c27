// Package ptz drives Panasonic AW-series PTZ cameras from timeline
// snapshots.
//
// Four camera properties can be bound to timeline layers through the
// mapping subtype:
//
//	preset        recall a stored preset (content key "preset")
//	preset_speed  preset recall speed     (content key "speed")
//	zoom_speed    continuous zoom, -1..+1 (content key "zoomSpeed")
//	zoom          absolute zoom, 0..1     (content key "zoom")
//
// The device state is flat: each property is one Field carrying the value
// and the timeline object that produced it. Commands are sent over the
// camera's HTTP CGI interface in BURST mode, and a power query probes the
// connection.
package ptz
