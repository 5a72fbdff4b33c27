package ptz

import (
	"fmt"
	"math"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/gray-logic-playout/internal/dispatch"
	"github.com/nerrad567/gray-logic-playout/internal/playout"
	"github.com/nerrad567/gray-logic-playout/internal/timeline"
)

// Reconciler projects snapshots onto a camera State and diffs States into
// commands. It implements playout.Reconciler[State].
type Reconciler struct {
	// Compare selects whether a new origin object alone counts as a change.
	Compare playout.CompareMode
}

// Kind implements playout.Reconciler.
func (Reconciler) Kind() timeline.DeviceKind {
	return timeline.KindPanasonicPTZ
}

// Default implements playout.Reconciler.
func (Reconciler) Default() State {
	return DefaultState()
}

// Project reduces snap to the camera state for deviceID. Layers are applied
// in snapshot order, so a later layer driving the same property wins.
// Layers without a PTZ mapping for this device, unknown subtypes and
// objects missing the subtype's content key are ignored.
func (Reconciler) Project(snap timeline.Snapshot, mapping timeline.Mapping, deviceID string) State {
	st := DefaultState()

	for _, obj := range snap.Layers {
		entry, ok := mapping.Lookup(obj.Layer)
		if !ok || entry.DeviceID != deviceID || entry.Kind != timeline.KindPanasonicPTZ {
			continue
		}

		switch entry.Subtype {
		case SubtypePreset:
			if v, ok := obj.Number(keyPreset); ok {
				st.Preset = &Field[int]{Value: int(math.Round(v)), OriginID: obj.ID}
			}
		case SubtypePresetSpeed:
			if v, ok := obj.Number(keySpeed); ok {
				st.Speed = &Field[int]{Value: int(math.Round(v)), OriginID: obj.ID}
			}
		case SubtypeZoomSpeed:
			if v, ok := obj.Number(keyZoomSpeed); ok {
				st.ZoomSpeed = &Field[float64]{Value: v, OriginID: obj.ID}
			}
		case SubtypeZoom:
			if v, ok := obj.Number(keyZoom); ok {
				st.Zoom = &Field[float64]{Value: v, OriginID: obj.ID}
			}
		}
	}

	return st
}

// Diff returns one command per field that new drives and that differs
// from old, in the fixed order preset, preset speed, zoom speed, zoom.
// A field new leaves unset produces nothing; the camera keeps its value.
func (r Reconciler) Diff(old, new State) []dispatch.Command {
	if cmp.Equal(old, new) {
		return nil
	}

	var cmds []dispatch.Command
	if changed(r.Compare, old.Preset, new.Preset) {
		cmds = append(cmds, fieldCommand(SubtypePreset, "preset", old.Preset, new.Preset))
	}
	if changed(r.Compare, old.Speed, new.Speed) {
		cmds = append(cmds, fieldCommand(SubtypePresetSpeed, "preset speed", old.Speed, new.Speed))
	}
	if changed(r.Compare, old.ZoomSpeed, new.ZoomSpeed) {
		cmds = append(cmds, fieldCommand(SubtypeZoomSpeed, "zoom speed", old.ZoomSpeed, new.ZoomSpeed))
	}
	if changed(r.Compare, old.Zoom, new.Zoom) {
		cmds = append(cmds, fieldCommand(SubtypeZoom, "zoom", old.Zoom, new.Zoom))
	}
	return cmds
}

func changed[T comparable](mode playout.CompareMode, old, new *Field[T]) bool {
	if new == nil {
		return false
	}
	if old == nil {
		return true
	}
	if mode == playout.CompareRecord {
		return *old != *new
	}
	return old.Value != new.Value
}

func fieldCommand[T comparable](kind, name string, old, new *Field[T]) dispatch.Command {
	return dispatch.Command{
		Kind:     kind,
		Payload:  new.Value,
		OriginID: new.OriginID,
		Context:  fmt.Sprintf("%s differ (%s, %s)", name, old, new),
	}
}
