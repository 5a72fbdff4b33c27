package ptz

import "fmt"

// Mapping subtypes, which double as command kinds.
const (
	SubtypePreset      = "preset"
	SubtypePresetSpeed = "preset_speed"
	SubtypeZoomSpeed   = "zoom_speed"
	SubtypeZoom        = "zoom"
)

// Content keys read from timeline objects.
const (
	keyPreset    = "preset"
	keySpeed     = "speed"
	keyZoomSpeed = "zoomSpeed"
	keyZoom      = "zoom"
)

// defaultOrigin tags values that no timeline object produced.
const defaultOrigin = "default"

// Field is one camera property and the timeline object it came from.
type Field[T comparable] struct {
	Value    T
	OriginID string
}

func (f *Field[T]) String() string {
	if f == nil {
		return "unset"
	}
	return fmt.Sprintf("%v from %s", f.Value, f.OriginID)
}

// State is the projected camera state. A nil field is not driven by any
// layer and produces no command.
type State struct {
	Preset    *Field[int]
	Speed     *Field[int]
	ZoomSpeed *Field[float64]
	Zoom      *Field[float64]
}

// DefaultState returns the state of a camera no layer drives: zoom is
// stationary.
func DefaultState() State {
	return State{
		ZoomSpeed: &Field[float64]{Value: 0, OriginID: defaultOrigin},
	}
}
