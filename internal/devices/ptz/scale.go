package ptz

import "math"

// Camera ranges for the scaled properties.
const (
	zoomSpeedMin = 1
	zoomSpeedMax = 99

	zoomMin = 0x555
	zoomMax = 0xFFF
)

// ScaleZoomSpeed maps a normalised zoom speed (-1 full wide, 0 stop,
// +1 full tele) to the camera's 01..99 range with 50 as stop.
func ScaleZoomSpeed(v float64) int {
	if math.IsNaN(v) {
		v = 0
	}
	v = clamp(v, -1, 1)
	return int(clamp(math.Round(v*49+50), zoomSpeedMin, zoomSpeedMax))
}

// ScaleZoom maps a normalised zoom position (0 wide, 1 tele) to the
// camera's 0x555..0xFFF range.
func ScaleZoom(v float64) int {
	v = clamp(v, 0, 1)
	return int(clamp(math.Round(v*0xAAA+0x555), zoomMin, zoomMax))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
