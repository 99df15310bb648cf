package kernel

import "math"

// clampIndex maps an out-of-image coordinate to the nearest edge
// (replicate border).
func clampIndex(i, size int) int {
	if i < 0 {
		return 0
	}
	if i >= size {
		return size - 1
	}
	return i
}

// clamp8 rounds v half away from zero and saturates it to a channel value.
func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v <= 0 || math.IsNaN(v) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
