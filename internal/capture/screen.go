package capture

import "image"

// Monitor is one active output.
type Monitor struct {
	Name   string          `json:"name"`
	Bounds image.Rectangle `json:"bounds"`
}

// UnionBounds returns the smallest rectangle containing every monitor, or
// fallback when there are none.
func UnionBounds(monitors []Monitor, fallback image.Rectangle) image.Rectangle {
	var u image.Rectangle
	for _, m := range monitors {
		if m.Bounds.Empty() {
			continue
		}
		u = u.Union(m.Bounds)
	}
	if u.Empty() {
		return fallback
	}
	return u
}
