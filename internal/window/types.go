package window

import (
	"fmt"
	"image"
)

// Fallback desktop size used when the root geometry cannot be read.
const (
	fallbackDesktopWidth  = 1920
	fallbackDesktopHeight = 1080
)

// WindowInfo is an immutable snapshot of a window taken during one query.
// Exactly one WindowInfo per query represents the desktop (IsRoot) when no
// real window was found.
type WindowInfo struct {
	ID     uint32 `json:"id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Class  string `json:"class"`
	Title  string `json:"title"`
	IsRoot bool   `json:"is_root"`
}

// Desktop builds the synthetic desktop pseudo-window.
func Desktop(root uint32, width, height int) WindowInfo {
	if width <= 0 || height <= 0 {
		width, height = fallbackDesktopWidth, fallbackDesktopHeight
	}
	return WindowInfo{
		ID:     root,
		Width:  width,
		Height: height,
		Class:  "Desktop",
		Title:  "Desktop",
		IsRoot: true,
	}
}

// Rect returns the window's absolute bounds.
func (w WindowInfo) Rect() image.Rectangle {
	return image.Rect(w.X, w.Y, w.X+w.Width, w.Y+w.Height)
}

// Contains reports whether the absolute point lies inside the window.
func (w WindowInfo) Contains(x, y int) bool {
	return w.X <= x && x < w.X+w.Width && w.Y <= y && y < w.Y+w.Height
}

func (w WindowInfo) String() string {
	if w.IsRoot {
		return fmt.Sprintf("Desktop %dx%d", w.Width, w.Height)
	}
	return fmt.Sprintf("0x%x %q (%s) %dx%d+%d+%d", w.ID, w.Title, w.Class, w.Width, w.Height, w.X, w.Y)
}

// FrameExtents are invisible decoration widths to exclude from content capture.
type FrameExtents struct {
	Left   int `json:"left"`
	Right  int `json:"right"`
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
}

// IsZero reports whether no decoration is excluded.
func (e FrameExtents) IsZero() bool {
	return e == FrameExtents{}
}

// Uniform returns extents with the same width on every side.
func Uniform(border int) FrameExtents {
	return FrameExtents{Left: border, Right: border, Top: border, Bottom: border}
}
