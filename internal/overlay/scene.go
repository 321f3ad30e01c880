package overlay

import (
	"image"

	"github.com/bryanchriswhite/captix/internal/selection"
	"github.com/bryanchriswhite/captix/internal/window"
)

// SnapshotFunc returns a window's pre-captured content and the root
// rectangle of that content, borders excluded.
type SnapshotFunc func(info window.WindowInfo) (image.Image, image.Rectangle, bool)

// BuildScene translates the controller's state from root coordinates into
// overlay coordinates. origin is the overlay's root position. A window with
// a snapshot is highlighted at its content geometry.
func BuildScene(ctrl *selection.Controller, cursor, dragOrigin, origin image.Point, snapshot SnapshotFunc, magnifier bool) Scene {
	s := Scene{
		Cursor:    cursor.Sub(origin),
		Origin:    dragOrigin.Sub(origin),
		Magnifier: magnifier,
	}

	if sel, ok := ctrl.Selection(); ok {
		s.Dragging = true
		s.Selection = sel.Sub(origin)
		return s
	}

	info, ok := ctrl.Highlighted()
	if !ok || info.IsRoot {
		return s
	}

	if snapshot != nil {
		if img, at, ok := snapshot(info); ok {
			info.X, info.Y = at.Min.X, at.Min.Y
			info.Width, info.Height = at.Dx(), at.Dy()
			if ctrl.Preview() {
				s.Preview = img
				s.PreviewAt = at.Sub(origin)
			}
		}
	}

	info.X -= origin.X
	info.Y -= origin.Y
	s.Highlight = &info
	return s
}
