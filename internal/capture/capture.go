package capture

import (
	"image"

	"github.com/bryanchriswhite/captix/internal/window"
)

// Source defines the pixel-level operations the engine needs from the
// display server
type Source interface {
	// Root returns the root window, the drawable for area reads
	Root() uint32

	// GetImage reads a ZPixmap rectangle from drawable, relative to its origin
	GetImage(drawable uint32, x, y, width, height int) (RawImage, error)

	// Cursor fetches the current hardware cursor image
	// Returns ErrNoCursor when the cursor extension is unavailable
	Cursor() (*CursorImage, error)

	// ScreenGeometry returns the union of all active monitors, or the
	// root geometry when the multi-output extension is unavailable
	ScreenGeometry() image.Rectangle

	// Capabilities reports which optional extensions were initialised
	Capabilities() Capabilities
}

// Capabilities lists the optional X extensions available to the engine.
type Capabilities struct {
	Composite bool `json:"composite"`
	XFixes    bool `json:"xfixes"`
	RandR     bool `json:"randr"`
}

// WindowCapture is the result of a content-isolating window capture.
// LeftBorder and TopBorder are the decoration widths excluded from the
// image; both are zero when the area fallback produced the image.
type WindowCapture struct {
	Image      *image.RGBA
	LeftBorder int
	TopBorder  int
	Strategy   string
}

// ContentRect returns the content-only geometry of a window captured as c.
func (c *WindowCapture) ContentRect(info window.WindowInfo) image.Rectangle {
	x := info.X + c.LeftBorder
	y := info.Y + c.TopBorder
	b := c.Image.Bounds()
	return image.Rect(x, y, x+b.Dx(), y+b.Dy())
}
