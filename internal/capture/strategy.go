package capture

import (
	"fmt"
	"image"

	"github.com/bryanchriswhite/captix/internal/window"
)

// Strategy names
const (
	StrategyDirect = "direct"
	StrategyArea   = "area"
	StrategyFull   = "full"
)

// target is everything the strategies know about the window being captured.
type target struct {
	win     uint32
	geom    window.Geometry
	absX    int
	absY    int
	extents window.FrameExtents
}

// content returns the window-relative content rectangle. Extents that
// would leave no content are discarded in favour of the full window.
func (t *target) content() (image.Rectangle, window.FrameExtents) {
	e := t.extents
	w := t.geom.Width - e.Left - e.Right
	h := t.geom.Height - e.Top - e.Bottom
	if w <= 0 || h <= 0 {
		return image.Rect(0, 0, t.geom.Width, t.geom.Height), window.FrameExtents{}
	}
	return image.Rect(e.Left, e.Top, e.Left+w, e.Top+h), e
}

// strategy captures one window. It returns the image and the extents that
// were excluded so the caller can place the cursor.
type strategy interface {
	Name() string
	Capture(t *target) (*image.RGBA, window.FrameExtents, error)
}

// directStrategy reads the content area straight from the window's drawable.
type directStrategy struct {
	src Source
}

func (s directStrategy) Name() string { return StrategyDirect }

func (s directStrategy) Capture(t *target) (*image.RGBA, window.FrameExtents, error) {
	rect, extents := t.content()
	raw, err := s.src.GetImage(t.win, rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
	if err != nil {
		return nil, window.FrameExtents{}, fmt.Errorf("%w: read window 0x%x: %v", ErrCaptureFailed, t.win, err)
	}
	img, err := Decode(raw, true)
	if err != nil {
		return nil, window.FrameExtents{}, err
	}
	return img, extents, nil
}

// areaStrategy reads the window's full on-screen bounds from the root.
// Overlapping windows end up in the image and borders are unknown.
type areaStrategy struct {
	src Source
}

func (s areaStrategy) Name() string { return StrategyArea }

func (s areaStrategy) Capture(t *target) (*image.RGBA, window.FrameExtents, error) {
	raw, err := s.src.GetImage(s.src.Root(), t.absX, t.absY, t.geom.Width, t.geom.Height)
	if err != nil {
		return nil, window.FrameExtents{}, fmt.Errorf("%w: read area %dx%d+%d+%d: %v",
			ErrCaptureFailed, t.geom.Width, t.geom.Height, t.absX, t.absY, err)
	}
	img, err := Decode(raw, false)
	if err != nil {
		return nil, window.FrameExtents{}, err
	}
	return img, window.FrameExtents{}, nil
}

// defaultStrategies returns the window capture chain, direct read first.
func defaultStrategies(src Source) []strategy {
	return []strategy{
		directStrategy{src: src},
		areaStrategy{src: src},
	}
}
