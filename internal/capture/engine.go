package capture

import (
	"errors"
	"fmt"
	"image"

	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/window"
)

// Engine extracts pixels for areas and windows. Window captures run an
// ordered list of strategies and the first that succeeds wins.
type Engine struct {
	src        Source
	detector   *window.Detector
	strategies []strategy
}

// NewEngine creates a capture engine over a pixel source and window detector.
func NewEngine(src Source, detector *window.Detector) *Engine {
	return &Engine{
		src:        src,
		detector:   detector,
		strategies: defaultStrategies(src),
	}
}

// Capabilities reports the extensions available to the pixel source.
func (e *Engine) Capabilities() Capabilities {
	return e.src.Capabilities()
}

// ScreenGeometry returns the union of the active monitors.
func (e *Engine) ScreenGeometry() image.Rectangle {
	return e.src.ScreenGeometry()
}

// CaptureArea reads a root rectangle. Only 24 and 32-bit screens are
// supported; other depths fail with ErrUnsupportedDepth.
func (e *Engine) CaptureArea(x, y, width, height int, includeCursor bool) (*image.RGBA, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: invalid area %dx%d", ErrCaptureFailed, width, height)
	}

	raw, err := e.src.GetImage(e.src.Root(), x, y, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: read area %dx%d+%d+%d: %v", ErrCaptureFailed, width, height, x, y, err)
	}
	img, err := Decode(raw, false)
	if err != nil {
		return nil, err
	}

	logger.WithComponent("capture").Debug().
		Int("x", x).
		Int("y", y).
		Int("width", width).
		Int("height", height).
		Uint8("depth", raw.Depth).
		Msg("Captured area")

	if includeCursor {
		e.compositeCursor(img, x, y)
	}
	return img, nil
}

// CaptureFullScreen captures the union of all monitors.
func (e *Engine) CaptureFullScreen(includeCursor bool) (*image.RGBA, error) {
	r := e.src.ScreenGeometry()
	return e.CaptureArea(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), includeCursor)
}

// CaptureWindowPureContent captures a window without its invisible
// decoration. The direct read crops the frame extents out of the window's
// own drawable; if that fails the window's on-screen bounds are read from
// the root and the borders are reported as zero.
func (e *Engine) CaptureWindowPureContent(win uint32, includeCursor bool) (*WindowCapture, error) {
	log := logger.WithComponent("capture")

	geom, err := e.detector.System.Geometry(win)
	if err != nil {
		return nil, fmt.Errorf("%w: geometry of 0x%x: %v", ErrCaptureFailed, win, err)
	}
	if geom.Width <= 0 || geom.Height <= 0 {
		return nil, fmt.Errorf("%w: window 0x%x has no area", ErrCaptureFailed, win)
	}

	absX, absY := e.detector.Resolver.AbsoluteCoordinates(win)
	t := &target{
		win:     win,
		geom:    geom,
		absX:    absX,
		absY:    absY,
		extents: e.detector.Resolver.FrameExtents(win),
	}

	var errs []error
	for _, s := range e.strategies {
		img, extents, err := s.Capture(t)
		if err != nil {
			log.Debug().Err(err).Uint32("window_id", win).Str("strategy", s.Name()).Msg("Capture strategy failed")
			errs = append(errs, err)
			continue
		}

		if includeCursor {
			e.compositeCursor(img, absX+extents.Left, absY+extents.Top)
		}

		log.Debug().
			Uint32("window_id", win).
			Str("strategy", s.Name()).
			Int("width", img.Rect.Dx()).
			Int("height", img.Rect.Dy()).
			Int("left_border", extents.Left).
			Int("top_border", extents.Top).
			Msg("Captured window content")

		return &WindowCapture{
			Image:      img,
			LeftBorder: extents.Left,
			TopBorder:  extents.Top,
			Strategy:   s.Name(),
		}, nil
	}

	return nil, fmt.Errorf("capture window 0x%x: %w", win, errors.Join(errs...))
}

// CaptureWindowAtPosition hit-tests the point and captures the window
// found there. The desktop captures the full screen.
func (e *Engine) CaptureWindowAtPosition(x, y int, includeCursor bool) (*WindowCapture, window.WindowInfo, error) {
	info := e.detector.GetWindowAtPosition(x, y)
	if info.IsRoot {
		img, err := e.CaptureFullScreen(includeCursor)
		if err != nil {
			return nil, info, err
		}
		return &WindowCapture{Image: img, Strategy: StrategyFull}, info, nil
	}

	wc, err := e.CaptureWindowPureContent(info.ID, includeCursor)
	if err != nil {
		return nil, info, err
	}
	return wc, info, nil
}

// compositeCursor blends the cursor into an image whose origin sits at
// (offsetX, offsetY) in root coordinates. A missing cursor is not an error.
func (e *Engine) compositeCursor(img *image.RGBA, offsetX, offsetY int) {
	cur, err := e.src.Cursor()
	if err != nil {
		logger.WithComponent("capture").Debug().Err(err).Msg("Skipping cursor overlay")
		return
	}
	CompositeCursor(img, cur, offsetX, offsetY)
}
