// Package selection turns raw pointer events from the overlay into a
// single gesture outcome: a window click, a desktop click, an area drag or
// a cancel.
package selection

import (
	"errors"
	"image"
	"time"

	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/window"
)

// ErrDegenerateSelection is reported for drags with no width or height.
var ErrDegenerateSelection = errors.New("selection has zero width or height")

// Default thresholds
const (
	DefaultClickThreshold = 200 * time.Millisecond
	DefaultDragThreshold  = 5
	DefaultHoverRequery   = 10
)

// State is the controller's gesture state.
type State int

const (
	StateIdle State = iota
	StatePointerDown
	StateDragging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePointerDown:
		return "pointer-down"
	case StateDragging:
		return "dragging"
	default:
		return "unknown"
	}
}

// Kind classifies a finished gesture.
type Kind int

const (
	KindNone Kind = iota
	KindWindowClick
	KindDesktopClick
	KindAreaDrag
	KindCancel
	KindInvalid
)

func (k Kind) String() string {
	switch k {
	case KindWindowClick:
		return "window-click"
	case KindDesktopClick:
		return "desktop-click"
	case KindAreaDrag:
		return "area-drag"
	case KindCancel:
		return "cancel"
	case KindInvalid:
		return "invalid"
	default:
		return "none"
	}
}

// Outcome is the result of one gesture. Window is set for window clicks;
// Rect is set for drags and covers the selected pixels, so the far edge
// pixel column and row are inside it.
type Outcome struct {
	Kind   Kind
	Window window.WindowInfo
	Rect   image.Rectangle
	Err    error
}

// HitTester returns the window under a root point, never the overlay.
type HitTester func(x, y int) window.WindowInfo

// Config holds the gesture thresholds.
type Config struct {
	ClickThreshold time.Duration
	DragThreshold  int
	HoverRequery   int
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ClickThreshold: DefaultClickThreshold,
		DragThreshold:  DefaultDragThreshold,
		HoverRequery:   DefaultHoverRequery,
	}
}

// Controller is the selection state machine. It is driven from the
// overlay's event loop and is not safe for concurrent use.
type Controller struct {
	cfg   Config
	hover HitTester

	state   State
	pressAt time.Time
	pressX  int
	pressY  int
	curX    int
	curY    int

	queried    bool
	queryX     int
	queryY     int
	hasHover   bool
	highlight  window.WindowInfo
	pressHover *window.WindowInfo

	preview bool
}

// NewController creates a controller. Non-positive thresholds select defaults.
func NewController(cfg Config, hover HitTester) *Controller {
	def := DefaultConfig()
	if cfg.ClickThreshold <= 0 {
		cfg.ClickThreshold = def.ClickThreshold
	}
	if cfg.DragThreshold <= 0 {
		cfg.DragThreshold = def.DragThreshold
	}
	if cfg.HoverRequery <= 0 {
		cfg.HoverRequery = def.HoverRequery
	}
	return &Controller{cfg: cfg, hover: hover}
}

// State returns the current gesture state.
func (c *Controller) State() State {
	return c.state
}

// Highlighted returns the hover-highlighted window, if any.
func (c *Controller) Highlighted() (window.WindowInfo, bool) {
	return c.highlight, c.hasHover
}

// Preview reports whether window preview mode is on.
func (c *Controller) Preview() bool {
	return c.preview
}

// Selection returns the rectangle being dragged, if a drag is in progress.
func (c *Controller) Selection() (image.Rectangle, bool) {
	if c.state != StateDragging {
		return image.Rectangle{}, false
	}
	return normalize(c.pressX, c.pressY, c.curX, c.curY), true
}

// Motion feeds a pointer move. It reports whether the highlight or the
// drag rectangle changed and a redraw is due.
func (c *Controller) Motion(x, y int) bool {
	c.curX, c.curY = x, y

	switch c.state {
	case StateDragging:
		return true

	case StatePointerDown:
		if manhattan(c.pressX, c.pressY, x, y) >= c.cfg.DragThreshold {
			c.state = StateDragging
			c.hasHover = false
			c.highlight = window.WindowInfo{}
			logger.WithComponent("selection").Debug().
				Int("x", c.pressX).
				Int("y", c.pressY).
				Msg("Drag started")
			return true
		}
	}

	return c.requery(x, y)
}

// requery refreshes the hover highlight once the pointer has moved far
// enough since the last query.
func (c *Controller) requery(x, y int) bool {
	if c.hover == nil {
		return false
	}
	if c.queried && manhattan(c.queryX, c.queryY, x, y) < c.cfg.HoverRequery {
		return false
	}

	c.queried = true
	c.queryX, c.queryY = x, y

	info := c.hover(x, y)
	changed := !c.hasHover || info != c.highlight
	c.highlight = info
	c.hasHover = true
	return changed
}

// Press feeds a left-button press.
func (c *Controller) Press(x, y int, at time.Time) {
	c.state = StatePointerDown
	c.pressAt = at
	c.pressX, c.pressY = x, y
	c.curX, c.curY = x, y

	if !c.hasHover {
		c.queried = false
		c.requery(x, y)
	}

	c.pressHover = nil
	if c.hasHover {
		target := c.highlight
		c.pressHover = &target
	}
}

// Release feeds a left-button release and returns the gesture outcome.
// A release counts as a click when it comes within the click threshold of
// the press or when the pointer moved less than the drag threshold. Either
// condition is enough.
func (c *Controller) Release(x, y int, at time.Time) Outcome {
	if c.state == StateIdle {
		return Outcome{Kind: KindNone}
	}

	elapsed := at.Sub(c.pressAt)
	distance := manhattan(c.pressX, c.pressY, x, y)
	log := logger.WithComponent("selection")

	defer c.reset()

	if elapsed <= c.cfg.ClickThreshold || distance < c.cfg.DragThreshold {
		log.Debug().
			Dur("elapsed", elapsed).
			Int("distance", distance).
			Msg("Gesture classified as click")

		if c.pressHover != nil && !c.pressHover.IsRoot {
			return Outcome{Kind: KindWindowClick, Window: *c.pressHover}
		}
		return Outcome{Kind: KindDesktopClick}
	}

	rect := normalize(c.pressX, c.pressY, x, y)
	if rect.Dx() <= 1 || rect.Dy() <= 1 {
		log.Warn().
			Int("width", rect.Dx()-1).
			Int("height", rect.Dy()-1).
			Msg("Degenerate selection")
		return Outcome{Kind: KindInvalid, Rect: rect, Err: ErrDegenerateSelection}
	}

	log.Debug().
		Int("x", rect.Min.X).
		Int("y", rect.Min.Y).
		Int("width", rect.Dx()).
		Int("height", rect.Dy()).
		Msg("Gesture classified as drag")
	return Outcome{Kind: KindAreaDrag, Rect: rect}
}

// Escape cancels the gesture in any state.
func (c *Controller) Escape() Outcome {
	c.reset()
	return Outcome{Kind: KindCancel}
}

// RightRelease toggles window preview mode and returns the new mode.
func (c *Controller) RightRelease() bool {
	c.preview = !c.preview
	return c.preview
}

func (c *Controller) reset() {
	c.state = StateIdle
	c.pressAt = time.Time{}
	c.pressHover = nil
}

// normalize returns the rectangle spanning both corners inclusively.
func normalize(x0, y0, x1, y1 int) image.Rectangle {
	return image.Rect(min(x0, x1), min(y0, y1), max(x0, x1)+1, max(y0, y1)+1)
}

func manhattan(x0, y0, x1, y1 int) int {
	return abs(x1-x0) + abs(y1-y0)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
