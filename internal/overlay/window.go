package overlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/selection"
)

const (
	grabAttempts  = 20
	grabRetryWait = 50 * time.Millisecond

	keysymEscape = 0xff1b
	// crosshair glyph in the standard cursor font
	glyphCrosshair = 34
)

// ErrGrabFailed is returned when the pointer or keyboard stays grabbed by
// another client.
var ErrGrabFailed = errors.New("failed to grab input")

// Overlay is the override-redirect window covering the screen during an
// interactive selection.
type Overlay struct {
	conn   *xgb.Conn
	screen *xproto.ScreenInfo
	bounds image.Rectangle
	format Format
	maxReq int

	mu      sync.RWMutex
	win     xproto.Window
	gc      xproto.Gcontext
	cursor  xproto.Cursor
	escape  map[xproto.Keycode]bool
	running bool
}

// New prepares an overlay over bounds (root coordinates) on conn.
func New(conn *xgb.Conn, screen *xproto.ScreenInfo, bounds image.Rectangle) (*Overlay, error) {
	if bounds.Empty() {
		return nil, fmt.Errorf("invalid overlay bounds %v", bounds)
	}

	setup := xproto.Setup(conn)
	format := Format{Depth: screen.RootDepth}
	for _, f := range setup.PixmapFormats {
		if f.Depth == screen.RootDepth {
			format.BitsPerPixel = int(f.BitsPerPixel)
			format.ScanlinePad = int(f.ScanlinePad)
			break
		}
	}
	if format.BitsPerPixel == 0 {
		return nil, fmt.Errorf("no pixmap format for depth %d", screen.RootDepth)
	}

	return &Overlay{
		conn:   conn,
		screen: screen,
		bounds: bounds,
		format: format,
		maxReq: int(setup.MaximumRequestLength) * 4,
	}, nil
}

// ID returns the overlay window id, zero before Start. Hit tests exclude
// it.
func (o *Overlay) ID() uint32 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return uint32(o.win)
}

// Start creates, maps and grabs the overlay window.
func (o *Overlay) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.running {
		return fmt.Errorf("overlay already running")
	}
	log := logger.WithComponent("overlay")

	win, err := xproto.NewWindowId(o.conn)
	if err != nil {
		return fmt.Errorf("failed to create window ID: %w", err)
	}
	o.win = win

	if cur, err := o.crosshair(); err != nil {
		log.Debug().Err(err).Msg("Crosshair cursor unavailable")
	} else {
		o.cursor = cur
	}

	mask := uint32(xproto.CwBackPixel | xproto.CwOverrideRedirect | xproto.CwEventMask | xproto.CwCursor)
	values := []uint32{
		0x000000,
		1,
		xproto.EventMaskExposure | xproto.EventMaskKeyPress |
			xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease |
			xproto.EventMaskPointerMotion,
		uint32(o.cursor),
	}

	err = xproto.CreateWindowChecked(
		o.conn,
		o.screen.RootDepth,
		o.win,
		o.screen.Root,
		int16(o.bounds.Min.X), int16(o.bounds.Min.Y),
		uint16(o.bounds.Dx()), uint16(o.bounds.Dy()),
		0,
		xproto.WindowClassInputOutput,
		o.screen.RootVisual,
		mask,
		values,
	).Check()
	if err != nil {
		return fmt.Errorf("failed to create window: %w", err)
	}

	if err := o.setWindowTitle("CaptiX Screenshot"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window title")
	}
	if err := o.setWindowClass("captix", "CaptiX"); err != nil {
		log.Warn().Err(err).Msg("Failed to set window class")
	}

	if err := xproto.MapWindowChecked(o.conn, o.win).Check(); err != nil {
		return fmt.Errorf("failed to map window: %w", err)
	}

	gc, err := xproto.NewGcontextId(o.conn)
	if err != nil {
		return fmt.Errorf("failed to create graphics context: %w", err)
	}
	if err := xproto.CreateGCChecked(o.conn, gc, xproto.Drawable(o.win), 0, nil).Check(); err != nil {
		return fmt.Errorf("failed to create GC: %w", err)
	}
	o.gc = gc

	o.escape = o.escapeKeycodes()
	if err := o.grab(); err != nil {
		return err
	}

	o.running = true
	log.Info().
		Int("width", o.bounds.Dx()).
		Int("height", o.bounds.Dy()).
		Uint32("window_id", uint32(o.win)).
		Msg("Overlay window created")
	return nil
}

// grab takes the pointer and keyboard. Another client (often the window
// manager finishing a key binding) may still hold them briefly.
func (o *Overlay) grab() error {
	pointerMask := uint16(xproto.EventMaskButtonPress | xproto.EventMaskButtonRelease | xproto.EventMaskPointerMotion)

	var pointerOK, keyboardOK bool
	for i := 0; i < grabAttempts && !(pointerOK && keyboardOK); i++ {
		if i > 0 {
			time.Sleep(grabRetryWait)
		}
		if !pointerOK {
			reply, err := xproto.GrabPointer(o.conn, false, o.win, pointerMask,
				xproto.GrabModeAsync, xproto.GrabModeAsync,
				o.win, o.cursor, xproto.TimeCurrentTime).Reply()
			pointerOK = err == nil && reply.Status == xproto.GrabStatusSuccess
		}
		if !keyboardOK {
			reply, err := xproto.GrabKeyboard(o.conn, false, o.win, xproto.TimeCurrentTime,
				xproto.GrabModeAsync, xproto.GrabModeAsync).Reply()
			keyboardOK = err == nil && reply.Status == xproto.GrabStatusSuccess
		}
	}

	if !pointerOK || !keyboardOK {
		return fmt.Errorf("%w: pointer=%t keyboard=%t", ErrGrabFailed, pointerOK, keyboardOK)
	}
	return nil
}

func (o *Overlay) crosshair() (xproto.Cursor, error) {
	font, err := xproto.NewFontId(o.conn)
	if err != nil {
		return 0, err
	}
	name := "cursor"
	if err := xproto.OpenFontChecked(o.conn, font, uint16(len(name)), name).Check(); err != nil {
		return 0, err
	}
	defer xproto.CloseFont(o.conn, font)

	cur, err := xproto.NewCursorId(o.conn)
	if err != nil {
		return 0, err
	}
	err = xproto.CreateGlyphCursorChecked(o.conn, cur, font, font,
		glyphCrosshair, glyphCrosshair+1,
		0xffff, 0xffff, 0xffff,
		0, 0, 0).Check()
	if err != nil {
		return 0, err
	}
	return cur, nil
}

// escapeKeycodes maps the Escape keysym to the server's keycodes.
func (o *Overlay) escapeKeycodes() map[xproto.Keycode]bool {
	setup := xproto.Setup(o.conn)
	first := setup.MinKeycode
	count := byte(setup.MaxKeycode - setup.MinKeycode + 1)

	codes := make(map[xproto.Keycode]bool)
	reply, err := xproto.GetKeyboardMapping(o.conn, first, count).Reply()
	if err != nil || reply.KeysymsPerKeycode == 0 {
		logger.WithComponent("overlay").Warn().Err(err).Msg("Failed to read keyboard mapping, using keycode 9 for Escape")
		codes[9] = true
		return codes
	}

	per := int(reply.KeysymsPerKeycode)
	for i, sym := range reply.Keysyms {
		if sym == keysymEscape {
			codes[first+xproto.Keycode(i/per)] = true
		}
	}
	return codes
}

// Present shows img, which must match the overlay size. Large images are
// sent in strips that fit the server's request limit.
func (o *Overlay) Present(img *image.RGBA) error {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if !o.running {
		return fmt.Errorf("overlay not running")
	}
	width, height := img.Rect.Dx(), img.Rect.Dy()
	if width != o.bounds.Dx() || height != o.bounds.Dy() {
		return fmt.Errorf("image size mismatch: got %dx%d, expected %dx%d",
			width, height, o.bounds.Dx(), o.bounds.Dy())
	}

	rows := StripRows(o.format.Stride(width), o.maxReq)
	for y := 0; y < height; y += rows {
		end := min(y+rows, height)
		data, err := EncodeRows(img, o.format, y, end)
		if err != nil {
			return err
		}
		xproto.PutImage(
			o.conn,
			xproto.ImageFormatZPixmap,
			xproto.Drawable(o.win),
			o.gc,
			uint16(width),
			uint16(end-y),
			0, int16(y),
			0,
			o.format.Depth,
			data,
		)
	}

	o.conn.Sync()
	return nil
}

// Stop releases the grabs and destroys the window.
func (o *Overlay) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.running {
		return
	}

	xproto.UngrabPointer(o.conn, xproto.TimeCurrentTime)
	xproto.UngrabKeyboard(o.conn, xproto.TimeCurrentTime)
	if o.gc != 0 {
		xproto.FreeGC(o.conn, o.gc)
	}
	if o.cursor != 0 {
		xproto.FreeCursor(o.conn, o.cursor)
	}
	if o.win != 0 {
		xproto.DestroyWindow(o.conn, o.win)
	}
	o.conn.Sync()

	o.running = false
	logger.WithComponent("overlay").Info().Msg("Overlay window closed")
}

// setWindowTitle sets the window title
func (o *Overlay) setWindowTitle(title string) error {
	titleAtom, err := o.getAtom("_NET_WM_NAME")
	if err != nil {
		return err
	}
	utf8Atom, err := o.getAtom("UTF8_STRING")
	if err != nil {
		return err
	}

	return xproto.ChangePropertyChecked(
		o.conn,
		xproto.PropModeReplace,
		o.win,
		titleAtom,
		utf8Atom,
		8,
		uint32(len(title)),
		[]byte(title),
	).Check()
}

// setWindowClass sets WM_CLASS
func (o *Overlay) setWindowClass(instance, class string) error {
	classStr := instance + "\x00" + class + "\x00"
	return xproto.ChangePropertyChecked(
		o.conn,
		xproto.PropModeReplace,
		o.win,
		xproto.AtomWmClass,
		xproto.AtomString,
		8,
		uint32(len(classStr)),
		[]byte(classStr),
	).Check()
}

func (o *Overlay) getAtom(name string) (xproto.Atom, error) {
	reply, err := xproto.InternAtom(o.conn, false, uint16(len(name)), name).Reply()
	if err != nil {
		return 0, err
	}
	return reply.Atom, nil
}

// Input is one decoded user event, in root coordinates.
type Input struct {
	Kind   InputKind
	X, Y   int
	Button int
	Time   time.Time
}

// InputKind classifies an Input.
type InputKind int

const (
	InputMotion InputKind = iota
	InputPress
	InputRelease
	InputEscape
	InputExpose
)

// serverTime turns an X timestamp (ms since server start) into a
// time.Time that is only meaningful for differences.
func serverTime(t xproto.Timestamp) time.Time {
	return time.Unix(0, 0).Add(time.Duration(t) * time.Millisecond)
}

// decode maps an X event to an Input.
func (o *Overlay) decode(ev xgb.Event) (Input, bool) {
	switch e := ev.(type) {
	case xproto.MotionNotifyEvent:
		return Input{Kind: InputMotion, X: int(e.RootX), Y: int(e.RootY), Time: serverTime(e.Time)}, true
	case xproto.ButtonPressEvent:
		return Input{Kind: InputPress, X: int(e.RootX), Y: int(e.RootY), Button: int(e.Detail), Time: serverTime(e.Time)}, true
	case xproto.ButtonReleaseEvent:
		return Input{Kind: InputRelease, X: int(e.RootX), Y: int(e.RootY), Button: int(e.Detail), Time: serverTime(e.Time)}, true
	case xproto.KeyPressEvent:
		if o.escape[e.Detail] {
			return Input{Kind: InputEscape, Time: serverTime(e.Time)}, true
		}
	case xproto.ExposeEvent:
		if e.Count == 0 {
			return Input{Kind: InputExpose}, true
		}
	}
	return Input{}, false
}

// Events pumps decoded X events until ctx ends or the connection closes.
func (o *Overlay) Events(ctx context.Context) <-chan Input {
	out := make(chan Input, 64)
	go func() {
		defer close(out)
		log := logger.WithComponent("overlay")
		for {
			ev, err := o.conn.WaitForEvent()
			if ev == nil && err == nil {
				return
			}
			if err != nil {
				log.Debug().Err(err).Msg("X error during selection")
				continue
			}
			in, ok := o.decode(ev)
			if !ok {
				continue
			}
			select {
			case out <- in:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Screen is the surface the selection loop draws on.
type Screen interface {
	Present(img *image.RGBA) error
}

var _ Screen = (*Overlay)(nil)

// Loop routes user input through a selection controller and redraws the
// overlay.
type Loop struct {
	Controller *selection.Controller
	Renderer   *Renderer
	Screen     Screen
	// Origin is the root position of the overlay's top-left pixel
	Origin image.Point
	// Snapshot returns pre-captured content for highlighting and preview
	Snapshot SnapshotFunc
	// Ready is closed when pre-capture finishes; the overlay redraws so
	// the highlight switches to snapshot geometry
	Ready <-chan struct{}
	// Beat is called from the loop every BeatInterval; it stops when the
	// loop hangs
	Beat         func()
	BeatInterval time.Duration
	Magnifier    bool

	cursor image.Point
	origin image.Point
}

// Run processes input until a gesture completes, the input channel
// closes or ctx ends.
func (l *Loop) Run(ctx context.Context, input <-chan Input) (selection.Outcome, error) {
	log := logger.WithComponent("overlay")

	interval := l.BeatInterval
	if interval <= 0 {
		interval = time.Second
	}
	beat := time.NewTicker(interval)
	defer beat.Stop()

	if err := l.redraw(); err != nil {
		return selection.Outcome{}, err
	}

	ready := l.Ready
	for {
		select {
		case <-ctx.Done():
			return l.Controller.Escape(), ctx.Err()

		case <-ready:
			ready = nil
			log.Debug().Msg("Pre-capture finished, redrawing")
			if err := l.redraw(); err != nil {
				log.Warn().Err(err).Msg("Failed to redraw overlay")
			}

		case <-beat.C:
			if l.Beat != nil {
				l.Beat()
			}

		case in, ok := <-input:
			if !ok {
				return l.Controller.Escape(), fmt.Errorf("display connection closed")
			}

			out, done := l.handle(in)
			if done {
				log.Info().Str("gesture", out.Kind.String()).Msg("Selection finished")
				return out, nil
			}

			// Coalesce queued motion before drawing.
			if len(input) > 0 {
				continue
			}
			if err := l.redraw(); err != nil {
				log.Warn().Err(err).Msg("Failed to redraw overlay")
			}
		}
	}
}

// handle feeds one input to the controller.
func (l *Loop) handle(in Input) (selection.Outcome, bool) {
	switch in.Kind {
	case InputMotion:
		l.cursor = image.Pt(in.X, in.Y)
		l.Controller.Motion(in.X, in.Y)

	case InputPress:
		l.cursor = image.Pt(in.X, in.Y)
		if in.Button == 1 {
			l.origin = l.cursor
			l.Controller.Press(in.X, in.Y, in.Time)
		}

	case InputRelease:
		l.cursor = image.Pt(in.X, in.Y)
		switch in.Button {
		case 1:
			out := l.Controller.Release(in.X, in.Y, in.Time)
			if out.Kind != selection.KindNone {
				return out, true
			}
		case 3:
			preview := l.Controller.RightRelease()
			logger.WithComponent("overlay").Debug().Bool("preview", preview).Msg("Window preview toggled")
		}

	case InputEscape:
		return l.Controller.Escape(), true
	}
	return selection.Outcome{}, false
}

func (l *Loop) redraw() error {
	s := BuildScene(l.Controller, l.cursor, l.origin, l.Origin, l.Snapshot, l.Magnifier)
	return l.Screen.Present(l.Renderer.Render(s))
}
