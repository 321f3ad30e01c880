package capture

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/composite"
	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/bryanchriswhite/captix/internal/logger"
)

// XServer reads pixels from a live X server. It shares the connection
// owned by window.X11System.
type XServer struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
	caps   Capabilities
	mu     sync.Mutex
}

// NewXServer initialises the optional extensions on conn. A missing
// extension only disables the feature that needs it.
func NewXServer(conn *xgb.Conn, screen *xproto.ScreenInfo) *XServer {
	log := logger.WithComponent("x11-capture")

	s := &XServer{
		conn:   conn,
		root:   screen.Root,
		screen: screen,
	}

	if err := composite.Init(conn); err != nil {
		log.Warn().Err(err).Msg("Composite extension not available - window tracking disabled")
	} else {
		s.caps.Composite = true
	}

	if err := xfixes.Init(conn); err != nil {
		log.Warn().Err(err).Msg("XFIXES extension not available - cursor overlay disabled")
	} else if _, err := xfixes.QueryVersion(conn, 4, 0).Reply(); err != nil {
		log.Warn().Err(err).Msg("XFIXES version negotiation failed - cursor overlay disabled")
	} else {
		s.caps.XFixes = true
	}

	if err := randr.Init(conn); err != nil {
		log.Warn().Err(err).Msg("RandR extension not available - using root geometry")
	} else {
		s.caps.RandR = true
	}

	log.Debug().
		Bool("composite", s.caps.Composite).
		Bool("xfixes", s.caps.XFixes).
		Bool("randr", s.caps.RandR).
		Msg("X11 capture initialized")

	return s
}

// Root implements Source
func (s *XServer) Root() uint32 {
	return uint32(s.root)
}

// Capabilities implements Source
func (s *XServer) Capabilities() Capabilities {
	return s.caps
}

// checkImageRequest rejects geometry that does not fit the wire types of
// a GetImage request.
func checkImageRequest(x, y, width, height int) error {
	if width <= 0 || height <= 0 || width > math.MaxUint16 || height > math.MaxUint16 {
		return fmt.Errorf("invalid image size %dx%d", width, height)
	}
	if x < math.MinInt16 || x > math.MaxInt16 || y < math.MinInt16 || y > math.MaxInt16 {
		return fmt.Errorf("image origin %d,%d out of range", x, y)
	}
	return nil
}

// GetImage implements Source
func (s *XServer) GetImage(drawable uint32, x, y, width, height int) (RawImage, error) {
	if err := checkImageRequest(x, y, width, height); err != nil {
		return RawImage{}, err
	}

	reply, err := xproto.GetImage(
		s.conn,
		xproto.ImageFormatZPixmap,
		xproto.Drawable(drawable),
		int16(x), int16(y),
		uint16(width), uint16(height),
		0xffffffff,
	).Reply()
	if err != nil {
		return RawImage{}, fmt.Errorf("failed to get image: %w", err)
	}

	return RawImage{
		Data:   reply.Data,
		Width:  width,
		Height: height,
		Depth:  reply.Depth,
	}, nil
}

// Cursor implements Source
func (s *XServer) Cursor() (*CursorImage, error) {
	if !s.caps.XFixes {
		return nil, ErrNoCursor
	}

	reply, err := xfixes.GetCursorImage(s.conn).Reply()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCursor, err)
	}

	return &CursorImage{
		X:      int(reply.X),
		Y:      int(reply.Y),
		Width:  int(reply.Width),
		Height: int(reply.Height),
		XHot:   int(reply.Xhot),
		YHot:   int(reply.Yhot),
		Pixels: reply.CursorImage,
	}, nil
}

// Monitors lists connected outputs that are driven by a CRTC.
func (s *XServer) Monitors() ([]Monitor, error) {
	if !s.caps.RandR {
		return nil, fmt.Errorf("randr unavailable")
	}

	res, err := randr.GetScreenResources(s.conn, s.root).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get screen resources: %w", err)
	}

	log := logger.WithComponent("x11-capture")
	var monitors []Monitor
	for _, output := range res.Outputs {
		info, err := randr.GetOutputInfo(s.conn, output, res.ConfigTimestamp).Reply()
		if err != nil {
			log.Debug().Err(err).Uint32("output", uint32(output)).Msg("Skipping unreadable output")
			continue
		}
		if info.Connection != randr.ConnectionConnected || info.Crtc == 0 {
			continue
		}

		crtc, err := randr.GetCrtcInfo(s.conn, info.Crtc, res.ConfigTimestamp).Reply()
		if err != nil {
			log.Debug().Err(err).Str("output", string(info.Name)).Msg("Skipping output with unreadable CRTC")
			continue
		}
		if crtc.Width == 0 || crtc.Height == 0 {
			continue
		}

		monitors = append(monitors, Monitor{
			Name: string(info.Name),
			Bounds: image.Rect(
				int(crtc.X), int(crtc.Y),
				int(crtc.X)+int(crtc.Width), int(crtc.Y)+int(crtc.Height),
			),
		})
	}
	return monitors, nil
}

// ScreenGeometry implements Source
func (s *XServer) ScreenGeometry() image.Rectangle {
	fallback := image.Rect(0, 0, int(s.screen.WidthInPixels), int(s.screen.HeightInPixels))

	monitors, err := s.Monitors()
	if err != nil {
		logger.WithComponent("x11-capture").Debug().Err(err).Msg("Using root geometry")
		return fallback
	}
	return UnionBounds(monitors, fallback)
}

// Redirect asks the server to keep an off-screen copy of win, which
// CompositeFrame then reads.
func (s *XServer) Redirect(win uint32) error {
	if !s.caps.Composite {
		return fmt.Errorf("composite extension unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := composite.RedirectWindowChecked(s.conn, xproto.Window(win), composite.RedirectAutomatic).Check(); err != nil {
		return fmt.Errorf("failed to redirect window 0x%x: %w", win, err)
	}
	return nil
}

// Unredirect undoes Redirect.
func (s *XServer) Unredirect(win uint32) {
	if !s.caps.Composite {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	composite.UnredirectWindow(s.conn, xproto.Window(win), composite.RedirectAutomatic)
}

// CompositeFrame reads win's off-screen buffer as a width×height BGR24
// frame. Parts of the frame outside the window stay black.
func (s *XServer) CompositeFrame(win uint32, width, height int) ([]byte, error) {
	if !s.caps.Composite {
		return nil, fmt.Errorf("composite extension unavailable")
	}

	geom, err := xproto.GetGeometry(s.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return nil, fmt.Errorf("failed to get window geometry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pixmap, err := xproto.NewPixmapId(s.conn)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate pixmap id: %w", err)
	}
	if err := composite.NameWindowPixmapChecked(s.conn, xproto.Window(win), pixmap).Check(); err != nil {
		return nil, fmt.Errorf("failed to name window pixmap: %w", err)
	}
	defer xproto.FreePixmap(s.conn, pixmap)

	w := min(width, int(geom.Width))
	h := min(height, int(geom.Height))
	raw, err := s.GetImage(uint32(pixmap), 0, 0, w, h)
	if err != nil {
		return nil, err
	}
	return ToBGR24(raw, width, height)
}
