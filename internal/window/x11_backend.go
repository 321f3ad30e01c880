package window

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/ewmh"
	"github.com/BurntSushi/xgbutil/icccm"
	"github.com/BurntSushi/xgbutil/xprop"
	"github.com/bryanchriswhite/captix/internal/logger"
)

// X11System implements WindowSystem on a live X server. The same
// connection is shared with the capture engine and the overlay.
type X11System struct {
	xu     *xgbutil.XUtil
	conn   *xgb.Conn
	root   xproto.Window
	screen *xproto.ScreenInfo
}

// NewX11System connects to $DISPLAY.
func NewX11System() (*X11System, error) {
	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X server: %w", err)
	}

	s := &X11System{
		xu:     xu,
		conn:   xu.Conn(),
		root:   xu.RootWin(),
		screen: xu.Screen(),
	}

	logger.WithComponent("x11").Debug().
		Uint32("root", uint32(s.root)).
		Uint8("depth", s.screen.RootDepth).
		Uint16("width", s.screen.WidthInPixels).
		Uint16("height", s.screen.HeightInPixels).
		Msg("Connected to X server")

	return s, nil
}

// Close closes the X connection
func (s *X11System) Close() {
	s.conn.Close()
}

// XUtil returns the xgbutil handle
func (s *X11System) XUtil() *xgbutil.XUtil {
	return s.xu
}

// Conn returns the raw xgb connection
func (s *X11System) Conn() *xgb.Conn {
	return s.conn
}

// Screen returns the default screen
func (s *X11System) Screen() *xproto.ScreenInfo {
	return s.screen
}

// Root returns the root window
func (s *X11System) Root() uint32 {
	return uint32(s.root)
}

// Geometry implements WindowSystem
func (s *X11System) Geometry(win uint32) (Geometry, error) {
	reply, err := xproto.GetGeometry(s.conn, xproto.Drawable(win)).Reply()
	if err != nil {
		return Geometry{}, err
	}
	return Geometry{
		X:           int(reply.X),
		Y:           int(reply.Y),
		Width:       int(reply.Width),
		Height:      int(reply.Height),
		BorderWidth: int(reply.BorderWidth),
		Depth:       reply.Depth,
	}, nil
}

// Attributes implements WindowSystem
func (s *X11System) Attributes(win uint32) (Attributes, error) {
	reply, err := xproto.GetWindowAttributes(s.conn, xproto.Window(win)).Reply()
	if err != nil {
		return Attributes{}, err
	}
	return Attributes{
		InputOutput:      reply.Class == xproto.WindowClassInputOutput,
		Viewable:         reply.MapState == xproto.MapStateViewable,
		OverrideRedirect: reply.OverrideRedirect,
	}, nil
}

// QueryTree implements WindowSystem
func (s *X11System) QueryTree(win uint32) (Tree, error) {
	reply, err := xproto.QueryTree(s.conn, xproto.Window(win)).Reply()
	if err != nil {
		return Tree{}, err
	}
	children := make([]uint32, len(reply.Children))
	for i, c := range reply.Children {
		children[i] = uint32(c)
	}
	return Tree{
		Root:     uint32(reply.Root),
		Parent:   uint32(reply.Parent),
		Children: children,
	}, nil
}

// TranslateCoordinates implements WindowSystem
func (s *X11System) TranslateCoordinates(src, dst uint32, x, y int) (Translation, error) {
	reply, err := xproto.TranslateCoordinates(s.conn,
		xproto.Window(src), xproto.Window(dst),
		int16(x), int16(y),
	).Reply()
	if err != nil {
		return Translation{}, err
	}
	return Translation{
		X:     int(reply.DstX),
		Y:     int(reply.DstY),
		Child: uint32(reply.Child),
	}, nil
}

// CardinalProperty implements WindowSystem
func (s *X11System) CardinalProperty(win uint32, name string) ([]uint32, error) {
	nums, err := xprop.PropValNums(xprop.GetProperty(s.xu, xproto.Window(win), name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s on 0x%x: %v", ErrNoProperty, name, win, err)
	}
	values := make([]uint32, len(nums))
	for i, n := range nums {
		values[i] = uint32(n)
	}
	return values, nil
}

// AtomProperty implements WindowSystem
func (s *X11System) AtomProperty(win uint32, name string) ([]string, error) {
	reply, err := xprop.GetProperty(s.xu, xproto.Window(win), name)
	atoms, err := xprop.PropValAtoms(s.xu, reply, err)
	if err != nil {
		return nil, fmt.Errorf("%w: %s on 0x%x: %v", ErrNoProperty, name, win, err)
	}
	return atoms, nil
}

// TextProperty implements WindowSystem
func (s *X11System) TextProperty(win uint32, name string) ([]string, error) {
	strs, err := xprop.PropValStrs(xprop.GetProperty(s.xu, xproto.Window(win), name))
	if err != nil {
		return nil, fmt.Errorf("%w: %s on 0x%x: %v", ErrNoProperty, name, win, err)
	}
	return strs, nil
}

// Identity implements IdentitySource using the ICCCM and EWMH helpers
func (s *X11System) Identity(win uint32) (string, string) {
	w := xproto.Window(win)

	class := "Unknown"
	if wmClass, err := icccm.WmClassGet(s.xu, w); err == nil && wmClass != nil {
		switch {
		case wmClass.Class != "":
			class = wmClass.Class
		case wmClass.Instance != "":
			class = wmClass.Instance
		}
	}

	title := "Untitled"
	if name, err := ewmh.WmNameGet(s.xu, w); err == nil && name != "" {
		title = name
	} else if name, err := icccm.WmNameGet(s.xu, w); err == nil && name != "" {
		title = name
	}

	return class, title
}

// ClientList implements ClientLister, preferring stacking order
func (s *X11System) ClientList() ([]uint32, error) {
	clients, err := ewmh.ClientListStackingGet(s.xu)
	if err != nil || len(clients) == 0 {
		clients, err = ewmh.ClientListGet(s.xu)
		if err != nil {
			return nil, err
		}
	}
	ids := make([]uint32, len(clients))
	for i, c := range clients {
		ids[i] = uint32(c)
	}
	return ids, nil
}

// Pointer implements PointerSource
func (s *X11System) Pointer() (int, int, error) {
	reply, err := xproto.QueryPointer(s.conn, s.root).Reply()
	if err != nil {
		return 0, 0, err
	}
	return int(reply.RootX), int(reply.RootY), nil
}

// PID returns _NET_WM_PID for a window, or 0 when unknown
func (s *X11System) PID(win uint32) int {
	pid, err := ewmh.WmPidGet(s.xu, xproto.Window(win))
	if err != nil {
		return 0
	}
	return int(pid)
}

// WindowManagerName returns the EWMH window manager name when one is running
func (s *X11System) WindowManagerName() string {
	name, err := ewmh.GetEwmhWM(s.xu)
	if err != nil {
		return ""
	}
	return name
}
