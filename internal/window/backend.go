package window

import "errors"

// ErrNoProperty is returned when a window does not carry the requested property.
var ErrNoProperty = errors.New("property not set")

// StickyWorkspace is the _NET_WM_DESKTOP value for windows shown on every workspace.
const StickyWorkspace uint32 = 0xFFFFFFFF

// Geometry is a window's position relative to its parent plus its size.
type Geometry struct {
	X           int
	Y           int
	Width       int
	Height      int
	BorderWidth int
	Depth       uint8
}

// Attributes holds the subset of window attributes the detector cares about.
type Attributes struct {
	InputOutput      bool
	Viewable         bool
	OverrideRedirect bool
}

// Drawable reports whether the window is an InputOutput window that is currently viewable.
func (a Attributes) Drawable() bool {
	return a.InputOutput && a.Viewable
}

// Tree is the result of a QueryTree request. Children are bottom-to-top.
type Tree struct {
	Root     uint32
	Parent   uint32
	Children []uint32
}

// Translation is the result of translating a point into another window.
// Child is the child of the destination window containing the point, or 0.
type Translation struct {
	X     int
	Y     int
	Child uint32
}

// WindowSystem is the narrow set of window-server queries the resolver,
// stack walker and classifier need. X11System implements it against a
// live server; windowtest.System implements it in memory.
type WindowSystem interface {
	// Root returns the root window handle
	Root() uint32

	// Geometry returns the window geometry relative to its parent
	Geometry(win uint32) (Geometry, error)

	// Attributes returns class and map state
	Attributes(win uint32) (Attributes, error)

	// QueryTree returns the parent and bottom-to-top children
	QueryTree(win uint32) (Tree, error)

	// TranslateCoordinates maps (x, y) in src into dst coordinates
	TranslateCoordinates(src, dst uint32, x, y int) (Translation, error)

	// CardinalProperty reads a 32-bit property (CARDINAL, WINDOW, WM_STATE...)
	CardinalProperty(win uint32, name string) ([]uint32, error)

	// AtomProperty reads an ATOM list property as atom names
	AtomProperty(win uint32, name string) ([]string, error)

	// TextProperty reads a NUL-separated string property
	TextProperty(win uint32, name string) ([]string, error)
}

// ClientLister is implemented by window systems that can report the
// window manager's managed client list in stacking order (bottom-to-top).
type ClientLister interface {
	ClientList() ([]uint32, error)
}

// IdentitySource is implemented by window systems that resolve class and
// title through higher-level helpers than raw TextProperty reads.
type IdentitySource interface {
	Identity(win uint32) (class, title string)
}

// PointerSource is implemented by window systems that can report the
// pointer's root coordinates.
type PointerSource interface {
	Pointer() (x, y int, err error)
}
