// Package windowtest provides an in-memory window.WindowSystem for tests.
package windowtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bryanchriswhite/captix/internal/window"
)

// RootID is the handle of the fake root window.
const RootID uint32 = 1

// ErrInjected is returned by calls configured to fail.
var ErrInjected = errors.New("injected failure")

// Window describes one fake window. X and Y are relative to the parent.
type Window struct {
	ID          uint32
	Parent      uint32
	X, Y        int
	Width       int
	Height      int
	BorderWidth int
	Depth       uint8

	InputOnly        bool
	Unmapped         bool
	OverrideRedirect bool

	Cardinals map[string][]uint32
	Atoms     map[string][]string
	Texts     map[string][]string
}

// System is a mutable in-memory window tree. Children are kept
// bottom-to-top like the X server reports them.
type System struct {
	mu       sync.Mutex
	windows  map[uint32]*Window
	children map[uint32][]uint32

	failGeometry  map[uint32]bool
	failTree      map[uint32]bool
	failTranslate bool

	clients    []uint32
	hasClients bool
	pointerX   int
	pointerY   int
}

// New creates a fake display whose root has the given size.
func New(width, height int) *System {
	s := &System{
		windows:      make(map[uint32]*Window),
		children:     make(map[uint32][]uint32),
		failGeometry: make(map[uint32]bool),
		failTree:     make(map[uint32]bool),
	}
	s.windows[RootID] = &Window{ID: RootID, Width: width, Height: height, Depth: 24}
	return s
}

// Add inserts w on top of its parent's stack. A zero Parent means the root.
func (s *System) Add(w Window) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w.Parent == 0 {
		w.Parent = RootID
	}
	if w.Depth == 0 {
		w.Depth = 24
	}
	cp := w
	s.windows[w.ID] = &cp
	s.children[w.Parent] = append(s.children[w.Parent], w.ID)
}

// Remove deletes a window, simulating it being destroyed mid-query.
func (s *System) Remove(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.windows[id]
	if !ok {
		return
	}
	delete(s.windows, id)
	siblings := s.children[w.Parent]
	for i, c := range siblings {
		if c == id {
			s.children[w.Parent] = append(siblings[:i:i], siblings[i+1:]...)
			break
		}
	}
}

// SetCardinal sets a CARDINAL property.
func (s *System) SetCardinal(id uint32, name string, values ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.mustWindow(id)
	if w.Cardinals == nil {
		w.Cardinals = make(map[string][]uint32)
	}
	w.Cardinals[name] = values
}

// SetAtoms sets an ATOM list property.
func (s *System) SetAtoms(id uint32, name string, atoms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.mustWindow(id)
	if w.Atoms == nil {
		w.Atoms = make(map[string][]string)
	}
	w.Atoms[name] = atoms
}

// SetText sets a string list property.
func (s *System) SetText(id uint32, name string, values ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.mustWindow(id)
	if w.Texts == nil {
		w.Texts = make(map[string][]string)
	}
	w.Texts[name] = values
}

// FailGeometry makes Geometry fail for id.
func (s *System) FailGeometry(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failGeometry[id] = true
}

// FailQueryTree makes QueryTree fail for id.
func (s *System) FailQueryTree(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTree[id] = true
}

// FailTranslate makes every TranslateCoordinates call fail.
func (s *System) FailTranslate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTranslate = true
}

// SetClientList publishes a window manager client list.
func (s *System) SetClientList(ids ...uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients = ids
	s.hasClients = true
}

// SetPointer moves the fake pointer.
func (s *System) SetPointer(x, y int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pointerX, s.pointerY = x, y
}

func (s *System) mustWindow(id uint32) *Window {
	w, ok := s.windows[id]
	if !ok {
		panic(fmt.Sprintf("windowtest: unknown window 0x%x", id))
	}
	return w
}

func (s *System) lookup(id uint32) (*Window, error) {
	w, ok := s.windows[id]
	if !ok {
		return nil, fmt.Errorf("BadWindow 0x%x", id)
	}
	return w, nil
}

// absolute returns the root-relative origin of id.
func (s *System) absolute(id uint32) (int, int, error) {
	x, y := 0, 0
	for cur := id; cur != RootID; {
		w, err := s.lookup(cur)
		if err != nil {
			return 0, 0, err
		}
		x += w.X
		y += w.Y
		cur = w.Parent
	}
	return x, y, nil
}

// Root implements window.WindowSystem
func (s *System) Root() uint32 {
	return RootID
}

// Geometry implements window.WindowSystem
func (s *System) Geometry(id uint32) (window.Geometry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failGeometry[id] {
		return window.Geometry{}, ErrInjected
	}
	w, err := s.lookup(id)
	if err != nil {
		return window.Geometry{}, err
	}
	return window.Geometry{
		X:           w.X,
		Y:           w.Y,
		Width:       w.Width,
		Height:      w.Height,
		BorderWidth: w.BorderWidth,
		Depth:       w.Depth,
	}, nil
}

// Attributes implements window.WindowSystem
func (s *System) Attributes(id uint32) (window.Attributes, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.lookup(id)
	if err != nil {
		return window.Attributes{}, err
	}
	return window.Attributes{
		InputOutput:      !w.InputOnly,
		Viewable:         !w.Unmapped,
		OverrideRedirect: w.OverrideRedirect,
	}, nil
}

// QueryTree implements window.WindowSystem
func (s *System) QueryTree(id uint32) (window.Tree, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failTree[id] {
		return window.Tree{}, ErrInjected
	}
	w, err := s.lookup(id)
	if err != nil {
		return window.Tree{}, err
	}
	children := append([]uint32(nil), s.children[id]...)
	parent := w.Parent
	if id == RootID {
		parent = 0
	}
	return window.Tree{Root: RootID, Parent: parent, Children: children}, nil
}

// TranslateCoordinates implements window.WindowSystem. Child is the
// topmost mapped child of dst containing the point.
func (s *System) TranslateCoordinates(src, dst uint32, x, y int) (window.Translation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failTranslate {
		return window.Translation{}, ErrInjected
	}
	sx, sy, err := s.absolute(src)
	if err != nil {
		return window.Translation{}, err
	}
	dx, dy, err := s.absolute(dst)
	if err != nil {
		return window.Translation{}, err
	}
	lx, ly := x+sx-dx, y+sy-dy

	var child uint32
	kids := s.children[dst]
	for i := len(kids) - 1; i >= 0; i-- {
		c := s.windows[kids[i]]
		if c == nil || c.Unmapped {
			continue
		}
		if c.X <= lx && lx < c.X+c.Width && c.Y <= ly && ly < c.Y+c.Height {
			child = c.ID
			break
		}
	}
	return window.Translation{X: lx, Y: ly, Child: child}, nil
}

// CardinalProperty implements window.WindowSystem
func (s *System) CardinalProperty(id uint32, name string) ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	v, ok := w.Cardinals[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, window.ErrNoProperty)
	}
	return v, nil
}

// AtomProperty implements window.WindowSystem
func (s *System) AtomProperty(id uint32, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	v, ok := w.Atoms[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, window.ErrNoProperty)
	}
	return v, nil
}

// TextProperty implements window.WindowSystem
func (s *System) TextProperty(id uint32, name string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	v, ok := w.Texts[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, window.ErrNoProperty)
	}
	return v, nil
}

// ClientList implements window.ClientLister
func (s *System) ClientList() ([]uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.hasClients {
		return nil, fmt.Errorf("_NET_CLIENT_LIST: %w", window.ErrNoProperty)
	}
	return append([]uint32(nil), s.clients...), nil
}

// Pointer implements window.PointerSource
func (s *System) Pointer() (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pointerX, s.pointerY, nil
}
