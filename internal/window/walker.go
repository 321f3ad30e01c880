package window

import (
	"fmt"
	"time"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// DefaultSlowQueryWarning is the hit-test latency above which a warning is logged.
const DefaultSlowQueryWarning = 50 * time.Millisecond

// Walker enumerates windows in Z-order and performs hit tests.
type Walker struct {
	ws         WindowSystem
	resolver   *Resolver
	classifier *Classifier
	slowWarn   time.Duration
}

// NewWalker creates a stack walker.
func NewWalker(ws WindowSystem, resolver *Resolver, classifier *Classifier) *Walker {
	return &Walker{
		ws:         ws,
		resolver:   resolver,
		classifier: classifier,
		slowWarn:   DefaultSlowQueryWarning,
	}
}

// SetSlowQueryWarning overrides the latency warning threshold.
func (w *Walker) SetSlowQueryWarning(d time.Duration) {
	if d > 0 {
		w.slowWarn = d
	}
}

// Desktop returns the desktop pseudo-window sized to the root geometry.
func (w *Walker) Desktop() WindowInfo {
	root := w.ws.Root()
	geom, err := w.ws.Geometry(root)
	if err != nil {
		logger.WithComponent("walker").Warn().Err(err).Msg("Failed to read root geometry, using fallback size")
		return Desktop(root, 0, 0)
	}
	return Desktop(root, geom.Width, geom.Height)
}

// Describe resolves a full WindowInfo for win. Windows whose type is not
// capturable are described as the desktop.
func (w *Walker) Describe(win uint32) (WindowInfo, error) {
	geom, err := w.ws.Geometry(win)
	if err != nil {
		return WindowInfo{}, fmt.Errorf("failed to get geometry of 0x%x: %w", win, err)
	}

	if !w.classifier.IsCapturable(win) {
		return w.Desktop(), nil
	}

	x, y := w.resolver.AbsoluteCoordinates(win)
	class, title := w.identity(win)

	return WindowInfo{
		ID:     win,
		X:      x,
		Y:      y,
		Width:  geom.Width,
		Height: geom.Height,
		Class:  class,
		Title:  title,
	}, nil
}

// identity returns WM_CLASS's class part and the best available title.
func (w *Walker) identity(win uint32) (string, string) {
	if src, ok := w.ws.(IdentitySource); ok {
		return src.Identity(win)
	}

	class := "Unknown"
	if parts, err := w.ws.TextProperty(win, "WM_CLASS"); err == nil {
		switch {
		case len(parts) >= 2 && parts[1] != "":
			class = parts[1]
		case len(parts) >= 1 && parts[0] != "":
			class = parts[0]
		}
	}

	title := "Untitled"
	for _, prop := range []string{"_NET_WM_NAME", "WM_NAME"} {
		if parts, err := w.ws.TextProperty(win, prop); err == nil && len(parts) > 0 && parts[0] != "" {
			title = parts[0]
			break
		}
	}
	return class, title
}

// GetWindowAtPosition descends from the root through the topmost viewable
// InputOutput child containing the point. Ending at the root yields the
// desktop pseudo-window.
func (w *Walker) GetWindowAtPosition(x, y int) WindowInfo {
	start := time.Now()
	defer w.checkLatency("get_window_at_position", x, y, start)

	root := w.ws.Root()
	current := root

	for depth := 0; depth < maxTreeDepth; depth++ {
		t, err := w.ws.TranslateCoordinates(root, current, x, y)
		if err != nil || t.Child == 0 {
			break
		}
		attrs, err := w.ws.Attributes(t.Child)
		if err != nil || !attrs.Drawable() {
			break
		}
		current = t.Child
	}

	if current == root {
		return w.Desktop()
	}

	info, err := w.Describe(current)
	if err != nil {
		logger.WithComponent("walker").Debug().Err(err).Msg("Hit window vanished, treating as desktop")
		return w.Desktop()
	}
	return info
}

// GetWindowAtPositionExcluding walks the root's children top-to-bottom,
// skips exclude, and returns the first drawable window whose absolute
// bounds contain the point. It never returns the excluded window.
func (w *Walker) GetWindowAtPositionExcluding(x, y int, exclude uint32) WindowInfo {
	if exclude == 0 {
		return w.GetWindowAtPosition(x, y)
	}

	start := time.Now()
	defer w.checkLatency("get_window_at_position_excluding", x, y, start)

	log := logger.WithComponent("walker")
	for _, win := range w.Stack() {
		if win == exclude {
			continue
		}
		if !w.containsPoint(win, x, y) {
			continue
		}
		info, err := w.Describe(win)
		if err != nil {
			log.Debug().Err(err).Uint32("window_id", win).Msg("Skipping window that failed to describe")
			continue
		}
		return info
	}
	return w.Desktop()
}

// Stack returns the root's children in top-to-bottom Z-order.
func (w *Walker) Stack() []uint32 {
	tree, err := w.ws.QueryTree(w.ws.Root())
	if err != nil {
		logger.WithComponent("walker").Error().Err(err).Msg("Failed to query window stack")
		return nil
	}

	stack := make([]uint32, len(tree.Children))
	for i, child := range tree.Children {
		stack[len(tree.Children)-1-i] = child
	}
	return stack
}

func (w *Walker) containsPoint(win uint32, x, y int) bool {
	attrs, err := w.ws.Attributes(win)
	if err != nil || !attrs.Drawable() {
		return false
	}
	geom, err := w.ws.Geometry(win)
	if err != nil {
		return false
	}
	wx, wy := w.resolver.AbsoluteCoordinates(win)
	return wx <= x && x < wx+geom.Width && wy <= y && y < wy+geom.Height
}

// GetVisibleWindows returns every viewable, capturable, direct child of root
// in bottom-to-top order.
func (w *Walker) GetVisibleWindows() []WindowInfo {
	root := w.ws.Root()
	tree, err := w.ws.QueryTree(root)
	if err != nil {
		logger.WithComponent("walker").Error().Err(err).Msg("Failed to get visible windows")
		return nil
	}

	windows := make([]WindowInfo, 0, len(tree.Children))
	for _, child := range tree.Children {
		if child == root {
			continue
		}
		attrs, err := w.ws.Attributes(child)
		if err != nil || !attrs.Drawable() {
			continue
		}
		info, err := w.Describe(child)
		if err != nil || info.IsRoot {
			continue
		}
		windows = append(windows, info)
	}
	return windows
}

// ListWindows returns managed client windows when the window manager
// publishes a client list, otherwise the visible root children.
func (w *Walker) ListWindows() []WindowInfo {
	lister, ok := w.ws.(ClientLister)
	if !ok {
		return w.GetVisibleWindows()
	}

	clients, err := lister.ClientList()
	if err != nil || len(clients) == 0 {
		logger.WithComponent("walker").Debug().Err(err).Msg("Client list unavailable, falling back to QueryTree")
		return w.GetVisibleWindows()
	}

	windows := make([]WindowInfo, 0, len(clients))
	for _, win := range clients {
		info, err := w.Describe(win)
		if err != nil || info.IsRoot {
			continue
		}
		windows = append(windows, info)
	}
	return windows
}

// WindowAtPointer hit-tests the current pointer position.
func (w *Walker) WindowAtPointer() (WindowInfo, error) {
	src, ok := w.ws.(PointerSource)
	if !ok {
		return WindowInfo{}, fmt.Errorf("window system cannot report the pointer position")
	}
	x, y, err := src.Pointer()
	if err != nil {
		return WindowInfo{}, fmt.Errorf("failed to query pointer: %w", err)
	}
	return w.GetWindowAtPosition(x, y), nil
}

func (w *Walker) checkLatency(op string, x, y int, start time.Time) {
	elapsed := time.Since(start)
	log := logger.WithComponent("walker")
	switch {
	case elapsed > w.slowWarn:
		log.Warn().Str("op", op).Int("x", x).Int("y", y).Dur("elapsed", elapsed).Msg("Window detection is slow, event loop may stall")
	case elapsed > w.slowWarn/2:
		log.Debug().Str("op", op).Int("x", x).Int("y", y).Dur("elapsed", elapsed).Msg("Window detection latency")
	}
}
