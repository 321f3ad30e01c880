package window

import (
	"github.com/bryanchriswhite/captix/internal/logger"
)

// DefaultMinCaptureSize is the smallest width/height pre-captured for highlighting.
const DefaultMinCaptureSize = 200

// iconicState is the ICCCM WM_STATE value for a minimized window.
const iconicState = 3

var nonCapturableTypes = map[string]bool{
	"_NET_WM_WINDOW_TYPE_DESKTOP": true,
	"_NET_WM_WINDOW_TYPE_DOCK":    true,
	"_NET_WM_WINDOW_TYPE_TOOLBAR": true,
	"_NET_WM_WINDOW_TYPE_MENU":    true,
	"_NET_WM_WINDOW_TYPE_SPLASH":  true,
}

var hiddenStates = map[string]bool{
	"_NET_WM_STATE_HIDDEN":    true,
	"_NET_WM_STATE_MINIMIZED": true,
}

// Classifier decides which windows are real content windows.
type Classifier struct {
	ws      WindowSystem
	minSize int
}

// NewClassifier creates a classifier. A negative minSize selects DefaultMinCaptureSize.
func NewClassifier(ws WindowSystem, minSize int) *Classifier {
	if minSize < 0 {
		minSize = DefaultMinCaptureSize
	}
	return &Classifier{ws: ws, minSize: minSize}
}

// IsCapturable rejects desktop, dock, toolbar, menu and splash windows.
// Windows without a type hint are capturable.
func (c *Classifier) IsCapturable(win uint32) bool {
	types, err := c.ws.AtomProperty(win, "_NET_WM_WINDOW_TYPE")
	if err != nil {
		return true
	}
	for _, t := range types {
		if nonCapturableTypes[t] {
			logger.WithComponent("classifier").Debug().
				Uint32("window_id", win).
				Str("type", t).
				Msg("Window has non-capturable type")
			return false
		}
	}
	return true
}

// CurrentWorkspace returns _NET_CURRENT_DESKTOP from the root window.
func (c *Classifier) CurrentWorkspace() (uint32, bool) {
	values, err := c.ws.CardinalProperty(c.ws.Root(), "_NET_CURRENT_DESKTOP")
	if err != nil || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

// Workspace returns the window's _NET_WM_DESKTOP tag.
func (c *Classifier) Workspace(win uint32) (uint32, bool) {
	values, err := c.ws.CardinalProperty(win, "_NET_WM_DESKTOP")
	if err != nil || len(values) == 0 {
		return 0, false
	}
	return values[0], true
}

// IsMinimized checks _NET_WM_STATE for hidden/minimized, then the ICCCM
// WM_STATE iconic flag.
func (c *Classifier) IsMinimized(win uint32) bool {
	if states, err := c.ws.AtomProperty(win, "_NET_WM_STATE"); err == nil {
		for _, s := range states {
			if hiddenStates[s] {
				return true
			}
		}
	}

	if values, err := c.ws.CardinalProperty(win, "WM_STATE"); err == nil && len(values) > 0 {
		if values[0] == iconicState {
			return true
		}
	}
	return false
}

// IsTooSmall reports whether either dimension is below the minimum capture size.
func (c *Classifier) IsTooSmall(info WindowInfo) bool {
	return info.Width < c.minSize || info.Height < c.minSize
}

// onWorkspace keeps untagged windows, sticky windows and windows on the
// current workspace. When the current workspace is unknown every window passes.
func (c *Classifier) onWorkspace(win uint32, current uint32, haveCurrent bool) bool {
	if !haveCurrent {
		return true
	}
	ws, ok := c.Workspace(win)
	if !ok {
		return true
	}
	return ws == current || ws == StickyWorkspace
}

// FilterWindowsForCapture keeps the windows worth pre-capturing for
// flicker-free highlighting: not the desktop, not too small, not
// degenerate, not minimized and on the current workspace.
func (c *Classifier) FilterWindowsForCapture(windows []WindowInfo) []WindowInfo {
	log := logger.WithComponent("classifier")
	current, haveCurrent := c.CurrentWorkspace()

	filtered := make([]WindowInfo, 0, len(windows))
	for _, w := range windows {
		switch {
		case w.IsRoot:
			continue
		case w.Width <= 1 || w.Height <= 1:
			log.Debug().Str("title", w.Title).Int("width", w.Width).Int("height", w.Height).Msg("Skipping degenerate window")
			continue
		case c.IsTooSmall(w):
			continue
		case c.IsMinimized(w.ID):
			log.Debug().Str("title", w.Title).Msg("Skipping minimized window")
			continue
		case !c.onWorkspace(w.ID, current, haveCurrent):
			log.Debug().Str("title", w.Title).Uint32("current", current).Msg("Skipping window on another workspace")
			continue
		}
		filtered = append(filtered, w)
	}

	log.Info().
		Int("kept", len(filtered)).
		Int("total", len(windows)).
		Bool("workspace_known", haveCurrent).
		Msg("Filtered windows for capture")
	return filtered
}
