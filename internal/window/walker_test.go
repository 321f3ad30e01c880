package window_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/captix/internal/window"
	"github.com/bryanchriswhite/captix/internal/window/windowtest"
)

const overlayID = 99

// desk lays out two overlapping top-level windows: 10 below, 20 on top.
func desk() *windowtest.System {
	ws := windowtest.New(1920, 1080)
	ws.Add(windowtest.Window{ID: 10, X: 0, Y: 0, Width: 800, Height: 600})
	ws.SetText(10, "WM_CLASS", "xterm", "XTerm")
	ws.SetText(10, "_NET_WM_NAME", "shell")

	ws.Add(windowtest.Window{ID: 20, X: 400, Y: 300, Width: 800, Height: 600})
	ws.SetText(20, "WM_CLASS", "firefox", "Firefox")
	ws.SetText(20, "WM_NAME", "Mozilla Firefox")
	return ws
}

func newWalker(ws window.WindowSystem) *window.Walker {
	return window.NewDetector(ws, window.Options{MinCaptureSize: -1}).Walker
}

func TestGetWindowAtPosition(t *testing.T) {
	w := newWalker(desk())

	top := w.GetWindowAtPosition(500, 400)
	require.Equal(t, uint32(20), top.ID)
	require.False(t, top.IsRoot)
	require.Equal(t, "Firefox", top.Class)
	require.Equal(t, "Mozilla Firefox", top.Title)
	require.Equal(t, 400, top.X)
	require.Equal(t, 300, top.Y)

	below := w.GetWindowAtPosition(100, 100)
	require.Equal(t, uint32(10), below.ID)
	require.Equal(t, "XTerm", below.Class)
	require.Equal(t, "shell", below.Title)

	empty := w.GetWindowAtPosition(1500, 1000)
	require.True(t, empty.IsRoot)
	require.Equal(t, windowtest.RootID, empty.ID)
	require.Equal(t, 1920, empty.Width)
	require.Equal(t, 1080, empty.Height)
}

func TestGetWindowAtPositionDescendsIntoReparentedClient(t *testing.T) {
	ws := windowtest.New(1920, 1080)
	ws.Add(windowtest.Window{ID: 30, X: 200, Y: 100, Width: 820, Height: 640})
	ws.Add(windowtest.Window{ID: 31, Parent: 30, X: 10, Y: 30, Width: 800, Height: 600})

	info := newWalker(ws).GetWindowAtPosition(300, 200)
	require.Equal(t, uint32(31), info.ID)
	require.Equal(t, 210, info.X)
	require.Equal(t, 130, info.Y)
	require.Equal(t, "Unknown", info.Class)
	require.Equal(t, "Untitled", info.Title)
}

func TestGetWindowAtPositionSkipsInputOnly(t *testing.T) {
	ws := desk()
	ws.Add(windowtest.Window{ID: 40, X: 0, Y: 0, Width: 1920, Height: 1080, InputOnly: true})

	info := newWalker(ws).GetWindowAtPosition(100, 100)
	require.True(t, info.IsRoot)
}

func TestGetWindowAtPositionVanishedWindow(t *testing.T) {
	ws := desk()
	ws.FailGeometry(20)

	info := newWalker(ws).GetWindowAtPosition(500, 400)
	require.True(t, info.IsRoot)
}

func TestGetWindowAtPositionNonCapturableIsDesktop(t *testing.T) {
	ws := desk()
	ws.Add(windowtest.Window{ID: 50, X: 0, Y: 1040, Width: 1920, Height: 40})
	ws.SetAtoms(50, "_NET_WM_WINDOW_TYPE", "_NET_WM_WINDOW_TYPE_DOCK")

	info := newWalker(ws).GetWindowAtPosition(10, 1050)
	require.True(t, info.IsRoot)
}

func TestGetWindowAtPositionExcludingNeverReturnsExcluded(t *testing.T) {
	ws := desk()
	ws.Add(windowtest.Window{ID: overlayID, X: 0, Y: 0, Width: 1920, Height: 1080, OverrideRedirect: true})
	w := newWalker(ws)

	// Plain hit-testing finds the overlay itself.
	require.Equal(t, uint32(overlayID), w.GetWindowAtPosition(500, 400).ID)

	require.Equal(t, uint32(20), w.GetWindowAtPositionExcluding(500, 400, overlayID).ID)
	require.Equal(t, uint32(10), w.GetWindowAtPositionExcluding(100, 100, overlayID).ID)

	info := w.GetWindowAtPositionExcluding(1500, 1000, overlayID)
	require.True(t, info.IsRoot)
	require.NotEqual(t, uint32(overlayID), info.ID)
}

func TestGetWindowAtPositionExcludingSkipsUnmapped(t *testing.T) {
	ws := desk()
	ws.Add(windowtest.Window{ID: 60, X: 0, Y: 0, Width: 1920, Height: 1080, Unmapped: true})
	ws.Add(windowtest.Window{ID: overlayID, X: 0, Y: 0, Width: 1920, Height: 1080})

	info := newWalker(ws).GetWindowAtPositionExcluding(100, 100, overlayID)
	require.Equal(t, uint32(10), info.ID)
}

func TestGetWindowAtPositionExcludingZeroHandle(t *testing.T) {
	w := newWalker(desk())
	require.Equal(t, w.GetWindowAtPosition(500, 400), w.GetWindowAtPositionExcluding(500, 400, 0))
}

func TestStackIsTopToBottom(t *testing.T) {
	ws := desk()
	ws.Add(windowtest.Window{ID: overlayID, Width: 10, Height: 10})

	require.Equal(t, []uint32{overlayID, 20, 10}, newWalker(ws).Stack())
}

func TestGetVisibleWindows(t *testing.T) {
	ws := desk()
	ws.Add(windowtest.Window{ID: 60, Width: 300, Height: 300, Unmapped: true})
	ws.Add(windowtest.Window{ID: 61, Width: 300, Height: 300, InputOnly: true})
	ws.Add(windowtest.Window{ID: 62, Width: 1920, Height: 40})
	ws.SetAtoms(62, "_NET_WM_WINDOW_TYPE", "_NET_WM_WINDOW_TYPE_DOCK")

	visible := newWalker(ws).GetVisibleWindows()
	require.Len(t, visible, 2)
	require.Equal(t, uint32(10), visible[0].ID)
	require.Equal(t, uint32(20), visible[1].ID)
}

func TestListWindowsUsesClientList(t *testing.T) {
	ws := desk()
	w := newWalker(ws)

	require.Len(t, w.ListWindows(), 2)

	ws.SetClientList(20)
	listed := w.ListWindows()
	require.Len(t, listed, 1)
	require.Equal(t, uint32(20), listed[0].ID)
}

func TestWindowAtPointer(t *testing.T) {
	ws := desk()
	ws.SetPointer(50, 50)

	info, err := newWalker(ws).WindowAtPointer()
	require.NoError(t, err)
	require.Equal(t, uint32(10), info.ID)
}

func TestIdentityFallsBackToInstance(t *testing.T) {
	ws := windowtest.New(1920, 1080)
	ws.Add(windowtest.Window{ID: 70, Width: 300, Height: 300})
	ws.SetText(70, "WM_CLASS", "scratchpad")

	info, err := newWalker(ws).Describe(70)
	require.NoError(t, err)
	require.Equal(t, "scratchpad", info.Class)
	require.Equal(t, "Untitled", info.Title)
}

func TestDesktopFallbackSize(t *testing.T) {
	ws := windowtest.New(2560, 1440)
	ws.FailGeometry(windowtest.RootID)

	d := newWalker(ws).Desktop()
	require.True(t, d.IsRoot)
	require.Equal(t, 1920, d.Width)
	require.Equal(t, 1080, d.Height)
	require.Equal(t, "Desktop", d.Title)
}

func TestWindowInfoContains(t *testing.T) {
	info := window.WindowInfo{X: 10, Y: 20, Width: 100, Height: 50}
	require.True(t, info.Contains(10, 20))
	require.True(t, info.Contains(109, 69))
	require.False(t, info.Contains(110, 69))
	require.False(t, info.Contains(109, 70))
	require.False(t, info.Contains(9, 20))
}
