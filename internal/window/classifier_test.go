package window_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/captix/internal/window"
	"github.com/bryanchriswhite/captix/internal/window/windowtest"
)

func TestIsCapturable(t *testing.T) {
	ws := windowtest.New(1920, 1080)
	for id := uint32(10); id <= 15; id++ {
		ws.Add(windowtest.Window{ID: id, Width: 400, Height: 400})
	}
	ws.SetAtoms(11, "_NET_WM_WINDOW_TYPE", "_NET_WM_WINDOW_TYPE_NORMAL")
	ws.SetAtoms(12, "_NET_WM_WINDOW_TYPE", "_NET_WM_WINDOW_TYPE_DOCK")
	ws.SetAtoms(13, "_NET_WM_WINDOW_TYPE", "_NET_WM_WINDOW_TYPE_SPLASH")
	ws.SetAtoms(14, "_NET_WM_WINDOW_TYPE", "_KDE_NET_WM_WINDOW_TYPE_OVERRIDE")
	ws.SetAtoms(15, "_NET_WM_WINDOW_TYPE", "_NET_WM_WINDOW_TYPE_DESKTOP")

	c := window.NewClassifier(ws, -1)
	require.True(t, c.IsCapturable(10), "no type hint")
	require.True(t, c.IsCapturable(11))
	require.False(t, c.IsCapturable(12))
	require.False(t, c.IsCapturable(13))
	require.True(t, c.IsCapturable(14), "unrecognized hint")
	require.False(t, c.IsCapturable(15))
}

func TestIsMinimized(t *testing.T) {
	ws := windowtest.New(1920, 1080)
	for id := uint32(10); id <= 13; id++ {
		ws.Add(windowtest.Window{ID: id, Width: 400, Height: 400})
	}
	ws.SetAtoms(11, "_NET_WM_STATE", "_NET_WM_STATE_MAXIMIZED_VERT", "_NET_WM_STATE_HIDDEN")
	ws.SetCardinal(12, "WM_STATE", 3, 0)
	ws.SetCardinal(13, "WM_STATE", 1, 0)

	c := window.NewClassifier(ws, -1)
	require.False(t, c.IsMinimized(10))
	require.True(t, c.IsMinimized(11))
	require.True(t, c.IsMinimized(12))
	require.False(t, c.IsMinimized(13))
}

func TestFilterWindowsForCapture(t *testing.T) {
	ws := windowtest.New(1920, 1080)
	ws.SetCardinal(windowtest.RootID, "_NET_CURRENT_DESKTOP", 1)

	add := func(id uint32, w, h int) window.WindowInfo {
		ws.Add(windowtest.Window{ID: id, Width: w, Height: h})
		return window.WindowInfo{ID: id, Width: w, Height: h, Title: "w"}
	}

	current := add(10, 800, 600)
	ws.SetCardinal(10, "_NET_WM_DESKTOP", 1)
	other := add(11, 800, 600)
	ws.SetCardinal(11, "_NET_WM_DESKTOP", 0)
	sticky := add(12, 800, 600)
	ws.SetCardinal(12, "_NET_WM_DESKTOP", window.StickyWorkspace)
	untagged := add(13, 800, 600)
	small := add(14, 150, 600)
	hidden := add(15, 800, 600)
	ws.SetAtoms(15, "_NET_WM_STATE", "_NET_WM_STATE_HIDDEN")
	iconic := add(16, 800, 600)
	ws.SetCardinal(16, "WM_STATE", 3)
	degenerate := add(17, 1, 1)
	desktop := window.Desktop(windowtest.RootID, 1920, 1080)

	c := window.NewClassifier(ws, -1)
	got := c.FilterWindowsForCapture([]window.WindowInfo{
		desktop, current, other, sticky, untagged, small, hidden, iconic, degenerate,
	})

	require.Equal(t, []window.WindowInfo{current, sticky, untagged}, got)
}

func TestFilterWindowsUnknownWorkspaceKeepsAll(t *testing.T) {
	ws := windowtest.New(1920, 1080)
	ws.Add(windowtest.Window{ID: 10, Width: 800, Height: 600})
	ws.SetCardinal(10, "_NET_WM_DESKTOP", 4)

	c := window.NewClassifier(ws, -1)
	got := c.FilterWindowsForCapture([]window.WindowInfo{{ID: 10, Width: 800, Height: 600}})
	require.Len(t, got, 1)
}

func TestFilterWindowsConfigurableMinimum(t *testing.T) {
	ws := windowtest.New(1920, 1080)
	ws.Add(windowtest.Window{ID: 10, Width: 120, Height: 90})
	windows := []window.WindowInfo{{ID: 10, Width: 120, Height: 90}}

	require.Empty(t, window.NewClassifier(ws, -1).FilterWindowsForCapture(windows))
	require.Len(t, window.NewClassifier(ws, 50).FilterWindowsForCapture(windows), 1)
}

func TestDetectorCapturableWindows(t *testing.T) {
	ws := desk()
	ws.Add(windowtest.Window{ID: 80, X: 10, Y: 10, Width: 100, Height: 100})

	d := window.NewDetector(ws, window.Options{MinCaptureSize: -1})
	got := d.CapturableWindows()
	require.Len(t, got, 2)
	require.Equal(t, uint32(10), got[0].ID)
	require.Equal(t, uint32(20), got[1].ID)
}
