package window_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/captix/internal/window"
	"github.com/bryanchriswhite/captix/internal/window/windowtest"
)

// reparented builds a frame window at (100, 50) holding a client at (5, 20).
func reparented() *windowtest.System {
	ws := windowtest.New(1920, 1080)
	ws.Add(windowtest.Window{ID: 10, X: 100, Y: 50, Width: 810, Height: 630})
	ws.Add(windowtest.Window{ID: 11, Parent: 10, X: 5, Y: 20, Width: 800, Height: 600})
	return ws
}

func TestAbsoluteCoordinatesWalksParents(t *testing.T) {
	r := window.NewResolver(reparented())

	x, y := r.AbsoluteCoordinates(11)
	require.Equal(t, 105, x)
	require.Equal(t, 70, y)

	x, y = r.AbsoluteCoordinates(10)
	require.Equal(t, 100, x)
	require.Equal(t, 50, y)
}

func TestAbsoluteCoordinatesFallsBackToTranslate(t *testing.T) {
	ws := reparented()
	ws.FailQueryTree(11)

	x, y := window.NewResolver(ws).AbsoluteCoordinates(11)
	require.Equal(t, 105, x)
	require.Equal(t, 70, y)
}

func TestAbsoluteCoordinatesFallsBackToLocalGeometry(t *testing.T) {
	ws := reparented()
	ws.FailQueryTree(11)
	ws.FailTranslate()

	x, y := window.NewResolver(ws).AbsoluteCoordinates(11)
	require.Equal(t, 5, x)
	require.Equal(t, 20, y)
}

func TestAbsoluteCoordinatesNeverFails(t *testing.T) {
	ws := reparented()
	ws.FailGeometry(11)
	ws.FailTranslate()

	x, y := window.NewResolver(ws).AbsoluteCoordinates(11)
	require.Zero(t, x)
	require.Zero(t, y)

	x, y = window.NewResolver(ws).AbsoluteCoordinates(4242)
	require.Zero(t, x)
	require.Zero(t, y)
}

func TestFrameExtentsPrefersClientSideDecoration(t *testing.T) {
	ws := reparented()
	ws.SetCardinal(11, "_GTK_FRAME_EXTENTS", 26, 26, 23, 29)
	ws.SetCardinal(11, "_NET_FRAME_EXTENTS", 1, 1, 30, 1)

	extents, source := window.NewResolver(ws).FrameExtentsWithSource(11)
	require.Equal(t, "_GTK_FRAME_EXTENTS", source)
	require.Equal(t, window.FrameExtents{Left: 26, Right: 26, Top: 23, Bottom: 29}, extents)
}

func TestFrameExtentsWindowManagerTier(t *testing.T) {
	ws := reparented()
	ws.SetCardinal(11, "_NET_FRAME_EXTENTS", 1, 2, 30, 4)

	extents, source := window.NewResolver(ws).FrameExtentsWithSource(11)
	require.Equal(t, "_NET_FRAME_EXTENTS", source)
	require.Equal(t, window.FrameExtents{Left: 1, Right: 2, Top: 30, Bottom: 4}, extents)
}

func TestFrameExtentsShortPropertyIsSkipped(t *testing.T) {
	ws := reparented()
	ws.SetCardinal(11, "_GTK_FRAME_EXTENTS", 10, 10, 10)
	ws.SetCardinal(11, "_NET_FRAME_EXTENTS", 0, 0, 24, 0)

	extents, source := window.NewResolver(ws).FrameExtentsWithSource(11)
	require.Equal(t, "_NET_FRAME_EXTENTS", source)
	require.Equal(t, 24, extents.Top)
}

func TestFrameExtentsHeuristic(t *testing.T) {
	tests := []struct {
		name   string
		x, y   int
		expect window.FrameExtents
	}{
		{name: "negative x is a uniform border", x: -12, y: -30, expect: window.Uniform(12)},
		{name: "negative y alone is a title bar", x: 0, y: -28, expect: window.FrameExtents{Top: 28}},
		{name: "no negative origin", x: 40, y: 40, expect: window.FrameExtents{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := windowtest.New(1920, 1080)
			ws.Add(windowtest.Window{ID: 20, X: tt.x, Y: tt.y, Width: 640, Height: 480})

			extents, source := window.NewResolver(ws).FrameExtentsWithSource(20)
			require.Equal(t, "heuristic", source)
			require.Equal(t, tt.expect, extents)
		})
	}
}

func TestFrameExtentsHeuristicSurvivesGeometryFailure(t *testing.T) {
	ws := reparented()
	ws.FailGeometry(11)

	require.True(t, window.NewResolver(ws).FrameExtents(11).IsZero())
}
