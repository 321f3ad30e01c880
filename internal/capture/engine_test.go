package capture_test

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/captix/internal/capture"
	"github.com/bryanchriswhite/captix/internal/window"
	"github.com/bryanchriswhite/captix/internal/window/windowtest"
)

var errBadMatch = errors.New("BadMatch")

type read struct {
	drawable   uint32
	x, y, w, h int
}

// fakeSource serves images whose pixel at (col,row) has blue = x+col and
// green = y+row, so tests can tell which rectangle was read.
type fakeSource struct {
	mu          sync.Mutex
	screen      image.Rectangle
	depth       uint8
	depths      map[uint32]uint8
	fail        map[uint32]bool
	cursor      *capture.CursorImage
	reads       []read
	cursorCalls int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		screen: image.Rect(0, 0, 1920, 1080),
		depth:  24,
		depths: make(map[uint32]uint8),
		fail:   make(map[uint32]bool),
	}
}

func (f *fakeSource) Root() uint32 { return windowtest.RootID }

func (f *fakeSource) GetImage(drawable uint32, x, y, w, h int) (capture.RawImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads = append(f.reads, read{drawable: drawable, x: x, y: y, w: w, h: h})
	if f.fail[drawable] {
		return capture.RawImage{}, errBadMatch
	}

	depth := f.depth
	if d, ok := f.depths[drawable]; ok {
		depth = d
	}
	bpp := 4
	if depth == 16 {
		bpp = 2
	}
	data := make([]byte, w*h*bpp)
	if bpp == 4 {
		for row := 0; row < h; row++ {
			for col := 0; col < w; col++ {
				i := (row*w + col) * 4
				data[i+0] = byte(x + col)
				data[i+1] = byte(y + row)
				data[i+3] = 0xff
			}
		}
	}
	return capture.RawImage{Data: data, Width: w, Height: h, Depth: depth}, nil
}

func (f *fakeSource) Cursor() (*capture.CursorImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursorCalls++
	if f.cursor == nil {
		return nil, capture.ErrNoCursor
	}
	return f.cursor, nil
}

func (f *fakeSource) ScreenGeometry() image.Rectangle { return f.screen }

func (f *fakeSource) Capabilities() capture.Capabilities {
	return capture.Capabilities{Composite: true, XFixes: f.cursor != nil, RandR: true}
}

func (f *fakeSource) lastRead() read {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[len(f.reads)-1]
}

var red = color.RGBA{R: 0xff, A: 0xff}

// redCursor is a 2×2 opaque red cursor whose hotspot sits at (x, y).
func redCursor(x, y int) *capture.CursorImage {
	return &capture.CursorImage{
		X: x, Y: y, Width: 2, Height: 2,
		Pixels: []uint32{0xffff0000, 0xffff0000, 0xffff0000, 0xffff0000},
	}
}

const winID = 10

// setup places an 800×600 window at (100, 50).
func setup() (*fakeSource, *windowtest.System, *capture.Engine) {
	ws := windowtest.New(1920, 1080)
	ws.Add(windowtest.Window{ID: winID, X: 100, Y: 50, Width: 800, Height: 600})

	src := newFakeSource()
	engine := capture.NewEngine(src, window.NewDetector(ws, window.Options{MinCaptureSize: -1}))
	return src, ws, engine
}

func TestCaptureWindowExcludesBorders(t *testing.T) {
	src, ws, engine := setup()
	ws.SetCardinal(winID, "_GTK_FRAME_EXTENTS", 10, 10, 5, 15)

	wc, err := engine.CaptureWindowPureContent(winID, false)
	require.NoError(t, err)
	require.Equal(t, capture.StrategyDirect, wc.Strategy)
	require.Equal(t, 10, wc.LeftBorder)
	require.Equal(t, 5, wc.TopBorder)
	require.Equal(t, 780, wc.Image.Bounds().Dx())
	require.Equal(t, 580, wc.Image.Bounds().Dy())

	require.Equal(t, read{drawable: winID, x: 10, y: 5, w: 780, h: 580}, src.lastRead())
	require.Equal(t, uint8(10), wc.Image.RGBAAt(0, 0).B)
	require.Equal(t, uint8(5), wc.Image.RGBAAt(0, 0).G)

	info := window.WindowInfo{X: 100, Y: 50, Width: 800, Height: 600}
	require.Equal(t, image.Rect(110, 55, 890, 635), wc.ContentRect(info))
}

func TestCaptureWindowDegenerateExtentsUseFullBounds(t *testing.T) {
	src, ws, engine := setup()
	ws.SetCardinal(winID, "_NET_FRAME_EXTENTS", 500, 400, 0, 0)

	wc, err := engine.CaptureWindowPureContent(winID, false)
	require.NoError(t, err)
	require.Zero(t, wc.LeftBorder)
	require.Zero(t, wc.TopBorder)
	require.Equal(t, image.Rect(0, 0, 800, 600), wc.Image.Bounds())
	require.Equal(t, read{drawable: winID, x: 0, y: 0, w: 800, h: 600}, src.lastRead())
}

func TestCaptureWindowFallsBackToArea(t *testing.T) {
	src, ws, engine := setup()
	ws.SetCardinal(winID, "_GTK_FRAME_EXTENTS", 10, 10, 5, 15)
	src.fail[winID] = true

	wc, err := engine.CaptureWindowPureContent(winID, false)
	require.NoError(t, err)
	require.Equal(t, capture.StrategyArea, wc.Strategy)
	require.Zero(t, wc.LeftBorder)
	require.Zero(t, wc.TopBorder)
	require.Equal(t, image.Rect(0, 0, 800, 600), wc.Image.Bounds())
	require.Equal(t, read{drawable: windowtest.RootID, x: 100, y: 50, w: 800, h: 600}, src.lastRead())
}

func TestCaptureWindowBothStrategiesFail(t *testing.T) {
	src, _, engine := setup()
	src.fail[winID] = true
	src.fail[windowtest.RootID] = true

	_, err := engine.CaptureWindowPureContent(winID, false)
	require.ErrorIs(t, err, capture.ErrCaptureFailed)
}

func TestCaptureWindowDirect16Bit(t *testing.T) {
	src, _, engine := setup()
	src.depths[winID] = 16

	wc, err := engine.CaptureWindowPureContent(winID, false)
	require.NoError(t, err)
	require.Equal(t, capture.StrategyDirect, wc.Strategy)
}

func TestCaptureWindowUnknownWindow(t *testing.T) {
	_, _, engine := setup()

	_, err := engine.CaptureWindowPureContent(4242, false)
	require.ErrorIs(t, err, capture.ErrCaptureFailed)
}

func TestCaptureAreaRejectsUnsupportedDepth(t *testing.T) {
	src, _, engine := setup()
	src.depth = 16

	_, err := engine.CaptureArea(0, 0, 10, 10, false)
	require.ErrorIs(t, err, capture.ErrUnsupportedDepth)

	src.depth = 8
	_, err = engine.CaptureArea(0, 0, 10, 10, false)
	require.ErrorIs(t, err, capture.ErrUnsupportedDepth)
}

func TestCaptureAreaRejectsEmptyArea(t *testing.T) {
	_, _, engine := setup()

	_, err := engine.CaptureArea(0, 0, 0, 10, false)
	require.ErrorIs(t, err, capture.ErrCaptureFailed)
}

func TestCaptureAreaCursor(t *testing.T) {
	src, _, engine := setup()
	src.cursor = redCursor(230, 140)

	img, err := engine.CaptureArea(200, 100, 100, 100, true)
	require.NoError(t, err)
	require.Equal(t, red, img.RGBAAt(30, 40))
	require.Equal(t, red, img.RGBAAt(31, 41))
	require.NotEqual(t, red, img.RGBAAt(32, 42))

	calls := src.cursorCalls
	_, err = engine.CaptureArea(200, 100, 100, 100, false)
	require.NoError(t, err)
	require.Equal(t, calls, src.cursorCalls, "cursor fetched without being requested")
}

func TestCaptureAreaCursorHotspot(t *testing.T) {
	src, _, engine := setup()
	cur := redCursor(230, 140)
	cur.XHot, cur.YHot = 1, 1
	src.cursor = cur

	img, err := engine.CaptureArea(200, 100, 100, 100, true)
	require.NoError(t, err)
	require.Equal(t, red, img.RGBAAt(29, 39))
	require.NotEqual(t, red, img.RGBAAt(31, 41))
}

func TestCaptureAreaCursorOutsideIsSkipped(t *testing.T) {
	src, _, engine := setup()
	src.cursor = redCursor(10, 10)

	img, err := engine.CaptureArea(200, 100, 100, 100, true)
	require.NoError(t, err)
	require.NotEqual(t, red, img.RGBAAt(0, 0))
}

func TestCaptureAreaWithoutCursorExtension(t *testing.T) {
	_, _, engine := setup()

	img, err := engine.CaptureArea(0, 0, 10, 10, true)
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())
}

func TestCaptureWindowCursorUsesContentOrigin(t *testing.T) {
	src, ws, engine := setup()
	ws.SetCardinal(winID, "_GTK_FRAME_EXTENTS", 10, 10, 5, 15)
	// window at (100,50), content at (110,55)
	src.cursor = redCursor(130, 85)

	wc, err := engine.CaptureWindowPureContent(winID, true)
	require.NoError(t, err)
	require.Equal(t, red, wc.Image.RGBAAt(20, 30))

	src.fail[winID] = true
	wc, err = engine.CaptureWindowPureContent(winID, true)
	require.NoError(t, err)
	require.Equal(t, capture.StrategyArea, wc.Strategy)
	require.Equal(t, red, wc.Image.RGBAAt(30, 35))
}

func TestCaptureWindowAtPosition(t *testing.T) {
	_, _, engine := setup()

	wc, info, err := engine.CaptureWindowAtPosition(150, 100, false)
	require.NoError(t, err)
	require.Equal(t, uint32(winID), info.ID)
	require.Equal(t, capture.StrategyDirect, wc.Strategy)

	wc, info, err = engine.CaptureWindowAtPosition(1500, 1000, false)
	require.NoError(t, err)
	require.True(t, info.IsRoot)
	require.Equal(t, capture.StrategyFull, wc.Strategy)
	require.Equal(t, image.Rect(0, 0, 1920, 1080), wc.Image.Bounds())
}

func TestCompositeCursorPartialOverlap(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))

	require.True(t, capture.CompositeCursor(img, redCursor(9, 9), 0, 0))
	require.Equal(t, red, img.RGBAAt(9, 9))

	require.False(t, capture.CompositeCursor(img, redCursor(-2, -2), 0, 0))
	require.False(t, capture.CompositeCursor(img, nil, 0, 0))
}
