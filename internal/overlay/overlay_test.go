package overlay

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/captix/internal/selection"
	"github.com/bryanchriswhite/captix/internal/window"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Rect, image.NewUniform(c), image.Point{}, draw.Src)
	return img
}

var white = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// offscreen keeps the guidelines out of the way.
var offscreen = image.Pt(-100, -100)

func TestEncodeRows(t *testing.T) {
	img := solid(3, 2, color.RGBA{R: 10, G: 20, B: 30, A: 255})

	f32 := Format{Depth: 24, BitsPerPixel: 32, ScanlinePad: 32}
	require.Equal(t, 12, f32.Stride(3))
	data, err := EncodeRows(img, f32, 0, 2)
	require.NoError(t, err)
	require.Len(t, data, 24)
	require.Equal(t, []byte{30, 20, 10, 0}, data[:4])

	f24 := Format{Depth: 24, BitsPerPixel: 24, ScanlinePad: 32}
	require.Equal(t, 12, f24.Stride(3))
	data, err = EncodeRows(img, f24, 1, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{30, 20, 10, 30, 20, 10, 30, 20, 10, 0, 0, 0}, data)

	_, err = EncodeRows(img, Format{Depth: 16, BitsPerPixel: 16, ScanlinePad: 32}, 0, 1)
	require.Error(t, err)
}

func TestStripRows(t *testing.T) {
	require.Equal(t, 34, StripRows(1920*4, 65535*4))
	require.Equal(t, 1, StripRows(1920*4, 100))
}

func TestDimensionLabel(t *testing.T) {
	sel := image.Rect(10, 10, 111, 61)
	require.Equal(t, "101 × 51", DimensionText(sel))

	box := LabelRect(image.Rect(0, 0, 200, 100), "200 × 100")
	require.Equal(t, image.Pt(190, 90), box.Max)
	require.Equal(t, 9*7+2*labelPadding, box.Dx())
	require.Equal(t, 13+2*labelPadding, box.Dy())
}

func TestRenderShadesDesktop(t *testing.T) {
	desktop := solid(40, 30, white)
	r := NewRenderer(desktop)

	canvas := r.Render(Scene{Cursor: offscreen})
	require.Equal(t, uint8(127), canvas.RGBAAt(5, 5).R)
	require.Equal(t, uint8(255), desktop.RGBAAt(5, 5).R)
}

func TestRenderLeavesSelectionClear(t *testing.T) {
	r := NewRenderer(solid(40, 30, white))

	canvas := r.Render(Scene{
		Cursor:    image.Pt(19, 19),
		Origin:    image.Pt(10, 10),
		Dragging:  true,
		Selection: image.Rect(10, 10, 20, 20),
	})
	require.Equal(t, white, canvas.RGBAAt(15, 15))
	require.Equal(t, uint8(127), canvas.RGBAAt(2, 25).R)
	// top edge drawn for a downward drag
	require.NotEqual(t, white, canvas.RGBAAt(10, 10))
}

func TestRenderHighlight(t *testing.T) {
	r := NewRenderer(solid(40, 30, white))
	info := window.WindowInfo{ID: 3, X: 5, Y: 5, Width: 10, Height: 10}

	canvas := r.Render(Scene{Cursor: offscreen, Highlight: &info})
	require.Equal(t, uint8(27), canvas.RGBAAt(7, 5).R)
	require.Equal(t, uint8(127), canvas.RGBAAt(9, 9).R)

	preview := solid(10, 10, color.RGBA{R: 255, A: 255})
	canvas = r.Render(Scene{Cursor: offscreen, Highlight: &info, Preview: preview, PreviewAt: info.Rect()})
	require.Equal(t, color.RGBA{R: 255, A: 255}, canvas.RGBAAt(9, 9))

	desktopInfo := window.Desktop(1, 40, 30)
	canvas = r.Render(Scene{Cursor: offscreen, Highlight: &desktopInfo})
	require.Equal(t, uint8(127), canvas.RGBAAt(0, 0).R)
}

func TestMagnifier(t *testing.T) {
	desktop := solid(300, 300, white)
	desktop.SetRGBA(20, 15, color.RGBA{R: 255, A: 255})
	r := NewRenderer(desktop)

	canvas := r.Render(Scene{Cursor: image.Pt(20, 15), Magnifier: true})
	box := MagnifierRect(image.Pt(20, 15), canvas.Rect)
	require.Equal(t, image.Rect(50, 45, 260, 255), box)

	half := MagnifierSource / 2
	center := box.Min.Add(image.Pt(half*MagnifierZoom+5, half*MagnifierZoom+5))
	require.Equal(t, color.RGBA{R: 255, A: 255}, canvas.RGBAAt(center.X, center.Y))
	require.Equal(t, white, canvas.RGBAAt(box.Min.X+5, box.Min.Y+5))
}

func TestMagnifierFlipsAtEdges(t *testing.T) {
	screen := image.Rect(0, 0, 1920, 1080)
	require.Equal(t, image.Rect(1660, 820, 1870, 1030), MagnifierRect(image.Pt(1900, 1060), screen))
}

func TestRendererLayers(t *testing.T) {
	r := NewRenderer(solid(4, 4, white))
	require.Equal(t, []string{"shade", "highlight", "selection", "dimensions", "guides", "magnifier"}, r.Layers())
}

func TestBuildScene(t *testing.T) {
	firefox := window.WindowInfo{ID: 20, X: 100, Y: 100, Width: 200, Height: 100, Class: "firefox"}
	ctrl := selection.NewController(selection.DefaultConfig(), func(x, y int) window.WindowInfo {
		return firefox
	})
	origin := image.Pt(50, 0)

	ctrl.Motion(120, 130)
	s := BuildScene(ctrl, image.Pt(120, 130), image.Point{}, origin, nil, false)
	require.NotNil(t, s.Highlight)
	require.Equal(t, 50, s.Highlight.X)
	require.Equal(t, image.Pt(70, 130), s.Cursor)
	require.Nil(t, s.Preview)

	// Snapshot content sits inside a 2px border and a 20px title bar.
	content := solid(196, 78, white)
	snapshot := func(info window.WindowInfo) (image.Image, image.Rectangle, bool) {
		return content, image.Rect(102, 120, 298, 198), true
	}
	s = BuildScene(ctrl, image.Pt(120, 130), image.Point{}, origin, snapshot, false)
	require.Nil(t, s.Preview)
	require.Equal(t, image.Rect(52, 120, 248, 198), s.Highlight.Rect())

	ctrl.RightRelease()
	s = BuildScene(ctrl, image.Pt(120, 130), image.Point{}, origin, snapshot, false)
	require.Same(t, content, s.Preview)
	require.Equal(t, image.Rect(52, 120, 248, 198), s.PreviewAt)
	require.Equal(t, s.PreviewAt, s.Highlight.Rect())

	now := time.Now()
	ctrl.Press(60, 10, now)
	ctrl.Motion(90, 40)
	s = BuildScene(ctrl, image.Pt(90, 40), image.Pt(60, 10), origin, nil, false)
	require.True(t, s.Dragging)
	require.Nil(t, s.Highlight)
	require.Equal(t, image.Rect(10, 10, 41, 41), s.Selection)
}

type fakeScreen struct {
	mu      sync.Mutex
	frames  int
	onFrame func(n int)
}

func (f *fakeScreen) Present(img *image.RGBA) error {
	f.mu.Lock()
	f.frames++
	n, hook := f.frames, f.onFrame
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (f *fakeScreen) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frames
}

func newLoop(screen Screen) *Loop {
	return &Loop{
		Controller: selection.NewController(selection.DefaultConfig(), func(x, y int) window.WindowInfo {
			return window.Desktop(1, 200, 100)
		}),
		Renderer: NewRenderer(solid(200, 100, white)),
		Screen:   screen,
	}
}

func TestLoopAreaDrag(t *testing.T) {
	screen := &fakeScreen{}
	loop := newLoop(screen)

	t0 := time.Unix(100, 0)
	input := make(chan Input, 8)
	input <- Input{Kind: InputPress, X: 10, Y: 10, Button: 1, Time: t0}
	input <- Input{Kind: InputMotion, X: 60, Y: 50, Time: t0.Add(100 * time.Millisecond)}
	input <- Input{Kind: InputRelease, X: 60, Y: 50, Button: 1, Time: t0.Add(500 * time.Millisecond)}

	out, err := loop.Run(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, selection.KindAreaDrag, out.Kind)
	require.Equal(t, image.Rect(10, 10, 61, 51), out.Rect)
	require.GreaterOrEqual(t, screen.count(), 1)
}

func TestLoopRightClickDoesNotFinish(t *testing.T) {
	loop := newLoop(&fakeScreen{})

	t0 := time.Unix(100, 0)
	input := make(chan Input, 8)
	input <- Input{Kind: InputPress, X: 5, Y: 5, Button: 3, Time: t0}
	input <- Input{Kind: InputRelease, X: 5, Y: 5, Button: 3, Time: t0}
	input <- Input{Kind: InputPress, X: 5, Y: 5, Button: 1, Time: t0}
	input <- Input{Kind: InputRelease, X: 5, Y: 5, Button: 1, Time: t0.Add(50 * time.Millisecond)}

	out, err := loop.Run(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, selection.KindDesktopClick, out.Kind)
	require.True(t, loop.Controller.Preview())
}

func TestLoopBeatsAndEscape(t *testing.T) {
	loop := newLoop(&fakeScreen{})
	input := make(chan Input, 1)
	var beats atomic.Int32
	loop.Beat = func() {
		if beats.Add(1) == 2 {
			input <- Input{Kind: InputEscape}
		}
	}
	loop.BeatInterval = 5 * time.Millisecond

	out, err := loop.Run(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, selection.KindCancel, out.Kind)
	require.GreaterOrEqual(t, beats.Load(), int32(2))
}

func TestLoopContextCancel(t *testing.T) {
	loop := newLoop(&fakeScreen{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := loop.Run(ctx, make(chan Input))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, selection.KindCancel, out.Kind)
}

func TestLoopInputClosed(t *testing.T) {
	loop := newLoop(&fakeScreen{})
	input := make(chan Input)
	close(input)

	out, err := loop.Run(context.Background(), input)
	require.Error(t, err)
	require.Equal(t, selection.KindCancel, out.Kind)
}

func TestLoopRedrawsWhenReady(t *testing.T) {
	input := make(chan Input, 1)
	screen := &fakeScreen{onFrame: func(n int) {
		if n == 2 {
			input <- Input{Kind: InputEscape}
		}
	}}
	loop := newLoop(screen)
	ready := make(chan struct{})
	close(ready)
	loop.Ready = ready
	loop.BeatInterval = time.Hour

	out, err := loop.Run(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, selection.KindCancel, out.Kind)
	require.Equal(t, 2, screen.count())
}
