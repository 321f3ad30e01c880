package session_test

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bryanchriswhite/captix/internal/capture"
	"github.com/bryanchriswhite/captix/internal/output"
	"github.com/bryanchriswhite/captix/internal/paths"
	"github.com/bryanchriswhite/captix/internal/selection"
	"github.com/bryanchriswhite/captix/internal/session"
	"github.com/bryanchriswhite/captix/internal/window"
)

var errGone = errors.New("BadWindow")

type fakeEngine struct {
	mu      sync.Mutex
	screen  image.Rectangle
	windows map[uint32]*capture.WindowCapture
	block   chan struct{}
	calls   map[uint32]int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		screen:  image.Rect(0, 0, 200, 100),
		windows: make(map[uint32]*capture.WindowCapture),
		calls:   make(map[uint32]int),
	}
}

func (f *fakeEngine) CaptureFullScreen(bool) (*image.RGBA, error) {
	img := image.NewRGBA(image.Rect(0, 0, f.screen.Dx(), f.screen.Dy()))
	for y := 0; y < f.screen.Dy(); y++ {
		for x := 0; x < f.screen.Dx(); x++ {
			img.SetRGBA(x, y, color.RGBA{R: uint8(x), G: uint8(y), A: 255})
		}
	}
	return img, nil
}

func (f *fakeEngine) CaptureWindowPureContent(win uint32, _ bool) (*capture.WindowCapture, error) {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[win]++
	wc, ok := f.windows[win]
	if !ok {
		return nil, errGone
	}
	return wc, nil
}

func (f *fakeEngine) ScreenGeometry() image.Rectangle { return f.screen }

func (f *fakeEngine) callCount(win uint32) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[win]
}

type fakeWindows []window.WindowInfo

func (w fakeWindows) CapturableWindows() []window.WindowInfo { return w }

type fakeNotifier struct {
	mu     sync.Mutex
	saved  []string
	errors []string
}

func (n *fakeNotifier) ScreenshotSaved(path string, size int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.saved = append(n.saved, path)
}

func (n *fakeNotifier) Error(title, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, title)
}

func (n *fakeNotifier) errorTitles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.errors...)
}

func solid(w, h int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

var (
	xterm   = window.WindowInfo{ID: 10, X: 0, Y: 0, Width: 100, Height: 80, Class: "XTerm", Title: "shell"}
	firefox = window.WindowInfo{ID: 20, X: 50, Y: 20, Width: 120, Height: 70, Class: "Firefox", Title: "Mozilla Firefox"}
)

type fixture struct {
	engine   *fakeEngine
	notifier *fakeNotifier
	clip     []string
	dir      string
	orch     *session.Orchestrator
}

func setup(t *testing.T, opts session.Options) *fixture {
	t.Helper()
	fx := &fixture{engine: newFakeEngine(), notifier: &fakeNotifier{}, dir: t.TempDir()}
	fx.engine.windows[xterm.ID] = &capture.WindowCapture{Image: solid(100, 80), Strategy: capture.StrategyDirect}
	fx.engine.windows[firefox.ID] = &capture.WindowCapture{Image: solid(110, 60), LeftBorder: 5, TopBorder: 10, Strategy: capture.StrategyDirect}

	saver, err := output.NewSaver(output.Options{
		Directory: filepath.Join(fx.dir, "shots"),
		CachePath: filepath.Join(fx.dir, "cache", "last_screenshot.png"),
	})
	require.NoError(t, err)

	fx.orch = session.New(session.Deps{
		Engine:  fx.engine,
		Windows: fakeWindows{xterm, firefox},
		Saver:   saver,
		Clipboard: func(path string) error {
			fx.clip = append(fx.clip, path)
			return nil
		},
		Notifier: fx.notifier,
	}, opts)
	t.Cleanup(fx.orch.Close)
	return fx
}

func waitReady(t *testing.T, o *session.Orchestrator) {
	t.Helper()
	select {
	case <-o.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("pre-capture did not finish")
	}
}

func TestBeginPrecapturesWindows(t *testing.T) {
	fx := setup(t, session.Options{})
	require.NotEmpty(t, fx.orch.ID())

	desktop, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 200, 100), desktop.Bounds())
	require.Same(t, desktop, fx.orch.Desktop())

	waitReady(t, fx.orch)
	set := fx.orch.Snapshots()
	require.Equal(t, 2, set.Len())

	snap, ok := set.Get(firefox.ID)
	require.True(t, ok)
	require.Equal(t, image.Rect(55, 30, 165, 90), snap.ContentRect())
}

func TestPrecaptureSkipsVanishedWindows(t *testing.T) {
	fx := setup(t, session.Options{})
	delete(fx.engine.windows, xterm.ID)

	_, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)
	waitReady(t, fx.orch)

	set := fx.orch.Snapshots()
	require.Equal(t, 1, set.Len())
	_, ok := set.Get(xterm.ID)
	require.False(t, ok)
}

func TestResolveCancelAndDegenerate(t *testing.T) {
	fx := setup(t, session.Options{})

	_, err := fx.orch.Resolve(selection.Outcome{Kind: selection.KindCancel})
	require.ErrorIs(t, err, session.ErrCancelled)

	_, err = fx.orch.Resolve(selection.Outcome{Kind: selection.KindInvalid, Rect: image.Rect(10, 10, 11, 50)})
	require.ErrorIs(t, err, session.ErrDegenerateSelection)

	_, err = fx.orch.Resolve(selection.Outcome{Kind: selection.KindDesktopClick})
	require.ErrorIs(t, err, session.ErrNotStarted)
}

func TestResolveAreaCropsFrozenDesktop(t *testing.T) {
	fx := setup(t, session.Options{})
	_, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)

	c, err := fx.orch.Resolve(selection.Outcome{Kind: selection.KindAreaDrag, Rect: image.Rect(10, 20, 110, 70)})
	require.NoError(t, err)
	require.Equal(t, paths.TypeArea, c.Kind)
	require.Equal(t, image.Rect(0, 0, 100, 50), c.Image.Bounds())
	require.Equal(t, color.RGBA{R: 10, G: 20, A: 255}, c.Image.RGBAAt(0, 0))
	require.Equal(t, color.RGBA{R: 109, G: 69, A: 255}, c.Image.RGBAAt(99, 49))
}

func TestResolveDesktopClick(t *testing.T) {
	fx := setup(t, session.Options{})
	desktop, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)

	c, err := fx.orch.Resolve(selection.Outcome{Kind: selection.KindDesktopClick})
	require.NoError(t, err)
	require.Equal(t, paths.TypeFull, c.Kind)
	require.Same(t, desktop, c.Image)
}

func TestResolveWindowClickUsesSnapshot(t *testing.T) {
	fx := setup(t, session.Options{})
	_, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)
	waitReady(t, fx.orch)

	c, err := fx.orch.Resolve(selection.Outcome{Kind: selection.KindWindowClick, Window: firefox})
	require.NoError(t, err)
	require.Equal(t, paths.TypeWindow, c.Kind)
	require.Equal(t, image.Rect(0, 0, 110, 60), c.Image.Bounds())
	require.Equal(t, 1, fx.engine.callCount(firefox.ID))
}

func TestResolveWindowClickMissingSnapshotFallsBack(t *testing.T) {
	fx := setup(t, session.Options{})
	_, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)
	waitReady(t, fx.orch)

	other := window.WindowInfo{ID: 30, Width: 300, Height: 300}
	c, err := fx.orch.Resolve(selection.Outcome{Kind: selection.KindWindowClick, Window: other})
	require.NoError(t, err)
	require.Equal(t, paths.TypeFull, c.Kind)
	require.Same(t, fx.orch.Desktop(), c.Image)
}

func TestResolveWindowClickBeforeSealUsesFrozenDesktop(t *testing.T) {
	fx := setup(t, session.Options{})
	fx.engine.block = make(chan struct{})

	_, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)
	require.Nil(t, fx.orch.Snapshots())

	c, err := fx.orch.Resolve(selection.Outcome{Kind: selection.KindWindowClick, Window: xterm})
	require.NoError(t, err)
	require.Equal(t, paths.TypeFull, c.Kind)
	require.Same(t, fx.orch.Desktop(), c.Image)

	close(fx.engine.block)
	waitReady(t, fx.orch)
	// only the pre-capture pass touched the window
	require.Equal(t, 1, fx.engine.callCount(xterm.ID))
}

func TestCompleteRunsSideEffects(t *testing.T) {
	fx := setup(t, session.Options{CopyToClipboard: true})
	_, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)

	res, err := fx.orch.Complete(selection.Outcome{Kind: selection.KindAreaDrag, Rect: image.Rect(0, 0, 50, 50)})
	require.NoError(t, err)
	require.NoError(t, fx.orch.Wait())

	require.Equal(t, []string{res.CachePath}, fx.clip)
	require.Equal(t, []string{res.Path}, fx.notifier.saved)
	require.Contains(t, filepath.Base(res.Path), "_area.png")

	_, err = os.Stat(res.Path)
	require.NoError(t, err)
	_, err = os.Stat(res.CachePath)
	require.NoError(t, err)
}

func TestCompleteCancelHasNoSideEffects(t *testing.T) {
	fx := setup(t, session.Options{CopyToClipboard: true})
	_, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)

	_, err = fx.orch.Complete(selection.Outcome{Kind: selection.KindCancel})
	require.ErrorIs(t, err, session.ErrCancelled)
	require.Empty(t, fx.clip)
	require.Empty(t, fx.notifier.saved)
	require.Empty(t, fx.notifier.errorTitles())
}

func TestCompleteDegenerateNotifies(t *testing.T) {
	fx := setup(t, session.Options{})
	_, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)

	_, err = fx.orch.Complete(selection.Outcome{Kind: selection.KindInvalid, Rect: image.Rect(5, 5, 6, 40)})
	require.ErrorIs(t, err, session.ErrDegenerateSelection)
	require.Equal(t, []string{"Invalid Selection"}, fx.notifier.errorTitles())
}

func TestPrecaptureTimeoutFiresHook(t *testing.T) {
	fired := make(chan struct{})
	fx := setup(t, session.Options{
		PrecaptureTimeout: 20 * time.Millisecond,
		OnTimeout:         func() { close(fired) },
	})
	fx.engine.block = make(chan struct{})
	defer close(fx.engine.block)

	_, err := fx.orch.Begin(context.Background())
	require.NoError(t, err)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timeout hook did not run")
	}
	require.Equal(t, []string{"Thread Timeout"}, fx.notifier.errorTitles())
}

func TestSnapshotStoreSeal(t *testing.T) {
	store := session.NewSnapshotStore()
	require.Nil(t, store.Set())

	wc := &capture.WindowCapture{Image: solid(10, 10)}
	require.NoError(t, store.Put(session.Snapshot{Info: xterm, Capture: wc}))
	require.NoError(t, store.Put(session.Snapshot{Info: firefox, Capture: wc}))
	require.NoError(t, store.Put(session.Snapshot{Info: xterm, Capture: wc}))
	require.Equal(t, 2, store.Len())

	set := store.Seal()
	require.Same(t, set, store.Seal())
	require.Same(t, set, store.Set())

	select {
	case <-store.Done():
	default:
		t.Fatal("Done not closed after Seal")
	}

	require.ErrorIs(t, store.Put(session.Snapshot{Info: window.WindowInfo{ID: 99}, Capture: wc}), session.ErrSealed)
	require.Equal(t, 2, set.Len())
	_, ok := set.Get(firefox.ID)
	require.True(t, ok)

	store.Clear()
	require.Zero(t, store.Len())
}

func TestNilSnapshotSet(t *testing.T) {
	var set *session.SnapshotSet
	require.Zero(t, set.Len())
	_, ok := set.Get(1)
	require.False(t, ok)
}
