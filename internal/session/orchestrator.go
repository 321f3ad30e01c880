// Package session runs one interactive screenshot: it freezes the desktop,
// pre-captures every capturable window in the background, turns the
// user's gesture into an image and performs the save, clipboard and
// notification side effects.
package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/captix/internal/capture"
	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/output"
	"github.com/bryanchriswhite/captix/internal/paths"
	"github.com/bryanchriswhite/captix/internal/selection"
	"github.com/bryanchriswhite/captix/internal/watchdog"
	"github.com/bryanchriswhite/captix/internal/window"
)

var (
	// ErrCancelled is returned when the user escaped the session.
	ErrCancelled = errors.New("capture cancelled")
	// ErrDegenerateSelection is returned for drags with no area.
	ErrDegenerateSelection = selection.ErrDegenerateSelection
	// ErrNotStarted is returned when a gesture is resolved before Begin.
	ErrNotStarted = errors.New("session not started")
)

// Engine is the part of the capture engine a session uses.
type Engine interface {
	CaptureFullScreen(includeCursor bool) (*image.RGBA, error)
	CaptureWindowPureContent(win uint32, includeCursor bool) (*capture.WindowCapture, error)
	ScreenGeometry() image.Rectangle
}

// Windows lists the windows worth pre-capturing.
type Windows interface {
	CapturableWindows() []window.WindowInfo
}

// Saver writes a screenshot.
type Saver interface {
	Save(img image.Image, kind string) (*output.Result, error)
}

// Notifier shows user feedback.
type Notifier interface {
	ScreenshotSaved(path string, size int64)
	Error(title, message string)
}

// Deps are the collaborators of a session. Clipboard and Notifier may be nil.
type Deps struct {
	Engine    Engine
	Windows   Windows
	Saver     Saver
	Clipboard func(path string) error
	Notifier  Notifier
}

// Options tune a session.
type Options struct {
	IncludeCursor     bool
	CopyToClipboard   bool
	PrecaptureTimeout time.Duration
	// OnTimeout runs after the pre-capture watchdog fired and the user
	// was notified; the command layer uses it to force the process out
	OnTimeout func()
}

// Capture is a resolved gesture ready to be saved.
type Capture struct {
	Image  *image.RGBA
	Kind   string
	Window window.WindowInfo
}

// Orchestrator drives one interactive screenshot session.
type Orchestrator struct {
	deps Deps
	opts Options
	id   string
	log  *zerolog.Logger

	desktop *image.RGBA
	origin  image.Point
	store   *SnapshotStore
	timer   *watchdog.Timer
	cancel  context.CancelFunc

	mu      sync.Mutex
	pending []*output.Result
}

// New creates a session with a fresh id.
func New(deps Deps, opts Options) *Orchestrator {
	if opts.PrecaptureTimeout <= 0 {
		opts.PrecaptureTimeout = watchdog.DefaultPrecaptureTimeout
	}
	id := uuid.NewString()
	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		id:    id,
		log:   logger.WithSession("session", id),
		store: NewSnapshotStore(),
	}
}

// ID returns the session id carried in logs and watchdog arguments.
func (o *Orchestrator) ID() string {
	return o.id
}

// Begin captures the desktop synchronously for immediate display, then
// starts the bounded background pre-capture of every capturable window.
func (o *Orchestrator) Begin(ctx context.Context) (*image.RGBA, error) {
	start := time.Now()
	desktop, err := o.deps.Engine.CaptureFullScreen(o.opts.IncludeCursor)
	if err != nil {
		return nil, fmt.Errorf("failed to capture desktop: %w", err)
	}
	o.desktop = desktop
	o.origin = o.deps.Engine.ScreenGeometry().Min

	o.log.Info().
		Int("width", desktop.Rect.Dx()).
		Int("height", desktop.Rect.Dy()).
		Dur("elapsed", time.Since(start)).
		Msg("Desktop frozen")

	ctx, o.cancel = context.WithCancel(ctx)
	o.timer = watchdog.StartTimer("precapture", o.opts.PrecaptureTimeout, o.onTimeout)
	go o.precapture(ctx)

	return desktop, nil
}

func (o *Orchestrator) onTimeout() {
	if o.deps.Notifier != nil {
		o.deps.Notifier.Error("Thread Timeout",
			fmt.Sprintf("Window capture took longer than %s. Closing CaptiX.", o.opts.PrecaptureTimeout))
	}
	if o.opts.OnTimeout != nil {
		o.opts.OnTimeout()
	}
}

func (o *Orchestrator) precapture(ctx context.Context) {
	defer o.store.Seal()
	defer o.timer.Stop()

	start := time.Now()
	windows := o.deps.Windows.CapturableWindows()

	for _, info := range windows {
		if ctx.Err() != nil {
			o.log.Debug().Msg("Pre-capture abandoned")
			return
		}

		wc, err := o.deps.Engine.CaptureWindowPureContent(info.ID, o.opts.IncludeCursor)
		if err != nil {
			o.log.Debug().Err(err).Uint32("window_id", info.ID).Str("title", info.Title).Msg("Skipping window in pre-capture")
			continue
		}
		if err := o.store.Put(Snapshot{Info: info, Capture: wc}); err != nil {
			return
		}
	}

	o.log.Info().
		Int("windows", len(windows)).
		Int("captured", o.store.Len()).
		Dur("elapsed", time.Since(start)).
		Msg("Window pre-capture complete")
}

// Ready is closed when the pre-capture pass has finished.
func (o *Orchestrator) Ready() <-chan struct{} {
	return o.store.Done()
}

// Snapshots returns the sealed snapshot set, or nil while pre-capture runs.
func (o *Orchestrator) Snapshots() *SnapshotSet {
	return o.store.Set()
}

// Desktop returns the frozen desktop image.
func (o *Orchestrator) Desktop() *image.RGBA {
	return o.desktop
}

// Resolve turns a gesture outcome into an image.
func (o *Orchestrator) Resolve(out selection.Outcome) (*Capture, error) {
	switch out.Kind {
	case selection.KindCancel, selection.KindNone:
		return nil, ErrCancelled
	case selection.KindInvalid:
		return nil, fmt.Errorf("%w: %dx%d", ErrDegenerateSelection, out.Rect.Dx()-1, out.Rect.Dy()-1)
	}

	if o.desktop == nil {
		return nil, ErrNotStarted
	}

	switch out.Kind {
	case selection.KindAreaDrag:
		r := out.Rect.Sub(o.origin)
		img, err := capture.Crop(o.desktop, r.Min.X, r.Min.Y, r.Max.X-1, r.Max.Y-1)
		if err != nil {
			return nil, err
		}
		return &Capture{Image: img, Kind: paths.TypeArea}, nil

	case selection.KindWindowClick:
		return o.windowCapture(out.Window), nil

	default:
		return &Capture{Image: o.desktop, Kind: paths.TypeFull}, nil
	}
}

// windowCapture uses the pre-captured snapshot and falls back to the
// frozen desktop, so the result always shows the moment the session began.
func (o *Orchestrator) windowCapture(info window.WindowInfo) *Capture {
	if snap, ok := o.store.Set().Get(info.ID); ok {
		return &Capture{Image: snap.Capture.Image, Kind: paths.TypeWindow, Window: snap.Info}
	}
	o.log.Warn().
		Uint32("window_id", info.ID).
		Bool("sealed", o.store.Set() != nil).
		Msg("Clicked window has no snapshot, saving desktop instead")
	return &Capture{Image: o.desktop, Kind: paths.TypeFull}
}

// Finish saves c, copies the cache file to the clipboard and notifies.
// Clipboard and notification failures are logged only.
func (o *Orchestrator) Finish(c *Capture) (*output.Result, error) {
	res, err := o.deps.Saver.Save(c.Image, c.Kind)
	if err != nil {
		o.notifyError("Screenshot Failed", err)
		return nil, fmt.Errorf("failed to save screenshot: %w", err)
	}

	o.mu.Lock()
	o.pending = append(o.pending, res)
	o.mu.Unlock()

	if o.opts.CopyToClipboard && o.deps.Clipboard != nil {
		if err := o.deps.Clipboard(res.CachePath); err != nil {
			o.log.Warn().Err(err).Msg("Failed to copy screenshot to clipboard")
		}
	}
	if o.deps.Notifier != nil {
		o.deps.Notifier.ScreenshotSaved(res.Path, res.CacheSize)
	}

	o.log.Info().
		Str("kind", c.Kind).
		Str("path", res.Path).
		Int64("size", res.CacheSize).
		Msg("Screenshot captured")
	return res, nil
}

// Complete resolves and finishes a gesture. Cancellation returns
// ErrCancelled without any side effect; other failures are also shown to
// the user.
func (o *Orchestrator) Complete(out selection.Outcome) (*output.Result, error) {
	c, err := o.Resolve(out)
	switch {
	case errors.Is(err, ErrCancelled):
		o.log.Info().Msg("Session cancelled")
		return nil, err
	case errors.Is(err, ErrDegenerateSelection):
		o.notifyError("Invalid Selection", err)
		return nil, err
	case err != nil:
		o.notifyError("Capture Failed", err)
		return nil, err
	}
	return o.Finish(c)
}

func (o *Orchestrator) notifyError(title string, err error) {
	o.log.Error().Err(err).Msg(title)
	if o.deps.Notifier != nil {
		o.deps.Notifier.Error(title, err.Error())
	}
}

// Wait blocks until every optimized rewrite started by Finish is done.
func (o *Orchestrator) Wait() error {
	o.mu.Lock()
	pending := o.pending
	o.pending = nil
	o.mu.Unlock()

	var errs []error
	for _, r := range pending {
		if err := r.Wait(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops the pre-capture watchdog, abandons a running pre-capture
// pass and drops the snapshots. It does not wait for the pass to return.
func (o *Orchestrator) Close() {
	if o.cancel != nil {
		o.cancel()
	}
	if o.timer != nil {
		o.timer.Stop()
	}
	o.store.Clear()
}
