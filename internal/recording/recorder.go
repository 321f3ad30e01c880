// Package recording records the screen, an area or a single window to a
// Matroska file through an external encoder.
package recording

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/paths"
	"github.com/bryanchriswhite/captix/internal/window"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the
	// recorder's current state.
	ErrInvalidState = errors.New("invalid recording state")
	// ErrInvalidArea is returned for rectangles with no recordable area.
	ErrInvalidArea = errors.New("invalid recording area")
	// ErrStopTimeout is returned when the encoder had to be killed on stop.
	ErrStopTimeout = errors.New("encoder did not stop in time")
)

const (
	DefaultStopTimeout = 10 * time.Second
	abortWait          = 2 * time.Second
	loopJoinWait       = 2 * time.Second
)

// State of a Recorder.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateStopping
	StateStopped
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON status payloads.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateError; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown recording state %q", text)
}

// FrameSource provides composited window frames for tracking mode.
type FrameSource interface {
	Redirect(win uint32) error
	Unredirect(win uint32)
	CompositeFrame(win uint32, width, height int) ([]byte, error)
}

// Options configure a Recorder.
type Options struct {
	FPS     int
	Preset  string
	CRF     int
	Display string
	// Audio are the encoder audio input arguments
	Audio []string
	// Screen bounds recorded areas; empty disables clipping
	Screen image.Rectangle
	Launch Launcher
	// Frames is required for window tracking
	Frames FrameSource
}

// Result describes a finished recording.
type Result struct {
	Path     string        `json:"path"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration"`
}

// Status is a point-in-time view for status displays.
type Status struct {
	State     State           `json:"state"`
	Mode      string          `json:"mode,omitempty"`
	Path      string          `json:"path,omitempty"`
	Area      image.Rectangle `json:"area"`
	Duration  time.Duration   `json:"duration"`
	Size      int64           `json:"size"`
	HumanSize string          `json:"human_size"`
	Error     string          `json:"error,omitempty"`
}

// Recorder is the recording state machine. It owns the encoder process;
// nothing else signals it.
type Recorder struct {
	opts Options

	mu       sync.Mutex
	state    State
	mode     string
	proc     Process
	output   string
	area     image.Rectangle
	started  time.Time
	aborted  bool
	lastErr  string
	tracked  uint32
	stopLoop chan struct{}
	loopDone chan struct{}

	stopOnce  sync.Once
	stopAsked chan struct{}
}

// New creates an idle recorder.
func New(opts Options) *Recorder {
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.Launch == nil {
		opts.Launch = FFmpeg()
	}
	return &Recorder{opts: opts, stopAsked: make(chan struct{})}
}

// State returns the current state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// prepareArea validates, clips and evens out a rectangle.
func (r *Recorder) prepareArea(x, y, width, height int) (image.Rectangle, error) {
	if width <= 0 || height <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d", ErrInvalidArea, width, height)
	}
	rect := image.Rect(x, y, x+width, y+height)
	if !r.opts.Screen.Empty() {
		rect = rect.Intersect(r.opts.Screen)
	}
	rect.Max.X -= rect.Dx() % 2
	rect.Max.Y -= rect.Dy() % 2
	if rect.Dx() < 2 || rect.Dy() < 2 {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d at %d,%d is off screen", ErrInvalidArea, width, height, x, y)
	}
	return rect, nil
}

// StartArea records a fixed screen rectangle.
func (r *Recorder) StartArea(x, y, width, height int, output string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, r.state)
	}
	rect, err := r.prepareArea(x, y, width, height)
	if err != nil {
		return err
	}

	args := AreaArgs(r.params(rect, output))
	return r.launch(args, rect, output, paths.TypeArea)
}

// StartFullscreen records the whole screen.
func (r *Recorder) StartFullscreen(output string) error {
	s := r.opts.Screen
	if s.Empty() {
		return fmt.Errorf("%w: screen geometry unknown", ErrInvalidArea)
	}
	if err := r.StartArea(s.Min.X, s.Min.Y, s.Dx(), s.Dy(), output); err != nil {
		return err
	}
	r.mu.Lock()
	r.mode = paths.TypeFull
	r.mu.Unlock()
	return nil
}

// StartWindow records the window's current on-screen rectangle. The
// rectangle does not follow the window if it moves.
func (r *Recorder) StartWindow(info window.WindowInfo, output string) error {
	if err := r.StartArea(info.X, info.Y, info.Width, info.Height, output); err != nil {
		return err
	}
	r.mu.Lock()
	r.mode = paths.TypeWindow
	r.mu.Unlock()
	return nil
}

// StartWindowTracking records a window's composited buffer wherever the
// window goes, feeding frames to the encoder's stdin.
func (r *Recorder) StartWindowTracking(info window.WindowInfo, output string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateIdle {
		return fmt.Errorf("%w: cannot start while %s", ErrInvalidState, r.state)
	}
	if r.opts.Frames == nil {
		return fmt.Errorf("%w: window tracking needs a frame source", ErrInvalidState)
	}
	if info.Width <= 0 || info.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidArea, info.Width, info.Height)
	}
	w, h := info.Width-info.Width%2, info.Height-info.Height%2
	if w < 2 || h < 2 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidArea, info.Width, info.Height)
	}

	if err := r.opts.Frames.Redirect(info.ID); err != nil {
		return fmt.Errorf("failed to redirect window: %w", err)
	}

	rect := image.Rect(0, 0, w, h)
	args := RawVideoArgs(r.params(rect, output))
	if err := r.launch(args, rect, output, paths.TypeWindow); err != nil {
		r.opts.Frames.Unredirect(info.ID)
		return err
	}

	r.tracked = info.ID
	r.stopLoop = make(chan struct{})
	r.loopDone = make(chan struct{})
	go r.frameLoop(r.proc, info.ID, w, h, r.stopLoop, r.loopDone)
	return nil
}

func (r *Recorder) params(rect image.Rectangle, output string) Params {
	return Params{
		Display: r.opts.Display,
		X:       rect.Min.X,
		Y:       rect.Min.Y,
		Width:   rect.Dx(),
		Height:  rect.Dy(),
		FPS:     r.opts.FPS,
		Preset:  r.opts.Preset,
		CRF:     r.opts.CRF,
		Audio:   r.opts.Audio,
		Output:  output,
	}
}

// launch starts the encoder. Callers hold r.mu.
func (r *Recorder) launch(args []string, rect image.Rectangle, output, mode string) error {
	log := logger.WithComponent("recording")

	if err := paths.EnsureParent(output); err != nil {
		r.state = StateError
		r.lastErr = err.Error()
		return err
	}

	proc, err := r.opts.Launch(args)
	if err != nil {
		r.state = StateError
		r.lastErr = err.Error()
		log.Error().Err(err).Msg("Failed to launch encoder")
		return fmt.Errorf("failed to launch encoder: %w", err)
	}

	r.proc = proc
	r.output = output
	r.area = rect
	r.mode = mode
	r.started = time.Now()
	r.state = StateRecording
	go r.watch(proc)

	log.Info().
		Int("x", rect.Min.X).
		Int("y", rect.Min.Y).
		Int("width", rect.Dx()).
		Int("height", rect.Dy()).
		Int("fps", r.opts.FPS).
		Str("output", output).
		Msg("Recording started")
	return nil
}

// watch moves the recorder to Error if the encoder dies while recording.
func (r *Recorder) watch(proc Process) {
	<-proc.Done()

	r.mu.Lock()
	if r.proc != proc || r.state != StateRecording {
		r.mu.Unlock()
		return
	}

	r.state = StateError
	r.lastErr = proc.LastError()
	if r.lastErr == "" {
		if err := proc.ExitErr(); err != nil {
			r.lastErr = err.Error()
		} else {
			r.lastErr = "encoder exited unexpectedly"
		}
	}
	r.stopFrameLoop()
	msg := r.lastErr
	r.mu.Unlock()

	r.waitFrameLoop()
	r.releaseWindow()
	logger.WithComponent("recording").Error().Str("error", msg).Msg("Encoder exited during recording")
}

// frameLoop writes one frame per interval until stopped or the encoder
// input closes. Failed captures become blank frames to keep timing.
func (r *Recorder) frameLoop(proc Process, win uint32, width, height int, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	fps := r.opts.FPS
	log := logger.WithComponent("recording")
	sampled := log.Sample(&zerolog.BurstSampler{Burst: 1, Period: 5 * time.Second})

	blank := make([]byte, width*height*3)
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	log.Info().Int("fps", fps).Uint32("window_id", win).Msg("Frame capture loop started")
	last := time.Now()
	frames := 0

	for {
		frame, err := r.opts.Frames.CompositeFrame(win, width, height)
		if err != nil || len(frame) != len(blank) {
			sampled.Warn().Err(err).Msg("Frame capture failed, writing blank frame")
			frame = blank
		}
		if _, err := proc.Write(frame); err != nil {
			log.Warn().Err(err).Msg("Encoder input closed, stopping frame loop")
			return
		}
		frames++

		select {
		case <-stop:
			log.Info().Int("frames", frames).Msg("Frame capture loop ended")
			return
		case <-ticker.C:
		}

		now := time.Now()
		if actual := float64(time.Second) / float64(now.Sub(last)); actual < float64(fps)*0.8 {
			sampled.Warn().Float64("fps", actual).Int("target", fps).Msg("Frame capture slow")
		}
		last = now
	}
}

// stopFrameLoop signals the tracking loop. Callers hold r.mu.
func (r *Recorder) stopFrameLoop() {
	if r.stopLoop != nil {
		close(r.stopLoop)
		r.stopLoop = nil
	}
}

func (r *Recorder) waitFrameLoop() {
	r.mu.Lock()
	done := r.loopDone
	r.mu.Unlock()
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(loopJoinWait):
		logger.WithComponent("recording").Warn().Msg("Frame loop did not stop in time")
	}
}

func (r *Recorder) releaseWindow() {
	r.mu.Lock()
	win := r.tracked
	r.tracked = 0
	r.mu.Unlock()
	if win != 0 {
		r.opts.Frames.Unredirect(win)
	}
}

// RequestStop asks whoever owns the recording loop to call Stop. It does
// not block on the encoder.
func (r *Recorder) RequestStop() error {
	if r.State() != StateRecording {
		return fmt.Errorf("%w: not recording", ErrInvalidState)
	}
	r.stopOnce.Do(func() { close(r.stopAsked) })
	return nil
}

// StopRequested is closed after RequestStop.
func (r *Recorder) StopRequested() <-chan struct{} {
	return r.stopAsked
}

// Stop finishes the recording. Outside Recording it does nothing and
// returns a nil result. If the encoder does not exit within timeout it is
// killed, the partial file is deleted and ErrStopTimeout is returned.
func (r *Recorder) Stop(timeout time.Duration) (*Result, error) {
	log := logger.WithComponent("recording")
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}

	r.mu.Lock()
	if r.state != StateRecording {
		log.Warn().Str("state", r.state.String()).Msg("Stop ignored, not recording")
		r.mu.Unlock()
		return nil, nil
	}
	r.state = StateStopping
	proc, tracking := r.proc, r.loopDone != nil
	r.stopFrameLoop()
	r.mu.Unlock()

	var err error
	if tracking {
		r.waitFrameLoop()
		err = proc.CloseInput()
	} else {
		err = proc.Quit()
	}
	if err != nil {
		log.Debug().Err(err).Msg("Graceful stop signal failed")
	}

	select {
	case <-proc.Done():
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("Encoder did not stop gracefully, killing")
		r.Abort()
		return nil, ErrStopTimeout
	}

	r.releaseWindow()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.aborted {
		return nil, nil
	}

	res := &Result{
		Path:     r.output,
		Size:     fileSize(r.output),
		Duration: time.Since(r.started),
	}
	r.state = StateStopped

	log.Info().
		Str("path", res.Path).
		Str("size", humanize.Bytes(uint64(res.Size))).
		Dur("duration", res.Duration).
		Msg("Recording stopped")
	return res, nil
}

// Abort kills the encoder and deletes the output file. It is valid while
// Recording or Stopping.
func (r *Recorder) Abort() error {
	log := logger.WithComponent("recording")

	r.mu.Lock()
	if r.state != StateRecording && r.state != StateStopping {
		state := r.state
		r.mu.Unlock()
		return fmt.Errorf("%w: cannot abort while %s", ErrInvalidState, state)
	}
	r.aborted = true
	r.state = StateStopping
	proc, output := r.proc, r.output
	r.stopFrameLoop()
	r.mu.Unlock()

	if err := proc.Kill(); err != nil {
		log.Error().Err(err).Msg("Failed to kill encoder")
	}
	select {
	case <-proc.Done():
	case <-time.After(abortWait):
		log.Warn().Msg("Encoder still running after kill")
	}
	r.waitFrameLoop()
	r.releaseWindow()

	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Str("path", output).Msg("Failed to delete recording")
	} else {
		log.Info().Str("path", output).Msg("Recording discarded")
	}

	r.mu.Lock()
	r.state = StateStopped
	r.mu.Unlock()
	return nil
}

// Duration is the time since the recording started, zero unless recording.
func (r *Recorder) Duration() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRecording {
		return 0
	}
	return time.Since(r.started)
}

// FileSize is the current size of the output file.
func (r *Recorder) FileSize() int64 {
	r.mu.Lock()
	output := r.output
	r.mu.Unlock()
	return fileSize(output)
}

// Status returns a snapshot for status displays.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	s := Status{
		State: r.state,
		Mode:  r.mode,
		Path:  r.output,
		Area:  r.area,
		Error: r.lastErr,
	}
	if r.state == StateRecording {
		s.Duration = time.Since(r.started)
	}
	r.mu.Unlock()

	s.Size = fileSize(s.Path)
	s.HumanSize = humanize.Bytes(uint64(s.Size))
	return s
}

func fileSize(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
