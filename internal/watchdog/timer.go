package watchdog

import (
	"sync"
	"time"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// DefaultPrecaptureTimeout bounds the background window pre-capture pass.
const DefaultPrecaptureTimeout = 5 * time.Second

// Timer is the in-process watchdog. If it is not stopped before the
// deadline, onExpire runs exactly once on the timer's goroutine.
type Timer struct {
	name string

	mu      sync.Mutex
	timer   *time.Timer
	fired   bool
	stopped bool
}

// StartTimer arms a timer named for logging.
func StartTimer(name string, d time.Duration, onExpire func()) *Timer {
	if d <= 0 {
		d = DefaultPrecaptureTimeout
	}
	t := &Timer{name: name}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.timer = time.AfterFunc(d, func() {
		t.mu.Lock()
		if t.stopped {
			t.mu.Unlock()
			return
		}
		t.fired = true
		t.mu.Unlock()

		logger.WithComponent("watchdog").Error().
			Str("timer", name).
			Dur("timeout", d).
			Msg("Operation timed out")
		if onExpire != nil {
			onExpire()
		}
	})
	return t
}

// Stop disarms the timer. It reports false if the timer already fired.
func (t *Timer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.fired {
		return false
	}
	t.stopped = true
	t.timer.Stop()
	return true
}

// Fired reports whether the timer expired.
func (t *Timer) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
