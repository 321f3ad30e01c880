// Package watchdog keeps an interactive session from hanging forever: the
// session writes a heartbeat file, a separate process kills the session
// when the heartbeat goes stale, and an in-process timer bounds the
// pre-capture pass.
package watchdog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// DefaultHeartbeatInterval is how often the heartbeat file is rewritten.
const DefaultHeartbeatInterval = time.Second

// Heartbeat periodically rewrites a file with the current unix time.
type Heartbeat struct {
	path     string
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHeartbeat creates a heartbeat writer for path.
func NewHeartbeat(path string, interval time.Duration) *Heartbeat {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Heartbeat{path: path, interval: interval}
}

// Path returns the heartbeat file path.
func (h *Heartbeat) Path() string {
	return h.path
}

// Beat writes the heartbeat once.
func (h *Heartbeat) Beat() error {
	stamp := strconv.FormatInt(time.Now().Unix(), 10)
	if err := os.WriteFile(h.path, []byte(stamp), 0600); err != nil {
		return fmt.Errorf("failed to write heartbeat: %w", err)
	}
	return nil
}

// Start writes the first beat synchronously, then keeps beating until
// ctx is cancelled or Stop is called.
func (h *Heartbeat) Start(ctx context.Context) error {
	if err := h.Beat(); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	h.cancel = cancel
	h.done = make(chan struct{})

	go func() {
		defer close(h.done)
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := h.Beat(); err != nil {
					logger.WithComponent("heartbeat").Warn().Err(err).Str("path", h.path).Msg("Heartbeat write failed")
				}
			}
		}
	}()

	logger.WithComponent("heartbeat").Debug().
		Str("path", h.path).
		Dur("interval", h.interval).
		Msg("Heartbeat started")
	return nil
}

// Stop ends the beat loop and removes the file, which tells the external
// watchdog the session ended cleanly.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if err := os.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithComponent("heartbeat").Debug().Err(err).Msg("Failed to remove heartbeat file")
	}
}
