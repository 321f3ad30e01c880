package watchdog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"golang.org/x/sys/unix"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// Defaults for the external watchdog
const (
	DefaultCheckInterval    = time.Second
	DefaultHeartbeatTimeout = 5 * time.Second
)

// Verdict is the outcome of one watchdog check.
type Verdict int

const (
	// VerdictHealthy means keep watching
	VerdictHealthy Verdict = iota
	// VerdictProcessGone means the session exited on its own
	VerdictProcessGone
	// VerdictHeartbeatGone means the session removed its heartbeat on shutdown
	VerdictHeartbeatGone
	// VerdictKilled means the heartbeat went stale and the session was killed
	VerdictKilled
)

func (v Verdict) String() string {
	switch v {
	case VerdictHealthy:
		return "healthy"
	case VerdictProcessGone:
		return "process-gone"
	case VerdictHeartbeatGone:
		return "heartbeat-gone"
	case VerdictKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Monitor watches one session process through its heartbeat file.
type Monitor struct {
	PID           int
	HeartbeatPath string
	Timeout       time.Duration
	CheckInterval time.Duration

	// Alive reports whether pid still exists
	Alive func(pid int) bool
	// Kill terminates pid
	Kill func(pid int) error
	// Notify shows a critical user notification before the kill
	Notify func(title, body string)
	// Now is the clock used for staleness
	Now func() time.Time

	killed bool
}

// NewMonitor creates a monitor with the real process checks.
func NewMonitor(pid int, heartbeatPath string, timeout time.Duration) *Monitor {
	if timeout <= 0 {
		timeout = DefaultHeartbeatTimeout
	}
	return &Monitor{
		PID:           pid,
		HeartbeatPath: heartbeatPath,
		Timeout:       timeout,
		CheckInterval: DefaultCheckInterval,
		Alive:         ProcessAlive,
		Kill:          KillProcess,
		Now:           time.Now,
	}
}

// Check inspects the session once. After a kill every further check
// reports VerdictKilled without signalling again.
func (m *Monitor) Check() Verdict {
	if m.killed {
		return VerdictKilled
	}

	log := logger.WithComponent("watchdog")

	if !m.Alive(m.PID) {
		log.Debug().Int("pid", m.PID).Msg("Monitored process exited")
		return VerdictProcessGone
	}

	info, err := os.Stat(m.HeartbeatPath)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("path", m.HeartbeatPath).Msg("Heartbeat removed, session ended cleanly")
		return VerdictHeartbeatGone
	}
	if err != nil {
		log.Warn().Err(err).Str("path", m.HeartbeatPath).Msg("Cannot stat heartbeat")
		return VerdictHealthy
	}

	age := m.Now().Sub(info.ModTime())
	if age <= m.Timeout {
		return VerdictHealthy
	}

	log.Error().
		Int("pid", m.PID).
		Dur("age", age).
		Dur("timeout", m.Timeout).
		Msg("Heartbeat stale, killing hung session")

	if m.Notify != nil {
		m.Notify("CaptiX Frozen", fmt.Sprintf("Session was unresponsive for %ds and has been terminated", int(age.Seconds())))
	}

	m.killed = true
	if err := m.Kill(m.PID); err != nil {
		log.Error().Err(err).Int("pid", m.PID).Msg("Failed to kill session")
	}
	if err := os.Remove(m.HeartbeatPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debug().Err(err).Msg("Failed to remove stale heartbeat")
	}
	return VerdictKilled
}

// Run checks every CheckInterval until the session ends, is killed or ctx
// is cancelled.
func (m *Monitor) Run(ctx context.Context) Verdict {
	interval := m.CheckInterval
	if interval <= 0 {
		interval = DefaultCheckInterval
	}

	logger.WithComponent("watchdog").Info().
		Int("pid", m.PID).
		Str("heartbeat", m.HeartbeatPath).
		Dur("timeout", m.Timeout).
		Msg("Watchdog started")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if v := m.Check(); v != VerdictHealthy {
			return v
		}
		select {
		case <-ctx.Done():
			return VerdictHealthy
		case <-ticker.C:
		}
	}
}

// ProcessAlive reports whether pid exists.
func ProcessAlive(pid int) bool {
	exists, err := process.PidExists(int32(pid))
	if err == nil {
		return exists
	}
	return unix.Kill(pid, 0) == nil
}

// KillProcess sends SIGKILL to pid.
func KillProcess(pid int) error {
	return unix.Kill(pid, unix.SIGKILL)
}
