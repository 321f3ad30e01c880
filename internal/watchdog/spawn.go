package watchdog

import (
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// Command returns the arguments that re-execute the running binary as an
// external watchdog for pid.
func Command(pid int, heartbeatPath string, timeout time.Duration, sessionID string) []string {
	args := []string{
		"watchdog",
		"--pid", strconv.Itoa(pid),
		"--heartbeat", heartbeatPath,
		"--timeout", strconv.Itoa(int(timeout.Seconds())),
	}
	if sessionID != "" {
		args = append(args, "--session", sessionID)
	}
	return args
}

// Spawn starts the external watchdog in its own process group so it
// survives a hung session and is not killed along with it.
func Spawn(pid int, heartbeatPath string, timeout time.Duration, sessionID string) (*os.Process, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to locate executable: %w", err)
	}

	cmd := exec.Command(exe, Command(pid, heartbeatPath, timeout, sessionID)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start watchdog: %w", err)
	}

	// Reap the child whenever it exits so it never lingers as a zombie.
	go cmd.Wait()

	logger.WithComponent("watchdog").Debug().
		Int("watchdog_pid", cmd.Process.Pid).
		Int("pid", pid).
		Str("session", sessionID).
		Msg("Spawned external watchdog")

	return cmd.Process, nil
}
