// Package clipboard copies saved screenshots to the X11 clipboard via xclip.
package clipboard

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// ErrUnavailable is returned when xclip is not installed.
var ErrUnavailable = errors.New("xclip not available")

// graceWait is how long CopyImage waits for xclip. xclip forks to serve the
// selection, so a process still running after this is treated as success.
const graceWait = time.Second

// Copier runs xclip. The zero value is not usable; use New.
type Copier struct {
	command  func(name string, args ...string) *exec.Cmd
	lookPath func(file string) (string, error)
	wait     time.Duration
}

// New returns a Copier using the real xclip binary.
func New() *Copier {
	return &Copier{command: exec.Command, lookPath: exec.LookPath, wait: graceWait}
}

// Available reports whether xclip is on $PATH.
func (c *Copier) Available() bool {
	_, err := c.lookPath("xclip")
	return err == nil
}

// CopyImage places the PNG at path on the clipboard selection.
func (c *Copier) CopyImage(path string) error {
	log := logger.WithComponent("clipboard")

	if !c.Available() {
		return ErrUnavailable
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("screenshot file not found: %w", err)
	}

	cmd := c.command("xclip", "-selection", "clipboard", "-t", "image/png", "-i", path)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start xclip: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		if err != nil {
			// xclip often exits non-zero after the selection was taken.
			log.Warn().Err(err).Str("path", path).Msg("xclip exited with an error, clipboard may still hold the image")
			return nil
		}
		log.Info().Str("path", path).Msg("Image copied to clipboard")
	case <-time.After(c.wait):
		log.Info().Str("path", path).Msg("xclip still serving selection, assuming copy succeeded")
	}
	return nil
}

var defaultCopier = New()

// CopyImage copies path using the default Copier.
func CopyImage(path string) error { return defaultCopier.CopyImage(path) }

// Available reports whether the default Copier can run.
func Available() bool { return defaultCopier.Available() }
