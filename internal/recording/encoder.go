package recording

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// Process is a running encoder. The Recorder is its only user.
type Process interface {
	io.Writer
	// Quit asks an x11grab encoder to finish the file
	Quit() error
	// CloseInput ends a rawvideo stream
	CloseInput() error
	Kill() error
	// Done is closed when the process has exited
	Done() <-chan struct{}
	// ExitErr is the exit status once Done is closed
	ExitErr() error
	// LastError is the last diagnostic line the encoder printed
	LastError() string
	Pid() int
}

// Launcher starts an encoder with the given arguments.
type Launcher func(args []string) (Process, error)

// FFmpeg returns a Launcher for the ffmpeg binary on $PATH.
func FFmpeg() Launcher {
	return func(args []string) (Process, error) {
		return StartEncoder("ffmpeg", args)
	}
}

// Encoder runs an encoder subprocess with its stdin piped and its stderr
// drained for diagnostics.
type Encoder struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu        sync.Mutex
	inClosed  bool
	lastError string
	exitErr   error
	done      chan struct{}
}

// StartEncoder launches binary with args.
func StartEncoder(binary string, args []string) (*Encoder, error) {
	log := logger.WithComponent("encoder")

	cmd := exec.Command(binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stdin pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get stderr pipe: %w", err)
	}

	log.Debug().Str("cmd", binary+" "+strings.Join(args, " ")).Msg("Starting encoder")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", binary, err)
	}

	e := &Encoder{cmd: cmd, stdin: stdin, done: make(chan struct{})}
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		e.drainStderr(stderr)
	}()
	go func() {
		<-drained
		err := cmd.Wait()
		e.mu.Lock()
		e.exitErr = err
		e.mu.Unlock()
		close(e.done)
		log.Debug().Err(err).Int("pid", cmd.Process.Pid).Msg("Encoder exited")
	}()

	log.Info().Int("pid", cmd.Process.Pid).Msg("Encoder started")
	return e, nil
}

// drainStderr keeps the encoder from blocking on a full pipe and remembers
// the last error line.
func (e *Encoder) drainStderr(r io.Reader) {
	log := logger.WithComponent("encoder")
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "Error") || strings.Contains(line, "error") {
			e.mu.Lock()
			e.lastError = line
			e.mu.Unlock()
			log.Warn().Str("ffmpeg", line).Msg("Encoder error")
		} else {
			log.Trace().Str("ffmpeg", line).Msg("Encoder output")
		}
	}
}

// Write sends raw frame data to the encoder.
func (e *Encoder) Write(p []byte) (int, error) {
	return e.stdin.Write(p)
}

// Quit sends ffmpeg's interactive quit command and closes stdin.
func (e *Encoder) Quit() error {
	_, err := io.WriteString(e.stdin, "q")
	return errors.Join(err, e.CloseInput())
}

// CloseInput closes stdin once.
func (e *Encoder) CloseInput() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inClosed {
		return nil
	}
	e.inClosed = true
	return e.stdin.Close()
}

// Kill terminates the encoder immediately.
func (e *Encoder) Kill() error {
	select {
	case <-e.done:
		return nil
	default:
	}
	if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("failed to kill encoder: %w", err)
	}
	return nil
}

// Done is closed when the encoder has exited.
func (e *Encoder) Done() <-chan struct{} {
	return e.done
}

// ExitErr returns the exit status after Done.
func (e *Encoder) ExitErr() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.exitErr
}

// LastError returns the most recent error line from stderr.
func (e *Encoder) LastError() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastError
}

// Pid returns the encoder's process id.
func (e *Encoder) Pid() int {
	return e.cmd.Process.Pid
}
