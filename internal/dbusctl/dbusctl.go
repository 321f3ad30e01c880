// Package dbusctl owns the session bus names CaptiX uses to keep a single
// interactive session and to stop a running recording from another process.
package dbusctl

import (
	"errors"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/captix/internal/logger"
)

const (
	RecordingService   = "org.captix.VideoRecording"
	RecordingPath      = dbus.ObjectPath("/org/captix/VideoRecording")
	RecordingInterface = "org.captix.VideoRecording"

	// ScreenshotService guards the interactive screenshot overlay
	ScreenshotService = "org.captix.ScreenshotUI"
)

// ErrAlreadyRunning is returned when another process owns the name.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Claim is an owned bus name. Release gives it up.
type Claim struct {
	name string
	conn *dbus.Conn
	once sync.Once
}

// Acquire requests name without queueing behind an existing owner.
func Acquire(name string) (*Claim, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to request name %s: %w", name, err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyRunning, name)
	}

	logger.WithComponent("dbusctl").Debug().Str("name", name).Msg("Acquired bus name")
	return &Claim{name: name, conn: conn}, nil
}

// Release drops the name and closes the connection. Safe to call twice.
func (c *Claim) Release() {
	if c == nil {
		return
	}
	c.once.Do(func() {
		if _, err := c.conn.ReleaseName(c.name); err != nil {
			logger.WithComponent("dbusctl").Debug().Err(err).Str("name", c.name).Msg("Failed to release bus name")
		}
		c.conn.Close()
	})
}

// Stopper is what the recording service controls.
type Stopper interface {
	// RequestStop asks the recording to finish; it must not block on the encoder
	RequestStop() error
}

// recordingObject is exported at RecordingPath.
type recordingObject struct {
	stopper Stopper
}

func (o *recordingObject) StopRecording() (bool, *dbus.Error) {
	logger.WithComponent("dbusctl").Info().Msg("Stop recording requested over D-Bus")
	if err := o.stopper.RequestStop(); err != nil {
		logger.WithComponent("dbusctl").Error().Err(err).Msg("Stop request failed")
		return false, nil
	}
	return true, nil
}

// IsRecording is always true: the object only exists while recording.
func (o *recordingObject) IsRecording() (bool, *dbus.Error) {
	return true, nil
}

// RecordingServer is the exported control object plus its bus name.
type RecordingServer struct {
	claim *Claim
}

// Serve claims RecordingService and exports the control object. It fails
// with ErrAlreadyRunning while another recording is active.
func Serve(stopper Stopper) (*RecordingServer, error) {
	claim, err := Acquire(RecordingService)
	if err != nil {
		return nil, err
	}
	if err := claim.conn.Export(&recordingObject{stopper: stopper}, RecordingPath, RecordingInterface); err != nil {
		claim.Release()
		return nil, fmt.Errorf("failed to export recording object: %w", err)
	}
	logger.WithComponent("dbusctl").Info().Str("service", RecordingService).Msg("Recording control registered")
	return &RecordingServer{claim: claim}, nil
}

// Close unexports the object and releases the name.
func (s *RecordingServer) Close() {
	if s == nil || s.claim == nil {
		return
	}
	s.claim.conn.Export(nil, RecordingPath, RecordingInterface)
	s.claim.Release()
}

// IsActive reports whether some process owns name.
func IsActive(name string) (bool, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return false, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var owned bool
	err = conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, name).Store(&owned)
	if err != nil {
		return false, fmt.Errorf("NameHasOwner %s: %w", name, err)
	}
	return owned, nil
}

// IsRecording reports whether a recording currently owns the control name.
func IsRecording() (bool, error) {
	return IsActive(RecordingService)
}

// StopRecording asks the running recording to stop. It returns false when
// no recording is active.
func StopRecording() (bool, error) {
	active, err := IsRecording()
	if err != nil || !active {
		return false, err
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return false, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	var ok bool
	err = conn.Object(RecordingService, RecordingPath).
		Call(RecordingInterface+".StopRecording", 0).
		Store(&ok)
	if err != nil {
		return false, fmt.Errorf("StopRecording call failed: %w", err)
	}
	return ok, nil
}
