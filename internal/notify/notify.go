// Package notify shows desktop notifications and plays feedback sounds.
package notify

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/godbus/dbus/v5"

	"github.com/bryanchriswhite/captix/internal/logger"
)

const (
	appName = "CaptiX"

	notificationsService   = "org.freedesktop.Notifications"
	notificationsPath      = "/org/freedesktop/Notifications"
	notificationsInterface = "org.freedesktop.Notifications"

	soundDir = "/usr/share/sounds/freedesktop/stereo"
)

// Urgency levels understood by org.freedesktop.Notifications
type Urgency byte

const (
	UrgencyLow Urgency = iota
	UrgencyNormal
	UrgencyCritical
)

func (u Urgency) String() string {
	switch u {
	case UrgencyLow:
		return "low"
	case UrgencyCritical:
		return "critical"
	default:
		return "normal"
	}
}

// Message is one notification.
type Message struct {
	Title   string
	Body    string
	Icon    string
	Urgency Urgency
	Timeout time.Duration
	// OpenOnClick is opened with xdg-open when the notification is clicked
	OpenOnClick string
}

// Options configures a Notifier.
type Options struct {
	Enabled      bool
	Sound        bool
	Timeout      time.Duration
	ErrorTimeout time.Duration
}

// Notifier sends notifications over the session bus, falling back to
// notify-send when the bus is unavailable.
type Notifier struct {
	opts Options

	mu      sync.Mutex
	conn    *dbus.Conn
	dialed  bool
	command func(name string, args ...string) *exec.Cmd
}

// New creates a notifier. The session bus is dialed on first use.
func New(opts Options) *Notifier {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.ErrorTimeout <= 0 {
		opts.ErrorTimeout = 3 * time.Second
	}
	return &Notifier{opts: opts, command: exec.Command}
}

// Close releases the session bus connection.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}

func (n *Notifier) bus() *dbus.Conn {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.dialed {
		n.dialed = true
		conn, err := dbus.ConnectSessionBus()
		if err != nil {
			logger.WithComponent("notify").Debug().Err(err).Msg("Session bus unavailable, using notify-send")
		} else {
			n.conn = conn
		}
	}
	return n.conn
}

// Send shows msg. Failures are returned but callers usually only log them.
func (n *Notifier) Send(msg Message) error {
	if !n.opts.Enabled {
		return nil
	}
	if msg.Timeout <= 0 {
		msg.Timeout = n.opts.Timeout
	}

	if conn := n.bus(); conn != nil {
		if err := n.sendDBus(conn, msg); err == nil {
			return nil
		} else {
			logger.WithComponent("notify").Debug().Err(err).Msg("D-Bus notification failed, using notify-send")
		}
	}
	return n.sendCommand(msg)
}

func (n *Notifier) sendDBus(conn *dbus.Conn, msg Message) error {
	var actions []string
	if msg.OpenOnClick != "" {
		actions = []string{"default", "Open Folder"}
	}
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(byte(msg.Urgency)),
	}

	obj := conn.Object(notificationsService, notificationsPath)
	var id uint32
	err := obj.Call(notificationsInterface+".Notify", 0,
		appName,
		uint32(0),
		msg.Icon,
		msg.Title,
		msg.Body,
		actions,
		hints,
		int32(msg.Timeout.Milliseconds()),
	).Store(&id)
	if err != nil {
		return fmt.Errorf("notify call failed: %w", err)
	}

	if msg.OpenOnClick != "" {
		go n.awaitAction(conn, id, msg.OpenOnClick, msg.Timeout+time.Second)
	}
	return nil
}

// awaitAction opens target if notification id is clicked before wait elapses.
func (n *Notifier) awaitAction(conn *dbus.Conn, id uint32, target string, wait time.Duration) {
	opts := []dbus.MatchOption{
		dbus.WithMatchInterface(notificationsInterface),
		dbus.WithMatchMember("ActionInvoked"),
	}
	if err := conn.AddMatchSignal(opts...); err != nil {
		return
	}
	defer conn.RemoveMatchSignal(opts...)

	signals := make(chan *dbus.Signal, 4)
	conn.Signal(signals)
	defer conn.RemoveSignal(signals)

	deadline := time.After(wait)
	for {
		select {
		case <-deadline:
			return
		case sig := <-signals:
			if sig == nil || len(sig.Body) < 2 {
				continue
			}
			if got, ok := sig.Body[0].(uint32); !ok || got != id {
				continue
			}
			if err := n.command("xdg-open", target).Start(); err != nil {
				logger.WithComponent("notify").Warn().Err(err).Str("target", target).Msg("Failed to open folder")
			}
			return
		}
	}
}

func (n *Notifier) sendCommand(msg Message) error {
	args := []string{
		"-a", appName,
		"-u", msg.Urgency.String(),
		"-t", fmt.Sprint(msg.Timeout.Milliseconds()),
	}
	if msg.Icon != "" {
		args = append(args, "-i", msg.Icon)
	}
	args = append(args, msg.Title, msg.Body)

	if err := n.command("notify-send", args...).Run(); err != nil {
		return fmt.Errorf("notify-send failed: %w", err)
	}
	return nil
}

// Notify shows a plain notification with the default timeout.
func (n *Notifier) Notify(title, body string, urgency Urgency) error {
	msg := Message{Title: title, Body: body, Urgency: urgency}
	if urgency == UrgencyCritical {
		msg.Timeout = n.opts.ErrorTimeout
	}
	return n.Send(msg)
}

// PlaySound plays a freedesktop theme sound without waiting for it.
// canberra-gtk-play is tried when paplay cannot be started.
func (n *Notifier) PlaySound(name string) {
	if !n.opts.Enabled || !n.opts.Sound {
		return
	}
	players := [][]string{
		{"paplay", filepath.Join(soundDir, name+".oga")},
		{"canberra-gtk-play", "-i", name},
	}
	for _, p := range players {
		cmd := n.command(p[0], p[1:]...)
		if err := cmd.Start(); err != nil {
			logger.WithComponent("notify").Debug().Err(err).Str("sound", name).Str("player", p[0]).Msg("Could not play sound")
			continue
		}
		go cmd.Wait()
		return
	}
}

func (n *Notifier) log(err error, what string) {
	if err != nil {
		logger.WithComponent("notify").Warn().Err(err).Msgf("Failed to show %s notification", what)
	}
}

// ScreenshotSaved announces a saved screenshot.
func (n *Notifier) ScreenshotSaved(path string, size int64) {
	n.PlaySound("camera-shutter")
	n.log(n.Send(Message{
		Title:       "Screenshot Saved!",
		Body:        fmt.Sprintf("%s\n%s", humanize.Bytes(uint64(size)), path),
		Icon:        "camera-photo",
		OpenOnClick: filepath.Dir(path),
	}), "screenshot")
}

// RecordingSaved announces a finished recording.
func (n *Notifier) RecordingSaved(path string, size int64, duration time.Duration) {
	n.PlaySound("complete")
	n.log(n.Send(Message{
		Title:       "Recording Saved!",
		Body:        fmt.Sprintf("Duration: %s | %s\n%s", FormatDuration(duration), humanize.Bytes(uint64(size)), path),
		Icon:        "media-record",
		OpenOnClick: filepath.Dir(path),
	}), "recording")
}

// RecordingAborted announces a discarded recording.
func (n *Notifier) RecordingAborted() {
	n.log(n.Send(Message{
		Title:   "Recording Aborted",
		Body:    "Recording was cancelled",
		Icon:    "dialog-warning",
		Timeout: n.opts.ErrorTimeout,
	}), "abort")
}

// Error shows a critical notification.
func (n *Notifier) Error(title, message string) {
	n.log(n.Send(Message{
		Title:   title,
		Body:    message,
		Icon:    "dialog-error",
		Urgency: UrgencyCritical,
		Timeout: n.opts.ErrorTimeout,
	}), "error")
}

// FormatDuration renders m:ss, or h:mm:ss past an hour.
func FormatDuration(d time.Duration) string {
	total := int(d.Round(time.Second).Seconds())
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
