package commands

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bryanchriswhite/captix/internal/capture"
	"github.com/bryanchriswhite/captix/internal/config"
	"github.com/bryanchriswhite/captix/internal/notify"
	"github.com/bryanchriswhite/captix/internal/output"
	"github.com/bryanchriswhite/captix/internal/selection"
	"github.com/bryanchriswhite/captix/internal/window"
)

// display bundles the X11 connection and everything built on it.
type display struct {
	x        *window.X11System
	detector *window.Detector
	server   *capture.XServer
	engine   *capture.Engine
}

func connectDisplay(cfg *config.Config) (*display, error) {
	x, err := window.NewX11System()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to X11: %w", err)
	}

	detector := window.NewDetector(x, window.Options{
		MinCaptureSize:   cfg.Selection.MinCaptureWindowSize,
		SlowQueryWarning: cfg.Selection.SlowQueryWarn(),
	})
	server := capture.NewXServer(x.Conn(), x.Screen())

	return &display{
		x:        x,
		detector: detector,
		server:   server,
		engine:   capture.NewEngine(server, detector),
	}, nil
}

func (d *display) Close() {
	d.x.Close()
}

func newNotifier(cfg *config.Config) *notify.Notifier {
	return notify.New(notify.Options{
		Enabled:      cfg.Notifications.Enabled,
		Sound:        cfg.Notifications.Sound,
		Timeout:      msDuration(cfg.Notifications.TimeoutMs),
		ErrorTimeout: msDuration(cfg.Notifications.ErrorTimeoutMs),
	})
}

func msDuration(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

func newSaver(cfg *config.Config) (*output.Saver, error) {
	return output.NewSaver(output.Options{
		Directory:      config.ExpandHome(cfg.Screenshot.Directory),
		Prefix:         cfg.Screenshot.Prefix,
		MonthlyFolders: cfg.Screenshot.MonthlyFolders,
	})
}

func selectionConfig(cfg *config.Config) selection.Config {
	return selection.Config{
		ClickThreshold: cfg.Selection.ClickThreshold(),
		DragThreshold:  cfg.Selection.DragThresholdPx,
		HoverRequery:   cfg.Selection.HoverRequeryPx,
	}
}

// parseInts splits "a,b,..." into exactly n integers.
func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated values, got %q", n, s)
	}
	vals := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid number %q in %q", p, s)
		}
		vals[i] = v
	}
	return vals, nil
}

// parseArea parses "x,y,w,h".
func parseArea(s string) (image.Rectangle, error) {
	v, err := parseInts(s, 4)
	if err != nil {
		return image.Rectangle{}, err
	}
	if v[2] <= 0 || v[3] <= 0 {
		return image.Rectangle{}, fmt.Errorf("area must have a positive size, got %dx%d", v[2], v[3])
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]), nil
}

// parsePoint parses "x,y".
func parsePoint(s string) (image.Point, error) {
	v, err := parseInts(s, 2)
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(v[0], v[1]), nil
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
