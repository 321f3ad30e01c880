package commands

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/captix/internal/clipboard"
	"github.com/bryanchriswhite/captix/internal/dbusctl"
	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/overlay"
	"github.com/bryanchriswhite/captix/internal/paths"
	"github.com/bryanchriswhite/captix/internal/selection"
	"github.com/bryanchriswhite/captix/internal/session"
	"github.com/bryanchriswhite/captix/internal/watchdog"
	"github.com/bryanchriswhite/captix/internal/window"
)

var selectCmd = &cobra.Command{
	Use:     "select",
	Aliases: []string{"interactive"},
	Short:   "Interactive screenshot with the selection overlay",
	Long: `Freeze the desktop and show the selection overlay.

  • Click a window to capture its content
  • Drag to capture an area
  • Click the desktop to capture every monitor
  • Right-click toggles the pre-captured window preview
  • Escape cancels

Only one interactive session runs at a time. An external watchdog kills the
session if the overlay stops responding.`,
	Example: `  # Start an interactive screenshot (bind this to a hotkey)
  captix select

  # Same, with the magnifier and debug logs
  captix select --magnifier --log-level debug`,
	RunE: runSelect,
}

var (
	selectMagnifier bool
	selectNoCursor  bool
	selectNoWatch   bool
)

func init() {
	rootCmd.AddCommand(selectCmd)

	selectCmd.Flags().BoolVarP(&selectMagnifier, "magnifier", "m", false, "show a magnifier next to the cursor")
	selectCmd.Flags().BoolVar(&selectNoCursor, "no-cursor", false, "leave the mouse cursor out")
	selectCmd.Flags().BoolVar(&selectNoWatch, "no-watchdog", false, "do not spawn the external watchdog")
}

func runSelect(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get()
	log := logger.WithComponent("select")

	claim, err := dbusctl.Acquire(dbusctl.ScreenshotService)
	switch {
	case errors.Is(err, dbusctl.ErrAlreadyRunning):
		log.Info().Msg("Screenshot session already running")
		fmt.Println("A screenshot session is already running")
		return nil
	case err != nil:
		log.Warn().Err(err).Msg("Single instance check unavailable")
	}
	defer claim.Release()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, err := connectDisplay(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	notifier := newNotifier(cfg)
	defer notifier.Close()
	saver, err := newSaver(cfg)
	if err != nil {
		return err
	}

	pid := os.Getpid()
	hbPath, err := paths.HeartbeatPath(pid)
	if err != nil {
		return err
	}
	hb := watchdog.NewHeartbeat(hbPath, cfg.Watchdog.HeartbeatInterval())
	if err := hb.Beat(); err != nil {
		return err
	}
	defer hb.Stop()

	var ov *overlay.Overlay
	sess := session.New(session.Deps{
		Engine:    d.engine,
		Windows:   d.detector,
		Saver:     saver,
		Clipboard: clipboard.CopyImage,
		Notifier:  notifier,
	}, session.Options{
		IncludeCursor:     cfg.Screenshot.IncludeCursor && !selectNoCursor,
		CopyToClipboard:   cfg.Screenshot.CopyToClipboard,
		PrecaptureTimeout: cfg.Watchdog.PrecaptureTimeout(),
		OnTimeout: func() {
			if ov != nil {
				ov.Stop()
			}
			hb.Stop()
			claim.Release()
			os.Exit(1)
		},
	})
	defer sess.Close()

	if !selectNoWatch {
		if _, err := watchdog.Spawn(pid, hbPath, cfg.Watchdog.HeartbeatTimeout(), sess.ID()); err != nil {
			log.Warn().Err(err).Msg("Running without external watchdog")
		}
	}

	desktop, err := sess.Begin(ctx)
	if err != nil {
		notifier.Error("Screenshot Failed", err.Error())
		return err
	}

	bounds := d.engine.ScreenGeometry()
	ov, err = overlay.New(d.x.Conn(), d.x.Screen(), bounds)
	if err != nil {
		return err
	}
	if err := ov.Start(); err != nil {
		notifier.Error("Screenshot Failed", err.Error())
		return err
	}

	loop := &overlay.Loop{
		Controller: selection.NewController(selectionConfig(cfg), func(x, y int) window.WindowInfo {
			return d.detector.GetWindowAtPositionExcluding(x, y, ov.ID())
		}),
		Renderer:  overlay.NewRenderer(desktop),
		Screen:    ov,
		Origin:    bounds.Min,
		Snapshot:  snapshotLookup(sess),
		Ready:     sess.Ready(),
		Magnifier: selectMagnifier,
		Beat: func() {
			if err := hb.Beat(); err != nil {
				log.Warn().Err(err).Msg("Heartbeat write failed")
			}
		},
		BeatInterval: cfg.Watchdog.HeartbeatInterval(),
	}

	events, cancelEvents := context.WithCancel(ctx)
	out, err := loop.Run(ctx, ov.Events(events))
	cancelEvents()
	endSelection(ov, hb)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Msg("Selection ended unexpectedly")
	}

	log.Info().
		Str("session", sess.ID()).
		Str("outcome", out.Kind.String()).
		Msg("Selection finished")

	res, err := sess.Complete(out)
	if errors.Is(err, session.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := sess.Wait(); err != nil {
		return err
	}

	fmt.Printf("Screenshot saved: %s (%s)\n", res.Path, res.HumanSize())
	return nil
}

// endSelection takes the overlay down and retires the heartbeat. Saving
// runs after this without input, so the watchdog must stop expecting beats.
func endSelection(ov interface{ Stop() }, hb *watchdog.Heartbeat) {
	ov.Stop()
	hb.Stop()
}

// snapshotLookup serves pre-captured window content once the
// pre-capture pass has sealed its snapshots.
func snapshotLookup(sess *session.Orchestrator) overlay.SnapshotFunc {
	return func(info window.WindowInfo) (image.Image, image.Rectangle, bool) {
		set := sess.Snapshots()
		if set == nil {
			return nil, image.Rectangle{}, false
		}
		snap, ok := set.Get(info.ID)
		if !ok {
			return nil, image.Rectangle{}, false
		}
		return snap.Capture.Image, snap.ContentRect(), true
	}
}
