package commands

import (
	"fmt"
	"image"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/captix/internal/clipboard"
	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/output"
	"github.com/bryanchriswhite/captix/internal/paths"
)

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Take a screenshot without the overlay",
	Long: `Capture the full screen, an area or a single window and save it.

Window captures isolate the window's own content, without decorations,
even when other windows cover it.`,
	Example: `  # Capture all monitors
  captix screenshot

  # Capture a 800x600 area at 100,100
  captix screenshot --area 100,100,800,600

  # Capture the window under a point
  captix screenshot --window 500,400

  # Write to an explicit file without the cursor
  captix screenshot --no-cursor --output /tmp/shot.png`,
	RunE: runScreenshot,
}

var (
	shotArea      string
	shotWindow    string
	shotNoCursor  bool
	shotClipboard bool
	shotOutput    string
)

func init() {
	rootCmd.AddCommand(screenshotCmd)

	screenshotCmd.Flags().StringVarP(&shotArea, "area", "a", "", "capture area x,y,w,h")
	screenshotCmd.Flags().StringVarP(&shotWindow, "window", "w", "", "capture the window at x,y")
	screenshotCmd.Flags().BoolVar(&shotNoCursor, "no-cursor", false, "leave the mouse cursor out")
	screenshotCmd.Flags().BoolVarP(&shotClipboard, "clipboard", "c", false, "copy the screenshot to the clipboard")
	screenshotCmd.Flags().StringVarP(&shotOutput, "output", "o", "", "output file (default is a timestamped file in the screenshot directory)")
	screenshotCmd.MarkFlagsMutuallyExclusive("area", "window")
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get()
	log := logger.WithComponent("screenshot")
	includeCursor := cfg.Screenshot.IncludeCursor && !shotNoCursor

	d, err := connectDisplay(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	var (
		img  *image.RGBA
		kind string
	)
	switch {
	case shotArea != "":
		r, err := parseArea(shotArea)
		if err != nil {
			return err
		}
		img, err = d.engine.CaptureArea(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), includeCursor)
		if err != nil {
			return fmt.Errorf("failed to capture area: %w", err)
		}
		kind = paths.TypeArea

	case shotWindow != "":
		p, err := parsePoint(shotWindow)
		if err != nil {
			return err
		}
		wc, info, err := d.engine.CaptureWindowAtPosition(p.X, p.Y, includeCursor)
		if err != nil {
			return fmt.Errorf("failed to capture window: %w", err)
		}
		log.Debug().
			Str("window", info.String()).
			Str("strategy", wc.Strategy).
			Msg("Captured window")
		img, kind = wc.Image, paths.TypeWindow
		if info.IsRoot {
			kind = paths.TypeFull
		}

	default:
		img, err = d.engine.CaptureFullScreen(includeCursor)
		if err != nil {
			return fmt.Errorf("failed to capture screen: %w", err)
		}
		kind = paths.TypeFull
	}

	saver, err := newSaver(cfg)
	if err != nil {
		return err
	}
	var res *output.Result
	if shotOutput != "" {
		res, err = saver.SaveAs(img, shotOutput)
	} else {
		res, err = saver.Save(img, kind)
	}
	if err != nil {
		return fmt.Errorf("failed to save screenshot: %w", err)
	}

	if shotClipboard || cfg.Screenshot.CopyToClipboard {
		if err := clipboard.CopyImage(res.CachePath); err != nil {
			log.Warn().Err(err).Msg("Failed to copy screenshot to clipboard")
		}
	}
	if err := res.Wait(); err != nil {
		return err
	}

	notifier := newNotifier(cfg)
	defer notifier.Close()
	notifier.ScreenshotSaved(res.Path, res.Size())

	fmt.Printf("Screenshot saved: %s (%dx%d, %s)\n", res.Path, img.Rect.Dx(), img.Rect.Dy(), res.HumanSize())
	return nil
}
