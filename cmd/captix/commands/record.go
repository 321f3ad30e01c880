package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/captix/internal/api"
	"github.com/bryanchriswhite/captix/internal/audio"
	"github.com/bryanchriswhite/captix/internal/config"
	"github.com/bryanchriswhite/captix/internal/dbusctl"
	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/notify"
	"github.com/bryanchriswhite/captix/internal/paths"
	"github.com/bryanchriswhite/captix/internal/recording"
)

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record the screen, an area or a window",
	Long: `Record video with ffmpeg until Ctrl+C or 'captix record stop'.

Recordings are Matroska files with H.264 video and, when a PulseAudio or
PipeWire monitor source exists, AAC system audio.

Window tracking records a window's composited buffer, so the video follows
the window when it moves and stays correct when it is covered.`,
	Example: `  # Record every monitor
  captix record

  # Record an area with microphone mixed in
  captix record --area 0,0,1280,720 --mic

  # Record a window and follow it around
  captix record --window 500,400 --window-tracking

  # Stop from another terminal or a hotkey
  captix record stop`,
	RunE: runRecord,
}

var recordStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running recording",
	RunE:  runRecordStop,
}

var recordStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a recording is running",
	RunE:  runRecordStatus,
}

var (
	recordArea     string
	recordWindow   string
	recordTracking bool
	recordFormat   string
)

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.AddCommand(recordStopCmd)
	recordCmd.AddCommand(recordStatusCmd)

	recordCmd.Flags().StringVarP(&recordArea, "area", "a", "", "record area x,y,w,h")
	recordCmd.Flags().StringVarP(&recordWindow, "window", "w", "", "record the window at x,y")
	recordCmd.Flags().BoolVar(&recordTracking, "window-tracking", false, "follow the window instead of recording a fixed area")
	recordCmd.Flags().Bool("audio", false, "record system audio")
	recordCmd.Flags().Bool("mic", false, "mix in the default microphone")
	recordCmd.Flags().Int("fps", 0, "frames per second (default is 30)")
	recordCmd.Flags().String("status-addr", "", "serve recording status over HTTP on this address")
	recordCmd.MarkFlagsMutuallyExclusive("area", "window")

	recordStatusCmd.Flags().StringVarP(&recordFormat, "format", "f", "table", "output format (table or json)")

	viper.BindPFlag("recording.audio", recordCmd.Flags().Lookup("audio"))
	viper.BindPFlag("recording.microphone", recordCmd.Flags().Lookup("mic"))
	viper.BindPFlag("recording.fps", recordCmd.Flags().Lookup("fps"))
	viper.BindPFlag("recording.status_addr", recordCmd.Flags().Lookup("status-addr"))
}

// applyRecordFlags copies explicitly set flags over the loaded config.
func applyRecordFlags(cfg *config.RecordingConfig) {
	if viper.IsSet("recording.audio") {
		cfg.Audio = viper.GetBool("recording.audio")
	}
	if viper.IsSet("recording.microphone") {
		cfg.Microphone = viper.GetBool("recording.microphone")
	}
	if fps := viper.GetInt("recording.fps"); fps > 0 {
		cfg.FPS = fps
	}
	if addr := viper.GetString("recording.status_addr"); addr != "" {
		cfg.StatusAddr = addr
	}
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get()
	applyRecordFlags(&cfg.Recording)
	log := logger.WithComponent("record")

	if recordTracking && recordWindow == "" {
		return fmt.Errorf("--window-tracking needs --window x,y")
	}
	if active, err := dbusctl.IsRecording(); err == nil && active {
		return fmt.Errorf("a recording is already running, stop it with 'captix record stop'")
	}

	d, err := connectDisplay(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	var audioArgs []string
	audioDesc := "No audio"
	if cfg.Recording.Audio {
		sys := audio.Detect()
		audioArgs = sys.Args(cfg.Recording.Microphone)
		audioDesc = sys.Describe()
	}

	rec := recording.New(recording.Options{
		FPS:     cfg.Recording.FPS,
		Preset:  cfg.Recording.Preset,
		CRF:     cfg.Recording.CRF,
		Display: os.Getenv("DISPLAY"),
		Audio:   audioArgs,
		Screen:  d.engine.ScreenGeometry(),
		Frames:  d.server,
	})

	dir := config.ExpandHome(cfg.Recording.Directory)
	now := time.Now()
	switch {
	case recordArea != "":
		r, err := parseArea(recordArea)
		if err != nil {
			return err
		}
		err = rec.StartArea(r.Min.X, r.Min.Y, r.Dx(), r.Dy(), paths.RecordingPath(dir, paths.TypeArea, cfg.Recording.MonthlyFolders, now))
		if err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}

	case recordWindow != "":
		p, err := parsePoint(recordWindow)
		if err != nil {
			return err
		}
		info := d.detector.GetWindowAtPosition(p.X, p.Y)
		output := paths.RecordingPath(dir, paths.TypeWindow, cfg.Recording.MonthlyFolders, now)
		switch {
		case info.IsRoot:
			err = rec.StartFullscreen(paths.RecordingPath(dir, paths.TypeFull, cfg.Recording.MonthlyFolders, now))
		case recordTracking:
			err = rec.StartWindowTracking(info, output)
		default:
			err = rec.StartWindow(info, output)
		}
		if err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
		log.Info().Str("window", info.String()).Bool("tracking", recordTracking).Msg("Recording window")

	default:
		if err := rec.StartFullscreen(paths.RecordingPath(dir, paths.TypeFull, cfg.Recording.MonthlyFolders, now)); err != nil {
			return fmt.Errorf("failed to start recording: %w", err)
		}
	}

	control, err := dbusctl.Serve(rec)
	if err != nil {
		log.Warn().Err(err).Msg("Recording cannot be stopped over D-Bus")
	}
	defer control.Close()

	var status *api.StatusServer
	if cfg.Recording.StatusAddr != "" {
		status = api.NewStatusServer(rec)
		status.Start(cfg.Recording.StatusAddr)
	}

	notifier := newNotifier(cfg)
	defer notifier.Close()

	st := rec.Status()
	fmt.Printf("Recording %s %dx%d at %d fps (%s)\n", st.Mode, st.Area.Dx(), st.Area.Dy(), cfg.Recording.FPS, audioDesc)
	fmt.Printf("Output: %s\n", st.Path)
	fmt.Println("Press Ctrl+C or run 'captix record stop' to finish")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	waitRecording(ctx, rec)
	fmt.Println()

	if status != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			status.Shutdown(shutdownCtx)
		}()
	}

	if st := rec.Status(); st.State == recording.StateError {
		notifier.Error("Recording Failed", st.Error)
		return fmt.Errorf("recording failed: %s", st.Error)
	}

	res, err := rec.Stop(cfg.Recording.StopTimeout())
	if errors.Is(err, recording.ErrStopTimeout) {
		notifier.RecordingAborted()
		return err
	}
	if err != nil {
		notifier.Error("Recording Failed", err.Error())
		return err
	}
	if res == nil {
		return nil
	}

	notifier.RecordingSaved(res.Path, res.Size, res.Duration)
	fmt.Printf("Recording saved: %s (%s)\n", res.Path, notify.FormatDuration(res.Duration))
	return nil
}

// waitRecording prints a status line every second until a stop is asked
// for or the encoder dies.
func waitRecording(ctx context.Context, rec *recording.Recorder) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-rec.StopRequested():
			return
		case <-ticker.C:
			st := rec.Status()
			if st.State != recording.StateRecording {
				return
			}
			fmt.Printf("\r● REC %s  %s   ", notify.FormatDuration(st.Duration), st.HumanSize)
		}
	}
}

func runRecordStop(cmd *cobra.Command, args []string) error {
	ok, err := dbusctl.StopRecording()
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("No recording is running")
		return nil
	}
	fmt.Println("Recording stop requested")
	return nil
}

func runRecordStatus(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get()

	if addr := cfg.Recording.StatusAddr; addr != "" {
		if st, err := fetchStatus(addr); err == nil {
			if recordFormat == "json" {
				return printJSON(st)
			}
			fmt.Printf("State:    %s\n", st.State)
			fmt.Printf("Mode:     %s\n", st.Mode)
			fmt.Printf("Output:   %s\n", st.Path)
			fmt.Printf("Duration: %s\n", notify.FormatDuration(st.Duration))
			fmt.Printf("Size:     %s\n", st.HumanSize)
			return nil
		}
	}

	active, err := dbusctl.IsRecording()
	if err != nil {
		return err
	}
	if recordFormat == "json" {
		return printJSON(map[string]bool{"recording": active})
	}
	if active {
		fmt.Println("Recording")
	} else {
		fmt.Println("Not recording")
	}
	return nil
}

func fetchStatus(addr string) (*recording.Status, error) {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + "/api/status")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status endpoint returned %s", resp.Status)
	}

	var st recording.Status
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, err
	}
	return &st, nil
}
