package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/notify"
	"github.com/bryanchriswhite/captix/internal/watchdog"
)

var watchdogCmd = &cobra.Command{
	Use:    "watchdog",
	Short:  "Watch an interactive session and kill it when it hangs",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE:   runWatchdog,
}

var (
	watchPID       int
	watchHeartbeat string
	watchTimeout   int
	watchSession   string
)

func init() {
	rootCmd.AddCommand(watchdogCmd)

	watchdogCmd.Flags().IntVar(&watchPID, "pid", 0, "session process id")
	watchdogCmd.Flags().StringVar(&watchHeartbeat, "heartbeat", "", "heartbeat file")
	watchdogCmd.Flags().IntVar(&watchTimeout, "timeout", 0, "heartbeat staleness limit in seconds")
	watchdogCmd.Flags().StringVar(&watchSession, "session", "", "session id for logs")
	watchdogCmd.MarkFlagRequired("pid")
	watchdogCmd.MarkFlagRequired("heartbeat")
}

func runWatchdog(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get()
	log := logger.WithSession("watchdog", watchSession)

	notifier := newNotifier(cfg)
	defer notifier.Close()

	m := watchdog.NewMonitor(watchPID, watchHeartbeat, time.Duration(watchTimeout)*time.Second)
	m.CheckInterval = cfg.Watchdog.CheckInterval()
	m.Notify = func(title, body string) {
		if err := notifier.Notify(title, body, notify.UrgencyCritical); err != nil {
			log.Warn().Err(err).Msg("Failed to notify about hung session")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verdict := m.Run(ctx)
	log.Info().Int("pid", watchPID).Str("verdict", verdict.String()).Msg("Watchdog finished")
	return nil
}
