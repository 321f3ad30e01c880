package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bryanchriswhite/captix/internal/config"
	"github.com/bryanchriswhite/captix/internal/logger"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "captix",
		Short: "CaptiX - screenshots and screen recording for X11",
		Long: `CaptiX captures screenshots and records video on X11 desktops.

Features:
  • Interactive overlay: click a window, drag an area or click the desktop
  • Window content capture without decorations, even when covered
  • Two-stage save with clipboard copy and desktop notifications
  • Area, fullscreen and window-tracking recordings with audio
  • Liveness watchdog for hung sessions`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadConfig,
	}

	// configMgr is loaded before every command runs
	configMgr *config.Manager
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/captix/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human readable console logs")

	// Bind flags to viper
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("pretty_logs", rootCmd.PersistentFlags().Lookup("pretty"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
	viper.SetEnvPrefix("captix")
	viper.AutomaticEnv()
}

func loadConfig(cmd *cobra.Command, args []string) error {
	mgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override log level from flag if provided
	if level := viper.GetString("log_level"); level != "" {
		mgr.SetLogLevel(level)
	}
	if cmd.Flags().Changed("pretty") {
		pretty := viper.GetBool("pretty_logs")
		mgr.Update(func(cfg *config.Config) { cfg.PrettyLogs = pretty })
	}

	cfg := mgr.Get()
	logger.Init(cfg.LogLevel, cfg.PrettyLogs)
	logger.WithComponent("cli").Debug().
		Str("command", cmd.CommandPath()).
		Str("config", mgr.GetConfigPath()).
		Msg("Configuration loaded")

	configMgr = mgr
	return nil
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
