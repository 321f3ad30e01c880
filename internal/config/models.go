package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/captix/internal/logger"
	"gopkg.in/yaml.v3"
)

// ScreenshotConfig controls where and how screenshots are written
type ScreenshotConfig struct {
	Directory       string `json:"directory" yaml:"directory"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	MonthlyFolders  bool   `json:"monthly_folders" yaml:"monthly_folders"`
	IncludeCursor   bool   `json:"include_cursor" yaml:"include_cursor"`
	CopyToClipboard bool   `json:"copy_to_clipboard" yaml:"copy_to_clipboard"`
}

// SelectionConfig tunes the interactive click/drag classification
type SelectionConfig struct {
	ClickThresholdMs     int `json:"click_threshold_ms" yaml:"click_threshold_ms"`
	DragThresholdPx      int `json:"drag_threshold_px" yaml:"drag_threshold_px"`
	HoverRequeryPx       int `json:"hover_requery_px" yaml:"hover_requery_px"`
	MinCaptureWindowSize int `json:"min_capture_window_size" yaml:"min_capture_window_size"`
	SlowQueryWarnMs      int `json:"slow_query_warn_ms" yaml:"slow_query_warn_ms"`
}

// WatchdogConfig configures the liveness watchdogs
type WatchdogConfig struct {
	PrecaptureTimeoutSeconds int `json:"precapture_timeout_seconds" yaml:"precapture_timeout_seconds"`
	HeartbeatIntervalMs      int `json:"heartbeat_interval_ms" yaml:"heartbeat_interval_ms"`
	CheckIntervalMs          int `json:"check_interval_ms" yaml:"check_interval_ms"`
	HeartbeatTimeoutSeconds  int `json:"heartbeat_timeout_seconds" yaml:"heartbeat_timeout_seconds"`
}

// RecordingConfig configures video recording
type RecordingConfig struct {
	Directory          string `json:"directory" yaml:"directory"`
	MonthlyFolders     bool   `json:"monthly_folders" yaml:"monthly_folders"`
	FPS                int    `json:"fps" yaml:"fps"`
	StopTimeoutSeconds int    `json:"stop_timeout_seconds" yaml:"stop_timeout_seconds"`
	Audio              bool   `json:"audio" yaml:"audio"`
	Microphone         bool   `json:"microphone" yaml:"microphone"`
	Preset             string `json:"preset" yaml:"preset"`
	CRF                int    `json:"crf" yaml:"crf"`
	StatusAddr         string `json:"status_addr" yaml:"status_addr"`
}

// NotificationConfig configures desktop notifications
type NotificationConfig struct {
	Enabled        bool `json:"enabled" yaml:"enabled"`
	Sound          bool `json:"sound" yaml:"sound"`
	TimeoutMs      int  `json:"timeout_ms" yaml:"timeout_ms"`
	ErrorTimeoutMs int  `json:"error_timeout_ms" yaml:"error_timeout_ms"`
}

// Config represents the application configuration
type Config struct {
	LogLevel      string             `json:"log_level" yaml:"log_level"`
	PrettyLogs    bool               `json:"pretty_logs" yaml:"pretty_logs"`
	Screenshot    ScreenshotConfig   `json:"screenshot" yaml:"screenshot"`
	Selection     SelectionConfig    `json:"selection" yaml:"selection"`
	Watchdog      WatchdogConfig     `json:"watchdog" yaml:"watchdog"`
	Recording     RecordingConfig    `json:"recording" yaml:"recording"`
	Notifications NotificationConfig `json:"notifications" yaml:"notifications"`
}

// ClickThreshold returns the click duration threshold
func (c SelectionConfig) ClickThreshold() time.Duration {
	return time.Duration(c.ClickThresholdMs) * time.Millisecond
}

// SlowQueryWarn returns the hover query latency above which a warning is logged
func (c SelectionConfig) SlowQueryWarn() time.Duration {
	return time.Duration(c.SlowQueryWarnMs) * time.Millisecond
}

// PrecaptureTimeout returns the in-process watchdog timeout
func (c WatchdogConfig) PrecaptureTimeout() time.Duration {
	return time.Duration(c.PrecaptureTimeoutSeconds) * time.Second
}

// HeartbeatInterval returns how often the heartbeat file is touched
func (c WatchdogConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

// CheckInterval returns how often the external watchdog polls
func (c WatchdogConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMs) * time.Millisecond
}

// HeartbeatTimeout returns the staleness limit for the heartbeat file
func (c WatchdogConfig) HeartbeatTimeout() time.Duration {
	return time.Duration(c.HeartbeatTimeoutSeconds) * time.Second
}

// StopTimeout returns how long a graceful encoder stop may take
func (c RecordingConfig) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutSeconds) * time.Second
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		LogLevel:   "info",
		PrettyLogs: true,
		Screenshot: ScreenshotConfig{
			Directory:       "~/Gallery/Screenshots",
			Prefix:          "sc",
			MonthlyFolders:  true,
			IncludeCursor:   true,
			CopyToClipboard: true,
		},
		Selection: SelectionConfig{
			ClickThresholdMs:     200,
			DragThresholdPx:      5,
			HoverRequeryPx:       10,
			MinCaptureWindowSize: 200,
			SlowQueryWarnMs:      50,
		},
		Watchdog: WatchdogConfig{
			PrecaptureTimeoutSeconds: 5,
			HeartbeatIntervalMs:      1000,
			CheckIntervalMs:          1000,
			HeartbeatTimeoutSeconds:  5,
		},
		Recording: RecordingConfig{
			Directory:          "~/Gallery/Recordings",
			MonthlyFolders:     true,
			FPS:                30,
			StopTimeoutSeconds: 10,
			Audio:              true,
			Microphone:         false,
			Preset:             "ultrafast",
			CRF:                23,
		},
		Notifications: NotificationConfig{
			Enabled:        true,
			Sound:          true,
			TimeoutMs:      5000,
			ErrorTimeoutMs: 3000,
		},
	}
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// DefaultPath returns $HOME/.config/captix/config.yaml
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "captix", "config.yaml"), nil
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		defaultPath, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		actualConfigPath = defaultPath
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = Default()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("Config loaded")

	return m, nil
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	// Start from defaults so keys missing in older files keep sane values
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()

	m.config = cfg
	return nil
}

// normalize replaces nonsensical values with defaults
func (c *Config) normalize() {
	def := Default()
	if c.Screenshot.Prefix == "" {
		c.Screenshot.Prefix = def.Screenshot.Prefix
	}
	if c.Selection.ClickThresholdMs <= 0 {
		c.Selection.ClickThresholdMs = def.Selection.ClickThresholdMs
	}
	if c.Selection.DragThresholdPx <= 0 {
		c.Selection.DragThresholdPx = def.Selection.DragThresholdPx
	}
	if c.Selection.HoverRequeryPx < 0 {
		c.Selection.HoverRequeryPx = def.Selection.HoverRequeryPx
	}
	if c.Selection.MinCaptureWindowSize < 0 {
		c.Selection.MinCaptureWindowSize = def.Selection.MinCaptureWindowSize
	}
	if c.Watchdog.PrecaptureTimeoutSeconds <= 0 {
		c.Watchdog.PrecaptureTimeoutSeconds = def.Watchdog.PrecaptureTimeoutSeconds
	}
	if c.Watchdog.HeartbeatIntervalMs <= 0 {
		c.Watchdog.HeartbeatIntervalMs = def.Watchdog.HeartbeatIntervalMs
	}
	if c.Watchdog.CheckIntervalMs <= 0 {
		c.Watchdog.CheckIntervalMs = def.Watchdog.CheckIntervalMs
	}
	if c.Watchdog.HeartbeatTimeoutSeconds <= 0 {
		c.Watchdog.HeartbeatTimeoutSeconds = def.Watchdog.HeartbeatTimeoutSeconds
	}
	if c.Recording.FPS <= 0 {
		c.Recording.FPS = def.Recording.FPS
	}
	if c.Recording.StopTimeoutSeconds <= 0 {
		c.Recording.StopTimeoutSeconds = def.Recording.StopTimeoutSeconds
	}
	if c.Recording.Preset == "" {
		c.Recording.Preset = def.Recording.Preset
	}
	if c.Recording.CRF <= 0 {
		c.Recording.CRF = def.Recording.CRF
	}
	if c.Notifications.TimeoutMs <= 0 {
		c.Notifications.TimeoutMs = def.Notifications.TimeoutMs
	}
	if c.Notifications.ErrorTimeoutMs <= 0 {
		c.Notifications.ErrorTimeoutMs = def.Notifications.ErrorTimeoutMs
	}
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := *m.config
	return &cfg
}

// GetConfigPath returns the path of the backing file
func (m *Manager) GetConfigPath() string {
	return m.configPath
}

// SetLogLevel overrides the log level for this process (not persisted)
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.LogLevel = strings.ToLower(level)
}

// Update applies fn to the configuration under the write lock
func (m *Manager) Update(fn func(cfg *Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(m.config)
	m.config.normalize()
}

// ExpandHome expands a leading ~ in path to the user's home directory
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
