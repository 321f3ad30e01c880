// Package paths builds output directories and file names.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Screenshot and recording types used in file names
const (
	TypeFull   = "full"
	TypeArea   = "area"
	TypeWindow = "win"
)

const (
	stampLayout = "2006-01-02_150405"
	monthLayout = "2006-01"

	cacheFile = "last_screenshot.png"
	appDir    = "captix"
)

// Dir returns base, or base/YYYY-MM when monthly buckets are enabled.
func Dir(base string, monthly bool, now time.Time) string {
	if monthly {
		return filepath.Join(base, now.Format(monthLayout))
	}
	return base
}

// ScreenshotName returns <prefix>_<YYYY-MM-DD_HHMMSS>_<type>.png.
func ScreenshotName(prefix, kind string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.png", prefix, now.Format(stampLayout), kind)
}

// RecordingName returns rec_<YYYY-MM-DD_HHMMSS>_<type>.mkv.
func RecordingName(kind string, now time.Time) string {
	return fmt.Sprintf("rec_%s_%s.mkv", now.Format(stampLayout), kind)
}

// ScreenshotPath joins Dir and ScreenshotName.
func ScreenshotPath(base, prefix, kind string, monthly bool, now time.Time) string {
	return filepath.Join(Dir(base, monthly, now), ScreenshotName(prefix, kind, now))
}

// RecordingPath joins Dir and RecordingName.
func RecordingPath(base, kind string, monthly bool, now time.Time) string {
	return filepath.Join(Dir(base, monthly, now), RecordingName(kind, now))
}

// CachePath returns the stable path of the most recent screenshot.
func CachePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate cache directory: %w", err)
	}
	return filepath.Join(dir, appDir, cacheFile), nil
}

// EnsureParent creates the directory that will hold path.
func EnsureParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return nil
}

// RuntimeDir returns the per-user runtime directory: $XDG_RUNTIME_DIR,
// then /run/user/<uid>, then a private directory under the temp dir.
func RuntimeDir() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir, nil
	}

	uid := os.Getuid()
	runUser := fmt.Sprintf("/run/user/%d", uid)
	if info, err := os.Stat(runUser); err == nil && info.IsDir() {
		return runUser, nil
	}

	dir := filepath.Join(os.TempDir(), fmt.Sprintf("captix-runtime-%d", uid))
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	return dir, nil
}

// HeartbeatPath returns the heartbeat file for the session process pid.
func HeartbeatPath(pid int) (string, error) {
	dir, err := RuntimeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("captix_heartbeat_%d", pid)), nil
}
