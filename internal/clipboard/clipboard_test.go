package clipboard

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testCopier(script string, found bool) (*Copier, *[]string) {
	var got []string
	return &Copier{
		command: func(name string, args ...string) *exec.Cmd {
			got = append([]string{name}, args...)
			return exec.Command("sh", "-c", script)
		},
		lookPath: func(string) (string, error) {
			if !found {
				return "", errors.New("not found")
			}
			return "/usr/bin/xclip", nil
		},
		wait: 100 * time.Millisecond,
	}, &got
}

func tempPNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "last_screenshot.png")
	require.NoError(t, os.WriteFile(path, []byte("png"), 0644))
	return path
}

func TestCopyImageArgs(t *testing.T) {
	c, got := testCopier("exit 0", true)
	path := tempPNG(t)

	require.NoError(t, c.CopyImage(path))
	require.Equal(t, []string{"xclip", "-selection", "clipboard", "-t", "image/png", "-i", path}, *got)
}

func TestCopyImageStillRunningIsSuccess(t *testing.T) {
	c, _ := testCopier("sleep 2", true)

	start := time.Now()
	require.NoError(t, c.CopyImage(tempPNG(t)))
	require.Less(t, time.Since(start), time.Second)
}

func TestCopyImageNonZeroExitTolerated(t *testing.T) {
	c, _ := testCopier("exit 1", true)
	require.NoError(t, c.CopyImage(tempPNG(t)))
}

func TestCopyImageUnavailable(t *testing.T) {
	c, got := testCopier("exit 0", false)

	require.False(t, c.Available())
	require.ErrorIs(t, c.CopyImage(tempPNG(t)), ErrUnavailable)
	require.Empty(t, *got)
}

func TestCopyImageMissingFile(t *testing.T) {
	c, got := testCopier("exit 0", true)

	err := c.CopyImage(filepath.Join(t.TempDir(), "missing.png"))
	require.Error(t, err)
	require.ErrorIs(t, err, os.ErrNotExist)
	require.Empty(t, *got)
}
