package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/captix/internal/clipboard"
	"github.com/bryanchriswhite/captix/internal/paths"
)

var clipboardTestCmd = &cobra.Command{
	Use:   "clipboard-test",
	Short: "Copy the last screenshot to the clipboard",
	Long: `Copy the cached copy of the most recent screenshot to the clipboard as
image/png. Use it to check that xclip works on this desktop.`,
	RunE: runClipboardTest,
}

func init() {
	rootCmd.AddCommand(clipboardTestCmd)
}

func runClipboardTest(cmd *cobra.Command, args []string) error {
	if !clipboard.Available() {
		return fmt.Errorf("xclip not found on $PATH")
	}

	path, err := paths.CachePath()
	if err != nil {
		return err
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("no cached screenshot at %s, take one first", path)
	}
	if err != nil {
		return err
	}

	if err := clipboard.CopyImage(path); err != nil {
		return err
	}
	fmt.Printf("Copied %s (%d bytes) to the clipboard\n", path, info.Size())
	return nil
}
