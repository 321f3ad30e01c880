package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/captix/internal/window"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List capturable windows",
	Long: `List the windows an interactive session would pre-capture.

Windows that are minimized, on another workspace, smaller than the minimum
capture size or owned by the desktop are left out unless --all is given.`,
	Example: `  # List windows in table format (default)
  captix list

  # Every managed window, as JSON
  captix list --all --format json`,
	RunE: runList,
}

var windowAtCmd = &cobra.Command{
	Use:   "window-at [x,y]",
	Short: "Show the window under a point",
	Long: `Hit-test a root coordinate the way the selection overlay does. Without a
point the current pointer position is used.`,
	Example: `  # Window under the pointer
  captix window-at

  # Window at a position, as JSON
  captix window-at 500,400 --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWindowAt,
}

var (
	listFormat string
	listAll    bool
)

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(windowAtCmd)

	listCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include windows that would not be pre-captured")
	windowAtCmd.Flags().StringVarP(&listFormat, "format", "f", "table", "output format (table or json)")
}

// listedWindow is a WindowInfo with its owning process.
type listedWindow struct {
	window.WindowInfo
	PID int `json:"pid"`
}

func runList(cmd *cobra.Command, args []string) error {
	d, err := connectDisplay(configMgr.Get())
	if err != nil {
		return err
	}
	defer d.Close()

	var windows []window.WindowInfo
	if listAll {
		windows = d.detector.Walker.ListWindows()
	} else {
		windows = d.detector.CapturableWindows()
	}

	listed := make([]listedWindow, len(windows))
	for i, w := range windows {
		listed[i] = listedWindow{WindowInfo: w, PID: d.x.PID(w.ID)}
	}

	switch listFormat {
	case "json":
		return printJSON(listed)
	case "table":
		return printWindowsTable(listed)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", listFormat)
	}
}

func printWindowsTable(windows []listedWindow) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tCLASS\tPID\tGEOMETRY\tTITLE")
	fmt.Fprintln(w, "--\t-----\t---\t--------\t-----")

	for _, win := range windows {
		fmt.Fprintf(w, "0x%x\t%s\t%d\t%dx%d+%d+%d\t%s\n",
			win.ID, win.Class, win.PID,
			win.Width, win.Height, win.X, win.Y,
			win.Title)
	}

	return nil
}

func runWindowAt(cmd *cobra.Command, args []string) error {
	d, err := connectDisplay(configMgr.Get())
	if err != nil {
		return err
	}
	defer d.Close()

	var info window.WindowInfo
	if len(args) == 1 {
		p, err := parsePoint(args[0])
		if err != nil {
			return err
		}
		info = d.detector.GetWindowAtPosition(p.X, p.Y)
	} else {
		info, err = d.detector.Walker.WindowAtPointer()
		if err != nil {
			return err
		}
	}

	found := listedWindow{WindowInfo: info}
	if !info.IsRoot {
		found.PID = d.x.PID(info.ID)
	}

	if listFormat == "json" {
		return printJSON(found)
	}

	if info.IsRoot {
		fmt.Printf("Desktop:  %dx%d\n", info.Width, info.Height)
		return nil
	}
	fmt.Printf("ID:       0x%x\n", info.ID)
	fmt.Printf("Title:    %s\n", info.Title)
	fmt.Printf("Class:    %s\n", info.Class)
	fmt.Printf("PID:      %d\n", found.PID)
	fmt.Printf("Geometry: %dx%d at (%d, %d)\n", info.Width, info.Height, info.X, info.Y)

	frame, source := d.detector.Resolver.FrameExtentsWithSource(info.ID)
	fmt.Printf("Frame:    left %d right %d top %d bottom %d (%s)\n", frame.Left, frame.Right, frame.Top, frame.Bottom, source)
	return nil
}
