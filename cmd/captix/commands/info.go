package commands

import (
	"fmt"
	"image"
	"os"
	"os/exec"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"

	"github.com/bryanchriswhite/captix/internal/capture"
	"github.com/bryanchriswhite/captix/internal/clipboard"
	"github.com/bryanchriswhite/captix/internal/config"
	"github.com/bryanchriswhite/captix/internal/paths"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show display and system information",
	Long: `Show what CaptiX sees: the X display, screen geometry, monitors,
available X extensions, host details, external tools and output paths.`,
	Example: `  # Human readable summary
  captix info

  # Machine readable
  captix info --format json`,
	RunE: runInfo,
}

var infoFormat string

// externalTools are the helper binaries CaptiX shells out to.
var externalTools = []string{"ffmpeg", "xclip", "pactl", "notify-send", "paplay"}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().StringVarP(&infoFormat, "format", "f", "table", "output format (table or json)")
}

type systemInfo struct {
	Display       string               `json:"display"`
	WindowManager string               `json:"window_manager"`
	Screen        image.Rectangle      `json:"screen"`
	Monitors      []capture.Monitor    `json:"monitors"`
	Extensions    capture.Capabilities `json:"extensions"`
	Host          string               `json:"host"`
	Kernel        string               `json:"kernel"`
	Memory        string               `json:"memory"`
	Tools         map[string]string    `json:"tools"`
	Screenshots   string               `json:"screenshots"`
	Recordings    string               `json:"recordings"`
	Cache         string               `json:"cache"`
	Config        string               `json:"config"`
}

func runInfo(cmd *cobra.Command, args []string) error {
	cfg := configMgr.Get()

	d, err := connectDisplay(cfg)
	if err != nil {
		return err
	}
	defer d.Close()

	monitors, err := d.server.Monitors()
	if err != nil {
		monitors = nil
	}

	info := systemInfo{
		Display:       os.Getenv("DISPLAY"),
		WindowManager: d.x.WindowManagerName(),
		Screen:        d.engine.ScreenGeometry(),
		Monitors:      monitors,
		Extensions:    d.engine.Capabilities(),
		Tools:         make(map[string]string),
		Screenshots:   config.ExpandHome(cfg.Screenshot.Directory),
		Recordings:    config.ExpandHome(cfg.Recording.Directory),
		Config:        configMgr.GetConfigPath(),
	}

	if h, err := host.Info(); err == nil {
		info.Host = fmt.Sprintf("%s (%s %s)", h.Hostname, h.Platform, h.PlatformVersion)
		info.Kernel = h.KernelVersion
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.Memory = fmt.Sprintf("%s free of %s", humanize.Bytes(vm.Available), humanize.Bytes(vm.Total))
	}
	for _, tool := range externalTools {
		if p, err := exec.LookPath(tool); err == nil {
			info.Tools[tool] = p
		}
	}
	if p, err := paths.CachePath(); err == nil {
		info.Cache = p
	}

	if infoFormat == "json" {
		return printJSON(info)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Display:\t%s\n", info.Display)
	fmt.Fprintf(w, "Window manager:\t%s\n", info.WindowManager)
	fmt.Fprintf(w, "Screen:\t%dx%d at %d,%d\n", info.Screen.Dx(), info.Screen.Dy(), info.Screen.Min.X, info.Screen.Min.Y)
	for _, m := range info.Monitors {
		fmt.Fprintf(w, "  %s\t%dx%d at %d,%d\n", m.Name, m.Bounds.Dx(), m.Bounds.Dy(), m.Bounds.Min.X, m.Bounds.Min.Y)
	}
	fmt.Fprintf(w, "Composite:\t%s\n", yesNo(info.Extensions.Composite))
	fmt.Fprintf(w, "XFixes:\t%s\n", yesNo(info.Extensions.XFixes))
	fmt.Fprintf(w, "RandR:\t%s\n", yesNo(info.Extensions.RandR))
	fmt.Fprintf(w, "Host:\t%s\n", info.Host)
	fmt.Fprintf(w, "Kernel:\t%s\n", info.Kernel)
	fmt.Fprintf(w, "Memory:\t%s\n", info.Memory)
	for _, tool := range externalTools {
		p, ok := info.Tools[tool]
		if !ok {
			p = "missing"
		}
		fmt.Fprintf(w, "%s:\t%s\n", tool, p)
	}
	fmt.Fprintf(w, "Clipboard:\t%s\n", yesNo(clipboard.Available()))
	fmt.Fprintf(w, "Screenshots:\t%s\n", info.Screenshots)
	fmt.Fprintf(w, "Recordings:\t%s\n", info.Recordings)
	fmt.Fprintf(w, "Cache:\t%s\n", info.Cache)
	fmt.Fprintf(w, "Config:\t%s\n", info.Config)
	return w.Flush()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
