package recording

import (
	"fmt"
	"os"
	"strconv"
)

// Encoder defaults
const (
	DefaultFPS    = 30
	DefaultPreset = "ultrafast"
	DefaultCRF    = 23
)

// Params describe one encoder invocation.
type Params struct {
	// Display is the X display for x11grab, $DISPLAY when empty
	Display string
	X, Y    int
	Width   int
	Height  int
	FPS     int
	Preset  string
	CRF     int
	// Audio are the audio input arguments, empty for a silent video
	Audio  []string
	Output string
}

func (p Params) withDefaults() Params {
	if p.FPS <= 0 {
		p.FPS = DefaultFPS
	}
	if p.Preset == "" {
		p.Preset = DefaultPreset
	}
	if p.CRF <= 0 {
		p.CRF = DefaultCRF
	}
	if p.Display == "" {
		p.Display = os.Getenv("DISPLAY")
	}
	if p.Display == "" {
		p.Display = ":0.0"
	}
	return p
}

// AreaArgs builds an x11grab recording of a fixed screen rectangle.
func AreaArgs(p Params) []string {
	p = p.withDefaults()
	args := []string{
		"-y",
		"-f", "x11grab",
		"-framerate", strconv.Itoa(p.FPS),
		"-video_size", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-i", fmt.Sprintf("%s+%d,%d", p.Display, p.X, p.Y),
	}
	return append(append(args, p.Audio...), encodeTail(p)...)
}

// RawVideoArgs builds an encoder reading BGR24 frames from stdin.
func RawVideoArgs(p Params) []string {
	p = p.withDefaults()
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", p.Width, p.Height),
		"-r", strconv.Itoa(p.FPS),
		"-i", "-",
	}
	return append(append(args, p.Audio...), encodeTail(p)...)
}

func encodeTail(p Params) []string {
	return []string{
		"-c:v", "libx264",
		"-preset", p.Preset,
		"-crf", strconv.Itoa(p.CRF),
		"-pix_fmt", "yuv420p",
		"-f", "matroska",
		p.Output,
	}
}
