// Package audio detects PulseAudio/PipeWire sources and builds the ffmpeg
// audio input arguments for a recording.
package audio

import (
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/bryanchriswhite/captix/internal/logger"
)

const queryTimeout = 2 * time.Second

// Runner runs a query command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// System is the detected audio setup.
type System struct {
	// Backend is "pulse" when a PulseAudio-compatible server answers
	Backend     string
	SystemAudio string
	Microphone  string
}

// Detect queries the sound server with pactl.
func Detect() *System {
	return DetectWith(execRunner)
}

// DetectWith queries using run.
func DetectWith(run Runner) *System {
	log := logger.WithComponent("audio")
	s := &System{}

	out, err := query(run, "pactl", "--version")
	if err != nil {
		log.Warn().Err(err).Msg("pactl not found, no audio will be recorded")
		return s
	}
	version := strings.ToLower(string(out))
	switch {
	case strings.Contains(version, "pipewire"):
		log.Info().Msg("Detected PipeWire audio backend")
	case strings.Contains(version, "pulseaudio"), strings.Contains(version, "libpulse"):
		log.Info().Msg("Detected PulseAudio backend")
	default:
		log.Warn().Msg("No PulseAudio/PipeWire backend detected")
		return s
	}
	s.Backend = "pulse"

	if out, err := query(run, "pactl", "list", "short", "sinks"); err == nil && len(strings.TrimSpace(string(out))) > 0 {
		s.SystemAudio = "default"
	} else {
		log.Warn().Err(err).Msg("No system audio sink detected")
	}

	if out, err := query(run, "pactl", "list", "short", "sources"); err == nil {
		for _, line := range strings.Split(string(out), "\n") {
			if strings.TrimSpace(line) != "" && !strings.Contains(line, ".monitor") {
				s.Microphone = "@DEFAULT_SOURCE@"
				break
			}
		}
	}
	if s.Microphone == "" {
		log.Info().Msg("No microphone source detected")
	}
	return s
}

func query(run Runner, name string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	return run(ctx, name, args...)
}

// Args returns the ffmpeg audio inputs, or nil when no system audio exists.
// With a microphone the two inputs are mixed into one track.
func (s *System) Args(includeMicrophone bool) []string {
	if s == nil || s.Backend == "" || s.SystemAudio == "" {
		logger.WithComponent("audio").Warn().Msg("No audio backend available, video will have no audio")
		return nil
	}

	var args []string
	if includeMicrophone && s.Microphone != "" {
		args = append(args,
			"-f", "alsa", "-i", s.SystemAudio,
			"-f", "alsa", "-i", s.Microphone,
			"-filter_complex", "[1:a][2:a]amix=inputs=2:duration=first[a]",
			"-map", "0:v", "-map", "[a]",
		)
	} else {
		args = append(args, "-f", "alsa", "-i", s.SystemAudio)
	}
	return append(args, "-c:a", "aac")
}

// Describe summarises the setup for status displays.
func (s *System) Describe() string {
	switch {
	case s == nil || s.Backend == "" || s.SystemAudio == "":
		return "No audio"
	case s.Microphone != "":
		return "System + Mic"
	default:
		return "System audio"
	}
}
