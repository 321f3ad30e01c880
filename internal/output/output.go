// Package output writes screenshots with a two-stage save: a fast write
// to a stable cache path, then an optimized rewrite to the final path in
// the background.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/bryanchriswhite/captix/internal/logger"
	"github.com/bryanchriswhite/captix/internal/paths"
)

// Options configures where screenshots go.
type Options struct {
	Directory      string
	Prefix         string
	MonthlyFolders bool
	// CachePath overrides the stable cache file location
	CachePath string
}

// Result describes a screenshot being saved. The cache file is complete
// when Save returns; the final file is complete once Wait returns.
type Result struct {
	Path      string
	CachePath string
	CacheSize int64

	done chan struct{}
	mu   sync.Mutex
	size int64
	err  error
}

// Wait blocks until the optimized rewrite finishes.
func (r *Result) Wait() error {
	<-r.done
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Done is closed when the optimized rewrite finishes.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Size returns the final file size, or the cache file size while the
// rewrite is still running.
func (r *Result) Size() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size > 0 {
		return r.size
	}
	return r.CacheSize
}

// HumanSize formats Size for display.
func (r *Result) HumanSize() string {
	return humanize.Bytes(uint64(r.Size()))
}

// Saver performs two-stage screenshot saves.
type Saver struct {
	opts Options
	now  func() time.Time
}

// NewSaver creates a saver. An empty CachePath selects the user cache dir.
func NewSaver(opts Options) (*Saver, error) {
	if opts.CachePath == "" {
		p, err := paths.CachePath()
		if err != nil {
			return nil, err
		}
		opts.CachePath = p
	}
	if opts.Prefix == "" {
		opts.Prefix = "sc"
	}
	return &Saver{opts: opts, now: time.Now}, nil
}

// Save writes img under the configured directory with a timestamped name.
func (s *Saver) Save(img image.Image, kind string) (*Result, error) {
	path := paths.ScreenshotPath(s.opts.Directory, s.opts.Prefix, kind, s.opts.MonthlyFolders, s.now())
	return s.SaveAs(img, path)
}

// SaveAs writes img to an explicit final path.
func (s *Saver) SaveAs(img image.Image, path string) (*Result, error) {
	log := logger.WithComponent("output")
	start := time.Now()

	if err := os.Remove(s.opts.CachePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debug().Err(err).Str("path", s.opts.CachePath).Msg("Failed to remove previous cache file")
	}
	cacheSize, err := writePNG(s.opts.CachePath, img, png.BestSpeed)
	if err != nil {
		return nil, fmt.Errorf("failed to write cache file: %w", err)
	}

	log.Debug().
		Str("path", s.opts.CachePath).
		Int64("size", cacheSize).
		Dur("elapsed", time.Since(start)).
		Msg("Wrote cache screenshot")

	r := &Result{
		Path:      path,
		CachePath: s.opts.CachePath,
		CacheSize: cacheSize,
		done:      make(chan struct{}),
	}

	go func() {
		defer close(r.done)
		start := time.Now()

		size, err := writePNG(path, img, png.BestCompression)

		r.mu.Lock()
		r.size, r.err = size, err
		r.mu.Unlock()

		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to write optimized screenshot")
			return
		}
		log.Info().
			Str("path", path).
			Str("size", humanize.Bytes(uint64(size))).
			Dur("elapsed", time.Since(start)).
			Msg("Saved screenshot")
	}()

	return r, nil
}

// writePNG encodes img to a temporary file next to path and renames it
// into place, returning the final size.
func writePNG(path string, img image.Image, level png.CompressionLevel) (int64, error) {
	if err := paths.EnsureParent(path); err != nil {
		return 0, err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", tmp, err)
	}

	w := bufio.NewWriter(f)
	enc := png.Encoder{CompressionLevel: level}
	if err := enc.Encode(w, img); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to encode png: %w", err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to flush png: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to move png into place: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
