// Package overlay is the fullscreen selection overlay of an interactive
// screenshot: it shows the frozen desktop, highlights windows, draws the
// drag rectangle and feeds pointer and keyboard events into a
// selection.Controller.
package overlay

import (
	"image"
	"image/draw"
	"time"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// DefaultShade is the alpha of the darkening over the frozen desktop.
const DefaultShade = 128

// Renderer composites the scene over a frozen desktop image.
type Renderer struct {
	desktop *image.RGBA
	canvas  *image.RGBA
	layers  []Layer
}

// NewRenderer creates a renderer for desktop. The desktop is never
// modified.
func NewRenderer(desktop *image.RGBA) *Renderer {
	bounds := desktop.Bounds().Sub(desktop.Bounds().Min)
	src := desktop
	if desktop.Rect.Min != (image.Point{}) || desktop.Stride != 4*bounds.Dx() {
		src = image.NewRGBA(bounds)
		draw.Draw(src, bounds, desktop, desktop.Rect.Min, draw.Src)
	}

	return &Renderer{
		desktop: src,
		canvas:  image.NewRGBA(bounds),
		layers: []Layer{
			shadeLayer{alpha: DefaultShade},
			highlightLayer{},
			selectionLayer{},
			labelLayer{},
			guideLayer{},
			magnifierLayer{desktop: src},
		},
	}
}

// Bounds returns the canvas bounds.
func (r *Renderer) Bounds() image.Rectangle {
	return r.canvas.Rect
}

// Layers returns the layer names in draw order.
func (r *Renderer) Layers() []string {
	names := make([]string, len(r.layers))
	for i, l := range r.layers {
		names[i] = l.Name()
	}
	return names
}

// Render draws s and returns the canvas. The canvas is reused between
// calls.
func (r *Renderer) Render(s Scene) *image.RGBA {
	start := time.Now()

	copy(r.canvas.Pix, r.desktop.Pix)
	for _, l := range r.layers {
		l.Render(r.canvas, s)
	}

	logger.WithComponent("overlay").Trace().
		Dur("elapsed", time.Since(start)).
		Bool("dragging", s.Dragging).
		Msg("Rendered overlay frame")
	return r.canvas
}
