package overlay

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Magnifier geometry: 21 source pixels shown at 10x.
const (
	MagnifierZoom   = 10
	MagnifierSource = 21
	MagnifierSize   = MagnifierZoom * MagnifierSource
	magnifierOffset = 30
)

// MagnifierRect places the magnifier below-right of the cursor, flipping
// to the other side near the screen edges.
func MagnifierRect(cursor image.Point, screen image.Rectangle) image.Rectangle {
	x := cursor.X + magnifierOffset
	if x+MagnifierSize > screen.Max.X {
		x = cursor.X - magnifierOffset - MagnifierSize
	}
	y := cursor.Y + magnifierOffset
	if y+MagnifierSize > screen.Max.Y {
		y = cursor.Y - magnifierOffset - MagnifierSize
	}
	x = max(x, screen.Min.X)
	y = max(y, screen.Min.Y)
	return image.Rect(x, y, x+MagnifierSize, y+MagnifierSize)
}

// magnifierLayer shows a zoomed view of the frozen desktop around the
// cursor. It samples the desktop, not the shaded canvas.
type magnifierLayer struct {
	desktop *image.RGBA
}

func (l magnifierLayer) Name() string { return "magnifier" }

func (l magnifierLayer) Render(dst *image.RGBA, s Scene) {
	if !s.Magnifier || l.desktop == nil {
		return
	}

	half := MagnifierSource / 2
	src := image.Rect(s.Cursor.X-half, s.Cursor.Y-half, s.Cursor.X+half+1, s.Cursor.Y+half+1)
	box := MagnifierRect(s.Cursor, dst.Rect)

	// Pixels outside the desktop show black.
	patch := image.NewRGBA(image.Rect(0, 0, MagnifierSource, MagnifierSource))
	xdraw.Draw(patch, patch.Rect, image.NewUniform(color.Black), image.Point{}, xdraw.Src)
	visible := src.Intersect(l.desktop.Rect)
	xdraw.Draw(patch, visible.Sub(src.Min), l.desktop, visible.Min, xdraw.Src)

	xdraw.NearestNeighbor.Scale(dst, box, patch, patch.Rect, xdraw.Src, nil)

	// Frame the center pixel.
	center := image.Rect(box.Min.X+half*MagnifierZoom, box.Min.Y+half*MagnifierZoom,
		box.Min.X+(half+1)*MagnifierZoom, box.Min.Y+(half+1)*MagnifierZoom)
	StrokeSolid(dst, center, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	StrokeSolid(dst, box, Accent)
}

// StrokeSolid outlines r with a 1px solid line.
func StrokeSolid(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	for x := r.Min.X; x < r.Max.X; x++ {
		BlendPixel(dst, x, r.Min.Y, c)
		BlendPixel(dst, x, r.Max.Y-1, c)
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		BlendPixel(dst, r.Min.X, y, c)
		BlendPixel(dst, r.Max.X-1, y, c)
	}
}
