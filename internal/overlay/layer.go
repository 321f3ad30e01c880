package overlay

import (
	"image"
	"image/color"

	"github.com/bryanchriswhite/captix/internal/window"
)

// Accent is the highlight and guideline color.
var Accent = color.RGBA{R: 0, G: 150, B: 255, A: 200}

// Scene is everything the overlay shows on top of the frozen desktop, in
// overlay coordinates.
type Scene struct {
	Cursor image.Point
	// Origin is where the drag started
	Origin    image.Point
	Dragging  bool
	Selection image.Rectangle
	Highlight *window.WindowInfo
	// Preview is drawn over the highlighted window when preview mode is on
	Preview   image.Image
	PreviewAt image.Rectangle
	Magnifier bool
}

// Layer draws one element of the overlay.
type Layer interface {
	// Name identifies the layer in logs
	Name() string

	// Render draws the layer onto dst
	Render(dst *image.RGBA, s Scene)
}

// BlendPixel composites c over the pixel at (x, y). Points outside dst
// are ignored.
func BlendPixel(dst *image.RGBA, x, y int, c color.RGBA) {
	if !image.Pt(x, y).In(dst.Rect) {
		return
	}
	i := dst.PixOffset(x, y)
	a := uint32(c.A)
	src := [3]uint8{c.R, c.G, c.B}
	for k := 0; k < 3; k++ {
		dst.Pix[i+k] = uint8((uint32(src[k])*a + uint32(dst.Pix[i+k])*(255-a)) / 255)
	}
	dst.Pix[i+3] = 255
}

// FillRect blends c over every pixel of r.
func FillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	r = r.Intersect(dst.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			BlendPixel(dst, x, y, c)
		}
	}
}

// dashDot is a dash-dot stroke pattern: 6 on, 3 off, 2 on, 3 off.
func dashDot(i int) bool {
	switch m := i % 14; {
	case m < 6:
		return true
	case m < 9:
		return false
	case m < 11:
		return true
	default:
		return false
	}
}

// HLine draws a dash-dot horizontal line from x0 to x1 inclusive.
func HLine(dst *image.RGBA, x0, x1, y, width int, c color.RGBA) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	for x := x0; x <= x1; x++ {
		if !dashDot(x - x0) {
			continue
		}
		for t := 0; t < width; t++ {
			BlendPixel(dst, x, y+t, c)
		}
	}
}

// VLine draws a dash-dot vertical line from y0 to y1 inclusive.
func VLine(dst *image.RGBA, x, y0, y1, width int, c color.RGBA) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		if !dashDot(y - y0) {
			continue
		}
		for t := 0; t < width; t++ {
			BlendPixel(dst, x+t, y, c)
		}
	}
}

// StrokeRect outlines r inside its bounds.
func StrokeRect(dst *image.RGBA, r image.Rectangle, width int, c color.RGBA) {
	if r.Empty() {
		return
	}
	HLine(dst, r.Min.X, r.Max.X-1, r.Min.Y, width, c)
	HLine(dst, r.Min.X, r.Max.X-1, r.Max.Y-width, width, c)
	VLine(dst, r.Min.X, r.Min.Y, r.Max.Y-1, width, c)
	VLine(dst, r.Max.X-width, r.Min.Y, r.Max.Y-1, width, c)
}

// shadeLayer darkens everything except the drag selection.
type shadeLayer struct {
	alpha uint8
}

func (l shadeLayer) Name() string { return "shade" }

func (l shadeLayer) Render(dst *image.RGBA, s Scene) {
	shade := color.RGBA{A: l.alpha}
	b := dst.Rect
	if !s.Dragging || s.Selection.Empty() {
		FillRect(dst, b, shade)
		return
	}
	sel := s.Selection.Intersect(b)
	FillRect(dst, image.Rect(b.Min.X, b.Min.Y, b.Max.X, sel.Min.Y), shade)
	FillRect(dst, image.Rect(b.Min.X, sel.Max.Y, b.Max.X, b.Max.Y), shade)
	FillRect(dst, image.Rect(b.Min.X, sel.Min.Y, sel.Min.X, sel.Max.Y), shade)
	FillRect(dst, image.Rect(sel.Max.X, sel.Min.Y, b.Max.X, sel.Max.Y), shade)
}

// highlightLayer outlines the window under the pointer, optionally showing
// its pre-captured content on top.
type highlightLayer struct{}

func (highlightLayer) Name() string { return "highlight" }

func (highlightLayer) Render(dst *image.RGBA, s Scene) {
	if s.Dragging || s.Highlight == nil || s.Highlight.IsRoot {
		return
	}
	visible := s.Highlight.Rect().Intersect(dst.Rect)
	if visible.Empty() {
		return
	}

	if s.Preview != nil {
		at := s.PreviewAt.Intersect(dst.Rect)
		pb := s.Preview.Bounds()
		offset := at.Min.Sub(s.PreviewAt.Min)
		for y := at.Min.Y; y < at.Max.Y; y++ {
			for x := at.Min.X; x < at.Max.X; x++ {
				sx, sy := pb.Min.X+offset.X+x-at.Min.X, pb.Min.Y+offset.Y+y-at.Min.Y
				if !image.Pt(sx, sy).In(pb) {
					continue
				}
				BlendPixel(dst, x, y, color.RGBAModel.Convert(s.Preview.At(sx, sy)).(color.RGBA))
			}
		}
	}

	StrokeRect(dst, visible, 2, Accent)
}

// selectionLayer draws the edges of the drag rectangle that face away from
// the drag origin.
type selectionLayer struct{}

func (selectionLayer) Name() string { return "selection" }

func (selectionLayer) Render(dst *image.RGBA, s Scene) {
	if !s.Dragging || s.Selection.Empty() {
		return
	}
	r := s.Selection
	left, right, top, bottom := r.Min.X, r.Max.X-1, r.Min.Y, r.Max.Y-1

	if s.Cursor.Y < s.Origin.Y {
		HLine(dst, left, right, bottom, 2, Accent)
	}
	if s.Cursor.Y > s.Origin.Y {
		HLine(dst, left, right, top, 2, Accent)
	}
	if s.Cursor.X < s.Origin.X {
		VLine(dst, right, top, bottom, 2, Accent)
	}
	if s.Cursor.X > s.Origin.X {
		VLine(dst, left, top, bottom, 2, Accent)
	}
}

// guideLayer draws crosshair guidelines through the pointer to the screen
// edges.
type guideLayer struct{}

func (guideLayer) Name() string { return "guides" }

func (guideLayer) Render(dst *image.RGBA, s Scene) {
	b := dst.Rect
	HLine(dst, b.Min.X, b.Max.X-1, s.Cursor.Y, 2, Accent)
	VLine(dst, s.Cursor.X, b.Min.Y, b.Max.Y-1, 2, Accent)
}
