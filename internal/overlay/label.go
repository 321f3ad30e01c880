package overlay

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	labelPadding = 6
	labelMargin  = 10
)

var labelBackground = color.RGBA{A: 120}

// DimensionText formats a selection size for display.
func DimensionText(r image.Rectangle) string {
	return fmt.Sprintf("%d × %d", r.Dx(), r.Dy())
}

// LabelRect returns where the label box for text goes: anchored to the
// bottom-right corner inside sel.
func LabelRect(sel image.Rectangle, text string) image.Rectangle {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil() + labelPadding*2
	h := face.Metrics().Height.Ceil() + labelPadding*2
	corner := sel.Max.Sub(image.Pt(labelMargin, labelMargin))
	return image.Rectangle{Min: corner.Sub(image.Pt(w, h)), Max: corner}
}

// labelLayer shows the drag rectangle's size.
type labelLayer struct{}

func (labelLayer) Name() string { return "dimensions" }

func (labelLayer) Render(dst *image.RGBA, s Scene) {
	if !s.Dragging || s.Selection.Empty() {
		return
	}

	text := DimensionText(s.Selection)
	box := LabelRect(s.Selection, text)
	FillRect(dst, box, labelBackground)

	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(box.Min.X + labelPadding),
			Y: fixed.I(box.Min.Y+labelPadding) + face.Metrics().Ascent,
		},
	}
	d.DrawString(text)
}
