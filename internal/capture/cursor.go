package capture

import (
	"errors"
	"image"
	"image/draw"

	"github.com/bryanchriswhite/captix/internal/logger"
)

// ErrNoCursor is returned when the cursor image cannot be read, typically
// because XFIXES is missing.
var ErrNoCursor = errors.New("cursor image unavailable")

// CursorImage is the hardware cursor at the moment it was fetched. X and
// Y are the pointer's root position; Pixels are premultiplied ARGB.
type CursorImage struct {
	X, Y          int
	Width, Height int
	XHot, YHot    int
	Pixels        []uint32
}

// RGBA converts the ARGB cursor into an image. Both layouts are
// premultiplied so channels are copied as-is.
func (c *CursorImage) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	for i, p := range c.Pixels {
		if i >= c.Width*c.Height {
			break
		}
		o := i * 4
		img.Pix[o+0] = uint8(p >> 16)
		img.Pix[o+1] = uint8(p >> 8)
		img.Pix[o+2] = uint8(p)
		img.Pix[o+3] = uint8(p >> 24)
	}
	return img
}

// Placement returns where the cursor's top-left lands in an image whose
// origin sits at (offsetX, offsetY) in root coordinates.
func (c *CursorImage) Placement(offsetX, offsetY int) image.Rectangle {
	x := c.X - c.XHot - offsetX
	y := c.Y - c.YHot - offsetY
	return image.Rect(x, y, x+c.Width, y+c.Height)
}

// CompositeCursor alpha-blends cur onto dst. It reports false without
// touching dst when no cursor pixel overlaps the image.
func CompositeCursor(dst *image.RGBA, cur *CursorImage, offsetX, offsetY int) bool {
	if cur == nil || cur.Width <= 0 || cur.Height <= 0 {
		return false
	}

	at := cur.Placement(offsetX, offsetY)
	if !at.Overlaps(dst.Bounds()) {
		logger.WithComponent("cursor").Debug().
			Int("x", at.Min.X).
			Int("y", at.Min.Y).
			Msg("Cursor outside captured bounds")
		return false
	}

	draw.Draw(dst, at, cur.RGBA(), image.Point{}, draw.Over)
	return true
}
