package overlay

import (
	"fmt"
	"image"
)

// Format describes the server's ZPixmap layout for a depth.
type Format struct {
	Depth        uint8
	BitsPerPixel int
	ScanlinePad  int
}

// Stride is the padded length of one scanline of width pixels.
func (f Format) Stride(width int) int {
	unpadded := width * f.BitsPerPixel / 8
	pad := f.ScanlinePad / 8
	if pad <= 0 {
		return unpadded
	}
	return (unpadded + pad - 1) / pad * pad
}

// EncodeRows converts rows [y0, y1) of img to ZPixmap bytes. The visual is
// assumed to use the usual 0xff0000/0xff00/0xff masks.
func EncodeRows(img *image.RGBA, f Format, y0, y1 int) ([]byte, error) {
	bpp := f.BitsPerPixel / 8
	if bpp != 3 && bpp != 4 {
		return nil, fmt.Errorf("unsupported bytes per pixel: %d", bpp)
	}

	b := img.Rect
	width := b.Dx()
	stride := f.Stride(width)
	data := make([]byte, stride*(y1-y0))

	for y := y0; y < y1; y++ {
		row := (y - y0) * stride
		src := img.PixOffset(b.Min.X, b.Min.Y+y)
		for x := 0; x < width; x++ {
			s := src + x*4
			d := row + x*bpp
			data[d] = img.Pix[s+2]
			data[d+1] = img.Pix[s+1]
			data[d+2] = img.Pix[s]
			if bpp == 4 && f.Depth == 32 {
				data[d+3] = img.Pix[s+3]
			}
		}
	}
	return data, nil
}

// putImageHeader is the fixed size of a PutImage request.
const putImageHeader = 24

// StripRows is how many scanlines fit in one PutImage request of at most
// maxRequest bytes.
func StripRows(stride, maxRequest int) int {
	rows := (maxRequest - putImageHeader) / stride
	return max(rows, 1)
}
