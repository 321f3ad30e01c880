package capture

import (
	"errors"
	"fmt"
	"image"
)

var (
	// ErrUnsupportedDepth is returned for pixel formats the decoder cannot handle
	ErrUnsupportedDepth = errors.New("unsupported color depth")

	// ErrCaptureFailed wraps server-side read failures
	ErrCaptureFailed = errors.New("capture failed")
)

// RawImage is a ZPixmap image as returned by the X server.
type RawImage struct {
	Data   []byte
	Width  int
	Height int
	Depth  uint8
}

func (r RawImage) bytesPerPixel() (int, error) {
	switch r.Depth {
	case 24, 32:
		return 4, nil
	case 16:
		return 2, nil
	default:
		return 0, fmt.Errorf("%w: %d-bit", ErrUnsupportedDepth, r.Depth)
	}
}

// stride returns the scanline length, honouring server scanline padding.
func (r RawImage) stride(bpp int) (int, error) {
	if r.Width <= 0 || r.Height <= 0 {
		return 0, fmt.Errorf("%w: empty %dx%d image", ErrCaptureFailed, r.Width, r.Height)
	}
	stride := len(r.Data) / r.Height
	if stride < r.Width*bpp {
		return 0, fmt.Errorf("%w: short image data (%d bytes for %dx%d@%d)",
			ErrCaptureFailed, len(r.Data), r.Width, r.Height, r.Depth)
	}
	return stride, nil
}

// Decode converts a server image to RGBA. Depth 24 yields opaque pixels,
// depth 32 keeps the alpha channel. Depth 16 is only accepted when
// allow16 is set (direct window reads).
func Decode(raw RawImage, allow16 bool) (*image.RGBA, error) {
	if raw.Depth == 16 && !allow16 {
		return nil, fmt.Errorf("%w: 16-bit area capture", ErrUnsupportedDepth)
	}
	bpp, err := raw.bytesPerPixel()
	if err != nil {
		return nil, err
	}
	stride, err := raw.stride(bpp)
	if err != nil {
		return nil, err
	}

	img := image.NewRGBA(image.Rect(0, 0, raw.Width, raw.Height))
	for y := 0; y < raw.Height; y++ {
		src := raw.Data[y*stride : y*stride+raw.Width*bpp]
		dst := img.Pix[y*img.Stride : y*img.Stride+raw.Width*4]

		switch raw.Depth {
		case 24:
			for x := 0; x < raw.Width; x++ {
				i, o := x*4, x*4
				dst[o+0] = src[i+2]
				dst[o+1] = src[i+1]
				dst[o+2] = src[i+0]
				dst[o+3] = 0xff
			}
		case 32:
			for x := 0; x < raw.Width; x++ {
				i, o := x*4, x*4
				dst[o+0] = src[i+2]
				dst[o+1] = src[i+1]
				dst[o+2] = src[i+0]
				dst[o+3] = src[i+3]
			}
		case 16:
			for x := 0; x < raw.Width; x++ {
				r, g, b := unpack16(src[x*2], src[x*2+1])
				o := x * 4
				dst[o+0] = r
				dst[o+1] = g
				dst[o+2] = b
				dst[o+3] = 0xff
			}
		}
	}
	return img, nil
}

// unpack16 expands a little-endian 16-bit pixel whose low five bits are
// red, middle six green and high five blue.
func unpack16(lo, hi byte) (r, g, b uint8) {
	p := uint32(lo) | uint32(hi)<<8
	r = uint8((p & 0x1f) * 255 / 31)
	g = uint8(((p >> 5) & 0x3f) * 255 / 63)
	b = uint8(((p >> 11) & 0x1f) * 255 / 31)
	return r, g, b
}

// ToBGR24 packs a 24/32-bit server image into a width*height*3 BGR buffer,
// the rawvideo layout the encoder reads. Pixels outside raw are left black.
func ToBGR24(raw RawImage, width, height int) ([]byte, error) {
	if raw.Depth != 24 && raw.Depth != 32 {
		return nil, fmt.Errorf("%w: %d-bit frame", ErrUnsupportedDepth, raw.Depth)
	}
	stride, err := raw.stride(4)
	if err != nil {
		return nil, err
	}

	frame := make([]byte, width*height*3)
	w := min(width, raw.Width)
	h := min(height, raw.Height)
	for y := 0; y < h; y++ {
		src := raw.Data[y*stride:]
		dst := frame[y*width*3:]
		for x := 0; x < w; x++ {
			dst[x*3+0] = src[x*4+0]
			dst[x*3+1] = src[x*4+1]
			dst[x*3+2] = src[x*4+2]
		}
	}
	return frame, nil
}

// Crop copies the inclusive rectangle [x0,x1]×[y0,y1] out of img. The
// result is (x1-x0+1)×(y1-y0+1) pixels, clipped to img's bounds.
func Crop(img *image.RGBA, x0, y0, x1, y1 int) (*image.RGBA, error) {
	if x1 < x0 {
		x0, x1 = x1, x0
	}
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	r := image.Rect(x0, y0, x1+1, y1+1).Intersect(img.Bounds())
	if r.Empty() {
		return nil, fmt.Errorf("%w: crop %v outside %v", ErrCaptureFailed, image.Rect(x0, y0, x1+1, y1+1), img.Bounds())
	}

	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	for y := 0; y < r.Dy(); y++ {
		so := img.PixOffset(r.Min.X, r.Min.Y+y)
		copy(out.Pix[y*out.Stride:y*out.Stride+r.Dx()*4], img.Pix[so:so+r.Dx()*4])
	}
	return out, nil
}
