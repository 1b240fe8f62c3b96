package liveness

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	_ "golang.org/x/image/webp"
)

// Frame is a decoded RGB image. It is owned by a single verification attempt
// and discarded after scoring.
type Frame struct {
	Pix    []uint8 // packed RGB, 3 bytes per pixel, row-major
	Width  int
	Height int
}

// At returns the R, G, B values of the pixel at (x, y).
func (f *Frame) At(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// DecodeFrame decodes a base64 payload (optionally carrying a data-URI
// prefix, e.g. "data:image/jpeg;base64,...") into an RGB frame.
// Supported formats: JPEG, PNG, WebP.
func DecodeFrame(encoded string) (*Frame, error) {
	// Strip data URL prefix if present
	if i := strings.IndexByte(encoded, ','); i >= 0 {
		encoded = encoded[i+1:]
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode base64: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	return FrameFromImage(img), nil
}

// FrameFromImage converts any image.Image into a packed RGB frame.
func FrameFromImage(img image.Image) *Frame {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	f := &Frame{
		Pix:    make([]uint8, w*h*3),
		Width:  w,
		Height: h,
	}

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			f.Pix[i] = uint8(r >> 8)
			f.Pix[i+1] = uint8(g >> 8)
			f.Pix[i+2] = uint8(b >> 8)
			i += 3
		}
	}

	return f
}
