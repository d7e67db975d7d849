// Package frame provides the decoded video frame type shared by the
// capture, fleet, motion, and recording packages.
package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"

	"golang.org/x/image/draw"
)

// Frame is an immutable decoded image with its capture timestamp.
// The reader that produced it is the only writer; everyone else reads.
type Frame struct {
	Image      image.Image
	Width      int
	Height     int
	CapturedAt time.Time
}

// New wraps a decoded image. CapturedAt uses the monotonic clock so
// tracker staleness and screenshot debounce are immune to wall jumps.
func New(img image.Image) *Frame {
	b := img.Bounds()
	return &Frame{
		Image:      img,
		Width:      b.Dx(),
		Height:     b.Dy(),
		CapturedAt: time.Now(),
	}
}

// Decode parses JPEG bytes into a Frame.
func Decode(data []byte) (*Frame, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return New(img), nil
}

// EncodeJPEG encodes the frame as JPEG with the given quality (1-100).
func (f *Frame) EncodeJPEG(quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = 80
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return buf.Bytes(), nil
}

// Resize returns a new frame scaled to width x height. The capture
// timestamp is preserved. A no-op when the size already matches.
func (f *Frame) Resize(width, height int) *Frame {
	if width <= 0 || height <= 0 || (width == f.Width && height == f.Height) {
		return f
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), f.Image, f.Image.Bounds(), draw.Over, nil)
	return &Frame{
		Image:      dst,
		Width:      width,
		Height:     height,
		CapturedAt: f.CapturedAt,
	}
}

// Gray returns the frame converted to 8-bit grayscale. Detection works
// on luma only.
func (f *Frame) Gray() *image.Gray {
	if g, ok := f.Image.(*image.Gray); ok {
		return g
	}
	b := f.Image.Bounds()
	g := image.NewGray(b)
	draw.Draw(g, b, f.Image, b.Min, draw.Src)
	return g
}
