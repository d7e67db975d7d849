package motion

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/camfleet/camfleet/internal/frame"
)

var (
	boxColor  = color.RGBA{G: 255, A: 255}
	zoneColor = color.RGBA{R: 255, A: 255}
	textColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Annotate paints the detection result onto a copy of the frame:
// green bounding boxes, the red zone rectangle with its label, the
// session counter, and the REC indicator while recording. The input
// frame is untouched.
func Annotate(f *frame.Frame, res Result, cfg Config) *frame.Frame {
	b := f.Image.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, f.Image, b.Min, draw.Src)

	for _, d := range res.Detections {
		drawRect(dst, d.Rect.Add(b.Min), boxColor, 2)
	}

	if cfg.Zone.Present {
		drawRect(dst, cfg.Zone.Rect.Add(b.Min), zoneColor, 2)
		drawLabel(dst, cfg.Zone.Rect.Min.X+b.Min.X+4, cfg.Zone.Rect.Min.Y+b.Min.Y+16, "Zone", zoneColor)
	}

	elapsed := res.SessionStart
	counter := fmt.Sprintf("Objects: %d  Session: %s", res.Count, elapsed.Format("15:04:05"))
	drawLabel(dst, b.Min.X+8, b.Min.Y+16, counter, textColor)

	if cfg.Recording {
		drawLabel(dst, b.Max.X-48, b.Min.Y+16, "REC", zoneColor)
	}

	return &frame.Frame{
		Image:      dst,
		Width:      f.Width,
		Height:     f.Height,
		CapturedAt: f.CapturedAt,
	}
}

// drawRect paints a rectangle outline of the given thickness, clipped
// to the image bounds.
func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA, thickness int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for t := 0; t < thickness; t++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			setPx(img, x, r.Min.Y+t, c)
			setPx(img, x, r.Max.Y-1-t, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			setPx(img, r.Min.X+t, y, c)
			setPx(img, r.Max.X-1-t, y, c)
		}
	}
}

func setPx(img *image.RGBA, x, y int, c color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, c)
	}
}

func drawLabel(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
