package motion

import "image"

// background is a running-average grayscale model. One per camera,
// never shared.
type background struct {
	w, h int
	acc  []float64
}

func newBackground(g *image.Gray) *background {
	b := g.Bounds()
	bg := &background{w: b.Dx(), h: b.Dy(), acc: make([]float64, b.Dx()*b.Dy())}
	for y := 0; y < bg.h; y++ {
		for x := 0; x < bg.w; x++ {
			bg.acc[y*bg.w+x] = float64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
		}
	}
	return bg
}

// subtract produces the foreground mask for g and folds g into the
// running average. Returns nil when the frame size changed, which
// forces the caller to rebuild the model.
func (bg *background) subtract(g *image.Gray) *image.Gray {
	b := g.Bounds()
	if b.Dx() != bg.w || b.Dy() != bg.h {
		return nil
	}
	mask := image.NewGray(image.Rect(0, 0, bg.w, bg.h))
	for y := 0; y < bg.h; y++ {
		for x := 0; x < bg.w; x++ {
			i := y*bg.w + x
			cur := float64(g.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			diff := cur - bg.acc[i]
			if diff < 0 {
				diff = -diff
			}
			if diff > diffThreshold {
				mask.Pix[i] = 255
			}
			bg.acc[i] = bg.acc[i]*(1-backgroundAlpha) + cur*backgroundAlpha
		}
	}
	return mask
}

// erode shrinks the mask: a pixel survives only if its whole k×k
// neighborhood is foreground.
func erode(m *image.Gray, k int) *image.Gray {
	return morph(m, k, true)
}

// dilate grows the mask: a pixel is set if any neighbor within k×k is
// foreground.
func dilate(m *image.Gray, k int) *image.Gray {
	return morph(m, k, false)
}

func morph(m *image.Gray, k int, all bool) *image.Gray {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	r := k / 2
	out := image.NewGray(b)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			hit := all
			for dy := -r; dy <= r; dy++ {
				for dx := -r; dx <= r; dx++ {
					nx, ny := x+dx, y+dy
					fg := nx >= 0 && nx < w && ny >= 0 && ny < h && m.Pix[ny*w+nx] == 255
					if all && !fg {
						hit = false
					} else if !all && fg {
						hit = true
					}
				}
			}
			if hit {
				out.Pix[y*w+x] = 255
			}
		}
	}
	return out
}

// openMask is a morphological open: erode then dilate, removing
// speckle noise smaller than the kernel.
func openMask(m *image.Gray, k int) *image.Gray {
	return dilate(erode(m, k), k)
}

type blob struct {
	rect     image.Rectangle
	area     int
	centroid image.Point
}

// components extracts 4-connected foreground regions, discarding those
// with area below minArea.
func components(m *image.Gray, minArea int) []blob {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	visited := make([]bool, w*h)
	var blobs []blob

	var stack []int
	for start := 0; start < w*h; start++ {
		if m.Pix[start] != 255 || visited[start] {
			continue
		}
		minX, minY, maxX, maxY := w, h, 0, 0
		area, sumX, sumY := 0, 0, 0

		stack = append(stack[:0], start)
		visited[start] = true
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%w, i/w

			area++
			sumX += x
			sumY += y
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
				nx, ny := x+d[0], y+d[1]
				if nx < 0 || nx >= w || ny < 0 || ny >= h {
					continue
				}
				j := ny*w + nx
				if m.Pix[j] == 255 && !visited[j] {
					visited[j] = true
					stack = append(stack, j)
				}
			}
		}

		if area < minArea {
			continue
		}
		blobs = append(blobs, blob{
			rect:     image.Rect(minX, minY, maxX+1, maxY+1),
			area:     area,
			centroid: image.Pt(sumX/area, sumY/area),
		})
	}
	return blobs
}
