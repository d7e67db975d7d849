package frame

import (
	"image"
	"image/color"
	"testing"
)

func testImage(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 0, A: 255})
		}
	}
	return img
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := New(testImage(64, 48))

	data, err := f.EncodeJPEG(80)
	if err != nil {
		t.Fatalf("EncodeJPEG failed: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty JPEG data")
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if decoded.Width != 64 || decoded.Height != 48 {
		t.Errorf("decoded size = %dx%d, want 64x48", decoded.Width, decoded.Height)
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode([]byte("not a jpeg")); err == nil {
		t.Error("expected error decoding garbage")
	}
}

func TestResize(t *testing.T) {
	tests := []struct {
		name           string
		width, height  int
		wantW, wantH   int
		wantSameObject bool
	}{
		{"downscale", 32, 24, 32, 24, false},
		{"upscale", 128, 96, 128, 96, false},
		{"same size", 64, 48, 64, 48, true},
		{"zero width", 0, 24, 64, 48, true},
		{"negative height", 32, -1, 64, 48, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(testImage(64, 48))
			got := f.Resize(tt.width, tt.height)
			if got.Width != tt.wantW || got.Height != tt.wantH {
				t.Errorf("size = %dx%d, want %dx%d", got.Width, got.Height, tt.wantW, tt.wantH)
			}
			if (got == f) != tt.wantSameObject {
				t.Errorf("same object = %v, want %v", got == f, tt.wantSameObject)
			}
			if !got.CapturedAt.Equal(f.CapturedAt) {
				t.Error("resize must preserve capture timestamp")
			}
		})
	}
}

func TestGray(t *testing.T) {
	f := New(testImage(16, 16))
	g := f.Gray()
	if g.Bounds() != f.Image.Bounds() {
		t.Errorf("gray bounds = %v, want %v", g.Bounds(), f.Image.Bounds())
	}

	// Already-gray images pass through untouched.
	gf := New(image.NewGray(image.Rect(0, 0, 8, 8)))
	if gf.Gray() != gf.Image {
		t.Error("expected gray image to be returned as-is")
	}
}
