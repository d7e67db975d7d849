package motion

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/camfleet/camfleet/internal/frame"
)

// sceneFrame renders a dark scene with an optional white square whose
// top-left corner is at (x, y).
func sceneFrame(w, h, x, y, size int) *frame.Frame {
	img := image.NewGray(image.Rect(0, 0, w, h))
	if size > 0 {
		for dy := 0; dy < size; dy++ {
			for dx := 0; dx < size; dx++ {
				px, py := x+dx, y+dy
				if px >= 0 && px < w && py >= 0 && py < h {
					img.SetGray(px, py, color.Gray{Y: 255})
				}
			}
		}
	}
	return frame.New(img)
}

func zone(x1, y1, x2, y2 int) Zone {
	return ZoneFromPoints([]Point{{x1, y1}, {x2, y1}, {x1, y2}, {x2, y2}})
}

func TestZoneFromPoints(t *testing.T) {
	z := ZoneFromPoints([]Point{{230, 440}, {485, 440}, {230, 575}, {485, 575}})
	if !z.Present {
		t.Fatal("zone should be present with 4 points")
	}
	want := image.Rect(230, 440, 485, 575)
	if z.Rect != want {
		t.Errorf("zone rect = %v, want %v", z.Rect, want)
	}

	if z := ZoneFromPoints(nil); z.Present {
		t.Error("empty point list must yield absent zone")
	}
	if z := ZoneFromPoints([]Point{{1, 1}, {2, 2}}); z.Present {
		t.Error("two points must yield absent zone")
	}
}

func TestZoneContains(t *testing.T) {
	frameBounds := image.Rect(0, 0, 640, 480)
	z := zone(100, 100, 200, 200)

	if !z.Contains(image.Pt(150, 150), frameBounds) {
		t.Error("centroid inside zone should match")
	}
	if z.Contains(image.Pt(50, 50), frameBounds) {
		t.Error("centroid outside zone should not match")
	}

	// Absent zone arms the whole frame.
	absent := Zone{}
	if !absent.Contains(image.Pt(600, 400), frameBounds) {
		t.Error("absent zone should cover the whole frame")
	}
}

func TestDetectCountsObjectOnce(t *testing.T) {
	st := NewState(time.Unix(0, 0))
	cfg := Config{Zone: zone(100, 100, 300, 300)}
	now := time.Unix(100, 0)

	// Seed the background with an empty scene.
	Detect(sceneFrame(640, 480, 0, 0, 0), st, cfg, now)

	// Object drifts through the zone, 10 px per frame at ~30 ms steps.
	for i := 0; i < 10; i++ {
		now = now.Add(33 * time.Millisecond)
		res := Detect(sceneFrame(640, 480, 120+i*10, 150, 50), st, cfg, now)
		if i > 0 && len(res.Detections) == 0 {
			t.Fatalf("frame %d: expected a detection", i)
		}
	}

	if got := st.Count(); got != 1 {
		t.Errorf("session counter = %d, want 1 (same object must count once)", got)
	}
}

func TestDetectRecountsAfterStaleness(t *testing.T) {
	st := NewState(time.Unix(0, 0))
	cfg := Config{Zone: zone(100, 100, 300, 300)}
	now := time.Unix(100, 0)

	Detect(sceneFrame(640, 480, 0, 0, 0), st, cfg, now)

	now = now.Add(33 * time.Millisecond)
	Detect(sceneFrame(640, 480, 150, 150, 50), st, cfg, now)
	if st.Count() != 1 {
		t.Fatalf("counter = %d after first entry, want 1", st.Count())
	}

	// Object leaves; tracker goes stale well past the 2 s window.
	for i := 0; i < 3; i++ {
		now = now.Add(2 * time.Second)
		Detect(sceneFrame(640, 480, 0, 0, 0), st, cfg, now)
	}

	now = now.Add(33 * time.Millisecond)
	Detect(sceneFrame(640, 480, 150, 150, 50), st, cfg, now)
	if st.Count() != 2 {
		t.Errorf("counter = %d after re-entry, want 2", st.Count())
	}
}

func TestDetectIgnoresObjectOutsideZone(t *testing.T) {
	st := NewState(time.Unix(0, 0))
	cfg := Config{Zone: zone(400, 300, 600, 450)}
	now := time.Unix(100, 0)

	Detect(sceneFrame(640, 480, 0, 0, 0), st, cfg, now)

	for i := 0; i < 5; i++ {
		now = now.Add(33 * time.Millisecond)
		res := Detect(sceneFrame(640, 480, 50+i*5, 50, 50), st, cfg, now)
		if res.NewObjects != 0 {
			t.Fatalf("frame %d: object outside zone reported as new", i)
		}
	}
	if st.Count() != 0 {
		t.Errorf("counter = %d, want 0 for motion outside the zone", st.Count())
	}
}

func TestDetectSmallContoursDiscarded(t *testing.T) {
	st := NewState(time.Unix(0, 0))
	cfg := Config{}
	now := time.Unix(100, 0)

	Detect(sceneFrame(640, 480, 0, 0, 0), st, cfg, now)

	// A 10x10 square is far below the 1500 px² floor even after the
	// dilation steps.
	now = now.Add(33 * time.Millisecond)
	res := Detect(sceneFrame(640, 480, 200, 200, 10), st, cfg, now)
	if len(res.Detections) != 0 {
		t.Errorf("tiny contour should be discarded, got %d detections", len(res.Detections))
	}
}

func TestDetectScreenshotDebounce(t *testing.T) {
	st := NewState(time.Unix(0, 0))
	cfg := Config{Zone: zone(100, 100, 400, 400), SaveScreenshot: true}
	now := time.Unix(100, 0)

	Detect(sceneFrame(640, 480, 0, 0, 0), st, cfg, now)

	now = now.Add(33 * time.Millisecond)
	res := Detect(sceneFrame(640, 480, 150, 150, 50), st, cfg, now)
	if !res.ShouldScreenshot {
		t.Fatal("first zone entry should request a screenshot")
	}

	// A second distinct object inside the debounce window stays quiet.
	now = now.Add(500 * time.Millisecond)
	res = Detect(sceneFrame(640, 480, 300, 300, 50), st, cfg, now)
	if res.ShouldScreenshot {
		t.Error("screenshot requested inside the debounce window")
	}
	if res.NewObjects != 1 {
		t.Errorf("NewObjects = %d, want 1", res.NewObjects)
	}
}

func TestDetectClipTrigger(t *testing.T) {
	tests := []struct {
		name      string
		sendVideo bool
		recording bool
		want      bool
	}{
		{"video enabled, idle", true, false, true},
		{"video enabled, already recording", true, true, false},
		{"video disabled", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := NewState(time.Unix(0, 0))
			cfg := Config{
				Zone:          zone(100, 100, 400, 400),
				SendChatVideo: tt.sendVideo,
				Recording:     tt.recording,
			}
			now := time.Unix(100, 0)
			Detect(sceneFrame(640, 480, 0, 0, 0), st, cfg, now)

			now = now.Add(33 * time.Millisecond)
			res := Detect(sceneFrame(640, 480, 150, 150, 50), st, cfg, now)
			if res.StartClip != tt.want {
				t.Errorf("StartClip = %v, want %v", res.StartClip, tt.want)
			}
		})
	}
}

func TestStateReset(t *testing.T) {
	st := NewState(time.Unix(0, 0))
	cfg := Config{Zone: zone(100, 100, 400, 400)}
	now := time.Unix(100, 0)

	Detect(sceneFrame(640, 480, 0, 0, 0), st, cfg, now)
	now = now.Add(33 * time.Millisecond)
	Detect(sceneFrame(640, 480, 150, 150, 50), st, cfg, now)
	if st.Count() == 0 {
		t.Fatal("expected a counted object before reset")
	}

	resetAt := now.Add(time.Second)
	st.Reset(resetAt)
	if st.Count() != 0 {
		t.Errorf("counter = %d after reset, want 0", st.Count())
	}
	if st.SessionStart() != resetAt {
		t.Errorf("session start = %v, want %v", st.SessionStart(), resetAt)
	}
}

func TestAnnotateDoesNotMutateInput(t *testing.T) {
	f := sceneFrame(320, 240, 50, 50, 40)
	res := Result{
		Detections: []Detection{{Rect: image.Rect(50, 50, 90, 90), Centroid: image.Pt(70, 70)}},
		Count:      3,
	}
	cfg := Config{Zone: zone(20, 20, 200, 200), Recording: true}

	before := f.Gray().Pix[0]
	out := Annotate(f, res, cfg)
	if out == f {
		t.Fatal("annotate must return a copy")
	}
	if f.Gray().Pix[0] != before {
		t.Error("annotate mutated the input frame")
	}
	if out.Width != f.Width || out.Height != f.Height {
		t.Errorf("annotated size = %dx%d, want %dx%d", out.Width, out.Height, f.Width, f.Height)
	}
}
