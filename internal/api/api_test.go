package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/camfleet/camfleet/internal/config"
	"github.com/camfleet/camfleet/internal/fleet"
	"github.com/camfleet/camfleet/internal/frame"
	"github.com/camfleet/camfleet/internal/motion"
	"github.com/camfleet/camfleet/internal/recording"
	"github.com/camfleet/camfleet/internal/repository"
)

// fakeFleet is a scripted FleetService.
type fakeFleet struct {
	mu        sync.Mutex
	running   map[string]bool
	recording map[string]bool
	counts    map[string]int
	frames    int // frames served before the stream times out
	reinit    []string
}

func newFakeFleet(ids ...string) *fakeFleet {
	f := &fakeFleet{
		running:   make(map[string]bool),
		recording: make(map[string]bool),
		counts:    make(map[string]int),
		frames:    3,
	}
	for _, id := range ids {
		f.running[id] = true
	}
	return f
}

func testFrame() *frame.Frame {
	return frame.New(image.NewGray(image.Rect(0, 0, 32, 24)))
}

func (f *fakeFleet) GetFrame(ctx context.Context, id string, opts fleet.FrameOptions) (*frame.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[id] {
		return nil, fleet.ErrNotRunning
	}
	if f.frames <= 0 {
		return nil, fleet.ErrTimeout
	}
	f.frames--
	return testFrame(), nil
}

func (f *fakeFleet) Snapshot(ctx context.Context, id string) (*frame.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[id] {
		return nil, fleet.ErrNotRunning
	}
	return testFrame(), nil
}

func (f *fakeFleet) SaveSnapshot(ctx context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[id] {
		return "", fleet.ErrNotRunning
	}
	return "/screenshots/current/camera " + id + "/x.jpg", nil
}

func (f *fakeFleet) StartContinuousRecording(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[id] {
		return fleet.ErrNotRunning
	}
	if f.recording[id] {
		return recording.ErrAlreadyRecording
	}
	f.recording[id] = true
	return nil
}

func (f *fakeFleet) StopContinuousRecording(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[id] {
		return fleet.ErrNotRunning
	}
	if !f.recording[id] {
		return recording.ErrNotRecording
	}
	f.recording[id] = false
	return nil
}

func (f *fakeFleet) IsRecording(id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[id] {
		return false, fleet.ErrNotRunning
	}
	return f.recording[id], nil
}

func (f *fakeFleet) Counter(id string) (int, time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[id] {
		return 0, time.Time{}, fleet.ErrNotRunning
	}
	return f.counts[id], time.Unix(1000, 0), nil
}

func (f *fakeFleet) ResetCounter(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running[id] {
		return fleet.ErrNotRunning
	}
	f.counts[id] = 0
	return nil
}

func (f *fakeFleet) Reinitialize(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reinit = append(f.reinit, id)
	f.running[id] = true
	return nil
}

func (f *fakeFleet) Running(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[id]
}

func (f *fakeFleet) IDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, up := range f.running {
		if up {
			ids = append(ids, id)
		}
	}
	return ids
}

// apiRepo is an in-memory repository for handler tests.
type apiRepo struct {
	mu    sync.Mutex
	cams  map[string]repository.Camera
	zones map[string][4]motion.Point
}

func newAPIRepo(cams ...repository.Camera) *apiRepo {
	r := &apiRepo{
		cams:  make(map[string]repository.Camera),
		zones: make(map[string][4]motion.Point),
	}
	for _, c := range cams {
		r.cams[c.ID] = c
	}
	return r
}

func (r *apiRepo) ListCameras(ctx context.Context) ([]repository.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Camera
	for _, c := range r.cams {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *apiRepo) ListAllCameras(ctx context.Context) ([]repository.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.Camera
	for _, c := range r.cams {
		out = append(out, c)
	}
	return out, nil
}

func (r *apiRepo) GetCamera(ctx context.Context, id string) (*repository.Camera, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (r *apiRepo) AddCamera(ctx context.Context, cam *repository.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cams[cam.ID] = *cam
	return nil
}

func (r *apiRepo) UpdateCamera(ctx context.Context, cam *repository.Camera) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cams[cam.ID]; !ok {
		return repository.ErrNotFound
	}
	r.cams[cam.ID] = *cam
	return nil
}

func (r *apiRepo) DeleteCamera(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cams[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.cams, id)
	return nil
}

func (r *apiRepo) GetZone(ctx context.Context, cameraID string) ([]motion.Point, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pts, ok := r.zones[cameraID]
	if !ok {
		return nil, nil
	}
	return pts[:], nil
}

func (r *apiRepo) UpdateZone(ctx context.Context, cameraID string, pts [4]motion.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zones[cameraID] = pts
	return nil
}

func (r *apiRepo) ListNotificationSubscribers(ctx context.Context) ([]string, error) {
	return nil, nil
}

func testServer(t *testing.T, repo repository.Repository, fs FleetService) *httptest.Server {
	t.Helper()
	router, err := NewRouter(Deps{
		Repo:   repo,
		Fleet:  fs,
		Config: config.Default(),
	})
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func enabledCamera(id string) repository.Camera {
	return repository.Camera{
		ID:      id,
		Name:    "Camera " + id,
		URL:     "rtsp://host/" + id,
		Enabled: true,
	}
}

func decodeResponse(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return out
}

func TestCameraCRUD(t *testing.T) {
	repo := newAPIRepo()
	fs := newFakeFleet()
	srv := testServer(t, repo, fs)

	body, _ := json.Marshal(enabledCamera("cam1"))
	resp, err := http.Post(srv.URL+"/api/v1/cameras/", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if len(fs.reinit) != 1 || fs.reinit[0] != "cam1" {
		t.Errorf("reinit calls = %v, want [cam1]", fs.reinit)
	}

	resp, err = http.Get(srv.URL + "/api/v1/cameras/cam1")
	if err != nil {
		t.Fatal(err)
	}
	out := decodeResponse(t, resp)
	if !out.Success {
		t.Fatalf("get failed: %+v", out.Error)
	}

	// Update with a new URL rebuilds the pipeline.
	cam := enabledCamera("cam1")
	cam.URL = "rtsp://host/other"
	body, _ = json.Marshal(cam)
	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/v1/cameras/cam1", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	resp.Body.Close()
	if len(fs.reinit) != 2 {
		t.Errorf("update should reinitialize, calls = %v", fs.reinit)
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/api/v1/cameras/cam1", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(srv.URL + "/api/v1/cameras/cam1")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCreateCameraValidation(t *testing.T) {
	srv := testServer(t, newAPIRepo(), newFakeFleet())

	tests := []struct {
		name string
		cam  repository.Camera
	}{
		{"missing id", repository.Camera{Name: "x", URL: "rtsp://host/1"}},
		{"missing name", repository.Camera{ID: "a", URL: "rtsp://host/1"}},
		{"bad scheme", repository.Camera{ID: "a", Name: "x", URL: "http://host/1"}},
		{"no host", repository.Camera{ID: "a", Name: "x", URL: "rtsp://"}},
		{"bad id chars", repository.Camera{ID: "a b", Name: "x", URL: "rtsp://host/1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.cam)
			resp, err := http.Post(srv.URL+"/api/v1/cameras/", "application/json", bytes.NewReader(body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestZoneUpdateRequiresFourPoints(t *testing.T) {
	repo := newAPIRepo(enabledCamera("cam1"))
	srv := testServer(t, repo, newFakeFleet("cam1"))

	for _, n := range []int{0, 3, 5} {
		pts := make([]motion.Point, n)
		body, _ := json.Marshal(ZoneRequest{Points: pts})
		resp, err := http.Post(srv.URL+"/api/v1/zones/cam1", "application/json", bytes.NewReader(body))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%d points: status = %d, want 400", n, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestZoneRoundTrip(t *testing.T) {
	repo := newAPIRepo(enabledCamera("cam1"))
	srv := testServer(t, repo, newFakeFleet("cam1"))

	pts := []motion.Point{{X: 10, Y: 20}, {X: 110, Y: 20}, {X: 10, Y: 120}, {X: 110, Y: 120}}
	body, _ := json.Marshal(ZoneRequest{Points: pts})
	resp, err := http.Post(srv.URL+"/api/v1/zones/cam1", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/v1/zones/cam1")
	if err != nil {
		t.Fatal(err)
	}
	out := decodeResponse(t, resp)
	data, _ := json.Marshal(out.Data)
	var zone struct {
		CameraID string         `json:"camera_id"`
		Points   []motion.Point `json:"points"`
	}
	if err := json.Unmarshal(data, &zone); err != nil {
		t.Fatal(err)
	}
	if len(zone.Points) != 4 || zone.Points[0] != pts[0] {
		t.Errorf("zone points = %v, want %v", zone.Points, pts)
	}
}

func TestZoneUnknownCamera(t *testing.T) {
	srv := testServer(t, newAPIRepo(), newFakeFleet())

	resp, err := http.Get(srv.URL + "/api/v1/zones/ghost")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestRecordingControl(t *testing.T) {
	repo := newAPIRepo(enabledCamera("cam1"))
	srv := testServer(t, repo, newFakeFleet("cam1"))

	resp, err := http.Post(srv.URL+"/api/v1/recording/cam1/start", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Second start conflicts.
	resp, _ = http.Post(srv.URL+"/api/v1/recording/cam1/start", "application/json", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Get(srv.URL + "/api/v1/recording/cam1/status")
	out := decodeResponse(t, resp)
	data, _ := json.Marshal(out.Data)
	if !strings.Contains(string(data), `"recording":true`) {
		t.Errorf("status body = %s", data)
	}

	resp, _ = http.Post(srv.URL+"/api/v1/recording/cam1/stop", "application/json", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("stop status = %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp, _ = http.Post(srv.URL+"/api/v1/recording/cam1/stop", "application/json", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second stop status = %d, want 409", resp.StatusCode)
	}
	resp.Body.Close()

	// Unknown camera.
	resp, _ = http.Post(srv.URL+"/api/v1/recording/ghost/start", "application/json", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown camera status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestCounterEndpoints(t *testing.T) {
	fs := newFakeFleet("cam1")
	fs.counts["cam1"] = 7
	srv := testServer(t, newAPIRepo(enabledCamera("cam1")), fs)

	resp, err := http.Get(srv.URL + "/api/v1/counter/cam1")
	if err != nil {
		t.Fatal(err)
	}
	out := decodeResponse(t, resp)
	data, _ := json.Marshal(out.Data)
	if !strings.Contains(string(data), `"count":7`) {
		t.Errorf("counter body = %s", data)
	}

	resp, _ = http.Post(srv.URL+"/api/v1/counter/cam1/reset", "application/json", nil)
	out = decodeResponse(t, resp)
	data, _ = json.Marshal(out.Data)
	if !strings.Contains(string(data), `"count":0`) {
		t.Errorf("counter after reset = %s", data)
	}
}

func TestSnapshotEndpoint(t *testing.T) {
	srv := testServer(t, newAPIRepo(enabledCamera("cam1")), newFakeFleet("cam1"))

	resp, err := http.Get(srv.URL + "/snapshot/cam1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("content type = %s", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if len(data) < 4 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Error("body is not a JPEG")
	}

	resp, _ = http.Get(srv.URL + "/snapshot/ghost")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown camera status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestScreenshotEndpoint(t *testing.T) {
	srv := testServer(t, newAPIRepo(enabledCamera("cam1")), newFakeFleet("cam1"))

	resp, err := http.Post(srv.URL+"/screenshot/cam1", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	out := decodeResponse(t, resp)
	data, _ := json.Marshal(out.Data)
	if !strings.Contains(string(data), "camera cam1") {
		t.Errorf("screenshot body = %s", data)
	}
}

func TestVideoStreamEndsAfterStall(t *testing.T) {
	fs := newFakeFleet("cam1")
	fs.frames = 2
	srv := testServer(t, newAPIRepo(enabledCamera("cam1")), fs)

	client := &http.Client{Timeout: 60 * time.Second}
	resp, err := client.Get(srv.URL + "/video/cam1")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Fatalf("content type = %s", ct)
	}

	// The fake serves two frames then times out; after ten consecutive
	// timeouts the response ends.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("stream read failed: %v", err)
	}
	if n := bytes.Count(body, []byte("--frame")); n != 2 {
		t.Errorf("frame parts = %d, want 2", n)
	}
	if !bytes.Contains(body, []byte{0xFF, 0xD8}) {
		t.Error("no JPEG data in stream")
	}
}

func TestVideoUnknownCamera(t *testing.T) {
	srv := testServer(t, newAPIRepo(), newFakeFleet())

	resp, err := http.Get(srv.URL + "/video/ghost")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t, newAPIRepo(), newFakeFleet("cam1"))

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), `"status":"healthy"`) {
		t.Errorf("health body = %s", data)
	}
}

func TestValidateCameraID(t *testing.T) {
	valid := []string{"cam1", "front_door", "garage-2", "A9"}
	for _, id := range valid {
		if err := ValidateCameraID(id); err != nil {
			t.Errorf("ValidateCameraID(%q) = %v, want nil", id, err)
		}
	}
	invalid := []string{"", "a b", "cam/1", strings.Repeat("x", 51)}
	for _, id := range invalid {
		if err := ValidateCameraID(id); err == nil {
			t.Errorf("ValidateCameraID(%q) = nil, want error", id)
		}
	}
}
