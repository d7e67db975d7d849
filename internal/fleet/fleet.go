// Package fleet supervises the camera pipelines: one reader goroutine
// and frame queue per camera, a shared detection worker pool, and the
// consumer-facing frame, snapshot, and recording operations.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/camfleet/camfleet/internal/capture"
	"github.com/camfleet/camfleet/internal/config"
	"github.com/camfleet/camfleet/internal/events"
	"github.com/camfleet/camfleet/internal/frame"
	"github.com/camfleet/camfleet/internal/motion"
	"github.com/camfleet/camfleet/internal/recording"
	"github.com/camfleet/camfleet/internal/repository"
)

// FrameOptions is the per-request detection snapshot. The HTTP layer
// reads the camera row once and passes the flags here; nothing is
// re-read mid-frame.
type FrameOptions struct {
	// Motion enables the detection pipeline for this frame.
	Motion bool
	// SaveScreenshot allows writing a screenshot on new-object entry.
	SaveScreenshot bool
	// SendChatVideo allows spawning an event clip on new-object entry.
	SendChatVideo bool
	// Zone is the alarm rectangle as stored (0 or 4 points).
	Zone []motion.Point
	// Reset zeroes the object counter before detection runs.
	Reset bool
}

// Options carries test seams for New. Zero values select the real
// ffmpeg-backed implementations.
type Options struct {
	Opener      capture.Opener
	SinkFactory recording.SinkFactory
}

// Fleet owns every running camera pipeline.
type Fleet struct {
	repo       repository.Repository
	dispatcher *events.Dispatcher
	cfg        *config.Config
	opener     capture.Opener
	sink       recording.SinkFactory

	mu      sync.RWMutex
	entries map[string]*entry
	cleaned bool

	pool   *WorkerPool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *slog.Logger
}

// New creates a fleet. Initialize starts the cameras.
func New(repo repository.Repository, dispatcher *events.Dispatcher, cfg *config.Config, opts Options) *Fleet {
	if opts.Opener == nil {
		opts.Opener = capture.OpenRTSP
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Fleet{
		repo:       repo,
		dispatcher: dispatcher,
		cfg:        cfg,
		opener:     opts.Opener,
		sink:       opts.SinkFactory,
		entries:    make(map[string]*entry),
		pool:       NewWorkerPool(cfg.WorkerPoolSize()),
		ctx:        ctx,
		cancel:     cancel,
		logger:     slog.Default().With("component", "fleet"),
	}
}

// Initialize opens every enabled camera concurrently. A camera that
// fails to open is logged and skipped; the rest of the fleet comes up.
func (f *Fleet) Initialize(ctx context.Context) error {
	cams, err := f.repo.ListCameras(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cameras: %w", err)
	}
	if len(cams) == 0 {
		f.logger.Warn("No enabled cameras configured")
		return nil
	}

	var wg sync.WaitGroup
	for _, cam := range cams {
		wg.Add(1)
		go func(cam repository.Camera) {
			defer wg.Done()
			if err := f.startCamera(ctx, cam); err != nil {
				f.logger.Error("Failed to start camera",
					"camera", cam.ID, "url", capture.SanitizeURL(cam.URL), "error", err)
			}
		}(cam)
	}
	wg.Wait()

	f.logger.Info("Fleet initialized", "running", len(f.IDs()), "configured", len(cams))
	return nil
}

// Reload diffs the repository against the running set: cameras no
// longer enabled are stopped, newly enabled ones are started. Running
// cameras present in both keep their pipelines untouched.
func (f *Fleet) Reload(ctx context.Context) error {
	cams, err := f.repo.ListCameras(ctx)
	if err != nil {
		return fmt.Errorf("failed to list cameras: %w", err)
	}

	want := make(map[string]repository.Camera, len(cams))
	for _, cam := range cams {
		want[cam.ID] = cam
	}

	f.mu.RLock()
	var stale []string
	for id := range f.entries {
		if _, ok := want[id]; !ok {
			stale = append(stale, id)
		}
	}
	f.mu.RUnlock()

	for _, id := range stale {
		f.stopCamera(id)
		f.logger.Info("Camera removed", "camera", id)
	}

	for _, cam := range cams {
		if f.Running(cam.ID) {
			continue
		}
		if err := f.startCamera(ctx, cam); err != nil {
			f.logger.Error("Failed to start camera on reload",
				"camera", cam.ID, "error", err)
		}
	}
	return nil
}

// Reinitialize rebuilds one camera's pipeline from its current
// repository row. Counter and tracker state start fresh. A row that no
// longer exists returns ErrNotFound; a disabled row stops the camera
// without error.
func (f *Fleet) Reinitialize(ctx context.Context, id string) error {
	f.stopCamera(id)

	cam, err := f.repo.GetCamera(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to load camera %s: %w", id, err)
	}
	if !cam.Enabled {
		return nil
	}
	return f.startCamera(ctx, *cam)
}

// GetFrame returns the newest frame for the camera, running detection
// and annotation when opts.Motion is set. Screenshot writes and clip
// spawning happen here, outside the detector.
func (f *Fleet) GetFrame(ctx context.Context, id string, opts FrameOptions) (*frame.Frame, error) {
	e, err := f.get(id)
	if err != nil {
		return nil, err
	}

	fr, err := e.queue.Get(ctx, f.cfg.FrameTimeout())
	if err != nil {
		return nil, err
	}
	if !opts.Motion {
		return fr, nil
	}

	now := time.Now()
	mcfg := motion.Config{
		Zone:           motion.ZoneFromPoints(opts.Zone),
		SaveScreenshot: opts.SaveScreenshot,
		SendChatVideo:  opts.SendChatVideo,
		Recording:      e.rec.Recording() || e.rec.ClipActive(),
	}

	var res motion.Result
	var annotated *frame.Frame
	e.detMu.Lock()
	if opts.Reset {
		e.state.Reset(now)
	}
	perr := f.pool.Do(ctx, func() {
		res = motion.Detect(fr, e.state, mcfg, now)
		annotated = motion.Annotate(fr, res, mcfg)
	})
	e.detMu.Unlock()
	if perr != nil {
		return nil, perr
	}

	if res.ShouldScreenshot {
		f.saveScreenshot(e, annotated, now)
	}
	if res.StartClip {
		f.spawnClip(e)
	}
	return annotated, nil
}

// Snapshot grabs one frame directly from the capture, bypassing the
// queue and the detector.
func (f *Fleet) Snapshot(ctx context.Context, id string) (*frame.Frame, error) {
	e, err := f.get(id)
	if err != nil {
		return nil, err
	}

	rctx, cancel := context.WithTimeout(ctx, f.cfg.FrameTimeout())
	defer cancel()
	fr, err := e.getCapture().Read(rctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, fmt.Errorf("failed to grab snapshot: %w", err)
	}
	return fr, nil
}

// SaveSnapshot grabs a snapshot and writes it under the snapshot
// directory, returning the file path.
func (f *Fleet) SaveSnapshot(ctx context.Context, id string) (string, error) {
	fr, err := f.Snapshot(ctx, id)
	if err != nil {
		return "", err
	}
	path, err := SnapshotPath(f.cfg.SnapshotDir(), id, time.Now())
	if err != nil {
		return "", err
	}
	if err := saveJPEG(path, fr, screenshotQuality); err != nil {
		return "", err
	}
	f.logger.Info("Snapshot saved", "camera", id, "path", path)
	return path, nil
}

// StartContinuousRecording begins the camera's continuous clip loop.
func (f *Fleet) StartContinuousRecording(id string) error {
	e, err := f.get(id)
	if err != nil {
		return err
	}
	return e.rec.StartContinuous(f.ctx, e.queue, f.cfg.ContinuousDuration())
}

// StopContinuousRecording stops the loop and flushes the in-flight
// clip.
func (f *Fleet) StopContinuousRecording(id string) error {
	e, err := f.get(id)
	if err != nil {
		return err
	}
	return e.rec.StopContinuous()
}

// IsRecording reports whether the camera's continuous loop is running.
func (f *Fleet) IsRecording(id string) (bool, error) {
	e, err := f.get(id)
	if err != nil {
		return false, err
	}
	return e.rec.Recording(), nil
}

// Counter returns the camera's object count and the session start.
func (f *Fleet) Counter(id string) (int, time.Time, error) {
	e, err := f.get(id)
	if err != nil {
		return 0, time.Time{}, err
	}
	e.detMu.Lock()
	defer e.detMu.Unlock()
	return e.state.Count(), e.state.SessionStart(), nil
}

// ResetCounter zeroes the camera's object counter. Objects currently
// in the zone are not recounted.
func (f *Fleet) ResetCounter(id string) error {
	e, err := f.get(id)
	if err != nil {
		return err
	}
	e.detMu.Lock()
	e.state.Reset(time.Now())
	e.detMu.Unlock()
	return nil
}

// Running reports whether the camera has a live pipeline.
func (f *Fleet) Running(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.entries[id]
	return ok
}

// IDs returns the IDs of every running camera.
func (f *Fleet) IDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.entries))
	for id := range f.entries {
		ids = append(ids, id)
	}
	return ids
}

// Cleanup stops every pipeline and recorder. Idempotent; the fleet
// cannot be restarted afterwards.
func (f *Fleet) Cleanup() {
	f.mu.Lock()
	if f.cleaned {
		f.mu.Unlock()
		return
	}
	f.cleaned = true
	entries := make([]*entry, 0, len(f.entries))
	for _, e := range f.entries {
		entries = append(entries, e)
	}
	f.entries = make(map[string]*entry)
	f.mu.Unlock()

	f.cancel()
	for _, e := range entries {
		e.stop()
	}
	f.wg.Wait()
	f.pool.Close()
	f.logger.Info("Fleet stopped", "cameras", len(entries))
}

// get looks up a running entry.
func (f *Fleet) get(id string) (*entry, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: camera %s", ErrNotRunning, id)
	}
	return e, nil
}

// startCamera opens the capture and registers the pipeline. A second
// start for the same ID is a no-op.
func (f *Fleet) startCamera(ctx context.Context, cam repository.Camera) error {
	if f.Running(cam.ID) {
		return nil
	}

	c, err := f.opener(ctx, cam.URL, f.cfg.ConnectTimeout())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	readerCtx, cancel := context.WithCancel(f.ctx)
	e := &entry{
		cam:    cam,
		queue:  NewFrameQueue(f.cfg.MaxQueueSize()),
		state:  motion.NewState(time.Now()),
		rec:    recording.NewRecorder(cam.ID, f.cfg.MediaBaseDir(), f.cfg.FPS(), f.sink),
		cap:    c,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	f.mu.Lock()
	if f.cleaned {
		f.mu.Unlock()
		cancel()
		c.Close()
		return ErrNotRunning
	}
	if _, ok := f.entries[cam.ID]; ok {
		f.mu.Unlock()
		cancel()
		c.Close()
		return nil
	}
	f.entries[cam.ID] = e
	f.mu.Unlock()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		f.runReader(readerCtx, e)
	}()

	f.logger.Info("Camera started",
		"camera", cam.ID, "url", capture.SanitizeURL(cam.URL))
	return nil
}

// stopCamera removes and tears down one pipeline. Missing IDs are a
// no-op.
func (f *Fleet) stopCamera(id string) {
	f.mu.Lock()
	e, ok := f.entries[id]
	if ok {
		delete(f.entries, id)
	}
	f.mu.Unlock()
	if ok {
		e.stop()
	}
}

// saveScreenshot writes the annotated frame and fans a screenshot
// event out to every subscriber. Failures are logged, never returned:
// the frame pipeline does not stall on artifact errors.
func (f *Fleet) saveScreenshot(e *entry, fr *frame.Frame, now time.Time) {
	path, err := ScreenshotPath(f.cfg.MediaBaseDir(), e.cam.ID, now)
	if err != nil {
		f.logger.Error("Screenshot path failed", "camera", e.cam.ID, "error", err)
		return
	}
	if err := saveJPEG(path, fr, screenshotQuality); err != nil {
		f.logger.Error("Screenshot save failed", "camera", e.cam.ID, "error", err)
		return
	}
	f.logger.Info("Motion screenshot saved", "camera", e.cam.ID, "path", path)

	if f.dispatcher == nil {
		return
	}
	subs, err := f.repo.ListNotificationSubscribers(f.ctx)
	if err != nil {
		f.logger.Error("Failed to list subscribers", "error", err)
		return
	}
	f.dispatcher.DispatchScreenshot(e.cam.ID, path, now, subs)
}

// spawnClip records an event clip in the background and dispatches a
// clip event when it lands. A clip already in flight wins the race.
func (f *Fleet) spawnClip(e *entry) {
	dur := f.cfg.ClipDuration()

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		path, err := e.rec.RecordClip(f.ctx, e.queue, dur)
		if err != nil {
			if !errors.Is(err, recording.ErrAlreadyRecording) {
				f.logger.Error("Event clip failed", "camera", e.cam.ID, "error", err)
			}
			return
		}
		f.logger.Info("Event clip recorded", "camera", e.cam.ID, "path", path)

		if f.dispatcher == nil {
			return
		}
		subs, err := f.repo.ListNotificationSubscribers(f.ctx)
		if err != nil {
			f.logger.Error("Failed to list subscribers", "error", err)
			return
		}
		f.dispatcher.DispatchClip(e.cam.ID, path, time.Now(), dur, subs)
	}()
}
