// Package capture implements the capture screen controller: permission,
// lens and flash state, the captured photo and its face detection result.
//
// The controller is the single owner of screen state. Every transition
// happens under one mutex, and no lock is held while the camera or the
// detector works. Detection runs in its own goroutine tagged with the id
// of the photo it belongs to; a result is applied only if that photo is
// still the one on screen.
package capture

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/facecam/internal/log"
	"github.com/teslashibe/facecam/pkg/camera"
	"github.com/teslashibe/facecam/pkg/detection"
	"github.com/teslashibe/facecam/pkg/permission"
	"github.com/teslashibe/facecam/pkg/photo"
)

// Settings is the user-controlled capture state.
type Settings struct {
	Lens  camera.Lens `json:"lens"`
	Flash bool        `json:"flash"`
}

// State is an immutable snapshot of the screen.
type State struct {
	Permission   permission.State
	Settings     Settings
	Preview      Preview
	CameraActive bool
}

// MarshalJSON flattens the preview union into phase, photo and faces.
func (s State) MarshalJSON() ([]byte, error) {
	out := struct {
		Permission     permission.State `json:"permission"`
		Settings       Settings         `json:"settings"`
		CameraActive   bool             `json:"camera_active"`
		Phase          Phase            `json:"phase"`
		Photo          *photo.Photo     `json:"photo,omitempty"`
		Faces          []detection.Face `json:"faces,omitempty"`
		DetectionError string           `json:"detection_error,omitempty"`
	}{
		Permission:   s.Permission,
		Settings:     s.Settings,
		CameraActive: s.CameraActive,
		Phase:        s.Preview.Phase(),
	}
	if p, ok := PhotoOf(s.Preview); ok {
		out.Photo = &p
	}
	if v, ok := s.Preview.(PhotoWithFaces); ok {
		out.Faces = v.Faces
		if v.Err != nil {
			out.DetectionError = v.Err.Error()
		}
	}
	return json.Marshal(out)
}

// Options configures a Controller.
type Options struct {
	// Logger receives controller logs. Defaults to the "capture" component logger.
	Logger *slog.Logger

	// DiscardOnClose removes a photo file once the photo leaves the
	// screen: closed, replaced by a new capture, or never shown because
	// the controller closed first.
	DiscardOnClose bool

	// DetectTimeout bounds a single detection. Zero means no limit.
	DetectTimeout time.Duration
}

// Option is a functional option for configuring the controller.
type Option func(*Options)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithDiscardOnClose removes photo files once they leave the screen.
func WithDiscardOnClose(discard bool) Option {
	return func(o *Options) {
		o.DiscardOnClose = discard
	}
}

// WithDetectTimeout bounds each detection run.
func WithDetectTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.DetectTimeout = d
	}
}

// Controller owns the capture screen state.
type Controller struct {
	camera   *camera.Manager
	device   camera.Device
	detector detection.Detector
	gate     permission.Gate
	photos   *photo.Store
	opts     Options
	log      *slog.Logger

	mu           sync.Mutex
	perm         permission.State
	settings     Settings
	preview      Preview
	cancelDetect context.CancelFunc
	listeners    []func(State)
	changed      chan struct{} // closed and replaced on every notify
	closed       bool

	// applyMu orders camera reconfiguration; notifyMu orders listener calls.
	applyMu  sync.Mutex
	notifyMu sync.Mutex

	wg sync.WaitGroup
}

// New returns a controller that exclusively owns device. The manager's
// OnConfigChange is pointed at the device so every settings change
// reaches it.
func New(manager *camera.Manager, device camera.Device, detector detection.Detector, gate permission.Gate, photos *photo.Store, opts ...Option) *Controller {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = log.Component("capture")
	}

	cfg := manager.GetConfig()
	manager.OnConfigChange = device.Apply

	return &Controller{
		camera:   manager,
		device:   device,
		detector: detector,
		gate:     gate,
		photos:   photos,
		opts:     o,
		log:      o.Logger,
		perm:     gate.Status(context.Background()),
		settings: Settings{Lens: cfg.Lens, Flash: cfg.Torch},
		preview:  NoPhoto{},
		changed:  make(chan struct{}),
	}
}

// OnChange registers fn to receive the state after every transition.
// Deliveries are serialised and each carries the state current at
// delivery time.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// State returns a snapshot of the screen.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Controller) stateLocked() State {
	_, showingPhoto := PhotoOf(c.preview)
	return State{
		Permission:   c.perm,
		Settings:     c.settings,
		Preview:      clonePreview(c.preview),
		CameraActive: c.perm == permission.Granted && !showingPhoto,
	}
}

// Photos returns the store captured photos are written to.
func (c *Controller) Photos() *photo.Store {
	return c.photos
}

// Camera returns the camera configuration manager.
func (c *Controller) Camera() *camera.Manager {
	return c.camera
}

// Device returns the capture device, for live preview frames.
func (c *Controller) Device() camera.Device {
	return c.device
}

// Mount requests permission if it has not been granted yet.
func (c *Controller) Mount(ctx context.Context) (permission.State, error) {
	if state := c.gate.Status(ctx); state == permission.Granted {
		c.mu.Lock()
		c.perm = state
		c.mu.Unlock()
		c.syncCamera()
		c.notify()
		return state, nil
	}
	return c.RequestPermission(ctx)
}

// RequestPermission asks the permission collaborator for camera access.
func (c *Controller) RequestPermission(ctx context.Context) (permission.State, error) {
	state, err := c.gate.Request(ctx)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return state, ErrClosed
	}
	c.perm = state
	c.mu.Unlock()

	if state == permission.Granted {
		c.log.Info("camera permission granted")
	} else {
		c.log.Warn("camera permission not granted", "state", state, "error", err)
	}

	c.syncCamera()
	c.notify()
	return state, err
}

// Capture takes a photo, stores it and starts face detection on it.
// The caller blocks until the device returns; the rest of the
// controller stays usable meanwhile. Failures are logged and returned,
// and leave the screen unchanged.
func (c *Controller) Capture(ctx context.Context) (photo.Photo, error) {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return photo.Photo{}, err
	}
	c.mu.Unlock()

	frame, err := c.device.TakePhoto(ctx)
	if err != nil {
		c.log.Error("error capturing photo", "error", err)
		return photo.Photo{}, &CaptureError{Err: err}
	}

	p, err := c.photos.Save(frame.JPEG, photo.Meta{
		Width:    frame.Width,
		Height:   frame.Height,
		Lens:     string(frame.Lens),
		Mirrored: frame.Mirrored,
		Flash:    frame.Torch,
	})
	if err != nil {
		c.log.Error("error storing photo", "error", err)
		return photo.Photo{}, &CaptureError{Err: err}
	}

	c.log.Info("photo captured", "id", p.ID, "width", p.Width, "height", p.Height, "lens", p.Lens)

	if !c.onPhotoAvailable(p) {
		c.discard(p)
		return photo.Photo{}, ErrClosed
	}
	return p, nil
}

// onPhotoAvailable puts p on screen and starts its detection task.
// Any detection still running for an earlier photo is cancelled.
func (c *Controller) onPhotoAvailable(p photo.Photo) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	if c.cancelDetect != nil {
		c.cancelDetect()
	}
	replaced, hadPhoto := PhotoOf(c.preview)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.opts.DetectTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.opts.DetectTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancelDetect = cancel
	c.preview = PhotoOnly{Photo: p}
	c.wg.Add(1)
	c.mu.Unlock()

	go c.detect(ctx, p)

	if hadPhoto && replaced.ID != p.ID {
		c.discard(replaced)
	}

	c.syncCamera()
	c.notify()
	return true
}

func (c *Controller) detect(ctx context.Context, p photo.Photo) {
	defer c.wg.Done()

	faces, err := detection.DetectFile(ctx, c.detector, p.Path)
	if errors.Is(err, context.Canceled) {
		c.log.Debug("detection cancelled", "photo", p.ID)
		return
	}
	c.onDetectionResult(p.ID, faces, err)
}

// onDetectionResult applies a detection result for photo id. It returns
// false when the result is stale: the photo on screen is another one,
// was closed, or already has its result.
func (c *Controller) onDetectionResult(id string, faces []detection.Face, err error) bool {
	c.mu.Lock()
	current, ok := c.preview.(PhotoOnly)
	if !ok || current.Photo.ID != id {
		c.mu.Unlock()
		c.log.Debug("discarding stale detection result", "photo", id)
		return false
	}

	if err != nil {
		faces = nil
	}
	stored := make([]detection.Face, len(faces))
	copy(stored, faces)

	c.preview = PhotoWithFaces{Photo: current.Photo, Faces: stored, Err: err}
	c.cancelDetect = nil
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("face detection failed", "photo", id, "error", err)
	} else {
		c.log.Info("face detection finished", "photo", id, "faces", len(stored))
	}

	c.notify()
	return true
}

// ClosePreview clears the photo and its faces in one step.
func (c *Controller) ClosePreview() error {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return err
	}
	closing, had := PhotoOf(c.preview)
	c.preview = NoPhoto{}
	if c.cancelDetect != nil {
		c.cancelDetect()
		c.cancelDetect = nil
	}
	c.mu.Unlock()

	if !had {
		return nil
	}

	c.discard(closing)

	c.syncCamera()
	c.notify()
	return nil
}

// ToggleFlash flips the torch setting.
func (c *Controller) ToggleFlash() (Settings, error) {
	return c.updateSettings(func(s *Settings) { s.Flash = !s.Flash })
}

// ToggleLens switches between the back and front lens.
func (c *Controller) ToggleLens() (Settings, error) {
	return c.updateSettings(func(s *Settings) { s.Lens = s.Lens.Flip() })
}

func (c *Controller) updateSettings(fn func(*Settings)) (Settings, error) {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return Settings{}, err
	}
	fn(&c.settings)
	settings := c.settings
	c.mu.Unlock()

	c.log.Debug("settings changed", "lens", settings.Lens, "flash", settings.Flash)

	c.syncCamera()
	c.notify()
	return settings, nil
}

// Await blocks until photo id has its detection result and returns it.
// It fails with ErrPhotoReplaced once another photo, or none, is on
// screen.
func (c *Controller) Await(ctx context.Context, id string) (PhotoWithFaces, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return PhotoWithFaces{}, ErrClosed
		}
		current, ok := PhotoOf(c.preview)
		if !ok || current.ID != id {
			c.mu.Unlock()
			return PhotoWithFaces{}, ErrPhotoReplaced
		}
		if v, done := c.preview.(PhotoWithFaces); done {
			v = clonePreview(v).(PhotoWithFaces)
			c.mu.Unlock()
			return v, nil
		}
		changed := c.changed
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return PhotoWithFaces{}, ctx.Err()
		case <-changed:
		}
	}
}

// Faces returns the faces for a stored photo. The on-screen result is
// reused when it belongs to that photo; otherwise the detector runs now.
func (c *Controller) Faces(ctx context.Context, id string) ([]detection.Face, error) {
	p, err := c.photos.Get(id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if v, ok := c.preview.(PhotoWithFaces); ok && v.Photo.ID == id && v.Err == nil {
		faces := make([]detection.Face, len(v.Faces))
		copy(faces, v.Faces)
		c.mu.Unlock()
		return faces, nil
	}
	c.mu.Unlock()

	return detection.DetectFile(ctx, c.detector, p.Path)
}

// Configure applies a partial camera config (see camera.Manager.UpdateConfig).
// A lens chosen by the update, directly or through a preset, becomes the
// screen's lens; flash and active state stay owned by the controller.
func (c *Controller) Configure(params map[string]interface{}) (camera.Config, error) {
	c.mu.Lock()
	if err := c.usableLocked(); err != nil {
		c.mu.Unlock()
		return camera.Config{}, err
	}
	c.mu.Unlock()

	c.applyMu.Lock()
	err := c.camera.UpdateConfig(params)
	cfg := c.camera.GetConfig()
	c.applyMu.Unlock()
	if err != nil {
		return cfg, err
	}

	c.mu.Lock()
	c.settings.Lens = cfg.Lens
	c.mu.Unlock()

	c.syncCamera()
	c.notify()
	return c.camera.GetConfig(), nil
}

// Close cancels running detection, waits for it, and releases the device.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.changed)
	c.changed = make(chan struct{})
	if c.cancelDetect != nil {
		c.cancelDetect()
		c.cancelDetect = nil
	}
	shown, hadPhoto := PhotoOf(c.preview)
	c.mu.Unlock()

	c.wg.Wait()
	if hadPhoto {
		c.discard(shown)
	}
	return c.device.Close()
}

// discard removes p from the store when DiscardOnClose is set.
func (c *Controller) discard(p photo.Photo) {
	if !c.opts.DiscardOnClose {
		return
	}
	if err := c.photos.Remove(p.ID); err != nil && !errors.Is(err, photo.ErrNotFound) {
		c.log.Warn("failed to discard photo", "photo", p.ID, "error", err)
	}
}

// usableLocked must be called with mu held.
func (c *Controller) usableLocked() error {
	if c.closed {
		return ErrClosed
	}
	if c.perm != permission.Granted {
		return ErrPermissionDenied
	}
	return nil
}

// syncCamera pushes lens, torch and active state to the camera. The
// device decides what reconfiguring means.
func (c *Controller) syncCamera() {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	st := c.stateLocked()
	c.mu.Unlock()

	err := c.camera.Update(func(cfg *camera.Config) {
		cfg.Lens = st.Settings.Lens
		cfg.Torch = st.Settings.Flash
		cfg.Active = st.CameraActive
	})
	if err != nil {
		c.log.Error("failed to configure camera", "error", err)
	}
}

func (c *Controller) notify() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	c.mu.Lock()
	st := c.stateLocked()
	listeners := make([]func(State), len(c.listeners))
	copy(listeners, c.listeners)
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}
