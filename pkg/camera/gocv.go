package camera

import (
	"context"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facecam/internal/log"
)

// previewQuality is the JPEG quality used for live preview frames.
const previewQuality = 70

// GoCVDevice captures from a local camera through OpenCV.
// The capture is opened lazily and reopened when the lens changes.
type GoCVDevice struct {
	mu             sync.Mutex
	cfg            Config
	capture        *gocv.VideoCapture
	openIndex      int
	baseBrightness float64
	closed         bool
}

// NewGoCVDevice returns a device for cfg. Nothing is opened until the
// first frame is requested.
func NewGoCVDevice(cfg Config) *GoCVDevice {
	return &GoCVDevice{cfg: cfg, openIndex: -1}
}

// Apply stores cfg and pushes it to an open capture.
func (d *GoCVDevice) Apply(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	d.cfg = cfg
	if d.capture == nil {
		return nil
	}
	if d.openIndex != cfg.DeviceIndex() {
		log.Info("switching camera", "lens", cfg.Lens, "device", cfg.DeviceIndex())
		d.release()
		return nil
	}
	d.configure()
	return nil
}

// TakePhoto captures a still at the configured quality.
func (d *GoCVDevice) TakePhoto(ctx context.Context) (*Frame, error) {
	return d.readAsync(ctx, false)
}

// PreviewFrame returns a lower quality frame while the preview is active.
func (d *GoCVDevice) PreviewFrame(ctx context.Context) ([]byte, error) {
	f, err := d.readAsync(ctx, true)
	if err != nil {
		return nil, err
	}
	return f.JPEG, nil
}

// Close releases the capture.
func (d *GoCVDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	d.release()
	return nil
}

// readAsync runs the blocking OpenCV read off the caller's goroutine so a
// cancelled ctx returns immediately. The read itself finishes in the background.
func (d *GoCVDevice) readAsync(ctx context.Context, preview bool) (*Frame, error) {
	type result struct {
		frame *Frame
		err   error
	}
	done := make(chan result, 1)
	go func() {
		f, err := d.read(preview)
		done <- result{f, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.frame, r.err
	}
}

func (d *GoCVDevice) read(preview bool) (*Frame, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if preview && !d.cfg.Active {
		return nil, ErrInactive
	}
	if err := d.open(); err != nil {
		return nil, err
	}

	img := gocv.NewMat()
	defer img.Close()

	if ok := d.capture.Read(&img); !ok || img.Empty() {
		return nil, ErrNoFrame
	}

	flipped := gocv.NewMat()
	defer flipped.Close()

	out := img
	mirrored := d.cfg.Mirrored()
	if mirrored {
		gocv.Flip(img, &flipped, 1)
		out = flipped
	}

	quality := d.cfg.Quality
	if preview {
		quality = previewQuality
	}
	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())

	return &Frame{
		JPEG:     data,
		Width:    out.Cols(),
		Height:   out.Rows(),
		Lens:     d.cfg.Lens,
		Mirrored: mirrored,
		Torch:    d.cfg.Torch,
	}, nil
}

// open must be called with mu held.
func (d *GoCVDevice) open() error {
	if d.capture != nil {
		return nil
	}

	index := d.cfg.DeviceIndex()
	capture, err := gocv.OpenVideoCapture(index)
	if err != nil {
		return fmt.Errorf("open video capture %d: %w", index, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open video capture %d: device not available", index)
	}

	d.capture = capture
	d.openIndex = index
	d.baseBrightness = capture.Get(gocv.VideoCaptureBrightness)
	d.configure()

	log.Info("camera opened", "lens", d.cfg.Lens, "device", index, "width", d.cfg.Width, "height", d.cfg.Height)
	return nil
}

// configure must be called with mu held and an open capture.
func (d *GoCVDevice) configure() {
	d.capture.Set(gocv.VideoCaptureFrameWidth, float64(d.cfg.Width))
	d.capture.Set(gocv.VideoCaptureFrameHeight, float64(d.cfg.Height))
	d.capture.Set(gocv.VideoCaptureFPS, float64(d.cfg.Framerate))

	brightness := d.baseBrightness
	if d.cfg.Torch {
		brightness = d.cfg.TorchBrightness
	}
	d.capture.Set(gocv.VideoCaptureBrightness, brightness)
}

// release must be called with mu held.
func (d *GoCVDevice) release() {
	if d.capture != nil {
		d.capture.Close()
		d.capture = nil
		d.openIndex = -1
	}
}

var _ Device = (*GoCVDevice)(nil)
