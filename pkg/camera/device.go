package camera

import (
	"context"
	"errors"
)

var (
	// ErrNoFrame is returned when the device produced no image.
	ErrNoFrame = errors.New("camera: no frame read")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("camera: device closed")

	// ErrInactive is returned by PreviewFrame while the preview is paused.
	ErrInactive = errors.New("camera: preview inactive")
)

// Frame is one encoded still from the device.
type Frame struct {
	JPEG     []byte
	Width    int
	Height   int
	Lens     Lens
	Mirrored bool
	Torch    bool
}

// Device is the capture device collaborator.
type Device interface {
	// TakePhoto captures a full-quality still. It blocks until the
	// hardware returns or ctx is done.
	TakePhoto(ctx context.Context) (*Frame, error)

	// PreviewFrame returns a live preview frame as JPEG.
	PreviewFrame(ctx context.Context) ([]byte, error)

	// Apply reconfigures the device for lens, torch and active state.
	Apply(cfg Config) error

	// Close releases the device.
	Close() error
}
