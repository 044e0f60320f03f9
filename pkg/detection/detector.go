// Package detection provides on-device face detection for captured photos.
package detection

import (
	"context"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrEmptyImage is returned when the image could not be decoded or has no pixels.
	ErrEmptyImage = errors.New("detection: empty image")

	// ErrModelNotFound is returned when the model file is missing.
	ErrModelNotFound = errors.New("detection: model file not found")

	// ErrUnknownBackend is returned by New for an unsupported backend name.
	ErrUnknownBackend = errors.New("detection: unknown backend")

	// ErrClosed is returned by Detect after Close.
	ErrClosed = errors.New("detection: detector closed")
)

// Point is an x/y pair in image pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is a bounding box. Size.X is the width and Size.Y the height.
type Rect struct {
	Origin Point `json:"origin"`
	Size   Point `json:"size"`
}

// Face is a detected face in the coordinate space of the source image.
type Face struct {
	Frame      Rect    `json:"frame"`
	Confidence float64 `json:"confidence"`
}

// Detector is the interface for face detection backends.
type Detector interface {
	// Detect finds faces in the JPEG image, in pixel coordinates.
	Detect(jpeg []byte) ([]Face, error)

	// Close releases resources. Detect returns ErrClosed afterwards.
	Close() error
}

// Config holds detector configuration.
type Config struct {
	Backend          string  // "yunet" or "haar"
	ModelPath        string  // ONNX model for yunet, cascade XML for haar
	ConfidenceThresh float64 // Minimum confidence (default 0.6)
	InputWidth       int     // Initial model input width
	InputHeight      int     // Initial model input height
}

// DefaultConfig returns production defaults for YuNet.
func DefaultConfig() Config {
	return Config{
		Backend:          "yunet",
		ModelPath:        "models/face_detection_yunet.onnx",
		ConfidenceThresh: 0.6,
		InputWidth:       320,
		InputHeight:      320,
	}
}

// New creates the detector named by cfg.Backend.
func New(cfg Config) (Detector, error) {
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, cfg.ModelPath)
	}

	switch cfg.Backend {
	case "", "yunet":
		return NewYuNet(cfg)
	case "haar":
		return NewCascade(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Backend)
	}
}

// DetectFile reads the photo at path and runs d on it.
// The detector call itself cannot be interrupted; if ctx is done first
// the result is dropped and ctx.Err() is returned. A call still running
// when the detector is closed gets ErrClosed from the backend.
func DetectFile(ctx context.Context, d Detector, path string) ([]Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type result struct {
		faces []Face
		err   error
	}
	done := make(chan result, 1)
	go func() {
		faces, err := d.Detect(data)
		done <- result{faces, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.faces, r.err
	}
}
