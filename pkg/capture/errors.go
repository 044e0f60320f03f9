package capture

import (
	"errors"
	"fmt"
)

var (
	// ErrPermissionDenied is returned by every screen action while camera
	// permission is not granted.
	ErrPermissionDenied = errors.New("capture: camera permission not granted")

	// ErrClosed is returned after the controller has been closed.
	ErrClosed = errors.New("capture: controller closed")

	// ErrPhotoReplaced is returned by Await when the photo left the screen.
	ErrPhotoReplaced = errors.New("capture: photo is no longer on screen")
)

// CaptureError wraps a failure to take or store a photo.
type CaptureError struct {
	Err error
}

func (e *CaptureError) Error() string {
	return fmt.Sprintf("capture: photo capture failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *CaptureError) Unwrap() error {
	return e.Err
}
