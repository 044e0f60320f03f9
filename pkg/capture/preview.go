package capture

import (
	"github.com/teslashibe/facecam/pkg/detection"
	"github.com/teslashibe/facecam/pkg/photo"
)

// Phase names the photo/detection state.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhasePending  Phase = "pending"
	PhaseDetected Phase = "detected"
)

// Preview is what the photo modal shows. It is one of NoPhoto, PhotoOnly
// or PhotoWithFaces, so faces can never be paired with another photo.
type Preview interface {
	Phase() Phase
	isPreview()
}

// NoPhoto means the camera is showing and no photo is on screen.
type NoPhoto struct{}

// PhotoOnly is a captured photo whose detection has not finished.
type PhotoOnly struct {
	Photo photo.Photo
}

// PhotoWithFaces is a captured photo with its detection result.
// Err is set when detection failed; Faces is then empty.
type PhotoWithFaces struct {
	Photo photo.Photo
	Faces []detection.Face
	Err   error
}

func (NoPhoto) Phase() Phase        { return PhaseIdle }
func (PhotoOnly) Phase() Phase      { return PhasePending }
func (PhotoWithFaces) Phase() Phase { return PhaseDetected }

func (NoPhoto) isPreview()        {}
func (PhotoOnly) isPreview()      {}
func (PhotoWithFaces) isPreview() {}

// PhotoOf returns the photo on screen, if any.
func PhotoOf(p Preview) (photo.Photo, bool) {
	switch v := p.(type) {
	case PhotoOnly:
		return v.Photo, true
	case PhotoWithFaces:
		return v.Photo, true
	default:
		return photo.Photo{}, false
	}
}

// clonePreview copies the faces slice so snapshots stay immutable.
func clonePreview(p Preview) Preview {
	v, ok := p.(PhotoWithFaces)
	if !ok {
		return p
	}
	faces := make([]detection.Face, len(v.Faces))
	copy(faces, v.Faces)
	v.Faces = faces
	return v
}
