// Package overlay maps face boxes from photo pixels to the rendered
// preview and draws them onto photos.
package overlay

import (
	"errors"

	"github.com/teslashibe/facecam/pkg/detection"
)

// DefaultPreviewWidth is the rendered width of the captured-photo preview.
const DefaultPreviewWidth = 300.0

// ErrInvalidDimensions is returned when the photo or preview has no size.
var ErrInvalidDimensions = errors.New("overlay: photo and preview dimensions must be positive")

// Box is a face box in preview coordinates.
type Box struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Viewport describes how a photo is drawn in the preview. The width is
// fixed and the height follows the photo's aspect ratio, so each axis
// gets its own scale factor from the true rendered size.
type Viewport struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	ScaleX float64 `json:"scale_x"`
	ScaleY float64 `json:"scale_y"`
}

// Fit returns the viewport for a photoWidth×photoHeight image rendered
// renderWidth wide.
func Fit(photoWidth, photoHeight int, renderWidth float64) (Viewport, error) {
	if photoWidth <= 0 || photoHeight <= 0 || renderWidth <= 0 {
		return Viewport{}, ErrInvalidDimensions
	}

	pw, ph := float64(photoWidth), float64(photoHeight)
	renderHeight := renderWidth * ph / pw

	return Viewport{
		Width:  renderWidth,
		Height: renderHeight,
		ScaleX: renderWidth / pw,
		ScaleY: renderHeight / ph,
	}, nil
}

// Project maps a frame in photo pixels into the viewport.
func (v Viewport) Project(r detection.Rect) Box {
	return Box{
		Left:   r.Origin.X * v.ScaleX,
		Top:    r.Origin.Y * v.ScaleY,
		Width:  r.Size.X * v.ScaleX,
		Height: r.Size.Y * v.ScaleY,
	}
}

// Boxes projects every face.
func (v Viewport) Boxes(faces []detection.Face) []Box {
	boxes := make([]Box, 0, len(faces))
	for _, f := range faces {
		boxes = append(boxes, v.Project(f.Frame))
	}
	return boxes
}
