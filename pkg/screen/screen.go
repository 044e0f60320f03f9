// Package screen turns controller state into the view tree a client draws.
package screen

import (
	"encoding/json"

	"github.com/teslashibe/facecam/pkg/capture"
	"github.com/teslashibe/facecam/pkg/detection"
	"github.com/teslashibe/facecam/pkg/overlay"
	"github.com/teslashibe/facecam/pkg/permission"
	"github.com/teslashibe/facecam/pkg/photo"
)

// Fixed screen text.
const (
	PermissionMessage = "Camera permission not granted"
	PermissionAction  = "Authorize Permission"
	NoFacesText       = "No Face Detected"
	FacesTitle        = "Facial Recognition Data"
	PhotoDataTitle    = "Photo Data"
)

// Action names a user action; the web surface maps each to a POST route.
type Action string

const (
	ActionAuthorize Action = "permission"
	ActionFlash     Action = "flash"
	ActionCapture   Action = "capture"
	ActionLens      Action = "lens"
	ActionClose     Action = "close"
)

// FaceStatus is the state of the faces section.
type FaceStatus string

const (
	FacesPending  FaceStatus = "pending"
	FacesDetected FaceStatus = "detected"
	FacesFailed   FaceStatus = "failed"
)

// Screen is the full view. Exactly one of Permission and Camera is set;
// Photo is set only with Camera.
type Screen struct {
	Permission *PermissionView `json:"permission,omitempty"`
	Camera     *CameraView     `json:"camera,omitempty"`
	Photo      *PhotoModal     `json:"photo,omitempty"`
}

// PermissionView is the fallback shown until camera access is granted.
type PermissionView struct {
	Message string `json:"message"`
	Label   string `json:"label"`
	Action  Action `json:"action"`
}

// Control is a camera button.
type Control struct {
	Label  string `json:"label"`
	Action Action `json:"action"`
	Color  string `json:"color,omitempty"`
}

// CameraView is the live camera with its controls.
type CameraView struct {
	Active   bool      `json:"active"`
	Lens     string    `json:"lens"`
	Torch    string    `json:"torch"`
	Controls []Control `json:"controls"`
}

// FacesSection lists detection output under the photo.
type FacesSection struct {
	Title  string           `json:"title"`
	Status FaceStatus       `json:"status"`
	Text   string           `json:"text,omitempty"`
	Faces  []detection.Face `json:"faces"`
	JSON   string           `json:"json,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// PhotoModal shows the captured photo with face boxes and metadata.
type PhotoModal struct {
	ImageURL    string        `json:"image_url"`
	Width       float64       `json:"width"`
	Height      float64       `json:"height"`
	AspectRatio float64       `json:"aspect_ratio"`
	Boxes       []overlay.Box `json:"boxes"`
	DataTitle   string        `json:"data_title"`
	PhotoData   []photo.Entry `json:"photo_data"`
	Faces       FacesSection  `json:"faces"`
	Close       Control       `json:"close"`
}

// Layout holds rendering parameters.
type Layout struct {
	// PreviewWidth is the rendered photo width. Defaults to overlay.DefaultPreviewWidth.
	PreviewWidth float64

	// PhotoURL maps a photo to the URL the client loads it from.
	// Defaults to the photo's file path.
	PhotoURL func(photo.Photo) string
}

// Render builds the screen for st.
func Render(st capture.State, layout Layout) Screen {
	if st.Permission != permission.Granted {
		return Screen{Permission: &PermissionView{
			Message: PermissionMessage,
			Label:   PermissionAction,
			Action:  ActionAuthorize,
		}}
	}

	s := Screen{Camera: renderCamera(st)}
	if p, ok := capture.PhotoOf(st.Preview); ok {
		s.Photo = renderPhoto(p, st.Preview, layout)
	}
	return s
}

func renderCamera(st capture.State) *CameraView {
	torch, flashColor := "off", "black"
	if st.Settings.Flash {
		torch, flashColor = "on", "yellow"
	}
	return &CameraView{
		Active: st.CameraActive,
		Lens:   string(st.Settings.Lens),
		Torch:  torch,
		Controls: []Control{
			{Label: "Flash", Action: ActionFlash, Color: flashColor},
			{Label: "Capture", Action: ActionCapture},
			{Label: "Change", Action: ActionLens},
		},
	}
}

func renderPhoto(p photo.Photo, preview capture.Preview, layout Layout) *PhotoModal {
	width := layout.PreviewWidth
	if width <= 0 {
		width = overlay.DefaultPreviewWidth
	}
	url := p.Path
	if layout.PhotoURL != nil {
		url = layout.PhotoURL(p)
	}

	aspect := p.AspectRatio()
	m := &PhotoModal{
		ImageURL:    url,
		Width:       width,
		Height:      width * aspect,
		AspectRatio: aspect,
		Boxes:       []overlay.Box{},
		DataTitle:   PhotoDataTitle,
		PhotoData:   p.Entries(),
		Faces: FacesSection{
			Title:  FacesTitle,
			Status: FacesPending,
			Faces:  []detection.Face{},
		},
		Close: Control{Label: "Close", Action: ActionClose},
	}

	result, ok := preview.(capture.PhotoWithFaces)
	if !ok {
		return m
	}

	if result.Err != nil {
		m.Faces.Status = FacesFailed
		m.Faces.Text = NoFacesText
		m.Faces.Error = result.Err.Error()
		return m
	}

	m.Faces.Status = FacesDetected
	if len(result.Faces) == 0 {
		m.Faces.Text = NoFacesText
		return m
	}

	m.Faces.Faces = result.Faces
	if data, err := json.MarshalIndent(result.Faces, "", "  "); err == nil {
		m.Faces.JSON = string(data)
	}
	// Unknown photo dimensions leave the boxes empty.
	if v, err := overlay.Fit(p.Width, p.Height, width); err == nil {
		m.Boxes = v.Boxes(result.Faces)
	}
	return m
}
