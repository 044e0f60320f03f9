package screen

import (
	"errors"
	"math"
	"testing"

	"github.com/teslashibe/facecam/pkg/camera"
	"github.com/teslashibe/facecam/pkg/capture"
	"github.com/teslashibe/facecam/pkg/detection"
	"github.com/teslashibe/facecam/pkg/permission"
	"github.com/teslashibe/facecam/pkg/photo"
)

func granted(preview capture.Preview) capture.State {
	_, showing := capture.PhotoOf(preview)
	return capture.State{
		Permission:   permission.Granted,
		Settings:     capture.Settings{Lens: camera.LensBack},
		Preview:      preview,
		CameraActive: !showing,
	}
}

func testPhoto() photo.Photo {
	return photo.Photo{ID: "abc", Path: "/tmp/abc.jpg", Width: 400, Height: 600, Lens: "back"}
}

func TestRender_PermissionFallback(t *testing.T) {
	for _, perm := range []permission.State{permission.Undetermined, permission.Denied} {
		t.Run(perm.String(), func(t *testing.T) {
			st := granted(capture.PhotoOnly{Photo: testPhoto()})
			st.Permission = perm

			s := Render(st, Layout{})
			if s.Permission == nil {
				t.Fatal("expected permission view")
			}
			if s.Camera != nil || s.Photo != nil {
				t.Error("only the permission view may be shown")
			}
			if s.Permission.Message != PermissionMessage || s.Permission.Label != PermissionAction {
				t.Errorf("permission view: got %+v", s.Permission)
			}
		})
	}
}

func TestRender_CameraControls(t *testing.T) {
	st := granted(capture.NoPhoto{})
	s := Render(st, Layout{})

	if s.Camera == nil || s.Photo != nil {
		t.Fatalf("expected camera without photo, got %+v", s)
	}
	if !s.Camera.Active || s.Camera.Torch != "off" || s.Camera.Lens != "back" {
		t.Errorf("camera: got %+v", s.Camera)
	}
	if s.Camera.Controls[0].Color != "black" {
		t.Errorf("flash color off: got %s", s.Camera.Controls[0].Color)
	}

	st.Settings.Flash = true
	s = Render(st, Layout{})
	if s.Camera.Torch != "on" || s.Camera.Controls[0].Color != "yellow" {
		t.Errorf("flash on: got torch=%s color=%s", s.Camera.Torch, s.Camera.Controls[0].Color)
	}
}

func TestRender_PendingShowsNoTextOrBoxes(t *testing.T) {
	s := Render(granted(capture.PhotoOnly{Photo: testPhoto()}), Layout{})

	if s.Photo == nil {
		t.Fatal("expected photo modal")
	}
	if s.Camera.Active {
		t.Error("camera must be inactive while the photo is shown")
	}
	if s.Photo.Faces.Status != FacesPending {
		t.Errorf("status: got %s", s.Photo.Faces.Status)
	}
	if s.Photo.Faces.Text != "" || len(s.Photo.Boxes) != 0 {
		t.Errorf("pending must show neither text nor boxes: %+v", s.Photo)
	}
}

func TestRender_ZeroFaces(t *testing.T) {
	s := Render(granted(capture.PhotoWithFaces{Photo: testPhoto(), Faces: []detection.Face{}}), Layout{})

	if s.Photo.Faces.Status != FacesDetected || s.Photo.Faces.Text != NoFacesText {
		t.Errorf("zero faces: got %+v", s.Photo.Faces)
	}
	if len(s.Photo.Boxes) != 0 {
		t.Errorf("expected no boxes, got %v", s.Photo.Boxes)
	}
}

func TestRender_Failed(t *testing.T) {
	s := Render(granted(capture.PhotoWithFaces{Photo: testPhoto(), Err: errors.New("boom")}), Layout{})

	if s.Photo.Faces.Status != FacesFailed || s.Photo.Faces.Error != "boom" {
		t.Errorf("failed: got %+v", s.Photo.Faces)
	}
	if s.Photo.Faces.Text != NoFacesText {
		t.Errorf("failed text: got %q", s.Photo.Faces.Text)
	}
}

func TestRender_FacesProjected(t *testing.T) {
	faces := []detection.Face{{
		Frame: detection.Rect{
			Origin: detection.Point{X: 50, Y: 60},
			Size:   detection.Point{X: 40, Y: 50},
		},
		Confidence: 0.9,
	}}
	layout := Layout{
		PreviewWidth: 300,
		PhotoURL:     func(p photo.Photo) string { return "/api/photos/" + p.ID },
	}
	s := Render(granted(capture.PhotoWithFaces{Photo: testPhoto(), Faces: faces}), layout)

	m := s.Photo
	if m.ImageURL != "/api/photos/abc" {
		t.Errorf("ImageURL: got %s", m.ImageURL)
	}
	if m.Width != 300 || m.Height != 450 || m.AspectRatio != 1.5 {
		t.Errorf("size: got %vx%v aspect %v", m.Width, m.Height, m.AspectRatio)
	}
	if m.Faces.Text != "" || m.Faces.JSON == "" {
		t.Errorf("faces section: got %+v", m.Faces)
	}
	if m.Faces.Title != "Facial Recognition Data" || m.DataTitle != "Photo Data" {
		t.Errorf("section titles: got %q, %q", m.Faces.Title, m.DataTitle)
	}
	if len(m.Boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(m.Boxes))
	}
	b := m.Boxes[0]
	if math.Abs(b.Left-37.5) > 1e-9 || math.Abs(b.Top-45) > 1e-9 ||
		math.Abs(b.Width-30) > 1e-9 || math.Abs(b.Height-37.5) > 1e-9 {
		t.Errorf("box: got %+v", b)
	}
	if len(m.PhotoData) == 0 || m.PhotoData[0].Key != "id" {
		t.Errorf("photo data: got %+v", m.PhotoData)
	}
}

func TestRender_UnknownDimensions(t *testing.T) {
	p := testPhoto()
	p.Width, p.Height = 0, 0
	faces := []detection.Face{{Frame: detection.Rect{Size: detection.Point{X: 10, Y: 10}}}}

	s := Render(granted(capture.PhotoWithFaces{Photo: p, Faces: faces}), Layout{})
	if s.Photo.AspectRatio != 1 || s.Photo.Height != s.Photo.Width {
		t.Errorf("square fallback: got %vx%v", s.Photo.Width, s.Photo.Height)
	}
	if len(s.Photo.Boxes) != 0 {
		t.Errorf("no boxes without dimensions, got %v", s.Photo.Boxes)
	}
}
