package detection

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facecam/internal/log"
)

// CascadeDetector uses an OpenCV Haar cascade. It is less accurate than
// YuNet but needs only the stock haarcascade_frontalface XML.
// Haar cascades report no score, so Confidence is always 1.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
	mu         sync.Mutex
	closed     bool
}

// NewCascade loads the cascade file at cfg.ModelPath.
func NewCascade(cfg Config) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	if !classifier.Load(cfg.ModelPath) {
		classifier.Close()
		return nil, fmt.Errorf("%w: cannot load cascade %s", ErrModelNotFound, cfg.ModelPath)
	}
	return &CascadeDetector{classifier: classifier}, nil
}

// Detect finds faces in the JPEG image.
func (d *CascadeDetector) Detect(jpeg []byte) ([]Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, ErrEmptyImage
	}

	rects := d.classifier.DetectMultiScale(img)
	faces := make([]Face, 0, len(rects))
	for _, r := range rects {
		faces = append(faces, Face{
			Frame: Rect{
				Origin: Point{X: float64(r.Min.X), Y: float64(r.Min.Y)},
				Size:   Point{X: float64(r.Dx()), Y: float64(r.Dy())},
			},
			Confidence: 1,
		})
	}

	log.Debug("haar detection finished", "faces", len(faces))
	return faces, nil
}

// Close releases the classifier.
func (d *CascadeDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.classifier.Close()
}

var _ Detector = (*CascadeDetector)(nil)
