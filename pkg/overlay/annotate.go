package overlay

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facecam/pkg/detection"
)

// Face boxes are drawn red with a 2px border.
var (
	boxColor     = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	boxThickness = 2
)

// Rectangle converts a face frame to integer pixel bounds.
func Rectangle(r detection.Rect) image.Rectangle {
	return image.Rect(
		int(r.Origin.X),
		int(r.Origin.Y),
		int(r.Origin.X+r.Size.X),
		int(r.Origin.Y+r.Size.Y),
	)
}

// Annotate draws the face boxes onto the JPEG and returns a new JPEG.
// Boxes are drawn in photo pixels, so faces must come from this photo.
func Annotate(jpeg []byte, faces []detection.Face, quality int) ([]byte, error) {
	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, detection.ErrEmptyImage
	}

	for _, f := range faces {
		gocv.Rectangle(&img, Rectangle(f.Frame), boxColor, boxThickness)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img, []int{int(gocv.IMWriteJpegQuality), quality})
	if err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
