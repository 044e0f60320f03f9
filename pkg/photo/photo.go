// Package photo stores captured photos on disk and describes them.
package photo

import (
	"strconv"
	"time"
)

// Photo is a captured photo. Path is the file reference the detector reads,
// Width and Height are the pixel dimensions of the stored image.
type Photo struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Lens       string    `json:"lens"`
	Mirrored   bool      `json:"is_mirrored"`
	Flash      bool      `json:"flash"`
	Size       int64     `json:"size"`
	CapturedAt time.Time `json:"captured_at"`
}

// Entry is one key/value line of photo data.
type Entry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Entries lists the photo fields in display order.
func (p Photo) Entries() []Entry {
	return []Entry{
		{Key: "id", Value: p.ID},
		{Key: "path", Value: p.Path},
		{Key: "width", Value: strconv.Itoa(p.Width)},
		{Key: "height", Value: strconv.Itoa(p.Height)},
		{Key: "lens", Value: p.Lens},
		{Key: "isMirrored", Value: strconv.FormatBool(p.Mirrored)},
		{Key: "flash", Value: strconv.FormatBool(p.Flash)},
		{Key: "size", Value: strconv.FormatInt(p.Size, 10)},
		{Key: "capturedAt", Value: p.CapturedAt.Format(time.RFC3339)},
	}
}

// AspectRatio returns height/width, or 1 when the width is unknown.
func (p Photo) AspectRatio() float64 {
	if p.Width <= 0 || p.Height <= 0 {
		return 1
	}
	return float64(p.Height) / float64(p.Width)
}
