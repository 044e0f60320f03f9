package detection

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
)

func newTestYuNet(t *testing.T) *YuNetDetector {
	t.Helper()

	modelPath := findModelPath()
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	cfg := DefaultConfig()
	cfg.ModelPath = modelPath

	d, err := NewYuNet(cfg)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestYuNetNewInvalidPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"

	if _, err := NewYuNet(cfg); err == nil {
		t.Error("Expected error for invalid model path")
	}
}

func TestYuNetDetect_InvalidImage(t *testing.T) {
	d := newTestYuNet(t)

	if _, err := d.Detect([]byte{}); err == nil {
		t.Error("Expected error for empty image")
	}
	if _, err := d.Detect([]byte("not a jpeg")); err == nil {
		t.Error("Expected error for invalid JPEG")
	}
}

func TestYuNetDetect_SolidImage(t *testing.T) {
	d := newTestYuNet(t)

	faces, err := d.Detect(createSolidJPEG(400, 600, color.RGBA{0, 0, 255, 255}))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(faces) != 0 {
		t.Errorf("Expected no faces in solid color image, got %d", len(faces))
	}
}

func TestYuNetConcurrency(t *testing.T) {
	d := newTestYuNet(t)
	img := createSolidJPEG(320, 240, color.RGBA{100, 100, 100, 255})

	done := make(chan error, 8)
	for i := 0; i < 8; i++ {
		go func() {
			_, err := d.Detect(img)
			done <- err
		}()
	}
	for i := 0; i < 8; i++ {
		if err := <-done; err != nil {
			t.Errorf("Concurrent detection failed: %v", err)
		}
	}
}

func TestYuNetDetect_AfterClose(t *testing.T) {
	d := newTestYuNet(t)

	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := d.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}

	img := createSolidJPEG(320, 240, color.RGBA{100, 100, 100, 255})
	if _, err := d.Detect(img); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after Close, got %v", err)
	}
}

func findModelPath() string {
	if p := os.Getenv("FACECAM_MODEL"); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for dir := cwd; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		modelPath := filepath.Join(dir, "models", "face_detection_yunet.onnx")
		if _, err := os.Stat(modelPath); err == nil {
			return modelPath
		}
	}
	return ""
}

func createSolidJPEG(width, height int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}
