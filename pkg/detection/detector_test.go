package detection

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ModelPath == "" {
		t.Error("DefaultConfig: ModelPath should not be empty")
	}
	if cfg.Backend != "yunet" {
		t.Errorf("DefaultConfig: Backend = %q, want yunet", cfg.Backend)
	}
	if cfg.ConfidenceThresh <= 0 || cfg.ConfidenceThresh > 1 {
		t.Errorf("DefaultConfig: ConfidenceThresh should be 0-1, got %f", cfg.ConfidenceThresh)
	}
	if cfg.InputWidth <= 0 || cfg.InputHeight <= 0 {
		t.Errorf("DefaultConfig: input size should be positive, got %dx%d", cfg.InputWidth, cfg.InputHeight)
	}
}

func TestNew_MissingModel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"

	_, err := New(cfg)
	if !errors.Is(err, ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	model := filepath.Join(t.TempDir(), "model.onnx")
	if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(Config{Backend: "mtcnn", ModelPath: model})
	if !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("expected ErrUnknownBackend, got %v", err)
	}
}

func TestDetectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("jpeg bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	want := Face{Frame: Rect{Origin: Point{X: 1, Y: 2}, Size: Point{X: 3, Y: 4}}, Confidence: 0.9}
	mock := &Mock{DetectFunc: func(jpeg []byte) ([]Face, error) {
		if string(jpeg) != "jpeg bytes" {
			t.Errorf("detector got %q", jpeg)
		}
		return []Face{want}, nil
	}}

	faces, err := DetectFile(context.Background(), mock, path)
	if err != nil {
		t.Fatalf("DetectFile: %v", err)
	}
	if len(faces) != 1 || faces[0] != want {
		t.Errorf("DetectFile: got %+v", faces)
	}
}

func TestDetectFile_MissingFile(t *testing.T) {
	_, err := DetectFile(context.Background(), NewMock(), "/nonexistent/photo.jpg")
	if err == nil {
		t.Error("expected error for missing photo")
	}
}

func TestDetectFile_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	release := make(chan struct{})
	defer close(release)
	mock := &Mock{DetectFunc: func([]byte) ([]Face, error) {
		<-release
		return nil, nil
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := DetectFile(ctx, mock, path)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestMock_CountsCalls(t *testing.T) {
	m := NewMock(Face{Confidence: 1})
	for i := 0; i < 3; i++ {
		if _, err := m.Detect(nil); err != nil {
			t.Fatal(err)
		}
	}
	if m.Calls() != 3 {
		t.Errorf("Calls: got %d, want 3", m.Calls())
	}
}

func TestDetectFile_AlreadyCancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := NewMock()
	if _, err := DetectFile(ctx, mock, path); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if mock.Calls() != 0 {
		t.Errorf("detector should not run for a cancelled context, got %d calls", mock.Calls())
	}
}

func TestDetect_AfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	// The first call holds the detector while its context is cancelled
	// and the detector is closed; the late call must not reach it.
	started := make(chan struct{})
	release := make(chan struct{})
	var ran int
	mock := &Mock{DetectFunc: func([]byte) ([]Face, error) {
		ran++
		if ran == 1 {
			close(started)
			<-release
		}
		return nil, nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := DetectFile(ctx, mock, path)
		errCh <- err
	}()
	<-started
	cancel()
	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if err := mock.Close(); err != nil {
		t.Fatal(err)
	}
	close(release)

	if _, err := mock.Detect([]byte("late")); !errors.Is(err, ErrClosed) {
		t.Errorf("Detect after Close: expected ErrClosed, got %v", err)
	}
	if mock.Calls() != 1 || ran != 1 {
		t.Errorf("closed detector ran again: calls=%d ran=%d", mock.Calls(), ran)
	}
}
