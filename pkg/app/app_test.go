package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/teslashibe/facecam/internal/config"
	"github.com/teslashibe/facecam/pkg/camera"
	"github.com/teslashibe/facecam/pkg/detection"
	"github.com/teslashibe/facecam/pkg/permission"
)

func testConfig(t *testing.T) config.Config {
	return config.Config{
		PhotoDir:     filepath.Join(t.TempDir(), "photos"),
		Detector:     "yunet",
		ModelPath:    "does-not-exist.onnx",
		FrontDevice:  1,
		PreviewWidth: 300,
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Detector = "mtcnn"

	var cfgErr *config.Error
	if _, err := New(cfg); !errors.As(err, &cfgErr) {
		t.Errorf("expected *config.Error, got %v", err)
	}
}

func TestInit_MissingModel(t *testing.T) {
	a, err := New(testConfig(t), WithDevice(camera.NewMock(640, 480)))
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Init(); !errors.Is(err, detection.ErrModelNotFound) {
		t.Errorf("expected ErrModelNotFound, got %v", err)
	}
}

func TestInit_WithCollaborators(t *testing.T) {
	device := camera.NewMock(640, 480)
	detector := detection.NewMock()
	a, err := New(testConfig(t),
		WithDevice(device),
		WithDetector(detector),
		WithGate(permission.NewStatic(permission.Granted)),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	if state := a.Mount(context.Background()); state != permission.Granted {
		t.Fatalf("Mount: got %v", state)
	}

	p, err := a.Controller().Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if _, err := a.Controller().Await(context.Background(), p.ID); err != nil {
		t.Fatalf("Await: %v", err)
	}

	a.Shutdown()
	a.Shutdown()
	if !device.Closed() {
		t.Error("Shutdown should close the device")
	}
}

func TestMount_DeniedIsNotFatal(t *testing.T) {
	a, err := New(testConfig(t),
		WithDevice(camera.NewMock(640, 480)),
		WithDetector(detection.NewMock()),
		WithGate(permission.NewStatic(permission.Denied)),
	)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Init(); err != nil {
		t.Fatal(err)
	}
	defer a.Shutdown()

	if state := a.Mount(context.Background()); state != permission.Denied {
		t.Errorf("Mount: got %v, want denied", state)
	}
}
