// Package app wires facecam's components together and runs them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teslashibe/facecam/internal/config"
	"github.com/teslashibe/facecam/internal/log"
	"github.com/teslashibe/facecam/pkg/camera"
	"github.com/teslashibe/facecam/pkg/capture"
	"github.com/teslashibe/facecam/pkg/detection"
	"github.com/teslashibe/facecam/pkg/events"
	"github.com/teslashibe/facecam/pkg/permission"
	"github.com/teslashibe/facecam/pkg/photo"
	"github.com/teslashibe/facecam/pkg/web"
)

// App owns every component and their lifecycle.
type App struct {
	config config.Config
	log    *slog.Logger

	// Injected collaborators; built from config when nil.
	device   camera.Device
	detector detection.Detector
	gate     permission.Gate

	photos *photo.Store
	ctrl   *capture.Controller

	server *web.Server
	bridge *events.Bridge
	mqtt   *events.MQTTPublisher

	shutdownOnce sync.Once
}

// Option overrides a collaborator, mainly for tests.
type Option func(*App)

// WithDevice uses dev instead of opening a gocv camera.
func WithDevice(dev camera.Device) Option {
	return func(a *App) { a.device = dev }
}

// WithDetector uses d instead of loading a model.
func WithDetector(d detection.Detector) Option {
	return func(a *App) { a.detector = d }
}

// WithGate uses g for camera permission.
func WithGate(g permission.Gate) Option {
	return func(a *App) { a.gate = g }
}

// New validates cfg and returns an App. Call Init before using it.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a := &App{
		config: cfg,
		log:    log.Component("app"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Init builds the capture pipeline: store, camera, detector and controller.
func (a *App) Init() error {
	photos, err := photo.NewStore(a.config.PhotoDir)
	if err != nil {
		return fmt.Errorf("photo store: %w", err)
	}
	a.photos = photos

	camCfg := camera.DefaultConfig()
	camCfg.BackDevice = a.config.BackDevice
	camCfg.FrontDevice = a.config.FrontDevice
	if problems := camCfg.Validate(); len(problems) > 0 {
		return fmt.Errorf("camera config: %w", &camera.ValidationError{Problems: problems})
	}

	if a.device == nil {
		a.device = camera.NewGoCVDevice(camCfg)
	}

	if a.detector == nil {
		detCfg := detection.DefaultConfig()
		detCfg.Backend = a.config.Detector
		detCfg.ModelPath = a.config.ModelPath
		d, err := detection.New(detCfg)
		if err != nil {
			return fmt.Errorf("face detector: %w", err)
		}
		a.detector = d
	}

	if a.gate == nil {
		if a.config.AssumeGranted {
			a.gate = permission.NewStatic(permission.Granted)
		} else {
			a.gate = permission.NewDeviceGate(permission.DevicePath(a.config.BackDevice))
		}
	}

	a.ctrl = capture.New(
		camera.NewManager(camCfg),
		a.device,
		a.detector,
		a.gate,
		a.photos,
		capture.WithDiscardOnClose(a.config.DiscardOnClose),
	)

	a.log.Info("capture pipeline ready",
		"photos", a.photos.Dir(),
		"detector", a.config.Detector,
		"back_device", a.config.BackDevice,
		"front_device", a.config.FrontDevice,
	)
	return nil
}

// Controller returns the capture controller. Init must have run.
func (a *App) Controller() *capture.Controller {
	return a.ctrl
}

// Server returns the web server once Serve has built it.
func (a *App) Server() *web.Server {
	return a.server
}

// Mount asks for camera permission. Denial is not an error here: the
// screen shows the permission view instead.
func (a *App) Mount(ctx context.Context) permission.State {
	state, err := a.ctrl.Mount(ctx)
	if err != nil {
		a.log.Warn("camera permission request failed", "state", state, "error", err)
	}
	return state
}

// Serve runs the web surface, and the event bridge when a broker is
// configured, until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	a.Mount(ctx)

	if a.config.MQTTBroker != "" {
		if err := a.connectEvents(ctx); err != nil {
			// The screen works without the bus.
			a.log.Error("event bridge disabled", "error", err)
		}
	}

	a.server = web.NewServer(a.ctrl, web.Config{
		Addr:         a.config.Addr,
		PreviewWidth: a.config.PreviewWidth,
	})
	return a.server.Run(ctx)
}

func (a *App) connectEvents(ctx context.Context) error {
	cfg := events.DefaultMQTTConfig()
	cfg.Broker = a.config.MQTTBroker
	cfg.Prefix = a.config.MQTTPrefix

	logger := log.Component("events")
	// Commands may arrive as soon as the client connects, before the
	// bridge exists; they wait for ready.
	var bridge *events.Bridge
	ready := make(chan struct{})
	pub, err := events.ConnectMQTT(ctx, cfg, logger, func(ctx context.Context, payload []byte) error {
		select {
		case <-ready:
		case <-ctx.Done():
			return ctx.Err()
		}
		return bridge.HandleCommand(ctx, payload)
	})
	if err != nil {
		return err
	}
	bridge = events.NewBridge(a.ctrl, pub, cfg.Prefix, logger)
	go bridge.Run(ctx)
	close(ready)

	a.mqtt = pub
	a.bridge = bridge
	return nil
}

// Shutdown stops detection and releases the camera and model.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		if a.mqtt != nil {
			a.mqtt.Disconnect()
		}
		if a.ctrl != nil {
			if err := a.ctrl.Close(); err != nil {
				a.log.Warn("failed to close camera", "error", err)
			}
		}
		if a.detector != nil {
			if err := a.detector.Close(); err != nil {
				a.log.Warn("failed to close detector", "error", err)
			}
		}
		a.log.Info("shutdown complete")
	})
}
