// Package web serves the capture screen over HTTP and websockets.
package web

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/facecam/internal/log"
	"github.com/teslashibe/facecam/pkg/camera"
	"github.com/teslashibe/facecam/pkg/capture"
	"github.com/teslashibe/facecam/pkg/hub"
	"github.com/teslashibe/facecam/pkg/overlay"
	"github.com/teslashibe/facecam/pkg/photo"
	"github.com/teslashibe/facecam/pkg/screen"
)

// Config holds server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// PreviewWidth is the rendered photo width used for face boxes.
	PreviewWidth float64

	// PreviewInterval is the delay between live preview frames.
	PreviewInterval time.Duration

	// Logger defaults to the "web" component logger.
	Logger *slog.Logger
}

// DefaultConfig returns the default server settings.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		PreviewWidth:    overlay.DefaultPreviewWidth,
		PreviewInterval: 100 * time.Millisecond,
	}
}

// Server exposes one capture controller.
type Server struct {
	app    *fiber.App
	cfg    Config
	ctrl   *capture.Controller
	layout screen.Layout
	log    *slog.Logger

	screenHub  *hub.Hub
	previewHub *hub.Hub
}

// NewServer builds the fiber app and subscribes to controller changes.
func NewServer(ctrl *capture.Controller, cfg Config) *Server {
	def := DefaultConfig()
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.PreviewWidth <= 0 {
		cfg.PreviewWidth = def.PreviewWidth
	}
	if cfg.PreviewInterval <= 0 {
		cfg.PreviewInterval = def.PreviewInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Component("web")
	}

	s := &Server{
		cfg:  cfg,
		ctrl: ctrl,
		log:  cfg.Logger,
		layout: screen.Layout{
			PreviewWidth: cfg.PreviewWidth,
			PhotoURL: func(p photo.Photo) string {
				return "/api/photos/" + p.ID
			},
		},
		screenHub:  hub.New("screen", hub.WithReplay(), hub.WithLogger(cfg.Logger)),
		previewHub: hub.New("preview", hub.WithLogger(cfg.Logger)),
	}

	app := fiber.New(fiber.Config{
		AppName:               "facecam",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/screen", s.handleScreen)
	api.Get("/state", s.handleState)
	api.Post("/permission", s.handlePermission)
	api.Post("/capture", s.handleCapture)
	api.Post("/close", s.handleClose)
	api.Post("/flash", s.handleFlash)
	api.Post("/lens", s.handleLens)
	api.Get("/camera", s.handleGetCamera)
	api.Patch("/camera", s.handlePatchCamera)
	api.Get("/camera/presets", s.handlePresets)
	api.Get("/photos/:id", s.handlePhoto)
	api.Get("/photos/:id/annotated", s.handleAnnotatedPhoto)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/screen", websocket.New(s.handleScreenWS))
	app.Get("/ws/preview", websocket.New(s.handlePreviewWS))

	s.app = app

	ctrl.OnChange(s.publish)
	s.publish(ctrl.State())
	return s
}

// App returns the fiber app, for tests and embedding.
func (s *Server) App() *fiber.App {
	return s.app
}

// Screen renders the current screen.
func (s *Server) Screen() screen.Screen {
	return screen.Render(s.ctrl.State(), s.layout)
}

// Run starts the hubs and the preview loop, then serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	go s.screenHub.Run(ctx)
	go s.previewHub.Run(ctx)
	go s.previewLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("web server listening", "addr", s.cfg.Addr)
		errCh <- s.app.Listen(s.cfg.Addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info("shutting down web server")
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

func (s *Server) publish(st capture.State) {
	if err := s.screenHub.BroadcastJSON(screen.Render(st, s.layout)); err != nil {
		s.log.Error("failed to encode screen", "error", err)
	}
}

// previewLoop streams live frames while someone watches and the camera
// is active. Frames are not read at all otherwise.
func (s *Server) previewLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PreviewInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if s.previewHub.ClientCount() == 0 || !s.ctrl.State().CameraActive {
			continue
		}

		frame, err := s.ctrl.Device().PreviewFrame(ctx)
		switch {
		case err == nil:
			s.previewHub.BroadcastBinary(frame)
		case errors.Is(err, camera.ErrInactive), errors.Is(err, context.Canceled):
		default:
			s.log.Debug("preview frame failed", "error", err)
		}
	}
}
