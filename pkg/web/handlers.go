package web

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/facecam/pkg/camera"
	"github.com/teslashibe/facecam/pkg/capture"
	"github.com/teslashibe/facecam/pkg/hub"
	"github.com/teslashibe/facecam/pkg/overlay"
	"github.com/teslashibe/facecam/pkg/permission"
	"github.com/teslashibe/facecam/pkg/photo"
)

// statusFor maps controller errors to HTTP status codes.
func statusFor(err error) int {
	var capErr *capture.CaptureError
	var valErr *camera.ValidationError
	switch {
	case errors.Is(err, capture.ErrPermissionDenied), errors.Is(err, permission.ErrDenied):
		return fiber.StatusForbidden
	case errors.As(err, &capErr):
		return fiber.StatusBadGateway
	case errors.Is(err, photo.ErrNotFound):
		return fiber.StatusNotFound
	case errors.As(err, &valErr):
		return fiber.StatusBadRequest
	case errors.Is(err, capture.ErrClosed):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, err error) error {
	return s.failWith(c, statusFor(err), err)
}

func (s *Server) failWith(c *fiber.Ctx, status int, err error) error {
	if status >= fiber.StatusInternalServerError {
		s.log.Error("request failed", "path", c.Path(), "status", status, "error", err)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

// hubStatus is the health entry for one websocket hub.
type hubStatus struct {
	Running bool  `json:"running"`
	Clients int   `json:"clients"`
	Dropped int64 `json:"dropped"`
}

func statusOf(h *hub.Hub) hubStatus {
	return hubStatus{Running: h.IsRunning(), Clients: h.ClientCount(), Dropped: h.Dropped()}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"hubs": fiber.Map{
			"screen":  statusOf(s.screenHub),
			"preview": statusOf(s.previewHub),
		},
	})
}

func (s *Server) handleScreen(c *fiber.Ctx) error {
	return c.JSON(s.Screen())
}

func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.State())
}

func (s *Server) handlePermission(c *fiber.Ctx) error {
	state, err := s.ctrl.RequestPermission(c.UserContext())
	if state != permission.Granted {
		if err == nil {
			err = permission.ErrDenied
		}
		return c.Status(statusFor(err)).JSON(fiber.Map{
			"error":      err.Error(),
			"permission": state,
		})
	}
	return c.JSON(s.Screen())
}

func (s *Server) handleCapture(c *fiber.Ctx) error {
	p, err := s.ctrl.Capture(c.UserContext())
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (s *Server) handleClose(c *fiber.Ctx) error {
	if err := s.ctrl.ClosePreview(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.Screen())
}

func (s *Server) handleFlash(c *fiber.Ctx) error {
	if _, err := s.ctrl.ToggleFlash(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.Screen())
}

func (s *Server) handleLens(c *fiber.Ctx) error {
	if _, err := s.ctrl.ToggleLens(); err != nil {
		return s.fail(c, err)
	}
	return c.JSON(s.Screen())
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"config":       s.ctrl.Camera().GetConfigJSON(),
		"capabilities": camera.Capabilities(),
	})
}

func (s *Server) handlePatchCamera(c *fiber.Ctx) error {
	var params map[string]interface{}
	if err := c.BodyParser(&params); err != nil {
		return s.failWith(c, fiber.StatusBadRequest, err)
	}

	cfg, err := s.ctrl.Configure(params)
	if err != nil {
		status := statusFor(err)
		if status == fiber.StatusInternalServerError {
			// Unknown keys and presets.
			status = fiber.StatusBadRequest
		}
		return s.failWith(c, status, err)
	}
	return c.JSON(cfg)
}

func (s *Server) handlePresets(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"presets": camera.PresetNames(),
	})
}

func (s *Server) handlePhoto(c *fiber.Ctx) error {
	data, err := s.ctrl.Photos().Read(c.Params("id"))
	if err != nil {
		return s.fail(c, err)
	}
	c.Type("jpg")
	return c.Send(data)
}

func (s *Server) handleAnnotatedPhoto(c *fiber.Ctx) error {
	id := c.Params("id")
	data, err := s.ctrl.Photos().Read(id)
	if err != nil {
		return s.fail(c, err)
	}

	faces, err := s.ctrl.Faces(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}

	annotated, err := overlay.Annotate(data, faces, s.ctrl.Camera().GetConfig().Quality)
	if err != nil {
		return s.fail(c, err)
	}
	c.Type("jpg")
	return c.Send(annotated)
}

func (s *Server) handleScreenWS(c *websocket.Conn) {
	hub.NewClient(s.screenHub, c).Run()
}

func (s *Server) handlePreviewWS(c *websocket.Conn) {
	hub.NewClient(s.previewHub, c).Run()
}
