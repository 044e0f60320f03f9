// Package config provides configuration helpers for facecam commands.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Defaults used when neither a flag nor an environment variable is set.
const (
	DefaultAddr         = ":8080"
	DefaultPhotoDir     = "photos"
	DefaultModelPath    = "models/face_detection_yunet.onnx"
	DefaultDetector     = "yunet"
	DefaultBackDevice   = 0
	DefaultFrontDevice  = 1
	DefaultPreviewWidth = 300
	DefaultLogLevel     = "info"
	DefaultMQTTPrefix   = "facecam"
)

// Config holds everything a facecam command needs to wire itself up.
// Flag parsing is done in cmd/facecam; this struct is data only.
type Config struct {
	Addr     string
	PhotoDir string

	// Detection backend.
	Detector  string // "yunet" or "haar"
	ModelPath string

	// Camera device indexes per lens.
	BackDevice  int
	FrontDevice int

	// PreviewWidth is the rendered width of the captured-photo preview.
	PreviewWidth float64

	// AssumeGranted skips the camera device permission probe.
	AssumeGranted bool

	// DiscardOnClose removes the photo file when the preview is closed.
	DiscardOnClose bool

	// MQTTBroker enables the event bridge when set, e.g. "tcp://localhost:1883".
	MQTTBroker string
	MQTTPrefix string

	LogLevel string
}

// Load returns the configuration built from defaults and environment variables.
func Load() Config {
	return Config{
		Addr:         String("FACECAM_ADDR", DefaultAddr),
		PhotoDir:     String("FACECAM_PHOTO_DIR", DefaultPhotoDir),
		Detector:     String("FACECAM_DETECTOR", DefaultDetector),
		ModelPath:    String("FACECAM_MODEL", DefaultModelPath),
		BackDevice:   Int("FACECAM_BACK_DEVICE", DefaultBackDevice),
		FrontDevice:  Int("FACECAM_FRONT_DEVICE", DefaultFrontDevice),
		PreviewWidth: Float("FACECAM_PREVIEW_WIDTH", DefaultPreviewWidth),
		MQTTBroker:   String("FACECAM_MQTT_BROKER", ""),
		MQTTPrefix:   String("FACECAM_MQTT_PREFIX", DefaultMQTTPrefix),
		LogLevel:     String("LOG_LEVEL", DefaultLogLevel),
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.PreviewWidth <= 0 {
		return &Error{Field: "PreviewWidth", Message: fmt.Sprintf("preview width must be positive, got %v", c.PreviewWidth)}
	}
	if c.PhotoDir == "" {
		return &Error{Field: "PhotoDir", Message: "photo directory is required"}
	}
	switch c.Detector {
	case "yunet", "haar":
	default:
		return &Error{Field: "Detector", Message: fmt.Sprintf("unknown detector %q (want yunet or haar)", c.Detector)}
	}
	if c.BackDevice < 0 || c.FrontDevice < 0 {
		return &Error{Field: "Device", Message: "camera device indexes must not be negative"}
	}
	if c.MQTTBroker != "" && c.MQTTPrefix == "" {
		return &Error{Field: "MQTTPrefix", Message: "MQTT topic prefix is required with a broker"}
	}
	return nil
}

// Error represents a configuration validation error.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// String returns the env var value or the default if unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as an int, or the default if unset or invalid.
func Int(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Float returns the env var parsed as a float64, or the default if unset or invalid.
func Float(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
