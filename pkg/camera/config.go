// Package camera provides the capture device and its runtime-configurable
// settings.
package camera

// Lens identifies which camera is in use.
type Lens string

const (
	LensBack  Lens = "back"
	LensFront Lens = "front"
)

// Flip returns the other lens.
func (l Lens) Flip() Lens {
	if l == LensFront {
		return LensBack
	}
	return LensFront
}

// Valid reports whether l is a known lens.
func (l Lens) Valid() bool {
	return l == LensBack || l == LensFront
}

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// === Resolution ===
	Width     int `json:"width"`     // Frame width in pixels
	Height    int `json:"height"`    // Frame height in pixels
	Framerate int `json:"framerate"` // Preview frames per second
	Quality   int `json:"quality"`   // JPEG quality 1-100

	// === Device selection ===
	Lens        Lens `json:"lens"`
	BackDevice  int  `json:"back_device"`  // Capture index for the back lens
	FrontDevice int  `json:"front_device"` // Capture index for the front lens

	// MirrorFront flips front-lens frames horizontally, like a selfie preview.
	MirrorFront bool `json:"mirror_front"`

	// === Torch ===
	// Webcams have no torch; when on, brightness is raised to TorchBrightness.
	Torch           bool    `json:"torch"`
	TorchBrightness float64 `json:"torch_brightness"` // 0.0 to 1.0

	// Active is false while a captured photo is on screen.
	Active bool `json:"active"`
}

// Limits accepted by Validate.
const (
	MaxWidth     = 4096
	MaxHeight    = 2160
	MaxFramerate = 60
	MaxDevice    = 63
)

// DefaultConfig returns the recommended configuration.
func DefaultConfig() Config {
	return Config{
		Width:     1280,
		Height:    720,
		Framerate: 15,
		Quality:   90,

		Lens:        LensBack,
		BackDevice:  0,
		FrontDevice: 1,
		MirrorFront: true,

		Torch:           false,
		TorchBrightness: 0.8,

		Active: true,
	}
}

// LegacyConfig returns a 640x480 configuration for older webcams.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	var errors []string

	if c.Width < 160 || c.Width > MaxWidth {
		errors = append(errors, "width must be between 160 and 4096")
	}
	if c.Height < 120 || c.Height > MaxHeight {
		errors = append(errors, "height must be between 120 and 2160")
	}
	if c.Framerate < 1 || c.Framerate > MaxFramerate {
		errors = append(errors, "framerate must be between 1 and 60")
	}
	if c.Quality < 1 || c.Quality > 100 {
		errors = append(errors, "quality must be between 1 and 100")
	}
	if !c.Lens.Valid() {
		errors = append(errors, "lens must be back or front")
	}
	if c.BackDevice < 0 || c.BackDevice > MaxDevice || c.FrontDevice < 0 || c.FrontDevice > MaxDevice {
		errors = append(errors, "device indexes must be between 0 and 63")
	}
	if c.TorchBrightness < 0 || c.TorchBrightness > 1 {
		errors = append(errors, "torch_brightness must be between 0.0 and 1.0")
	}

	return errors
}

// DeviceIndex returns the capture index for the selected lens.
func (c *Config) DeviceIndex() int {
	if c.Lens == LensFront {
		return c.FrontDevice
	}
	return c.BackDevice
}

// Mirrored reports whether frames from the selected lens are flipped.
func (c *Config) Mirrored() bool {
	return c.Lens == LensFront && c.MirrorFront
}

// Capabilities returns what the camera layer supports.
func Capabilities() map[string]interface{} {
	return map[string]interface{}{
		"max_width":     MaxWidth,
		"max_height":    MaxHeight,
		"max_framerate": MaxFramerate,
		"lenses":        []Lens{LensBack, LensFront},
		"presets":       PresetNames(),
	}
}
