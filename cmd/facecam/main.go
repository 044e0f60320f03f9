// facecam captures photos from a local camera, detects faces in them and
// serves the capture screen over HTTP and websockets.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teslashibe/facecam/internal/config"
	"github.com/teslashibe/facecam/internal/log"
)

// Version is the application version.
const Version = "0.1.0"

// cfg starts from defaults and the environment; flags override it.
var cfg = config.Load()

var rootCmd = &cobra.Command{
	Use:           "facecam",
	Short:         "Camera capture with face detection",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(cfg.LogLevel)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	flags.StringVar(&cfg.PhotoDir, "photo-dir", cfg.PhotoDir, "Directory captured photos are written to")
	flags.StringVar(&cfg.ModelPath, "model", cfg.ModelPath, "Face detection model (YuNet ONNX or Haar cascade XML)")
	flags.StringVar(&cfg.Detector, "detector", cfg.Detector, "Detection backend: yunet or haar")
	flags.IntVar(&cfg.BackDevice, "back-device", cfg.BackDevice, "Video device index of the back lens")
	flags.IntVar(&cfg.FrontDevice, "front-device", cfg.FrontDevice, "Video device index of the front lens")
	flags.BoolVar(&cfg.AssumeGranted, "assume-granted", cfg.AssumeGranted, "Skip the camera permission probe")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "facecam:", err)
		os.Exit(1)
	}
}
