package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/teslashibe/facecam/pkg/app"
	"github.com/teslashibe/facecam/pkg/camera"
	"github.com/teslashibe/facecam/pkg/capture"
	"github.com/teslashibe/facecam/pkg/detection"
	"github.com/teslashibe/facecam/pkg/overlay"
	"github.com/teslashibe/facecam/pkg/permission"
	"github.com/teslashibe/facecam/pkg/photo"
)

// snapOptions holds the flags of the snap command.
type snapOptions struct {
	Lens     string
	Flash    bool
	Annotate string
	Count    int
	Interval time.Duration
	Timeout  time.Duration
	Width    float64
}

var snapOpts = snapOptions{
	Lens:     string(camera.LensBack),
	Count:    1,
	Interval: time.Second,
	Timeout:  30 * time.Second,
}

// SnapResult is what snap prints for each photo.
type SnapResult struct {
	Photo    photo.Photo       `json:"photo"`
	Faces    []detection.Face  `json:"faces"`
	Viewport *overlay.Viewport `json:"viewport,omitempty"`
	Boxes    []overlay.Box     `json:"boxes"`
	Error    string            `json:"error,omitempty"`
}

var snapCmd = &cobra.Command{
	Use:   "snap",
	Short: "Capture photos, detect faces and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSnap(cmd.Context(), snapOpts)
	},
}

func init() {
	flags := snapCmd.Flags()
	flags.StringVar(&snapOpts.Lens, "lens", snapOpts.Lens, "Lens to use: back or front")
	flags.BoolVar(&snapOpts.Flash, "flash", snapOpts.Flash, "Turn the torch on")
	flags.StringVar(&snapOpts.Annotate, "annotate", "", "Write a copy with face boxes drawn to this JPEG path")
	flags.IntVar(&snapOpts.Count, "count", snapOpts.Count, "Number of photos to take")
	flags.DurationVar(&snapOpts.Interval, "interval", snapOpts.Interval, "Delay between photos when --count > 1")
	flags.DurationVar(&snapOpts.Timeout, "timeout", snapOpts.Timeout, "Maximum time to wait for each detection")
	flags.Float64Var(&snapOpts.Width, "preview-width", overlay.DefaultPreviewWidth, "Rendered width used for the overlay boxes")

	rootCmd.AddCommand(snapCmd)
}

func runSnap(ctx context.Context, opts snapOptions) error {
	lens := camera.Lens(opts.Lens)
	if !lens.Valid() {
		return fmt.Errorf("invalid lens %q (want back or front)", opts.Lens)
	}
	if opts.Count < 1 {
		return fmt.Errorf("--count must be at least 1, got %d", opts.Count)
	}

	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	if err := a.Init(); err != nil {
		return err
	}
	defer a.Shutdown()

	if state := a.Mount(ctx); state != permission.Granted {
		return fmt.Errorf("camera permission %s", state)
	}

	ctrl := a.Controller()
	if err := applySettings(ctrl, lens, opts.Flash); err != nil {
		return err
	}

	var bar *progressbar.ProgressBar
	if opts.Count > 1 {
		bar = progressbar.NewOptions(opts.Count,
			progressbar.OptionSetDescription("Capturing"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
		)
	}

	results := make([]SnapResult, 0, opts.Count)
	for i := 0; i < opts.Count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(opts.Interval):
			}
		}

		res, err := snapOnce(ctx, ctrl, opts)
		if err != nil {
			return err
		}
		if opts.Annotate != "" {
			if err := writeAnnotated(ctrl, res, annotatedPath(opts.Annotate, i, opts.Count)); err != nil {
				return err
			}
		}
		results = append(results, res)

		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
		fmt.Fprintln(os.Stderr)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if len(results) == 1 {
		return enc.Encode(results[0])
	}
	return enc.Encode(results)
}

// applySettings toggles lens and flash until they match.
func applySettings(ctrl *capture.Controller, lens camera.Lens, flash bool) error {
	st := ctrl.State().Settings
	if st.Lens != lens {
		if _, err := ctrl.ToggleLens(); err != nil {
			return err
		}
	}
	if st.Flash != flash {
		if _, err := ctrl.ToggleFlash(); err != nil {
			return err
		}
	}
	return nil
}

func snapOnce(ctx context.Context, ctrl *capture.Controller, opts snapOptions) (SnapResult, error) {
	p, err := ctrl.Capture(ctx)
	if err != nil {
		return SnapResult{}, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	result, err := ctrl.Await(waitCtx, p.ID)
	if err != nil {
		return SnapResult{}, fmt.Errorf("waiting for face detection: %w", err)
	}

	if err := ctrl.ClosePreview(); err != nil {
		return SnapResult{}, err
	}
	return newSnapResult(result, opts.Width), nil
}

// newSnapResult lays the faces out for a preview width wide.
func newSnapResult(result capture.PhotoWithFaces, width float64) SnapResult {
	res := SnapResult{
		Photo: result.Photo,
		Faces: result.Faces,
		Boxes: []overlay.Box{},
	}
	if res.Faces == nil {
		res.Faces = []detection.Face{}
	}
	if result.Err != nil {
		res.Error = result.Err.Error()
	}
	if v, err := overlay.Fit(result.Photo.Width, result.Photo.Height, width); err == nil {
		res.Viewport = &v
		res.Boxes = v.Boxes(res.Faces)
	}
	return res
}

func writeAnnotated(ctrl *capture.Controller, res SnapResult, path string) error {
	data, err := ctrl.Photos().Read(res.Photo.ID)
	if err != nil {
		return err
	}
	out, err := overlay.Annotate(data, res.Faces, ctrl.Camera().GetConfig().Quality)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write annotated photo: %w", err)
	}
	return nil
}

// annotatedPath numbers the output file when more than one photo is taken:
// out.jpg becomes out-1.jpg, out-2.jpg, ...
func annotatedPath(base string, i, count int) string {
	if count <= 1 {
		return base
	}
	ext := filepath.Ext(base)
	return fmt.Sprintf("%s-%d%s", strings.TrimSuffix(base, ext), i+1, ext)
}
