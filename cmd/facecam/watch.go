package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/facecam/internal/log"
	"github.com/teslashibe/facecam/pkg/client"
	"github.com/teslashibe/facecam/pkg/screen"
)

var (
	watchURL  string
	watchJSON bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print every screen update from a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := log.Component("watch")
		out := cmd.OutOrStdout()
		return client.WatchRetry(cmd.Context(), watchURL, 10*time.Second,
			func(s screen.Screen) {
				if watchJSON {
					data, _ := json.Marshal(s)
					fmt.Fprintln(out, string(data))
					return
				}
				fmt.Fprintln(out, describe(s))
			},
			func(err error) {
				logger.Warn("screen connection failed, retrying", "url", watchURL, "error", err)
			},
		)
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchURL, "url", client.DefaultScreenURL, "Screen websocket URL")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "Print raw JSON instead of a summary")

	rootCmd.AddCommand(watchCmd)
}

// describe summarises a screen on one line.
func describe(s screen.Screen) string {
	if s.Permission != nil {
		return fmt.Sprintf("[permission] %s (%s)", s.Permission.Message, s.Permission.Label)
	}
	if s.Camera == nil {
		return "[empty]"
	}

	var b strings.Builder
	state := "inactive"
	if s.Camera.Active {
		state = "active"
	}
	fmt.Fprintf(&b, "[camera] %s lens=%s torch=%s", state, s.Camera.Lens, s.Camera.Torch)

	if m := s.Photo; m != nil {
		fmt.Fprintf(&b, " | photo %s %.0fx%.0f faces=%s", m.ImageURL, m.Width, m.Height, m.Faces.Status)
		switch {
		case m.Faces.Text != "":
			fmt.Fprintf(&b, " %q", m.Faces.Text)
		case len(m.Boxes) > 0:
			fmt.Fprintf(&b, " boxes=%d", len(m.Boxes))
		}
		if m.Faces.Error != "" {
			fmt.Fprintf(&b, " error=%q", m.Faces.Error)
		}
	}
	return b.String()
}
