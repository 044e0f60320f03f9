package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/facecam/pkg/app"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the capture screen over HTTP and websockets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg)
		if err != nil {
			return err
		}
		if err := a.Init(); err != nil {
			return err
		}
		defer a.Shutdown()

		return a.Serve(cmd.Context())
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flags.Float64Var(&cfg.PreviewWidth, "preview-width", cfg.PreviewWidth, "Rendered width of the photo preview")
	flags.BoolVar(&cfg.DiscardOnClose, "discard-on-close", cfg.DiscardOnClose, "Delete the photo file when the preview is closed")
	flags.StringVar(&cfg.MQTTBroker, "mqtt-broker", cfg.MQTTBroker, "MQTT broker for detection events and remote commands, e.g. tcp://localhost:1883")
	flags.StringVar(&cfg.MQTTPrefix, "mqtt-prefix", cfg.MQTTPrefix, "MQTT topic prefix")

	rootCmd.AddCommand(serveCmd)
}
