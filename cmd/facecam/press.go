package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teslashibe/facecam/pkg/client"
	"github.com/teslashibe/facecam/pkg/screen"
)

var (
	pressURL  string
	pressJSON bool
)

var pressCmd = &cobra.Command{
	Use:       "press <permission|flash|capture|lens|close>",
	Short:     "Perform a screen action on a running server",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"permission", "flash", "capture", "lens", "close"},
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := client.NewAPI(pressURL).Press(cmd.Context(), screen.Action(args[0]))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if pressJSON {
			data, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintln(out, describe(s))
		return nil
	},
}

func init() {
	pressCmd.Flags().StringVar(&pressURL, "url", client.DefaultBaseURL, "Server base URL")
	pressCmd.Flags().BoolVar(&pressJSON, "json", false, "Print the resulting screen as JSON")

	rootCmd.AddCommand(pressCmd)
}
