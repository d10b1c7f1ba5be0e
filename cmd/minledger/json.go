package minledger

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/liftedinit/minledger/internal/config"
	"github.com/liftedinit/minledger/internal/output"
)

var jsonCmd = &cobra.Command{
	Use:   "json [node-address] [flags]",
	Short: "Export chain data to JSON files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		jsonConfig := config.LoadJSONConfigFromCLI()
		if err := jsonConfig.Validate(); err != nil {
			return fmt.Errorf("invalid JSON configuration: %w", err)
		}
		slog.Debug("Command-line argument", "json-out", jsonConfig.Output)

		outputHandler, err := output.NewJSONOutputHandler(jsonConfig.Output)
		if err != nil {
			return fmt.Errorf("failed to create JSON output handler: %w", err)
		}
		defer outputHandler.Close()

		return export(cmd, args[0], outputHandler)
	},
}

func init() {
	jsonCmd.Flags().StringP("json-out", "o", "out", "JSON output directory")
}
