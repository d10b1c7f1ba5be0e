package minledger

import (
	"log/slog"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/liftedinit/minledger/internal/config"
	"github.com/liftedinit/minledger/internal/output"
)

var tsvCmd = &cobra.Command{
	Use:   "tsv [node-address] [flags]",
	Short: "Export chain data to TSV files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tsvConfig := config.LoadTSVConfigFromCLI()
		if err := tsvConfig.Validate(); err != nil {
			return errors.WithMessage(err, "invalid TSV configuration")
		}
		slog.Debug("Command-line argument", "tsv-out", tsvConfig.Output)

		outputHandler, err := output.NewTSVOutputHandler(tsvConfig.Output)
		if err != nil {
			return errors.WithMessage(err, "failed to create TSV output handler")
		}

		if err := export(cmd, args[0], outputHandler); err != nil {
			outputHandler.Close()
			return err
		}
		return errors.WithMessage(outputHandler.Close(), "failed to flush TSV output")
	},
}

func init() {
	tsvCmd.Flags().StringP("tsv-out", "o", "tsv", "Output directory")
}
