package minledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/liftedinit/minledger/internal/client"
	"github.com/liftedinit/minledger/internal/config"
	"github.com/liftedinit/minledger/internal/exporter"
	"github.com/liftedinit/minledger/internal/output"
	"github.com/liftedinit/minledger/internal/peers"
)

var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export chain data to various output formats",
	Long:  `Export the chain of a running node to JSON files, TSV files or a PostgreSQL database.`,
}

func init() {
	ExportCmd.PersistentFlags().Uint64P("start", "s", 0, "First block index to export")
	ExportCmd.PersistentFlags().Uint64P("stop", "e", 0, "Last block index to export (0 means the chain tip)")
	ExportCmd.PersistentFlags().Duration("request-timeout", 30*time.Second, "Timeout of the chain request")

	ExportCmd.AddCommand(jsonCmd)
	ExportCmd.AddCommand(tsvCmd)
	ExportCmd.AddCommand(postgresCmd)
}

// export fetches the chain from address and writes it to outputHandler. When
// --start is not given explicitly, the export resumes after the latest block
// the handler already holds.
func export(cmd *cobra.Command, address string, outputHandler output.OutputHandler) error {
	exportConfig := config.LoadExportConfigFromCLI()
	if err := exportConfig.Validate(); err != nil {
		return fmt.Errorf("invalid export configuration: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handleInterrupt(cancel)

	if !cmd.Flags().Changed("start") {
		latest, err := outputHandler.GetLatestBlock(ctx)
		if err != nil {
			return fmt.Errorf("failed to get the latest block: %w", err)
		}
		if latest != nil {
			slog.Info("Resuming from block", "index", latest.ID)
			exportConfig.BlockStart = latest.ID + 1
		}
	}

	node := peers.Normalize(address)
	slog.Debug("Export configuration", "node", node, "exportConfig", exportConfig)

	return exporter.Export(ctx, client.New(exportConfig.RequestTimeout), node, outputHandler, exportConfig)
}
