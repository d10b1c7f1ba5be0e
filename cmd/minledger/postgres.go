package minledger

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/liftedinit/minledger/internal/config"
	"github.com/liftedinit/minledger/internal/output/postgresql"
)

var postgresCmd = &cobra.Command{
	Use:   "postgres [node-address] [flags]",
	Short: "Export chain data to a PostgreSQL database",
	Long:  `Export chain data to a PostgreSQL database. Without --start, the export resumes after the latest block already stored.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		postgresConfig := config.LoadPostgresConfigFromCLI()
		if err := postgresConfig.Validate(); err != nil {
			return fmt.Errorf("invalid PostgreSQL configuration: %w", err)
		}
		slog.Debug("Command-line argument", "postgres-max-conns", postgresConfig.MaxConns)

		outputHandler, err := postgresql.NewPostgresOutputHandler(postgresConfig.ConnString, postgresConfig.MaxConns)
		if err != nil {
			return fmt.Errorf("failed to create PostgreSQL output handler: %w", err)
		}
		defer outputHandler.Close()

		return export(cmd, args[0], outputHandler)
	},
}

func init() {
	postgresCmd.Flags().StringP("postgres-conn", "p", "", "PostgreSQL connection string")
	postgresCmd.Flags().Uint("postgres-max-conns", 4, "Maximum PostgreSQL connections")
}
