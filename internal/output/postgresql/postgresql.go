package postgresql

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/liftedinit/minledger/internal/models"
)

//go:embed migrations/*
var migrationsFS embed.FS

const (
	LatestBlockQuery = `SELECT id FROM api.blocks_raw ORDER BY id DESC LIMIT 1`
	UpsertBlockQuery = `INSERT INTO api.blocks_raw (id, hash, data) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET hash = EXCLUDED.hash, data = EXCLUDED.data`
	DeleteBlockTransactionsQuery = `DELETE FROM api.transactions_raw WHERE block_id = $1`
	UpsertTransactionQuery       = `INSERT INTO api.transactions_raw (id, block_id, data) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET block_id = EXCLUDED.block_id, data = EXCLUDED.data`
)

type PostgresOutputHandler struct {
	pool *pgxpool.Pool
	db   *sql.DB
}

func NewPostgresOutputHandler(connString string, maxConcurrency uint) (*PostgresOutputHandler, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL connection string: %w", err)
	}

	if maxConcurrency > math.MaxInt32 {
		return nil, fmt.Errorf("max concurrency exceeds maximum int32 value")
	}
	if maxConcurrency > 0 {
		config.MaxConns = int32(maxConcurrency)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	handler := &PostgresOutputHandler{
		pool: pool,
		db:   stdlib.OpenDBFromPool(pool),
	}

	// Run migrations. This is idempotent.
	if err = handler.runMigrations(); err != nil {
		handler.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return handler, nil
}

// NewWithDB wraps an already open database without running migrations.
func NewWithDB(db *sql.DB) *PostgresOutputHandler {
	return &PostgresOutputHandler{db: db}
}

func (h *PostgresOutputHandler) GetLatestBlock(ctx context.Context) (*models.Block, error) {
	var block models.Block
	err := h.db.QueryRowContext(ctx, LatestBlockQuery).Scan(&block.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get the latest block: %w", err)
	}
	return &block, nil
}

// WriteBlockWithTransactions upserts the block and replaces its transactions
// in a single database transaction.
func (h *PostgresOutputHandler) WriteBlockWithTransactions(ctx context.Context, block *models.Block, transactions []*models.Transaction) error {
	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op once committed

	if _, err = tx.ExecContext(ctx, UpsertBlockQuery, block.ID, block.Hash, block.Data); err != nil {
		return fmt.Errorf("failed to write ledger block: %w", err)
	}

	// A re-exported index may belong to a different fork.
	if _, err = tx.ExecContext(ctx, DeleteBlockTransactionsQuery, block.ID); err != nil {
		return fmt.Errorf("failed to clear block transactions: %w", err)
	}

	for _, txData := range transactions {
		if _, err = tx.ExecContext(ctx, UpsertTransactionQuery, txData.Hash, txData.BlockID, txData.Data); err != nil {
			return fmt.Errorf("failed to write ledger transaction: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func (h *PostgresOutputHandler) runMigrations() error {
	slog.Info("Running PostgreSQL migrations...")

	d, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := migratepgx.WithInstance(stdlib.OpenDBFromPool(h.pool), &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", d, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}
	defer m.Close()

	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (h *PostgresOutputHandler) Close() error {
	slog.Info("Closing PostgreSQL connection pool")
	err := h.db.Close()
	if h.pool != nil {
		h.pool.Close()
	}
	slog.Info("PostgreSQL connection pool closed")
	return err
}
