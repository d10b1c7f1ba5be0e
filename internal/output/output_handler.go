package output

import (
	"context"

	"github.com/liftedinit/minledger/internal/models"
)

// OutputHandler persists exported blocks together with their transactions.
type OutputHandler interface {
	WriteBlockWithTransactions(ctx context.Context, block *models.Block, transactions []*models.Transaction) error
	// GetLatestBlock returns the highest block already written, or nil when
	// the sink is empty or cannot tell.
	GetLatestBlock(ctx context.Context) (*models.Block, error)
	Close() error
}
