package miner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/metrics"
)

// Sealer produces the next block from the pending pool.
type Sealer interface {
	Mine(ctx context.Context) (*ledger.Block, error)
}

// Announcer delivers a freshly mined block to peers.
type Announcer interface {
	Announce(ctx context.Context, block *ledger.Block) int
}

// Worker mines on demand and, when an interval is set, on a timer.
type Worker struct {
	sealer    Sealer
	announcer Announcer
	interval  time.Duration
}

// NewWorker returns a worker. A zero interval disables background mining;
// announcer may be nil for a node without peers.
func NewWorker(sealer Sealer, announcer Announcer, interval time.Duration) *Worker {
	return &Worker{sealer: sealer, announcer: announcer, interval: interval}
}

// Mine seals the pending pool and announces the result. It returns
// ledger.ErrNothingToMine when the pool is empty.
func (w *Worker) Mine(ctx context.Context) (*ledger.Block, error) {
	start := time.Now()
	block, err := w.sealer.Mine(ctx)
	if err != nil {
		return nil, err
	}

	metrics.BlocksMined.Inc()
	slog.Info("Block mined", "index", block.Index, "transactions", len(block.Transactions), "nonce", block.Nonce, "elapsed", time.Since(start))

	if w.announcer != nil {
		w.announcer.Announce(ctx, block)
	}
	return block, nil
}

// Run mines every interval until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if w.interval <= 0 {
		<-ctx.Done()
		return nil
	}

	slog.Info("Starting background mining", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, err := w.Mine(ctx)
			switch {
			case err == nil, errors.Is(err, ledger.ErrNothingToMine):
			case ctx.Err() != nil:
				return nil
			default:
				slog.Warn("Background mining failed", "error", err)
			}
		}
	}
}
