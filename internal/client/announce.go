package client

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/metrics"
)

// PeerLister enumerates the peers to contact.
type PeerLister interface {
	List() []string
}

// Announcer forwards locally mined blocks to every known peer.
type Announcer struct {
	client         *Client
	peers          PeerLister
	maxConcurrency int
}

func NewAnnouncer(client *Client, peers PeerLister, maxConcurrency int) *Announcer {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Announcer{client: client, peers: peers, maxConcurrency: maxConcurrency}
}

// Announce delivers block to all peers on a best-effort basis and returns how
// many accepted it. Failures are logged and never returned.
func (a *Announcer) Announce(ctx context.Context, block *ledger.Block) int {
	var delivered atomic.Int64

	eg := new(errgroup.Group)
	eg.SetLimit(a.maxConcurrency)
	for _, peer := range a.peers.List() {
		eg.Go(func() error {
			if err := a.client.AnnounceBlock(ctx, peer, block); err != nil {
				metrics.PeerErrors.WithLabelValues("announce").Inc()
				slog.Warn("Failed to announce block", "peer", peer, "index", block.Index, "error", err)
				return nil
			}
			delivered.Add(1)
			return nil
		})
	}
	_ = eg.Wait()

	slog.Debug("Block announced", "index", block.Index, "delivered", delivered.Load())
	return int(delivered.Load())
}
