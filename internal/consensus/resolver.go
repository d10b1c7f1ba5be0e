package consensus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/metrics"
	"github.com/liftedinit/minledger/internal/models"
)

// PeerChain is the chain one peer reported.
type PeerChain struct {
	Peer   string
	Length int
	Blocks []*ledger.Block
}

// ChainFetcher retrieves a peer's chain.
type ChainFetcher interface {
	GetChain(ctx context.Context, peer string) (*models.ChainResponse, error)
}

// PeerLister enumerates peers, in a stable order.
type PeerLister interface {
	List() []string
}

// LocalChain is the replica being reconciled.
type LocalChain interface {
	Len() int
	Validator() *ledger.Validator
	Replace(blocks []*ledger.Block) (bool, error)
}

// Select applies the length-based fork-choice rule. A report qualifies when
// it is strictly longer than every chain seen so far, the local one included,
// and validates. Among equally long qualifying chains the one with the
// smallest tip hash wins, so the outcome does not depend on report order.
func Select(localLen int, v *ledger.Validator, reports []PeerChain) (PeerChain, bool) {
	currentLen := localLen
	var best PeerChain
	found := false
	for _, r := range reports {
		if r.Length != len(r.Blocks) {
			slog.Debug("Skipping malformed chain report", "peer", r.Peer, "length", r.Length, "blocks", len(r.Blocks))
			continue
		}
		switch {
		case r.Length > currentLen:
		case found && r.Length == currentLen && tipHash(r) < tipHash(best):
		default:
			continue
		}
		if err := v.ValidateChain(r.Blocks); err != nil {
			slog.Debug("Skipping invalid peer chain", "peer", r.Peer, "error", err)
			continue
		}
		currentLen = r.Length
		best = r
		found = true
	}
	return best, found
}

func tipHash(r PeerChain) string {
	if len(r.Blocks) == 0 || r.Blocks[len(r.Blocks)-1] == nil {
		return ""
	}
	return r.Blocks[len(r.Blocks)-1].Hash
}

// Resolver reconciles the local chain with the chains reported by peers.
type Resolver struct {
	local          LocalChain
	fetcher        ChainFetcher
	peers          PeerLister
	maxConcurrency int
}

func NewResolver(local LocalChain, fetcher ChainFetcher, peers PeerLister, maxConcurrency int) *Resolver {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Resolver{
		local:          local,
		fetcher:        fetcher,
		peers:          peers,
		maxConcurrency: maxConcurrency,
	}
}

// Resolve queries every peer and replaces the local chain with the longest
// valid chain that beats it. A peer that cannot be reached or answers with
// garbage is skipped. It reports whether the local chain was replaced.
func (r *Resolver) Resolve(ctx context.Context) (bool, error) {
	reports := r.collect(ctx)
	if err := ctx.Err(); err != nil {
		return false, err
	}

	best, ok := Select(r.local.Len(), r.local.Validator(), reports)
	if !ok {
		metrics.ConsensusRuns.WithLabelValues("unchanged").Inc()
		slog.Debug("Local chain is authoritative", "peers", len(reports))
		return false, nil
	}

	replaced, err := r.local.Replace(best.Blocks)
	if err != nil {
		metrics.ConsensusRuns.WithLabelValues("error").Inc()
		return false, fmt.Errorf("failed to adopt chain from %s: %w", best.Peer, err)
	}
	if !replaced {
		// The local chain grew past the candidate while peers were queried.
		metrics.ConsensusRuns.WithLabelValues("unchanged").Inc()
		return false, nil
	}

	metrics.ConsensusRuns.WithLabelValues("replaced").Inc()
	slog.Info("Local chain replaced", "peer", best.Peer, "length", best.Length)
	return true, nil
}

// Run resolves every interval until ctx is done. A non-positive interval
// disables periodic resolution.
func (r *Resolver) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Resolve(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("Consensus round failed", "error", err)
			}
		}
	}
}

// collect fetches all peer chains concurrently, keeping peer order.
func (r *Resolver) collect(ctx context.Context) []PeerChain {
	peers := r.peers.List()
	results := make([]*PeerChain, len(peers))

	eg := new(errgroup.Group)
	eg.SetLimit(r.maxConcurrency)
	for i, peer := range peers {
		eg.Go(func() error {
			resp, err := r.fetcher.GetChain(ctx, peer)
			if err != nil {
				metrics.PeerErrors.WithLabelValues("chain").Inc()
				slog.Warn("Failed to fetch peer chain", "peer", peer, "error", err)
				return nil
			}
			results[i] = &PeerChain{Peer: peer, Length: resp.Length, Blocks: resp.Chain}
			return nil
		})
	}
	_ = eg.Wait()

	reports := make([]PeerChain, 0, len(peers))
	for _, res := range results {
		if res != nil {
			reports = append(reports, *res)
		}
	}
	return reports
}
