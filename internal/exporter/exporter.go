package exporter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/schollz/progressbar/v3"

	"github.com/liftedinit/minledger/internal/config"
	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/models"
	"github.com/liftedinit/minledger/internal/output"
)

// ChainSource returns a node's full chain.
type ChainSource interface {
	GetChain(ctx context.Context, node string) (*models.ChainResponse, error)
}

// Export copies the blocks of node's chain in [cfg.BlockStart, cfg.BlockStop]
// to the output handler, in index order. A zero stop means the current tip.
func Export(ctx context.Context, src ChainSource, node string, outputHandler output.OutputHandler, cfg config.ExportConfig) error {
	chain, err := src.GetChain(ctx, node)
	if err != nil {
		return fmt.Errorf("failed to fetch chain: %w", err)
	}
	if len(chain.Chain) == 0 {
		return fmt.Errorf("node returned an empty chain")
	}
	for i, b := range chain.Chain {
		if b == nil {
			return fmt.Errorf("node returned a malformed chain: block %d is null", i)
		}
	}

	tip := chain.Chain[len(chain.Chain)-1].Index
	start, stop := cfg.BlockStart, cfg.BlockStop
	if stop == 0 || stop > tip {
		stop = tip
	}
	if start > stop {
		slog.Info("Nothing to export", "start", start, "tip", tip)
		return nil
	}

	displayProgress := start != stop
	if displayProgress {
		slog.Info("Exporting blocks and transactions", "range", fmt.Sprintf("[%d, %d]", start, stop))
	} else {
		slog.Info("Exporting blocks and transactions", "index", start)
	}

	var bar *progressbar.ProgressBar
	if displayProgress {
		bar = progressbar.NewOptions64(
			int64(stop-start+1),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetDescription("Exporting blocks..."),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		if err := bar.RenderBlank(); err != nil {
			return fmt.Errorf("failed to render progress bar: %w", err)
		}
	}

	for _, b := range chain.Chain {
		if b.Index < start || b.Index > stop {
			continue
		}
		if err := ctx.Err(); err != nil {
			slog.Info("Export cancelled by user")
			return err
		}

		block, txs, err := Convert(b)
		if err != nil {
			return fmt.Errorf("failed to convert block %d: %w", b.Index, err)
		}
		if err := outputHandler.WriteBlockWithTransactions(ctx, block, txs); err != nil {
			return fmt.Errorf("failed to write block %d: %w", b.Index, err)
		}

		if bar != nil {
			if err := bar.Add(1); err != nil {
				slog.Warn("Failed to update progress bar", "error", err)
			}
		}
	}

	if bar != nil {
		if err := bar.Finish(); err != nil {
			return fmt.Errorf("failed to finish progress bar: %w", err)
		}
	}

	slog.Info("Export complete", "start", start, "stop", stop)
	return nil
}

// Convert turns a ledger block into its storage models. A transaction is
// identified by the SHA-256 of the block hash, its position in the block and
// its JSON encoding, so identical records in different blocks stay distinct.
func Convert(b *ledger.Block) (*models.Block, []*models.Transaction, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, nil, err
	}
	block := &models.Block{ID: b.Index, Hash: b.Hash, Data: data}

	txs := make([]*models.Transaction, 0, len(b.Transactions))
	for i, tx := range b.Transactions {
		txData, err := json.Marshal(tx)
		if err != nil {
			return nil, nil, err
		}
		h := sha256.New()
		fmt.Fprintf(h, "%s:%d:", b.Hash, i)
		h.Write(txData)
		txs = append(txs, &models.Transaction{
			Hash:    hex.EncodeToString(h.Sum(nil)),
			BlockID: b.Index,
			Data:    txData,
		})
	}
	return block, txs, nil
}
