package output

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/liftedinit/minledger/internal/models"
)

type TSVOutputHandler struct {
	blockFile   *os.File
	txFile      *os.File
	blockWriter *bufio.Writer
	txWriter    *bufio.Writer
}

const (
	blocksTSV = "blocks.tsv"
	txsTSV    = "transactions.tsv"
)

func NewTSVOutputHandler(outDir string) (*TSVOutputHandler, error) {
	err := os.MkdirAll(outDir, 0755)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create output directory")
	}

	blockFile, err := os.Create(filepath.Join(outDir, blocksTSV))
	if err != nil {
		return nil, errors.WithMessage(err, "failed to create blocks TSV file")
	}

	txFile, err := os.Create(filepath.Join(outDir, txsTSV))
	if err != nil {
		blockFile.Close()
		return nil, errors.WithMessage(err, "failed to create transactions TSV file")
	}

	return &TSVOutputHandler{
		blockFile:   blockFile,
		txFile:      txFile,
		blockWriter: bufio.NewWriter(blockFile),
		txWriter:    bufio.NewWriter(txFile),
	}, nil
}

// WriteBlockWithTransactions appends one line per block (id, hash, JSON) and
// one per transaction (hash, block id, JSON).
func (h *TSVOutputHandler) WriteBlockWithTransactions(_ context.Context, block *models.Block, transactions []*models.Transaction) error {
	if _, err := fmt.Fprintf(h.blockWriter, "%d\t%s\t%s\n", block.ID, block.Hash, block.Data); err != nil {
		return errors.WithMessage(err, "failed to write block")
	}
	for _, tx := range transactions {
		if _, err := fmt.Fprintf(h.txWriter, "%s\t%d\t%s\n", tx.Hash, tx.BlockID, tx.Data); err != nil {
			return errors.WithMessage(err, "failed to write transaction")
		}
	}
	return nil
}

// GetLatestBlock always returns nil; TSV files are rewritten on every export.
func (h *TSVOutputHandler) GetLatestBlock(_ context.Context) (*models.Block, error) {
	return nil, nil
}

func (h *TSVOutputHandler) Close() error {
	if err := h.blockWriter.Flush(); err != nil {
		slog.Error("failed to flush block writer", "errors", err)
		return err
	}
	if err := h.txWriter.Flush(); err != nil {
		slog.Error("failed to flush tx writer", "errors", err)
		return err
	}
	if err := h.blockFile.Close(); err != nil {
		slog.Error("failed to close block file", "errors", err)
		return err
	}
	if err := h.txFile.Close(); err != nil {
		slog.Error("failed to close tx file", "errors", err)
		return err
	}
	return nil
}
