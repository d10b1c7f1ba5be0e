package exporter_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftedinit/minledger/internal/config"
	"github.com/liftedinit/minledger/internal/exporter"
	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/models"
)

type staticSource struct {
	resp *models.ChainResponse
	err  error
}

func (s staticSource) GetChain(context.Context, string) (*models.ChainResponse, error) {
	return s.resp, s.err
}

type recordingHandler struct {
	blocks []*models.Block
	txs    []*models.Transaction
}

func (h *recordingHandler) WriteBlockWithTransactions(_ context.Context, block *models.Block, txs []*models.Transaction) error {
	h.blocks = append(h.blocks, block)
	h.txs = append(h.txs, txs...)
	return nil
}

func (h *recordingHandler) GetLatestBlock(context.Context) (*models.Block, error) { return nil, nil }
func (h *recordingHandler) Close() error                                          { return nil }

func chainWith(t *testing.T, n int) *models.ChainResponse {
	t.Helper()
	l := ledger.New(1)
	for i := 0; i < n; i++ {
		require.NoError(t, l.AddNewTransaction(ledger.Transaction{"author": "a", "content": i}))
		_, err := l.Mine(context.Background())
		require.NoError(t, err)
	}
	blocks := l.Blocks()
	return &models.ChainResponse{Length: len(blocks), Chain: blocks}
}

func ids(blocks []*models.Block) []uint64 {
	out := make([]uint64, len(blocks))
	for i, b := range blocks {
		out[i] = b.ID
	}
	return out
}

func TestExport(t *testing.T) {
	src := staticSource{resp: chainWith(t, 4)}
	cfg := config.ExportConfig{RequestTimeout: time.Second}

	t.Run("WholeChain", func(t *testing.T) {
		h := &recordingHandler{}
		require.NoError(t, exporter.Export(context.Background(), src, "node", h, cfg))
		assert.Equal(t, []uint64{0, 1, 2, 3, 4}, ids(h.blocks))
		assert.Len(t, h.txs, 4)
	})

	t.Run("Range", func(t *testing.T) {
		h := &recordingHandler{}
		c := cfg
		c.BlockStart, c.BlockStop = 2, 3
		require.NoError(t, exporter.Export(context.Background(), src, "node", h, c))
		assert.Equal(t, []uint64{2, 3}, ids(h.blocks))
	})

	t.Run("StopPastTip", func(t *testing.T) {
		h := &recordingHandler{}
		c := cfg
		c.BlockStart, c.BlockStop = 4, 100
		require.NoError(t, exporter.Export(context.Background(), src, "node", h, c))
		assert.Equal(t, []uint64{4}, ids(h.blocks))
	})

	t.Run("NothingNew", func(t *testing.T) {
		h := &recordingHandler{}
		c := cfg
		c.BlockStart = 5
		require.NoError(t, exporter.Export(context.Background(), src, "node", h, c))
		assert.Empty(t, h.blocks)
	})

	t.Run("NullBlock", func(t *testing.T) {
		chain := chainWith(t, 2)
		chain.Chain[2] = nil
		var err error
		require.NotPanics(t, func() {
			err = exporter.Export(context.Background(), staticSource{resp: chain}, "node", &recordingHandler{}, cfg)
		})
		assert.ErrorContains(t, err, "block 2 is null")
	})

	t.Run("SourceError", func(t *testing.T) {
		err := exporter.Export(context.Background(), staticSource{err: errors.New("unreachable")}, "node", &recordingHandler{}, cfg)
		assert.ErrorContains(t, err, "unreachable")
	})
}

func TestConvert(t *testing.T) {
	chain := chainWith(t, 1)
	b := chain.Chain[1]

	block, txs, err := exporter.Convert(b)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block.ID)
	assert.Equal(t, b.Hash, block.Hash)

	var decoded ledger.Block
	require.NoError(t, json.Unmarshal(block.Data, &decoded))
	assert.Equal(t, b.Hash, decoded.Hash)

	require.Len(t, txs, 1)
	assert.Len(t, txs[0].Hash, 64)
	assert.Equal(t, uint64(1), txs[0].BlockID)

	again, _, err := exporter.Convert(b)
	require.NoError(t, err)
	assert.Equal(t, block.Data, again.Data, "conversion is deterministic")
}

func TestConvertKeepsIdenticalRecordsApart(t *testing.T) {
	tx := ledger.Transaction{"author": "a", "content": "same", "timestamp": 1.0}
	first := ledger.NewBlock(1, []ledger.Transaction{tx, tx}, 1, "00aa")
	first.Hash = "00first"
	second := ledger.NewBlock(2, []ledger.Transaction{tx}, 2, "00first")
	second.Hash = "00second"

	_, a, err := exporter.Convert(first)
	require.NoError(t, err)
	_, b, err := exporter.Convert(second)
	require.NoError(t, err)

	assert.Equal(t, a[0].Data, b[0].Data)
	assert.NotEqual(t, a[0].Hash, a[1].Hash, "same block, different position")
	assert.NotEqual(t, a[0].Hash, b[0].Hash, "same record, different block")
}
