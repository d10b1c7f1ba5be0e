package output_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftedinit/minledger/internal/models"
	"github.com/liftedinit/minledger/internal/output"
)

func sampleBlock(id uint64) (*models.Block, []*models.Transaction) {
	block := &models.Block{ID: id, Hash: "00ab", Data: []byte(`{"index":1}`)}
	txs := []*models.Transaction{
		{Hash: "aa11", BlockID: id, Data: []byte(`{"author":"a"}`)},
		{Hash: "bb22", BlockID: id, Data: []byte(`{"author":"b"}`)},
	}
	return block, txs
}

func TestJSONOutputHandler(t *testing.T) {
	dir := t.TempDir()
	h, err := output.NewJSONOutputHandler(dir)
	require.NoError(t, err)
	defer h.Close()

	latest, err := h.GetLatestBlock(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)

	for _, id := range []uint64{1, 12, 3} {
		block, txs := sampleBlock(id)
		require.NoError(t, h.WriteBlockWithTransactions(context.Background(), block, txs))
	}

	data, err := os.ReadFile(filepath.Join(dir, "block", "block_0000000012.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"index":1}`, string(data))

	data, err = os.ReadFile(filepath.Join(dir, "txs", "tx_aa11.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"author":"a"}`, string(data))

	latest, err = h.GetLatestBlock(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, uint64(12), latest.ID)
}

func TestTSVOutputHandler(t *testing.T) {
	dir := t.TempDir()
	h, err := output.NewTSVOutputHandler(dir)
	require.NoError(t, err)

	block, txs := sampleBlock(7)
	require.NoError(t, h.WriteBlockWithTransactions(context.Background(), block, txs))

	latest, err := h.GetLatestBlock(context.Background())
	require.NoError(t, err)
	assert.Nil(t, latest)
	require.NoError(t, h.Close())

	blocks, err := os.ReadFile(filepath.Join(dir, "blocks.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "7\t00ab\t{\"index\":1}\n", string(blocks))

	transactions, err := os.ReadFile(filepath.Join(dir, "transactions.tsv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(transactions)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "aa11\t7\t{\"author\":\"a\"}", lines[0])
}
