package miner_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/miner"
)

type recordingAnnouncer struct {
	mu     sync.Mutex
	blocks []*ledger.Block
}

func (a *recordingAnnouncer) Announce(_ context.Context, block *ledger.Block) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blocks = append(a.blocks, block)
	return 1
}

func (a *recordingAnnouncer) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.blocks)
}

func TestWorkerMineAnnounces(t *testing.T) {
	l := ledger.New(1)
	ann := &recordingAnnouncer{}
	w := miner.NewWorker(l, ann, 0)

	_, err := w.Mine(context.Background())
	assert.ErrorIs(t, err, ledger.ErrNothingToMine)
	assert.Zero(t, ann.count())

	require.NoError(t, l.AddNewTransaction(ledger.Transaction{"author": "a", "content": "hi"}))
	block, err := w.Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block.Index)
	require.Equal(t, 1, ann.count())
	assert.Equal(t, block.Hash, ann.blocks[0].Hash)
}

func TestWorkerMineWithoutAnnouncer(t *testing.T) {
	l := ledger.New(1)
	require.NoError(t, l.AddNewTransaction(ledger.Transaction{"author": "a", "content": "hi"}))

	_, err := miner.NewWorker(l, nil, 0).Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
}

func TestWorkerRunMinesOnInterval(t *testing.T) {
	l := ledger.New(1)
	require.NoError(t, l.AddNewTransaction(ledger.Transaction{"author": "a", "content": "hi"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- miner.NewWorker(l, nil, 10*time.Millisecond).Run(ctx) }()

	assert.Eventually(t, func() bool { return l.Len() == 2 }, 5*time.Second, 10*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

func TestWorkerRunWithoutIntervalWaits(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.NoError(t, miner.NewWorker(ledger.New(1), nil, 0).Run(ctx))
}
