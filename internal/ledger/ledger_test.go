package ledger

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndToEndMine(t *testing.T) {
	l := New(testDifficulty)
	require.NoError(t, l.CheckInvariants())

	genesis := l.LastBlock()
	assert.Equal(t, uint64(0), genesis.Index)
	assert.Equal(t, "0", genesis.PreviousHash)

	require.NoError(t, l.AddNewTransaction(Transaction{"author": "a", "content": "hi"}))

	block, err := l.Mine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block.Index)
	assert.Equal(t, genesis.Hash, block.PreviousHash)
	assert.Empty(t, l.Pending())
	assert.Equal(t, 2, l.Len())

	require.Len(t, block.Transactions, 1)
	assert.Equal(t, "a", block.Transactions[0]["author"])
	assert.Contains(t, block.Transactions[0], "timestamp")

	// Tamper the mined block in place without recomputing its hash.
	blocks := l.Blocks()
	require.True(t, l.Validator().IsChainValid(blocks))
	blocks[1].Transactions[0]["content"] = "tampered"

	err = l.Validator().ValidateChain(blocks)
	var invalid *InvalidBlockError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, 1, invalid.Index)

	// The ledger's own copy is untouched.
	assert.True(t, l.Validator().IsChainValid(l.Blocks()))
}

func TestMineEmptyPool(t *testing.T) {
	l := New(testDifficulty)

	block, err := l.Mine(context.Background())
	assert.ErrorIs(t, err, ErrNothingToMine)
	assert.Nil(t, block)
	assert.Equal(t, 1, l.Len())
	assert.Empty(t, l.Pending())
}

func TestAddNewTransactionRequiresFields(t *testing.T) {
	l := New(testDifficulty)

	cases := []Transaction{
		{"content": "hi"},
		{"author": "a"},
		{"author": "", "content": "hi"},
		{"author": "a", "content": nil},
		{},
	}
	for i, tx := range cases {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			assert.ErrorIs(t, l.AddNewTransaction(tx), ErrMissingField)
		})
	}
	assert.Empty(t, l.Pending())
}

func TestAddNewTransactionStampsTimestamp(t *testing.T) {
	fixed := time.Unix(1700000000, 500000000)
	l := New(testDifficulty, WithClock(func() time.Time { return fixed }))

	tx := Transaction{"author": "a", "content": "hi", "extra": true, "timestamp": "client"}
	require.NoError(t, l.AddNewTransaction(tx))
	require.NoError(t, l.AddNewTransaction(tx))

	pending := l.Pending()
	require.Len(t, pending, 2, "duplicates are not filtered")
	assert.Equal(t, 1700000000.5, pending[0]["timestamp"])
	assert.Equal(t, true, pending[0]["extra"])
	assert.Equal(t, "client", tx["timestamp"], "caller's record is not mutated")
}

func TestGenesisTimestampIsShared(t *testing.T) {
	a := New(testDifficulty, WithGenesisTimestamp(42))
	b := New(testDifficulty, WithGenesisTimestamp(42))
	assert.Equal(t, a.LastBlock().Hash, b.LastBlock().Hash)
}

func TestMineKeepsConcurrentSubmissions(t *testing.T) {
	l := New(3)
	require.NoError(t, l.AddNewTransaction(Transaction{"author": "a", "content": "first"}))

	const extra = 50
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < extra; i++ {
			assert.NoError(t, l.AddNewTransaction(Transaction{"author": "b", "content": i}))
		}
	}()

	block, err := l.Mine(context.Background())
	require.NoError(t, err)
	wg.Wait()

	assert.Equal(t, extra+1, len(block.Transactions)+len(l.Pending()),
		"every transaction must be either mined or still pending")
	assert.Equal(t, "first", block.Transactions[0]["content"])
}

func TestConcurrentMinersNeverShareAnIndex(t *testing.T) {
	l := New(testDifficulty)
	for i := 0; i < 4; i++ {
		require.NoError(t, l.AddNewTransaction(Transaction{"author": "a", "content": i}))
	}

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Mine(context.Background())
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	mined := 0
	for err := range results {
		if err == nil {
			mined++
			continue
		}
		assert.ErrorIs(t, err, ErrNothingToMine)
	}
	assert.Equal(t, 1, mined)
	assert.Equal(t, 2, l.Len())
	assert.True(t, l.Validator().IsChainValid(l.Blocks()))
}

func TestAddBlockFromPeer(t *testing.T) {
	miner := New(testDifficulty)
	follower := New(testDifficulty)

	require.NoError(t, miner.AddNewTransaction(Transaction{"author": "a", "content": "hi"}))
	mined, err := miner.Mine(context.Background())
	require.NoError(t, err)

	announced, claimed := mined.Unsealed()
	require.NoError(t, follower.AddBlock(announced, claimed))
	assert.Equal(t, miner.LastBlock().Hash, follower.LastBlock().Hash)

	// A second delivery of the same block no longer extends the tip.
	assert.ErrorIs(t, follower.AddBlock(announced, claimed), ErrPreviousHashMismatch)
	assert.Equal(t, 2, follower.Len())
}

func TestAddBlockRejectsForgedHash(t *testing.T) {
	l := New(testDifficulty)
	b := NewBlock(1, []Transaction{{"author": "a", "content": "b"}}, 1, l.LastBlock().Hash)
	assert.ErrorIs(t, l.AddBlock(b, "00"+strings.Repeat("f", 62)), ErrInvalidProof)
	assert.Equal(t, 1, l.Len())
}

func TestReplace(t *testing.T) {
	longer := New(testDifficulty)
	for i := 0; i < 2; i++ {
		require.NoError(t, longer.AddNewTransaction(Transaction{"author": "a", "content": i}))
		_, err := longer.Mine(context.Background())
		require.NoError(t, err)
	}

	l := New(testDifficulty)

	t.Run("NotLonger", func(t *testing.T) {
		replaced, err := l.Replace(l.Blocks())
		require.NoError(t, err)
		assert.False(t, replaced)
	})

	t.Run("Invalid", func(t *testing.T) {
		blocks := longer.Blocks()
		blocks[2].Nonce++
		replaced, err := l.Replace(blocks)
		assert.Error(t, err)
		assert.False(t, replaced)
		assert.Equal(t, 1, l.Len())
	})

	t.Run("Longer", func(t *testing.T) {
		replaced, err := l.Replace(longer.Blocks())
		require.NoError(t, err)
		assert.True(t, replaced)
		assert.Equal(t, 3, l.Len())
		assert.Equal(t, longer.LastBlock().Hash, l.LastBlock().Hash)
	})
}

func TestTipChangeInterruptsSeal(t *testing.T) {
	l := New(64)
	require.NoError(t, l.AddNewTransaction(Transaction{"author": "a", "content": "hi"}))

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Mine(context.Background())
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.cancelSeal != nil
	}, 5*time.Second, 5*time.Millisecond)

	l.mu.Lock()
	l.interruptSeal()
	l.mu.Unlock()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrPreviousHashMismatch)
	case <-time.After(5 * time.Second):
		t.Fatal("seal was not interrupted")
	}
	assert.Len(t, l.Pending(), 1, "pool survives an abandoned seal")
	assert.Equal(t, 1, l.Len())
}

func TestStaleSealDiscardedWithoutCancellation(t *testing.T) {
	const difficulty = 5
	peer := New(difficulty)
	require.NoError(t, peer.AddNewTransaction(Transaction{"author": "p", "content": "peer"}))
	peerBlock, err := peer.Mine(context.Background())
	require.NoError(t, err)

	l := New(difficulty, WithCancelStaleMining(false))
	require.NoError(t, l.AddNewTransaction(Transaction{"author": "a", "content": "local"}))

	errCh := make(chan error, 1)
	go func() {
		_, err := l.Mine(context.Background())
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		l.mu.RLock()
		defer l.mu.RUnlock()
		return l.cancelSeal != nil
	}, 5*time.Second, time.Millisecond)

	announced, claimed := peerBlock.Unsealed()
	if err := l.AddBlock(announced, claimed); err != nil {
		<-errCh
		t.Skip("local seal finished before the peer block arrived")
	}

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrPreviousHashMismatch)
	case <-time.After(60 * time.Second):
		t.Fatal("seal did not finish")
	}
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, peerBlock.Hash, l.LastBlock().Hash)
	assert.Len(t, l.Pending(), 1, "the stale block's transactions stay pending")
	assert.True(t, l.Validator().IsChainValid(l.Blocks()))
}

func TestMineHonoursCallerContext(t *testing.T) {
	l := New(64)
	require.NoError(t, l.AddNewTransaction(Transaction{"author": "a", "content": "hi"}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := l.Mine(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, l.Pending(), 1)
}

func TestStats(t *testing.T) {
	l := New(testDifficulty)
	require.NoError(t, l.AddNewTransaction(Transaction{"author": "a", "content": "hi"}))

	s := l.Stats()
	assert.Equal(t, 1, s.Length)
	assert.Equal(t, 1, s.Pending)
	assert.Equal(t, uint64(0), s.TipIndex)
	assert.Equal(t, testDifficulty, s.Difficulty)
	assert.Equal(t, l.LastBlock().Hash, s.TipHash)
}
