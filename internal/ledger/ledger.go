package ledger

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"
)

var (
	ErrNothingToMine = errors.New("no transactions to mine")
	ErrMissingField  = errors.New("invalid transaction data")
)

// RequiredFields must be present and non-empty on every submitted transaction.
var RequiredFields = []string{"author", "content"}

type pendingTx struct {
	seq uint64
	tx  Transaction
}

// Stats is a point-in-time view of the ledger used by metrics and logs.
type Stats struct {
	Length     int
	Pending    int
	TipIndex   uint64
	TipHash    string
	Difficulty int
}

type Option func(*Ledger)

// WithGenesisTimestamp fixes the genesis timestamp so independently started
// nodes agree on the genesis hash.
func WithGenesisTimestamp(ts float64) Option {
	return func(l *Ledger) {
		l.genesisTimestamp = ts
	}
}

// WithCancelStaleMining controls whether an in-flight seal is abandoned when the
// tip changes underneath it.
func WithCancelStaleMining(enabled bool) Option {
	return func(l *Ledger) {
		l.cancelStale = enabled
	}
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// Ledger owns the chain and the pending pool. All state lives behind mu;
// mineMu serialises mining so at most one candidate is sealed at a time.
type Ledger struct {
	mu      sync.RWMutex
	chain   *Chain
	pending []pendingTx
	nextSeq uint64

	// cancelSeal aborts the seal in flight, if any. Guarded by mu.
	cancelSeal context.CancelFunc

	mineMu sync.Mutex

	pow              *ProofOfWork
	validator        *Validator
	now              func() time.Time
	genesisTimestamp float64
	cancelStale      bool
}

// New creates a ledger whose chain holds only the genesis block.
func New(difficulty int, opts ...Option) *Ledger {
	pow := NewProofOfWork(difficulty)
	l := &Ledger{
		pow:         pow,
		validator:   NewValidator(pow),
		now:         time.Now,
		cancelStale: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.chain = NewChain(l.genesisTimestamp)
	return l
}

func (l *Ledger) Validator() *Validator {
	return l.validator
}

// CheckInvariants fails when the chain lost its genesis block.
func (l *Ledger) CheckInvariants() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.checkGenesis()
}

// AddNewTransaction stamps tx with the server time and appends it to the pool.
func (l *Ledger) AddNewTransaction(tx Transaction) error {
	for _, field := range RequiredFields {
		if isMissing(tx[field]) {
			return fmt.Errorf("%w: missing %q", ErrMissingField, field)
		}
	}

	record := maps.Clone(tx)
	record["timestamp"] = unixSeconds(l.now())

	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextSeq++
	l.pending = append(l.pending, pendingTx{seq: l.nextSeq, tx: record})
	return nil
}

func isMissing(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	default:
		return false
	}
}

// Mine seals the pending pool into a new block and appends it. Transactions
// submitted while sealing stay in the pool for the next block.
func (l *Ledger) Mine(ctx context.Context) (*Block, error) {
	l.mineMu.Lock()
	defer l.mineMu.Unlock()

	l.mu.Lock()
	if len(l.pending) == 0 {
		l.mu.Unlock()
		return nil, ErrNothingToMine
	}
	txs := make([]Transaction, len(l.pending))
	for i, p := range l.pending {
		txs[i] = maps.Clone(p.tx)
	}
	lastSeq := l.pending[len(l.pending)-1].seq
	tip := l.chain.LastBlock()
	candidate := NewBlock(tip.Index+1, txs, unixSeconds(l.now()), tip.Hash)

	sealCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	l.cancelSeal = cancel
	l.mu.Unlock()

	hash, sealErr := l.pow.Seal(sealCtx, candidate)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancelSeal = nil

	if sealErr != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: tip changed while sealing block %d", ErrPreviousHashMismatch, candidate.Index)
	}

	if err := l.validator.AcceptBlock(l.chain, candidate, hash); err != nil {
		return nil, err
	}
	l.dropPendingThrough(lastSeq)

	return candidate.Clone(), nil
}

// dropPendingThrough removes pool entries up to and including seq.
func (l *Ledger) dropPendingThrough(seq uint64) {
	kept := l.pending[:0]
	for _, p := range l.pending {
		if p.seq > seq {
			kept = append(kept, p)
		}
	}
	clear(l.pending[len(kept):])
	l.pending = kept
}

// AddBlock routes a block announced by a peer through the validator.
func (l *Ledger) AddBlock(block *Block, claimedHash string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.validator.AcceptBlock(l.chain, block.Clone(), claimedHash); err != nil {
		return err
	}
	l.interruptSeal()
	return nil
}

// Replace swaps the whole chain for blocks when they form a strictly longer
// valid chain. It reports whether the swap happened.
func (l *Ledger) Replace(blocks []*Block) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(blocks) <= l.chain.Len() {
		return false, nil
	}
	if err := l.validator.ValidateChain(blocks); err != nil {
		return false, err
	}

	replacement := &Chain{blocks: make([]*Block, len(blocks))}
	for i, b := range blocks {
		replacement.blocks[i] = b.Clone()
	}
	l.chain = replacement
	l.interruptSeal()
	return true, nil
}

// interruptSeal must be called with mu held.
func (l *Ledger) interruptSeal() {
	if l.cancelStale && l.cancelSeal != nil {
		l.cancelSeal()
	}
}

func (l *Ledger) LastBlock() *Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.LastBlock().Clone()
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.Len()
}

// Blocks returns a copy of the chain.
func (l *Ledger) Blocks() []*Block {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.chain.Blocks()
}

// Pending returns a copy of the pool in submission order.
func (l *Ledger) Pending() []Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, len(l.pending))
	for i, p := range l.pending {
		out[i] = maps.Clone(p.tx)
	}
	return out
}

func (l *Ledger) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tip := l.chain.LastBlock()
	return Stats{
		Length:     l.chain.Len(),
		Pending:    len(l.pending),
		TipIndex:   tip.Index,
		TipHash:    tip.Hash,
		Difficulty: l.pow.Difficulty,
	}
}
