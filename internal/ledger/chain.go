package ledger

// Chain is an ordered sequence of sealed blocks starting at genesis.
// It is not safe for concurrent use; Ledger guards it.
type Chain struct {
	blocks []*Block
}

// NewChain creates a chain holding only the genesis block.
func NewChain(genesisTimestamp float64) *Chain {
	c := &Chain{}
	c.createGenesis(genesisTimestamp)
	return c
}

// createGenesis appends the fixed genesis block. Its hash is its plain digest;
// genesis does not have to meet the difficulty.
func (c *Chain) createGenesis(timestamp float64) {
	genesis := NewBlock(0, []Transaction{}, timestamp, GenesisPreviousHash)
	genesis.Hash = genesis.ComputeDigest()
	c.blocks = append(c.blocks, genesis)
}

// LastBlock returns the tail block. An empty chain is an invariant violation.
func (c *Chain) LastBlock() *Block {
	if len(c.blocks) == 0 {
		panic("ledger: chain has no genesis block")
	}
	return c.blocks[len(c.blocks)-1]
}

func (c *Chain) Len() int {
	return len(c.blocks)
}

func (c *Chain) append(b *Block) {
	c.blocks = append(c.blocks, b)
}

// Blocks returns deep copies of the chain's blocks.
func (c *Chain) Blocks() []*Block {
	out := make([]*Block, len(c.blocks))
	for i, b := range c.blocks {
		out[i] = b.Clone()
	}
	return out
}

// checkGenesis verifies the structural invariants of the first block.
func (c *Chain) checkGenesis() error {
	if len(c.blocks) == 0 {
		return ErrEmptyChain
	}
	g := c.blocks[0]
	if g.Index != 0 || g.PreviousHash != GenesisPreviousHash || g.Hash != g.ComputeDigest() {
		return ErrInvalidGenesis
	}
	return nil
}
