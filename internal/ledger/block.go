package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"maps"
	"time"
)

// GenesisPreviousHash is the previous_hash sentinel carried by the genesis block.
const GenesisPreviousHash = "0"

// Transaction is a caller supplied record. Only author and content are required.
type Transaction map[string]any

// Block is one unit of the ledger. Hash stays empty until the block is sealed.
type Block struct {
	Index        uint64        `json:"index"`
	Transactions []Transaction `json:"transactions"`
	Timestamp    float64       `json:"timestamp"`
	PreviousHash string        `json:"previous_hash"`
	Nonce        uint64        `json:"nonce"`
	Hash         string        `json:"hash,omitempty"`
}

// NewBlock builds an unsealed candidate block.
func NewBlock(index uint64, txs []Transaction, timestamp float64, previousHash string) *Block {
	return &Block{
		Index:        index,
		Transactions: txs,
		Timestamp:    timestamp,
		PreviousHash: previousHash,
	}
}

// ComputeDigest returns the hex SHA-256 of the block's canonical encoding.
// The hash field is not part of the digest.
func (b *Block) ComputeDigest() string {
	sum := sha256.Sum256(b.canonicalBytes())
	return hex.EncodeToString(sum[:])
}

// canonicalBytes encodes every field but hash as JSON with sorted keys.
// encoding/json sorts map keys, including those of nested transactions.
func (b *Block) canonicalBytes() []byte {
	txs := b.Transactions
	if txs == nil {
		txs = []Transaction{}
	}
	fields := map[string]any{
		"index":         b.Index,
		"nonce":         b.Nonce,
		"previous_hash": b.PreviousHash,
		"timestamp":     b.Timestamp,
		"transactions":  txs,
	}
	data, err := json.Marshal(fields)
	if err != nil {
		// Transactions come from JSON bodies or Go literals; an unencodable
		// value (func, chan) is a programming error.
		panic("ledger: block is not JSON encodable: " + err.Error())
	}
	return data
}

// Clone returns a copy that shares no transaction maps with b.
func (b *Block) Clone() *Block {
	c := *b
	if b.Transactions != nil {
		c.Transactions = make([]Transaction, len(b.Transactions))
		for i, tx := range b.Transactions {
			c.Transactions[i] = maps.Clone(tx)
		}
	}
	return &c
}

// Unsealed returns a copy of b with the hash cleared, as a peer would rebuild
// it from announced fields before checking the claimed hash.
func (b *Block) Unsealed() (*Block, string) {
	c := b.Clone()
	claimed := c.Hash
	c.Hash = ""
	return c, claimed
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
