package ledger

import (
	"context"
	"strings"
)

// ctxCheckInterval is how many nonces are tried between context checks.
const ctxCheckInterval = 1024

// ProofOfWork seals blocks by searching for a nonce whose digest starts with
// Difficulty hex zeros.
type ProofOfWork struct {
	Difficulty int
	prefix     string
}

func NewProofOfWork(difficulty int) *ProofOfWork {
	if difficulty < 0 {
		difficulty = 0
	}
	return &ProofOfWork{
		Difficulty: difficulty,
		prefix:     strings.Repeat("0", difficulty),
	}
}

// Satisfies reports whether hash meets the difficulty prefix.
func (p *ProofOfWork) Satisfies(hash string) bool {
	return strings.HasPrefix(hash, p.prefix)
}

// Seal resets the nonce and increments it by one until the digest satisfies
// the difficulty, then returns that digest. The caller assigns it to the block.
// The search has no bound of its own; it stops early only when ctx is done.
func (p *ProofOfWork) Seal(ctx context.Context, block *Block) (string, error) {
	block.Nonce = 0
	digest := block.ComputeDigest()
	for !p.Satisfies(digest) {
		block.Nonce++
		if block.Nonce%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return "", err
			}
		}
		digest = block.ComputeDigest()
	}
	return digest, nil
}
