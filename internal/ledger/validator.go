package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrPreviousHashMismatch = errors.New("previous hash does not match the chain tip")
	ErrInvalidProof         = errors.New("invalid proof of work")
	ErrEmptyChain           = errors.New("chain is empty")
	ErrInvalidGenesis       = errors.New("invalid genesis block")
	ErrMissingBlock         = errors.New("block is missing")
)

// InvalidBlockError reports the first block of a candidate chain that failed validation.
type InvalidBlockError struct {
	Index int
	Err   error
}

func (e *InvalidBlockError) Error() string {
	return fmt.Sprintf("block %d invalid: %v", e.Index, e.Err)
}

func (e *InvalidBlockError) Unwrap() error {
	return e.Err
}

// Validator checks block linkage and proof validity.
type Validator struct {
	pow *ProofOfWork
}

func NewValidator(pow *ProofOfWork) *Validator {
	return &Validator{pow: pow}
}

// Difficulty returns the number of leading hex zeros a sealed hash needs.
func (v *Validator) Difficulty() int {
	return v.pow.Difficulty
}

// IsValidProof reports whether claimedHash meets the difficulty and matches
// the block's recomputed digest.
func (v *Validator) IsValidProof(block *Block, claimedHash string) bool {
	return v.pow.Satisfies(claimedHash) && block.ComputeDigest() == claimedHash
}

// AcceptBlock seals block with claimedHash and appends it to chain. Nothing is
// mutated when the block does not extend the tip or its proof is invalid.
func (v *Validator) AcceptBlock(chain *Chain, block *Block, claimedHash string) error {
	if block.PreviousHash != chain.LastBlock().Hash {
		return ErrPreviousHashMismatch
	}
	if !v.IsValidProof(block, claimedHash) {
		return ErrInvalidProof
	}
	block.Hash = claimedHash
	chain.append(block)
	return nil
}

// ValidateChain checks every block after genesis and returns the first violation.
func (v *Validator) ValidateChain(blocks []*Block) error {
	if len(blocks) == 0 {
		return ErrEmptyChain
	}
	if blocks[0] == nil {
		return &InvalidBlockError{Index: 0, Err: ErrMissingBlock}
	}
	for i := 1; i < len(blocks); i++ {
		current, previous := blocks[i], blocks[i-1]
		if current == nil {
			return &InvalidBlockError{Index: i, Err: ErrMissingBlock}
		}
		if current.PreviousHash != previous.Hash {
			return &InvalidBlockError{Index: i, Err: ErrPreviousHashMismatch}
		}
		if !v.pow.Satisfies(current.Hash) {
			return &InvalidBlockError{Index: i, Err: fmt.Errorf("%w: hash %q misses difficulty %d", ErrInvalidProof, current.Hash, v.pow.Difficulty)}
		}
		if digest := current.ComputeDigest(); digest != current.Hash {
			return &InvalidBlockError{Index: i, Err: fmt.Errorf("%w: expected %s, got %s", ErrInvalidProof, digest, current.Hash)}
		}
	}
	return nil
}

// IsChainValid is ValidateChain as a boolean.
func (v *Validator) IsChainValid(blocks []*Block) bool {
	return v.ValidateChain(blocks) == nil
}
