package models

import "github.com/liftedinit/minledger/internal/ledger"

// Block is a sealed block as handed to an output handler.
type Block struct {
	ID   uint64
	Hash string
	Data []byte
}

// Transaction is one transaction record of an exported block.
type Transaction struct {
	Hash    string
	BlockID uint64
	Data    []byte
}

// ChainResponse is the body served by the read-chain route.
type ChainResponse struct {
	Length int             `json:"length"`
	Chain  []*ledger.Block `json:"chain"`
	Peers  []string        `json:"peers,omitempty"`
}

// RegisterRequest is the object form accepted by the peer-registry route.
type RegisterRequest struct {
	NodeAddress string `json:"node_address"`
}
