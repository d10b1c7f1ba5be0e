package client

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/models"
)

const (
	ChainPath        = "/chain"
	AddBlockPath     = "/add_block"
	RegisterNodePath = "/register_node"
	NewTxPath        = "/new_transaction"

	// DefaultResponseLimit bounds the body read from a single peer response.
	DefaultResponseLimit = 64 << 20
)

// Client talks to other ledger nodes over their HTTP API.
type Client struct {
	http *resty.Client
}

// New returns a client whose requests time out after timeout.
func New(timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetTimeout(timeout).
			SetHeader("Accept", "application/json").
			SetResponseBodyLimit(DefaultResponseLimit),
	}
}

// SetResponseLimit changes the largest response body the client will read.
func (c *Client) SetResponseLimit(n int) *Client {
	c.http.SetResponseBodyLimit(n)
	return c
}

// GetChain fetches the peer's full chain.
func (c *Client) GetChain(ctx context.Context, peer string) (*models.ChainResponse, error) {
	var chain models.ChainResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&chain).
		Get(peer + ChainPath)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to fetch chain")
	}
	if resp.IsError() {
		return nil, fmt.Errorf("failed to fetch chain: %s", resp.Status())
	}
	if chain.Length != len(chain.Chain) {
		return nil, fmt.Errorf("malformed chain response: length %d but %d blocks", chain.Length, len(chain.Chain))
	}
	for i, b := range chain.Chain {
		if b == nil {
			return nil, fmt.Errorf("malformed chain response: block %d is null", i)
		}
	}
	return &chain, nil
}

// AnnounceBlock posts a sealed block to the peer's add-block route.
func (c *Client) AnnounceBlock(ctx context.Context, peer string, block *ledger.Block) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(block).
		Post(peer + AddBlockPath)
	if err != nil {
		return errors.WithMessage(err, "failed to announce block")
	}
	if resp.IsError() {
		return fmt.Errorf("peer discarded block %d: %s", block.Index, resp.Status())
	}
	return nil
}

// RegisterWith asks the peer to add self to its peer set.
func (c *Client) RegisterWith(ctx context.Context, peer, self string) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(models.RegisterRequest{NodeAddress: self}).
		Post(peer + RegisterNodePath)
	if err != nil {
		return errors.WithMessage(err, "failed to register with peer")
	}
	if resp.IsError() {
		return fmt.Errorf("peer refused registration: %s", resp.Status())
	}
	return nil
}

// SubmitTransaction posts a transaction record to the node.
func (c *Client) SubmitTransaction(ctx context.Context, node string, tx ledger.Transaction) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(tx).
		Post(node + NewTxPath)
	if err != nil {
		return errors.WithMessage(err, "failed to submit transaction")
	}
	if resp.IsError() {
		return fmt.Errorf("node rejected transaction: %s", resp.Status())
	}
	return nil
}
