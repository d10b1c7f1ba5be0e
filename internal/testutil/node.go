package testutil

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/liftedinit/minledger/internal/client"
	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/miner"
	"github.com/liftedinit/minledger/internal/peers"
	"github.com/liftedinit/minledger/internal/server"
)

// Node is an in-process ledger node served by httptest.
type Node struct {
	Ledger   *ledger.Ledger
	Registry *peers.Registry
	Server   *httptest.Server
}

// StartNode serves a fresh ledger of the given difficulty until the test ends.
func StartNode(t *testing.T, difficulty int) *Node {
	t.Helper()
	n := &Node{
		Ledger:   ledger.New(difficulty),
		Registry: peers.NewRegistry(""),
	}
	announcer := client.NewAnnouncer(client.New(time.Second), n.Registry, 4)
	n.Server = httptest.NewServer(server.New(n.Ledger, n.Registry, miner.NewWorker(n.Ledger, announcer, 0)).Handler())
	t.Cleanup(n.Server.Close)
	return n
}

// MineBlocks submits one transaction per block and mines count blocks.
func (n *Node) MineBlocks(t *testing.T, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		require.NoError(t, n.Ledger.AddNewTransaction(ledger.Transaction{"author": "testutil", "content": i}))
		_, err := n.Ledger.Mine(context.Background())
		require.NoError(t, err)
	}
}
