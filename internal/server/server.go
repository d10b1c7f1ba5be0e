package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/liftedinit/minledger/internal/client"
	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/metrics"
	"github.com/liftedinit/minledger/internal/models"
	"github.com/liftedinit/minledger/internal/peers"
)

const (
	maxBodyBytes = 8 << 20

	MinePath      = "/mine"
	PendingTxPath = "/pending_tx"
	AddNodesPath  = "/add_nodes"
	HealthzPath   = "/healthz"
)

// Miner mines the pending pool on request.
type Miner interface {
	Mine(ctx context.Context) (*ledger.Block, error)
}

// Server exposes a ledger node over HTTP.
type Server struct {
	ledger *ledger.Ledger
	peers  *peers.Registry
	miner  Miner
}

func New(l *ledger.Ledger, registry *peers.Registry, miner Miner) *Server {
	return &Server{ledger: l, peers: registry, miner: miner}
}

// Handler returns the routed HTTP handler for the node API.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST "+client.NewTxPath, s.handleNewTransaction)
	mux.HandleFunc("GET "+client.ChainPath, s.handleChain)
	mux.HandleFunc("GET "+MinePath, s.handleMine)
	mux.HandleFunc("GET "+PendingTxPath, s.handlePending)
	mux.HandleFunc("POST "+client.RegisterNodePath, s.handleRegisterNode)
	mux.HandleFunc("POST "+AddNodesPath, s.handleRegisterNode)
	mux.HandleFunc("POST "+client.AddBlockPath, s.handleAddBlock)
	mux.HandleFunc("GET "+HealthzPath, func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	})
	return logRequests(mux)
}

// NewHTTPServer wraps the handler in an http.Server listening on addr.
func (s *Server) NewHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) handleNewTransaction(w http.ResponseWriter, r *http.Request) {
	var tx ledger.Transaction
	if err := decodeBody(w, r, &tx); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid transaction data")
		return
	}
	if err := s.ledger.AddNewTransaction(tx); err != nil {
		slog.Debug("Transaction rejected", "error", err)
		writeText(w, http.StatusBadRequest, "Invalid transaction data")
		return
	}
	writeText(w, http.StatusCreated, "Success")
}

func (s *Server) handleChain(w http.ResponseWriter, _ *http.Request) {
	blocks := s.ledger.Blocks()
	writeJSON(w, models.ChainResponse{
		Length: len(blocks),
		Chain:  blocks,
		Peers:  s.peers.List(),
	})
}

func (s *Server) handleMine(w http.ResponseWriter, r *http.Request) {
	block, err := s.miner.Mine(r.Context())
	switch {
	case err == nil:
		writeText(w, http.StatusOK, fmt.Sprintf("Block #%d is mined.", block.Index))
	case errors.Is(err, ledger.ErrNothingToMine):
		writeText(w, http.StatusOK, "No transactions to mine")
	case errors.Is(err, ledger.ErrPreviousHashMismatch):
		writeText(w, http.StatusConflict, "Mining abandoned: the chain tip changed")
	default:
		slog.Warn("Mining failed", "error", err)
		writeText(w, http.StatusServiceUnavailable, "Mining failed")
	}
}

func (s *Server) handlePending(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.ledger.Pending())
}

// handleRegisterNode accepts either a JSON list of addresses or a single
// {"node_address": ...} object.
func (s *Server) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeBody(w, r, &raw); err != nil {
		writeText(w, http.StatusBadRequest, "Invalid data")
		return
	}

	var addrs []string
	if err := json.Unmarshal(raw, &addrs); err != nil {
		var req models.RegisterRequest
		if err := json.Unmarshal(raw, &req); err != nil {
			writeText(w, http.StatusBadRequest, "Invalid data")
			return
		}
		addrs = []string{req.NodeAddress}
	}

	var valid []string
	for _, addr := range addrs {
		if peers.Normalize(addr) != "" {
			valid = append(valid, addr)
		}
	}
	if len(valid) == 0 {
		writeText(w, http.StatusBadRequest, "Invalid data")
		return
	}

	added := s.peers.Add(valid...)
	slog.Info("Peers registered", "added", added, "known", s.peers.Len())
	writeText(w, http.StatusCreated, "Success")
}

func (s *Server) handleAddBlock(w http.ResponseWriter, r *http.Request) {
	var announced ledger.Block
	if err := decodeBody(w, r, &announced); err != nil || announced.Hash == "" {
		metrics.BlocksReceived.WithLabelValues("rejected").Inc()
		writeText(w, http.StatusBadRequest, "The block was discarded by the node")
		return
	}

	block, claimed := announced.Unsealed()
	if err := s.ledger.AddBlock(block, claimed); err != nil {
		metrics.BlocksReceived.WithLabelValues("rejected").Inc()
		slog.Debug("Announced block discarded", "index", block.Index, "error", err)
		writeText(w, http.StatusBadRequest, "The block was discarded by the node")
		return
	}

	metrics.BlocksReceived.WithLabelValues("accepted").Inc()
	slog.Info("Block added from peer", "index", block.Index, "hash", claimed)
	writeText(w, http.StatusCreated, "Block added to the chain")
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("Request served", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}
