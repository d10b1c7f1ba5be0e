package minledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/liftedinit/minledger/internal/client"
	"github.com/liftedinit/minledger/internal/config"
	"github.com/liftedinit/minledger/internal/consensus"
	"github.com/liftedinit/minledger/internal/ledger"
	"github.com/liftedinit/minledger/internal/metrics"
	"github.com/liftedinit/minledger/internal/metrics/collectors"
	"github.com/liftedinit/minledger/internal/miner"
	"github.com/liftedinit/minledger/internal/peers"
	"github.com/liftedinit/minledger/internal/server"
)

const shutdownTimeout = 5 * time.Second

var NodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run a ledger node",
	Long:  `Run a ledger node serving the HTTP API, mining on request and reconciling its chain with its peers.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		nodeConfig := config.LoadNodeConfigFromCLI()
		if err := nodeConfig.Validate(); err != nil {
			return fmt.Errorf("invalid node configuration: %w", err)
		}
		slog.Debug("Command-line arguments", "nodeConfig", nodeConfig)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		handleInterrupt(cancel)

		return runNode(ctx, nodeConfig)
	},
}

func init() {
	NodeCmd.Flags().String("listen-addr", ":8000", "Address the HTTP API listens on")
	NodeCmd.Flags().String("advertise-addr", "", "Address peers use to reach this node; registered with every initial peer when set")
	NodeCmd.Flags().StringSlice("peers", nil, "Initial peer addresses (comma separated)")
	NodeCmd.Flags().IntP("difficulty", "d", 2, "Number of leading zero hex digits a block hash needs")
	NodeCmd.Flags().Float64("genesis-timestamp", 0, "Genesis block timestamp; must match across the network")
	NodeCmd.Flags().Duration("consensus-interval", 10*time.Second, "Interval between fork-choice rounds (0 disables)")
	NodeCmd.Flags().Duration("mine-interval", 0, "Interval between background mining attempts (0 disables)")
	NodeCmd.Flags().Duration("request-timeout", 5*time.Second, "Timeout of a single peer request")
	NodeCmd.Flags().UintP("max-concurrency", "c", 16, "Maximum concurrent peer requests")
	NodeCmd.Flags().Bool("cancel-stale-mining", true, "Abandon a seal in progress when the chain tip changes")
	NodeCmd.Flags().Bool("enable-prometheus", false, "Enable Prometheus metrics server")
	NodeCmd.Flags().String("prometheus-addr", "0.0.0.0:2112", "Address and port of the Prometheus metrics server")
}

// runNode wires the node components and blocks until ctx is done or one of
// them fails.
func runNode(ctx context.Context, cfg config.NodeConfig) error {
	l := ledger.New(cfg.Difficulty,
		ledger.WithGenesisTimestamp(cfg.GenesisTimestamp),
		ledger.WithCancelStaleMining(cfg.CancelStaleMining),
	)
	if err := l.CheckInvariants(); err != nil {
		return fmt.Errorf("ledger failed its start-up check: %w", err)
	}

	registry := peers.NewRegistry(cfg.AdvertiseAddr, cfg.Peers...)
	peerClient := client.New(cfg.RequestTimeout)
	maxConcurrency := int(cfg.MaxConcurrency)

	worker := miner.NewWorker(l, client.NewAnnouncer(peerClient, registry, maxConcurrency), cfg.MineInterval)
	resolver := consensus.NewResolver(l, peerClient, registry, maxConcurrency)
	httpServer := server.New(l, registry, worker).NewHTTPServer(cfg.ListenAddr)

	if cfg.EnablePrometheus {
		metricsServer, err := metrics.CreateMetricsServer(collectors.Sources{Ledger: l, Peers: registry}, cfg.PrometheusAddr)
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer shutdown(metricsServer)
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.ListenAddr, err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		slog.Info("Starting ledger node", "address", ln.Addr().String(), "difficulty", cfg.Difficulty, "peers", registry.Len())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-ctx.Done()
		shutdown(httpServer)
		return nil
	})
	eg.Go(func() error {
		return worker.Run(ctx)
	})
	eg.Go(func() error {
		if cfg.AdvertiseAddr != "" {
			registerWithPeers(ctx, peerClient, registry.List(), cfg.AdvertiseAddr)
		}
		if _, err := resolver.Resolve(ctx); err != nil && ctx.Err() == nil {
			slog.Warn("Initial consensus round failed", "error", err)
		}
		return resolver.Run(ctx, cfg.ConsensusInterval)
	})

	return eg.Wait()
}

// registerWithPeers announces self to each peer. Failures are logged only.
func registerWithPeers(ctx context.Context, c *client.Client, peerList []string, self string) {
	for _, peer := range peerList {
		if err := c.RegisterWith(ctx, peer, self); err != nil {
			metrics.PeerErrors.WithLabelValues("register").Inc()
			slog.Warn("Failed to register with peer", "peer", peer, "error", err)
			continue
		}
		slog.Info("Registered with peer", "peer", peer)
	}
}

func shutdown(s *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		slog.Warn("Server shutdown failed", "error", err)
	}
}
