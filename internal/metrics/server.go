package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/liftedinit/minledger/internal/metrics/collectors"
)

// CreateMetricsServer registers the node collectors and the counters on a fresh
// registry and serves them on addr under /metrics.
func CreateMetricsServer(src collectors.Sources, addr string) (*http.Server, error) {
	cs, err := collectors.DefaultRegistry.CreateCollectors(src)
	if err != nil {
		return nil, fmt.Errorf("failed to create collectors: %w", err)
	}

	reg := prometheus.NewRegistry()
	for _, c := range append(cs, Counters()...) {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux}

	go func() {
		slog.Info("Starting Prometheus metrics server", "address", ln.Addr().String())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start metrics server", "error", err)
		}
	}()

	return server, nil
}
