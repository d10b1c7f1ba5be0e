package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	BlocksMined = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "minledger",
		Name:      "blocks_mined_total",
		Help:      "Blocks sealed and appended by this node",
	})

	BlocksReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minledger",
		Name:      "blocks_received_total",
		Help:      "Blocks announced by peers, by outcome",
	}, []string{"result"})

	ConsensusRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minledger",
		Name:      "consensus_runs_total",
		Help:      "Fork-choice rounds, by outcome",
	}, []string{"result"})

	PeerErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "minledger",
		Name:      "peer_errors_total",
		Help:      "Failed peer requests, by operation",
	}, []string{"op"})
)

// Counters returns the process-wide counters so they can be registered.
func Counters() []prometheus.Collector {
	return []prometheus.Collector{BlocksMined, BlocksReceived, ConsensusRuns, PeerErrors}
}
