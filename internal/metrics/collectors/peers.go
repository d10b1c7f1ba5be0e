package collectors

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	RegisterCollectorFactory(func(src Sources) (prometheus.Collector, error) {
		return NewPeerCollector(src.Peers), nil
	})
}

type PeerCollector struct {
	peers PeerCounter
	known *prometheus.Desc
}

func NewPeerCollector(peers PeerCounter) *PeerCollector {
	return &PeerCollector{
		peers: peers,
		known: prometheus.NewDesc(
			prometheus.BuildFQName("minledger", "peers", "known"),
			"Registered peer addresses",
			nil,
			nil,
		),
	}
}

func (c *PeerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.known
}

func (c *PeerCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.known, prometheus.GaugeValue, float64(c.peers.Len()))
}
