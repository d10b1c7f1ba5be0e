package collectors

import (
	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	RegisterCollectorFactory(func(src Sources) (prometheus.Collector, error) {
		return NewLedgerCollector(src.Ledger), nil
	})
}

// LedgerCollector reports chain and pool sizes on every scrape.
type LedgerCollector struct {
	source      StatsSource
	chainLength *prometheus.Desc
	pending     *prometheus.Desc
	tipIndex    *prometheus.Desc
	difficulty  *prometheus.Desc
}

func NewLedgerCollector(source StatsSource) *LedgerCollector {
	return &LedgerCollector{
		source: source,
		chainLength: prometheus.NewDesc(
			prometheus.BuildFQName("minledger", "chain", "length"),
			"Number of blocks in the local chain, genesis included",
			nil,
			nil,
		),
		pending: prometheus.NewDesc(
			prometheus.BuildFQName("minledger", "pool", "pending_transactions"),
			"Transactions waiting to be mined",
			nil,
			nil,
		),
		tipIndex: prometheus.NewDesc(
			prometheus.BuildFQName("minledger", "chain", "tip_index"),
			"Index of the last block",
			nil,
			nil,
		),
		difficulty: prometheus.NewDesc(
			prometheus.BuildFQName("minledger", "pow", "difficulty"),
			"Leading hex zeros required in a block hash",
			nil,
			nil,
		),
	}
}

func (c *LedgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.chainLength
	ch <- c.pending
	ch <- c.tipIndex
	ch <- c.difficulty
}

func (c *LedgerCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.chainLength, prometheus.GaugeValue, float64(s.Length))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(s.Pending))
	ch <- prometheus.MustNewConstMetric(c.tipIndex, prometheus.GaugeValue, float64(s.TipIndex))
	ch <- prometheus.MustNewConstMetric(c.difficulty, prometheus.GaugeValue, float64(s.Difficulty))
}
