package collectors

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/liftedinit/minledger/internal/ledger"
)

// StatsSource exposes a snapshot of ledger state.
type StatsSource interface {
	Stats() ledger.Stats
}

// PeerCounter exposes the number of known peers.
type PeerCounter interface {
	Len() int
}

// Sources bundles what the node collectors read from.
type Sources struct {
	Ledger StatsSource
	Peers  PeerCounter
}

// CollectorFactory is a function type that creates a collector from the node sources
type CollectorFactory func(src Sources) (prometheus.Collector, error)

type Registry struct {
	factories []CollectorFactory
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make([]CollectorFactory, 0),
	}
}

func (r *Registry) Register(factory CollectorFactory) {
	r.factories = append(r.factories, factory)
}

// CreateCollectors instantiates all collectors using the provided sources
func (r *Registry) CreateCollectors(src Sources) ([]prometheus.Collector, error) {
	if src.Ledger == nil {
		return nil, errors.New("ledger source is nil")
	}
	if src.Peers == nil {
		return nil, errors.New("peer source is nil")
	}

	collectors := make([]prometheus.Collector, 0, len(r.factories))
	for _, factory := range r.factories {
		collector, err := factory(src)
		if err != nil {
			return nil, err
		}
		collectors = append(collectors, collector)
	}
	return collectors, nil
}

var DefaultRegistry = NewRegistry()

func RegisterCollectorFactory(factory CollectorFactory) {
	DefaultRegistry.Register(factory)
}
