package store

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the block counters of a store.
type Metrics struct {
	Created   prometheus.Counter
	Cloned    prometheus.Counter
	Freed     prometheus.Counter
	Rollbacks prometheus.Counter
	Live      prometheus.Gauge
}

func newMetrics() *Metrics {
	opts := func(name, help string) prometheus.Opts {
		return prometheus.Opts{Namespace: "streamtree", Subsystem: "store", Name: name, Help: help}
	}
	return &Metrics{
		Created:   prometheus.NewCounter(prometheus.CounterOpts(opts("blocks_created_total", "Blocks allocated."))),
		Cloned:    prometheus.NewCounter(prometheus.CounterOpts(opts("blocks_cloned_total", "Blocks cloned for copy-on-write."))),
		Freed:     prometheus.NewCounter(prometheus.CounterOpts(opts("blocks_freed_total", "Blocks freed after their last reference went away."))),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts(opts("rollbacks_total", "Savepoints rolled back."))),
		Live:      prometheus.NewGauge(prometheus.GaugeOpts(opts("blocks_live", "Blocks currently in the arena."))),
	}
}

func (m *Metrics) register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.Created, m.Cloned, m.Freed, m.Rollbacks, m.Live} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
