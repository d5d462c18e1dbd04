// Package metrics exposes operator-facing Prometheus gauges/counters for
// cache and transport activity, built on github.com/prometheus/client_golang.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// CacheFiles tracks the number of files under the cache root, updated
	// on demand by internal/store.Status callers (e.g. "cache status").
	CacheFiles = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "esios",
		Subsystem: "cache",
		Name: "files_total",
		Help: "Number of files currently in the on-disk cache.",
	})

	// CacheSizeBytes tracks the on-disk cache footprint in bytes.
	CacheSizeBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "esios",
		Subsystem: "cache",
		Name: "size_bytes",
		Help: "Total size of the on-disk cache in bytes.",
	})

	// RequestsTotal counts outbound API requests by endpoint and outcome.
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esios",
		Subsystem: "transport",
		Name: "requests_total",
		Help: "Outbound API requests, labeled by endpoint and outcome.",
	}, []string{"endpoint", "outcome"})

	// CacheLookupsTotal counts Gap Planner outcomes by whether any fetch
	// was required.
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "esios",
		Subsystem: "cache",
		Name: "lookups_total",
		Help: "Historical lookups, labeled by hit or miss.",
	}, []string{"result"})
)

// Register adds every collector to reg. Call once at startup; a nil reg
// registers against the default Prometheus registry.
func Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{CacheFiles, CacheSizeBytes, RequestsTotal, CacheLookupsTotal} {
		if err := reg.Register(c); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				_ = are
				continue
			}
			return err
		}
	}
	return nil
}
