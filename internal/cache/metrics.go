package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the aggregate cache.
type Metrics struct {
	HitsTotal      prometheus.Counter
	MissesTotal    prometheus.Counter
	EvictionsTotal prometheus.Counter
	Size           prometheus.Gauge
}

// NewMetrics creates and registers cache metrics on the default registry.
//
// sync.Once guards registration so repeated construction (tests, multiple
// caches) cannot panic with a duplicate-collector error.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			HitsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gatherd_cache_hits_total",
				Help: "Total number of aggregate cache hits",
			}),
			MissesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gatherd_cache_misses_total",
				Help: "Total number of aggregate cache misses (including expiries)",
			}),
			EvictionsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "gatherd_cache_evictions_total",
				Help: "Total number of entries evicted by the soft cap",
			}),
			Size: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "gatherd_cache_size",
				Help: "Current number of cached aggregates",
			}),
		}
	})
	return globalMetrics
}

// RecordHit records a cache hit.
func (m *Metrics) RecordHit() { m.HitsTotal.Inc() }

// RecordMiss records a cache miss.
func (m *Metrics) RecordMiss() { m.MissesTotal.Inc() }

// RecordEviction records a soft-cap eviction.
func (m *Metrics) RecordEviction() { m.EvictionsTotal.Inc() }

// SetSize updates the cache size gauge.
func (m *Metrics) SetSize(n int) { m.Size.Set(float64(n)) }
