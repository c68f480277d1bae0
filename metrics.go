package memvec

import (
	"sync/atomic"
	"time"

	"github.com/hupe1980/memvec/model"
	"github.com/hupe1980/memvec/resolver"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    queryCounter   prometheus.Counter
//	    queryHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordQuery(k int, quality model.Quality, duration time.Duration, err error) {
//	    p.queryCounter.Inc()
//	    // ... record quality, duration, error state, etc.
//	}
type MetricsCollector interface {
	// RecordQuery is called after each query with the requested k, the
	// response quality and the total time taken. err is nil on success.
	RecordQuery(k int, quality model.Quality, duration time.Duration, err error)

	// RecordResolve is called after each candidate resolution with the
	// resolver's hit/miss/stale breakdown.
	RecordResolve(stats resolver.Stats, duration time.Duration)

	// RecordShortCircuit is called when a query is answered from the
	// cache without touching the cold store.
	RecordShortCircuit(k int)

	// RecordInvalidate is called after each invalidation.
	RecordInvalidate()
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordQuery(int, model.Quality, time.Duration, error) {}
func (NoopMetricsCollector) RecordResolve(resolver.Stats, time.Duration)          {}
func (NoopMetricsCollector) RecordShortCircuit(int)                               {}
func (NoopMetricsCollector) RecordInvalidate()                                    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	QueryCount      atomic.Int64
	QueryErrors     atomic.Int64
	QueryTotalNanos atomic.Int64
	PartialQueries  atomic.Int64
	DegradedQueries atomic.Int64

	ResolveCount      atomic.Int64
	ResolveHits       atomic.Int64
	ResolveMisses     atomic.Int64
	ResolveStale      atomic.Int64
	ResolveTotalNanos atomic.Int64

	ShortCircuits   atomic.Int64
	InvalidateCount atomic.Int64
}

// RecordQuery implements MetricsCollector.
func (b *BasicMetricsCollector) RecordQuery(k int, quality model.Quality, duration time.Duration, err error) {
	b.QueryCount.Add(1)
	b.QueryTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.QueryErrors.Add(1)
		return
	}
	switch quality {
	case model.QualityPartial:
		b.PartialQueries.Add(1)
	case model.QualityDegraded:
		b.DegradedQueries.Add(1)
	}
}

// RecordResolve implements MetricsCollector.
func (b *BasicMetricsCollector) RecordResolve(stats resolver.Stats, duration time.Duration) {
	b.ResolveCount.Add(1)
	b.ResolveHits.Add(int64(stats.Hits))
	b.ResolveMisses.Add(int64(stats.Misses))
	b.ResolveStale.Add(int64(stats.Stale))
	b.ResolveTotalNanos.Add(duration.Nanoseconds())
}

// RecordShortCircuit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordShortCircuit(int) {
	b.ShortCircuits.Add(1)
}

// RecordInvalidate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInvalidate() {
	b.InvalidateCount.Add(1)
}

// AverageQueryDuration returns the mean query latency, or 0 when no
// queries have been recorded.
func (b *BasicMetricsCollector) AverageQueryDuration() time.Duration {
	count := b.QueryCount.Load()
	if count == 0 {
		return 0
	}
	return time.Duration(b.QueryTotalNanos.Load() / count)
}
