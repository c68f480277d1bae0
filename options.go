package memvec

import (
	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/resolver"
)

type options struct {
	metric           distance.Metric
	logger           *Logger
	metricsCollector MetricsCollector
	resolverOptions  resolver.Options
	batchConcurrency int
}

// Option configures MemVec constructor behavior.
type Option func(*options)

// WithMetric sets the collection metric used for exact reranking and
// threshold checks. It must match the metric family of the ANN index.
// Defaults to squared L2.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithLogger configures structured logging. If nil is passed, logging
// is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector configures metrics collection.
//
// If nil is passed, NoopMetricsCollector is used.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResolverOptions configures the cold-store resolution behavior
// (retry budget, per-attempt timeout, backoff).
func WithResolverOptions(ro resolver.Options) Option {
	return func(o *options) {
		o.resolverOptions = ro
	}
}

// WithBatchConcurrency bounds the number of queries a BatchQuery call
// runs in parallel. Defaults to 4.
func WithBatchConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.batchConcurrency = n
		}
	}
}
