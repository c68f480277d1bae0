package config

import (
	"github.com/hupe1980/memvec/cache"
	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/resolver"
	"github.com/hupe1980/memvec/resource"
	"github.com/hupe1980/memvec/vectorstore"
)

// DistanceMetric maps the configured metric name to its Metric value.
// Call after Validate.
func (c *Config) DistanceMetric() distance.Metric {
	switch c.Metric {
	case "dot":
		return distance.MetricDot
	case "cosine":
		return distance.MetricCosine
	default:
		return distance.MetricSquaredL2
	}
}

// CacheOptions translates the cache section into cache.Options.
func (c CacheConfig) CacheOptions() cache.Options {
	var policy cache.Policy
	switch c.Policy {
	case "lru":
		policy = cache.NewLRUPolicy()
	case "lfu":
		policy = cache.NewLFUPolicy()
	default:
		policy = cache.NewHybridPolicy(0, 0)
	}

	return cache.Options{
		MaxEntries: c.MaxEntries,
		MaxBytes:   c.MaxBytes,
		TTL:        c.TTL,
		Policy:     policy,
	}
}

// ResolverOptions translates the resolver section into resolver.Options.
func (c ResolverConfig) ResolverOptions() resolver.Options {
	return resolver.Options{
		MaxAttempts:    c.MaxAttempts,
		FetchTimeout:   c.FetchTimeout,
		InitialBackoff: c.InitialBackoff,
		MaxBackoff:     c.MaxBackoff,
	}
}

// ResourceConfig translates the resource section into resource.Config.
func (c ResourceConfig) ResourceConfig() resource.Config {
	return resource.Config{
		MaxConcurrentFetches: int64(c.MaxConcurrentFetches),
		FetchBytesPerSec:     int64(c.FetchBytesPerSec),
	}
}

// ChunkCompression maps the configured compression name to its value.
// Call after Validate.
func (c StoreConfig) ChunkCompression() vectorstore.Compression {
	switch c.Compression {
	case "none":
		return vectorstore.CompressionNone
	case "zstd":
		return vectorstore.CompressionZSTD
	default:
		return vectorstore.CompressionLZ4
	}
}
