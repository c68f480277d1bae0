// Package config loads deployment configuration from the environment.
//
// All variables are prefixed with MEMVEC, e.g. MEMVEC_STORE_BUCKET or
// MEMVEC_CACHE_MAX_ENTRIES. Programmatic setups can skip this package
// entirely and construct the components directly.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// CacheConfig configures the hot tier.
type CacheConfig struct {
	MaxEntries int           `envconfig:"MAX_ENTRIES" default:"10000"`
	MaxBytes   int64         `envconfig:"MAX_BYTES" default:"0"`
	TTL        time.Duration `envconfig:"TTL" default:"0"`
	Policy     string        `envconfig:"POLICY" default:"hybrid"`
}

// StoreConfig configures the cold tier backend.
type StoreConfig struct {
	// Backend selects the blobstore: "s3", "minio", "local" or "memory".
	Backend string `envconfig:"BACKEND" default:"memory"`

	Bucket    string `envconfig:"BUCKET"`
	Prefix    string `envconfig:"PREFIX"`
	Region    string `envconfig:"REGION" default:"us-east-1"`
	Endpoint  string `envconfig:"ENDPOINT"`
	AccessKey string `envconfig:"ACCESS_KEY"`
	SecretKey string `envconfig:"SECRET_KEY"`

	// LocalPath is the root directory for the "local" backend.
	LocalPath string `envconfig:"LOCAL_PATH"`

	// CommitTable enables the DynamoDB commit store for the manifest
	// CURRENT pointer when set.
	CommitTable string `envconfig:"COMMIT_TABLE"`

	Compression string `envconfig:"COMPRESSION" default:"lz4"`
}

// ResolverConfig configures cold-store resolution.
type ResolverConfig struct {
	MaxAttempts    int           `envconfig:"MAX_ATTEMPTS" default:"3"`
	FetchTimeout   time.Duration `envconfig:"FETCH_TIMEOUT" default:"5s"`
	InitialBackoff time.Duration `envconfig:"INITIAL_BACKOFF" default:"50ms"`
	MaxBackoff     time.Duration `envconfig:"MAX_BACKOFF" default:"2s"`
}

// ResourceConfig bounds cold-store I/O.
type ResourceConfig struct {
	MaxConcurrentFetches int `envconfig:"MAX_CONCURRENT_FETCHES" default:"16"`
	FetchBytesPerSec     int `envconfig:"FETCH_BYTES_PER_SEC" default:"0"`
}

// Config is the full deployment configuration.
type Config struct {
	// Dimension is the fixed vector dimensionality of the collection.
	Dimension int `envconfig:"DIMENSION" required:"true"`

	// Metric is the collection metric: "l2", "dot" or "cosine".
	Metric string `envconfig:"METRIC" default:"l2"`

	Cache    CacheConfig
	Store    StoreConfig
	Resolver ResolverConfig
	Resource ResourceConfig
}

// Load reads the configuration from MEMVEC_* environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("MEMVEC", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := envconfig.Process("MEMVEC_CACHE", &cfg.Cache); err != nil {
		return nil, fmt.Errorf("config: cache: %w", err)
	}
	if err := envconfig.Process("MEMVEC_STORE", &cfg.Store); err != nil {
		return nil, fmt.Errorf("config: store: %w", err)
	}
	if err := envconfig.Process("MEMVEC_RESOLVER", &cfg.Resolver); err != nil {
		return nil, fmt.Errorf("config: resolver: %w", err)
	}
	if err := envconfig.Process("MEMVEC_RESOURCE", &cfg.Resource); err != nil {
		return nil, fmt.Errorf("config: resource: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks cross-field constraints that envconfig tags cannot
// express.
func (c *Config) Validate() error {
	if c.Dimension <= 0 {
		return fmt.Errorf("config: dimension must be positive, got %d", c.Dimension)
	}

	switch c.Metric {
	case "l2", "dot", "cosine":
	default:
		return fmt.Errorf("config: unknown metric %q", c.Metric)
	}

	switch c.Cache.Policy {
	case "hybrid", "lru", "lfu":
	default:
		return fmt.Errorf("config: unknown cache policy %q", c.Cache.Policy)
	}

	switch c.Store.Backend {
	case "memory":
	case "local":
		if c.Store.LocalPath == "" {
			return fmt.Errorf("config: local backend requires MEMVEC_STORE_LOCAL_PATH")
		}
	case "s3", "minio":
		if c.Store.Bucket == "" {
			return fmt.Errorf("config: %s backend requires MEMVEC_STORE_BUCKET", c.Store.Backend)
		}
	default:
		return fmt.Errorf("config: unknown store backend %q", c.Store.Backend)
	}

	switch c.Store.Compression {
	case "none", "lz4", "zstd":
	default:
		return fmt.Errorf("config: unknown compression %q", c.Store.Compression)
	}

	return nil
}
