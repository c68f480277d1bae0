// Package resolver bridges the hot cache and the cold vector store.
//
// A CacheResolver answers "give me the records for these candidate
// ids": cache hits are served directly, misses are fetched from the
// cold store in a single batched read and inserted into the cache on
// the way out. Concurrent resolves requesting the same missing id
// share one cold fetch through a per-id in-flight registry.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hupe1980/memvec/cache"
	"github.com/hupe1980/memvec/model"
	"github.com/hupe1980/memvec/vectorstore"
)

const (
	// DefaultMaxAttempts is the cold-store retry budget per resolve.
	DefaultMaxAttempts = 3

	// DefaultFetchTimeout bounds a single cold-store read attempt.
	DefaultFetchTimeout = 5 * time.Second

	// DefaultInitialBackoff is the delay before the first retry. It
	// doubles per attempt up to DefaultMaxBackoff.
	DefaultInitialBackoff = 50 * time.Millisecond

	// DefaultMaxBackoff caps the retry delay.
	DefaultMaxBackoff = 2 * time.Second
)

// Stats reports how a resolve call was satisfied.
type Stats struct {
	// Hits is the number of ids served from the cache.
	Hits int

	// Misses is the number of ids that required a cold-store fetch.
	Misses int

	// Stale is the number of ids the cold store could not resolve
	// (deleted or never existed). Stale ids are dropped, not errors.
	Stale int

	// Degraded is set when the cold-store read failed after all retry
	// attempts and the result contains only the cache-hit subset.
	Degraded bool
}

// Options configures a CacheResolver.
type Options struct {
	// MaxAttempts is the total number of cold-store read attempts per
	// batch, including the first.
	MaxAttempts int

	// FetchTimeout bounds each individual attempt.
	FetchTimeout time.Duration

	// InitialBackoff is the delay before the first retry, doubling per
	// attempt up to MaxBackoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the backoff delay.
	MaxBackoff time.Duration

	// Logger receives resolve diagnostics. Defaults to a discarding
	// logger.
	Logger *slog.Logger
}

// DefaultOptions returns the default resolver configuration.
func DefaultOptions() Options {
	return Options{
		MaxAttempts:    DefaultMaxAttempts,
		FetchTimeout:   DefaultFetchTimeout,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// batchFlight is one shared cold-store fetch. All resolves waiting on
// any id covered by the flight hold a reference; the fetch context is
// cancelled only when the last waiter lets go.
type batchFlight struct {
	done    chan struct{}
	cancel  context.CancelFunc
	refs    int
	records map[model.VectorID]model.VectorRecord
	err     error
}

// CacheResolver resolves candidate ids against a HotCache backed by a
// cold VectorStore.
type CacheResolver struct {
	cache *cache.HotCache
	store vectorstore.VectorStore
	opts  Options

	mu       sync.Mutex
	inflight map[model.VectorID]*batchFlight
}

// New creates a CacheResolver. Zero option fields fall back to the
// package defaults.
func New(hot *cache.HotCache, store vectorstore.VectorStore, opts Options) *CacheResolver {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = DefaultFetchTimeout
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = DefaultInitialBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}

	return &CacheResolver{
		cache:    hot,
		store:    store,
		opts:     opts,
		inflight: make(map[model.VectorID]*batchFlight),
	}
}

// Resolve returns the records for ids in input order, dropping ids
// that resolve to nothing. Cache hits never touch the cold store;
// misses are fetched with exactly one batched read (shared with
// concurrent resolves of the same ids). On total cold-store failure
// the cache-hit subset is returned with Stats.Degraded set.
func (r *CacheResolver) Resolve(ctx context.Context, ids []model.VectorID) ([]model.VectorRecord, Stats, error) {
	var stats Stats

	if len(ids) == 0 {
		return []model.VectorRecord{}, stats, nil
	}

	hits := r.cache.MultiGet(ids)
	stats.Hits = len(hits)

	misses := make([]model.VectorID, 0, len(ids)-len(hits))
	seen := make(map[model.VectorID]struct{}, len(ids))
	for _, id := range ids {
		if _, hit := hits[id]; hit {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		misses = append(misses, id)
	}
	stats.Misses = len(misses)

	fetched := make(map[model.VectorID]model.VectorRecord, len(misses))
	if len(misses) > 0 {
		var err error
		fetched, stats.Degraded, err = r.fetch(ctx, misses)
		if err != nil {
			return nil, stats, err
		}
	}

	out := make([]model.VectorRecord, 0, len(ids))
	emitted := make(map[model.VectorID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := emitted[id]; dup {
			continue
		}
		emitted[id] = struct{}{}

		if rec, ok := hits[id]; ok {
			out = append(out, rec)
			continue
		}
		if rec, ok := fetched[id]; ok {
			out = append(out, rec)
			continue
		}

		if !stats.Degraded {
			stats.Stale++
		}
	}

	if stats.Stale > 0 {
		r.opts.Logger.Debug("dropped stale candidate ids", slog.Int("stale", stats.Stale))
	}

	return out, stats, nil
}

// fetch resolves the miss set through the in-flight registry. It
// returns the records obtained, whether the resolve is degraded, and
// an error only for caller cancellation.
func (r *CacheResolver) fetch(ctx context.Context, misses []model.VectorID) (map[model.VectorID]model.VectorRecord, bool, error) {
	r.mu.Lock()

	// Join flights that already cover some of the misses, and collect
	// the ids nobody is fetching yet.
	joined := make(map[*batchFlight][]model.VectorID)
	owned := make([]model.VectorID, 0, len(misses))
	for _, id := range misses {
		if bf, ok := r.inflight[id]; ok {
			joined[bf] = append(joined[bf], id)
		} else {
			owned = append(owned, id)
		}
	}

	var own *batchFlight
	if len(owned) > 0 {
		// The fetch outlives this caller if other resolves join it, so
		// it runs on a context detached from the caller's.
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		own = &batchFlight{
			done:    make(chan struct{}),
			cancel:  cancel,
			records: make(map[model.VectorID]model.VectorRecord),
		}
		for _, id := range owned {
			r.inflight[id] = own
		}
		joined[own] = owned

		go r.runFlight(fctx, own, owned)
	}

	for bf := range joined {
		bf.refs++
	}
	r.mu.Unlock()

	fetched := make(map[model.VectorID]model.VectorRecord, len(misses))
	degraded := false

	var ctxErr error
	for bf, want := range joined {
		if ctxErr == nil {
			select {
			case <-bf.done:
				if bf.err != nil {
					degraded = true
				} else {
					for _, id := range want {
						if rec, ok := bf.records[id]; ok {
							fetched[id] = rec
						}
					}
				}
			case <-ctx.Done():
				ctxErr = ctx.Err()
			}
		}

		r.release(bf)
	}

	if ctxErr != nil {
		return nil, false, ctxErr
	}

	return fetched, degraded, nil
}

// release drops one waiter reference. The flight's fetch context is
// cancelled once the last waiter is gone and the fetch has not
// finished yet.
func (r *CacheResolver) release(bf *batchFlight) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bf.refs--
	if bf.refs == 0 {
		select {
		case <-bf.done:
		default:
			bf.cancel()
		}
	}
}

// runFlight performs the batched cold-store read with retries, inserts
// the results into the cache and completes the flight.
func (r *CacheResolver) runFlight(ctx context.Context, bf *batchFlight, ids []model.VectorID) {
	records, err := r.fetchWithRetry(ctx, ids)

	// Cache inserts happen before the flight completes and before the
	// ids leave the registry, so a resolve arriving right after this
	// fetch sees either the in-flight entry or a cache hit, never a
	// gap that would trigger a duplicate fetch.
	for _, rec := range records {
		if perr := r.cache.Put(rec); perr != nil {
			// The record is still returned to waiters, it just stays
			// uncached.
			if errors.Is(perr, cache.ErrCapacityExceeded) {
				r.opts.Logger.Warn("cache admission failed", slog.String("id", rec.ID.String()), slog.Any("error", perr))
			}
		}
	}

	r.mu.Lock()
	for _, id := range ids {
		if r.inflight[id] == bf {
			delete(r.inflight, id)
		}
	}
	bf.records = records
	bf.err = err
	close(bf.done)
	r.mu.Unlock()

	bf.cancel()
}

func (r *CacheResolver) fetchWithRetry(ctx context.Context, ids []model.VectorID) (map[model.VectorID]model.VectorRecord, error) {
	backoff := r.opts.InitialBackoff

	var lastErr error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		actx, cancel := context.WithTimeout(ctx, r.opts.FetchTimeout)
		records, err := r.store.BatchGet(actx, ids)
		cancel()

		if err == nil {
			return records, nil
		}
		lastErr = err

		r.opts.Logger.Warn("cold store read failed",
			slog.Int("attempt", attempt),
			slog.Int("ids", len(ids)),
			slog.Any("error", err),
		)

		if attempt == r.opts.MaxAttempts {
			break
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		backoff *= 2
		if backoff > r.opts.MaxBackoff {
			backoff = r.opts.MaxBackoff
		}
	}

	return nil, lastErr
}
