// Package cache implements the hot tier of the lookup layer: a
// fixed-capacity, in-process vector cache with a pluggable eviction
// policy, optional TTL expiry and per-entry pinning.
//
// The cache never originates vectors; every resident entry was fetched
// from the cold store by the resolver. It is a best-effort cache, not a
// transactional store: the only guarantees are the capacity bound and
// the eviction policy's victim selection.
package cache

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/memvec/model"
)

// ErrCapacityExceeded is returned by Put when the cache is full and no
// entry can be evicted because every resident entry is pinned. The
// vector is still served to the caller; it is just not admitted.
var ErrCapacityExceeded = errors.New("cache capacity exceeded: all entries pinned")

// entryOverheadBytes approximates the fixed per-entry bookkeeping cost
// used for byte-based capacity accounting.
const entryOverheadBytes = 96

// Options configures a HotCache.
type Options struct {
	// MaxEntries bounds the number of resident entries. A value of 0
	// with MaxBytes 0 yields a degenerate cache: every Get is a miss
	// and Put is a no-op.
	MaxEntries int

	// MaxBytes bounds the accounted byte footprint. 0 means no byte
	// bound (MaxEntries alone applies).
	MaxBytes int64

	// Policy selects eviction victims. Defaults to the hybrid
	// recency+frequency policy.
	Policy Policy

	// TTL is the optional lifetime of an entry. 0 disables expiry.
	// Expired entries are treated identically to absent ones: they are
	// dropped lazily at read time and eagerly by the sweep loop.
	TTL time.Duration

	// SweepInterval is the period of the background expiry sweep.
	// Only used when TTL > 0. Defaults to 1 minute.
	SweepInterval time.Duration

	// Now overrides the clock for TTL checks. Defaults to time.Now.
	// Exposed for tests.
	Now func() time.Time
}

// DefaultOptions is a reasonable starting configuration. Note that an
// all-zero Options is valid and yields a zero-capacity cache.
var DefaultOptions = Options{
	MaxEntries:    10_000,
	SweepInterval: time.Minute,
}

// HotCache is a fixed-capacity vector cache shared by all concurrent
// queries. A single coarse lock guards the entry table and the policy
// state; accesses are sub-microsecond, so lock hold times are short.
type HotCache struct {
	mu      sync.Mutex
	items   map[model.VectorID]*Entry
	policy  Policy
	bytes   int64
	tick    uint64 // logical clock, incremented under mu
	ttl     time.Duration
	now     func() time.Time
	maxN    int
	maxB    int64
	stopCh  chan struct{}
	sweepWG sync.WaitGroup

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
	expired   atomic.Int64

	closed bool
}

// NewHotCache creates a HotCache with the given options.
func NewHotCache(opts Options) *HotCache {
	if opts.Policy == nil {
		opts.Policy = NewHybridPolicy(0, 0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultOptions.SweepInterval
	}

	c := &HotCache{
		items:  make(map[model.VectorID]*Entry),
		policy: opts.Policy,
		ttl:    opts.TTL,
		now:    opts.Now,
		maxN:   opts.MaxEntries,
		maxB:   opts.MaxBytes,
		stopCh: make(chan struct{}),
	}

	if c.ttl > 0 {
		c.sweepWG.Add(1)
		go c.sweepLoop(opts.SweepInterval)
	}

	return c
}

// Get returns the cached record for id. A hit refreshes the entry's
// recency and access count. Expired entries count as misses and are
// removed.
func (c *HotCache) Get(id model.VectorID) (model.VectorRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lookup(id)
	if !ok {
		c.misses.Add(1)
		return model.VectorRecord{}, false
	}

	c.touch(e)
	c.hits.Add(1)
	return e.Record, true
}

// MultiGet returns the cached records for the found subset of ids.
// It never consults the cold store; missing ids are simply absent from
// the result.
func (c *HotCache) MultiGet(ids []model.VectorID) map[model.VectorID]model.VectorRecord {
	found := make(map[model.VectorID]model.VectorRecord, len(ids))

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		e, ok := c.lookup(id)
		if !ok {
			c.misses.Add(1)
			continue
		}
		c.touch(e)
		c.hits.Add(1)
		found[id] = e.Record
	}
	return found
}

// Put inserts or refreshes a record. Inserting at capacity evicts
// victims chosen by the policy before the insert; if eviction cannot
// free room because all entries are pinned, Put returns
// ErrCapacityExceeded and the record is not admitted. Re-putting a
// resident id refreshes its recency instead of duplicating it.
func (c *HotCache) Put(rec model.VectorRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.maxN <= 0 && c.maxB <= 0 {
		// Degenerate zero-capacity cache.
		return nil
	}

	if e, ok := c.items[rec.ID]; ok {
		// Refresh. Vectors are immutable per ID, so only the metadata
		// and bookkeeping change.
		c.touch(e)
		e.Record = rec
		e.InsertedAt = c.now()
		return nil
	}

	size := recordBytes(rec)
	if c.maxB > 0 && size > c.maxB {
		// Larger than the whole cache: never admissible.
		return ErrCapacityExceeded
	}

	for c.overCapacity(size) {
		victim := c.policy.Victim()
		if victim == nil {
			return ErrCapacityExceeded
		}
		c.remove(victim)
		c.evictions.Add(1)
	}

	c.tick++
	e := &Entry{
		Record:      rec,
		InsertedAt:  c.now(),
		InsertTick:  c.tick,
		AccessTick:  c.tick,
		AccessCount: 1,
		Bytes:       size,
	}
	c.items[rec.ID] = e
	c.bytes += size
	c.policy.OnInsert(e)
	return nil
}

// Invalidate removes an entry if present. It is idempotent and safe to
// call while the underlying cold-store deletion is still in flight.
func (c *HotCache) Invalidate(id model.VectorID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[id]; ok {
		c.remove(e)
	}
}

// Pin marks an entry as exempt from eviction. Returns false if the id
// is not resident.
func (c *HotCache) Pin(id model.VectorID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[id]
	if !ok {
		return false
	}
	e.Pinned = true
	return true
}

// Unpin clears the pin flag. Returns false if the id is not resident.
func (c *HotCache) Unpin(id model.VectorID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[id]
	if !ok {
		return false
	}
	e.Pinned = false
	return true
}

// Len returns the number of resident entries.
func (c *HotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// SizeBytes returns the accounted byte footprint of resident entries.
func (c *HotCache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Stats reports hit/miss/eviction/expiry counters.
func (c *HotCache) Stats() (hits, misses, evictions, expired int64) {
	return c.hits.Load(), c.misses.Load(), c.evictions.Load(), c.expired.Load()
}

// Close stops the background sweep loop. The cache remains usable for
// lazy-expiry reads after Close.
func (c *HotCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.stopCh)
	c.sweepWG.Wait()
	return nil
}

// lookup finds a live entry, dropping it if expired. Callers hold mu.
func (c *HotCache) lookup(id model.VectorID) (*Entry, bool) {
	e, ok := c.items[id]
	if !ok {
		return nil, false
	}
	if c.isExpired(e) {
		c.remove(e)
		c.expired.Add(1)
		return nil, false
	}
	return e, true
}

// touch refreshes recency and frequency. Callers hold mu.
func (c *HotCache) touch(e *Entry) {
	c.tick++
	e.AccessTick = c.tick
	e.AccessCount++
	c.policy.OnAccess(e)
}

// remove unlinks an entry from the table and the policy. Callers hold mu.
func (c *HotCache) remove(e *Entry) {
	delete(c.items, e.Record.ID)
	c.bytes -= e.Bytes
	c.policy.OnRemove(e)
}

func (c *HotCache) isExpired(e *Entry) bool {
	return c.ttl > 0 && c.now().Sub(e.InsertedAt) >= c.ttl
}

// overCapacity reports whether admitting extra bytes would break either
// capacity bound. Callers hold mu.
func (c *HotCache) overCapacity(extra int64) bool {
	if c.maxN > 0 && len(c.items)+1 > c.maxN {
		return true
	}
	if c.maxB > 0 && c.bytes+extra > c.maxB {
		return true
	}
	return false
}

func (c *HotCache) sweepLoop(interval time.Duration) {
	defer c.sweepWG.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep eagerly drops expired entries.
func (c *HotCache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.items {
		if c.isExpired(e) {
			c.remove(e)
			c.expired.Add(1)
		}
	}
}

func recordBytes(rec model.VectorRecord) int64 {
	size := int64(entryOverheadBytes) + int64(4*len(rec.Vector))
	for k := range rec.Metadata {
		size += int64(len(k)) + 16
	}
	return size
}
