package cache

import (
	"container/list"
	"time"

	"github.com/hupe1980/memvec/model"
)

// Entry is the bookkeeping record the cache keeps per resident vector.
// Policies read its recency/frequency fields to pick eviction victims;
// they must not mutate anything except their own policy state.
type Entry struct {
	Record model.VectorRecord

	// InsertedAt is the wall-clock insertion time, used only for TTL
	// expiry checks.
	InsertedAt time.Time

	// InsertTick and AccessTick are logical clock values: the cache
	// increments a single counter on every operation, which keeps
	// eviction decisions deterministic and independent of wall time.
	InsertTick  uint64
	AccessTick  uint64
	AccessCount uint64

	// Pinned entries are exempt from eviction.
	Pinned bool

	// Bytes is the accounted footprint of the entry.
	Bytes int64

	// elem is owned by list-based policies.
	elem *list.Element
}

// Policy selects eviction victims. Implementations are driven entirely
// from under the cache lock and need no internal synchronization.
type Policy interface {
	// OnInsert is called after an entry is added to the cache.
	OnInsert(e *Entry)
	// OnAccess is called on every cache hit.
	OnAccess(e *Entry)
	// OnRemove is called when an entry leaves the cache for any reason.
	OnRemove(e *Entry)
	// Victim returns the entry to evict next, or nil if every resident
	// entry is pinned. It must never return a pinned entry.
	Victim() *Entry
	// Name identifies the policy in logs and stats.
	Name() string
}

// LRUPolicy evicts the least recently used entry.
type LRUPolicy struct {
	order *list.List // front = most recent
}

// NewLRUPolicy creates a least-recently-used eviction policy.
func NewLRUPolicy() *LRUPolicy {
	return &LRUPolicy{order: list.New()}
}

func (p *LRUPolicy) OnInsert(e *Entry) {
	e.elem = p.order.PushFront(e)
}

func (p *LRUPolicy) OnAccess(e *Entry) {
	p.order.MoveToFront(e.elem)
}

func (p *LRUPolicy) OnRemove(e *Entry) {
	p.order.Remove(e.elem)
	e.elem = nil
}

func (p *LRUPolicy) Victim() *Entry {
	for el := p.order.Back(); el != nil; el = el.Prev() {
		if e := el.Value.(*Entry); !e.Pinned {
			return e
		}
	}
	return nil
}

func (p *LRUPolicy) Name() string { return "lru" }

// LFUPolicy evicts the least frequently used entry, breaking ties by
// least recent access.
type LFUPolicy struct {
	entries map[*Entry]struct{}
}

// NewLFUPolicy creates a least-frequently-used eviction policy.
func NewLFUPolicy() *LFUPolicy {
	return &LFUPolicy{entries: make(map[*Entry]struct{})}
}

func (p *LFUPolicy) OnInsert(e *Entry) { p.entries[e] = struct{}{} }
func (p *LFUPolicy) OnAccess(*Entry)   {}
func (p *LFUPolicy) OnRemove(e *Entry) { delete(p.entries, e) }

func (p *LFUPolicy) Victim() *Entry {
	var victim *Entry
	for e := range p.entries {
		if e.Pinned {
			continue
		}
		if victim == nil ||
			e.AccessCount < victim.AccessCount ||
			(e.AccessCount == victim.AccessCount && e.AccessTick < victim.AccessTick) {
			victim = e
		}
	}
	return victim
}

func (p *LFUPolicy) Name() string { return "lfu" }

// HybridPolicy is the default recency+frequency policy. Each entry gets
// a hot score
//
//	score = RecencyWeight*AccessTick + FrequencyWeight*AccessCount
//
// computed over the cache's logical clock; the lowest score is evicted
// first, ties broken by older insertion. The logical clock makes the
// score reproducible in tests regardless of timing.
type HybridPolicy struct {
	RecencyWeight   float64
	FrequencyWeight float64

	entries map[*Entry]struct{}
}

// Default hybrid weights. Frequency is weighted above recency so that a
// vector hit many times survives a burst of one-off insertions.
const (
	DefaultRecencyWeight   = 1.0
	DefaultFrequencyWeight = 2.0
)

// NewHybridPolicy creates the default recency+frequency eviction policy.
// Non-positive weights fall back to the defaults.
func NewHybridPolicy(recencyWeight, frequencyWeight float64) *HybridPolicy {
	if recencyWeight <= 0 {
		recencyWeight = DefaultRecencyWeight
	}
	if frequencyWeight <= 0 {
		frequencyWeight = DefaultFrequencyWeight
	}
	return &HybridPolicy{
		RecencyWeight:   recencyWeight,
		FrequencyWeight: frequencyWeight,
		entries:         make(map[*Entry]struct{}),
	}
}

func (p *HybridPolicy) OnInsert(e *Entry) { p.entries[e] = struct{}{} }
func (p *HybridPolicy) OnAccess(*Entry)   {}
func (p *HybridPolicy) OnRemove(e *Entry) { delete(p.entries, e) }

// Score exposes the hot-score computation so tests can verify eviction
// decisions against a reference calculation.
func (p *HybridPolicy) Score(e *Entry) float64 {
	return p.RecencyWeight*float64(e.AccessTick) + p.FrequencyWeight*float64(e.AccessCount)
}

func (p *HybridPolicy) Victim() *Entry {
	var victim *Entry
	var victimScore float64
	for e := range p.entries {
		if e.Pinned {
			continue
		}
		score := p.Score(e)
		if victim == nil || score < victimScore ||
			(score == victimScore && e.InsertTick < victim.InsertTick) {
			victim = e
			victimScore = score
		}
	}
	return victim
}

func (p *HybridPolicy) Name() string { return "hybrid" }
