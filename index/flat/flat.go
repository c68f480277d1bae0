// Package flat provides a brute-force ANNIndex over an in-memory
// vector table. Search is exact, which makes it the reference
// implementation for testing the query layer and a reasonable choice
// for small collections.
package flat

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/index"
	"github.com/hupe1980/memvec/model"
)

var _ index.ANNIndex = (*Flat)(nil)

// Options contains configuration options for the flat index.
type Options struct {
	// Dimension is the fixed vector dimensionality. Enforced on every
	// insert and search.
	Dimension int

	// Metric selects the score function. Candidates are ordered
	// best-first under this metric.
	Metric distance.Metric

	// NormalizeVectors enables L2 normalization for stored vectors and
	// queries. Commonly used with MetricDot for cosine search.
	NormalizeVectors bool
}

// indexState is the immutable snapshot swapped on writes so searches
// run lock-free.
type indexState struct {
	ids     []model.VectorID
	vectors [][]float32
	slot    map[model.VectorID]int
}

// Flat is a brute-force index using a copy-on-write state for
// lock-free concurrent searches.
type Flat struct {
	state   atomic.Pointer[indexState]
	writeMu sync.Mutex

	opts     Options
	distFunc distance.Func
}

// New creates an empty flat index.
func New(opts Options) (*Flat, error) {
	if opts.Dimension <= 0 {
		return nil, fmt.Errorf("flat: invalid dimension %d", opts.Dimension)
	}

	distFunc, err := distance.Provider(opts.Metric)
	if err != nil {
		return nil, err
	}

	f := &Flat{
		opts:     opts,
		distFunc: distFunc,
	}

	f.state.Store(&indexState{slot: make(map[model.VectorID]int)})

	return f, nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int {
	return len(f.state.Load().ids)
}

// Insert adds or replaces a vector under the given id.
func (f *Flat) Insert(id model.VectorID, vector []float32) error {
	if len(vector) != f.opts.Dimension {
		return fmt.Errorf("flat: vector for %s has dimension %d, want %d", id, len(vector), f.opts.Dimension)
	}

	v := append([]float32(nil), vector...)
	if f.opts.NormalizeVectors {
		distance.NormalizeL2InPlace(v)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	next := f.cloneState()
	if i, ok := next.slot[id]; ok {
		next.vectors[i] = v
	} else {
		next.slot[id] = len(next.ids)
		next.ids = append(next.ids, id)
		next.vectors = append(next.vectors, v)
	}

	f.state.Store(next)

	return nil
}

// Delete removes a vector. Deleting an unknown id is a no-op.
func (f *Flat) Delete(id model.VectorID) {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	cur := f.state.Load()
	i, ok := cur.slot[id]
	if !ok {
		return
	}

	next := f.cloneState()
	last := len(next.ids) - 1

	next.ids[i] = next.ids[last]
	next.vectors[i] = next.vectors[last]
	next.slot[next.ids[i]] = i

	next.ids = next.ids[:last]
	next.vectors = next.vectors[:last]
	delete(next.slot, id)

	f.state.Store(next)
}

// cloneState copies the current state for a write. Callers must hold
// writeMu.
func (f *Flat) cloneState() *indexState {
	cur := f.state.Load()

	next := &indexState{
		ids:     append([]model.VectorID(nil), cur.ids...),
		vectors: append([][]float32(nil), cur.vectors...),
		slot:    make(map[model.VectorID]int, len(cur.slot)),
	}
	for id, i := range cur.slot {
		next.slot[id] = i
	}

	return next
}

// Search scans all vectors and returns the best n candidates ordered
// best-first under the configured metric.
func (f *Flat) Search(ctx context.Context, query []float32, n int) ([]model.Candidate, error) {
	if len(query) != f.opts.Dimension {
		return nil, fmt.Errorf("flat: query has dimension %d, want %d", len(query), f.opts.Dimension)
	}
	if n <= 0 {
		return []model.Candidate{}, nil
	}

	q := query
	if f.opts.NormalizeVectors {
		q, _ = distance.NormalizeL2Copy(query)
	}

	st := f.state.Load()

	h := &candidateHeap{metric: f.opts.Metric}
	heap.Init(h)

	for i, vec := range st.vectors {
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		score := f.distFunc(q, vec)
		if h.Len() < n {
			heap.Push(h, model.Candidate{ID: st.ids[i], Score: score})
		} else if f.opts.Metric.Better(score, h.items[0].Score) {
			h.items[0] = model.Candidate{ID: st.ids[i], Score: score}
			heap.Fix(h, 0)
		}
	}

	// Pop worst-first, then reverse into best-first order.
	out := make([]model.Candidate, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(model.Candidate)
	}

	return out, nil
}

// candidateHeap keeps the current worst candidate at the root so it
// can be replaced cheaply during the scan.
type candidateHeap struct {
	items  []model.Candidate
	metric distance.Metric
}

func (h *candidateHeap) Len() int { return len(h.items) }

func (h *candidateHeap) Less(i, j int) bool {
	return h.metric.Better(h.items[j].Score, h.items[i].Score)
}

func (h *candidateHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *candidateHeap) Push(x interface{}) {
	h.items = append(h.items, x.(model.Candidate))
}

func (h *candidateHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]

	return item
}
