package memvec_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	memvec "github.com/hupe1980/memvec"
	"github.com/hupe1980/memvec/cache"
	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/index/flat"
	"github.com/hupe1980/memvec/model"
	"github.com/hupe1980/memvec/resolver"
	"github.com/hupe1980/memvec/vectorstore"
)

// stubIndex returns a fixed candidate list, letting tests control the
// approximate ranking exactly.
type stubIndex struct {
	candidates []model.Candidate
}

func (s *stubIndex) Search(_ context.Context, _ []float32, n int) ([]model.Candidate, error) {
	if n > len(s.candidates) {
		n = len(s.candidates)
	}
	return s.candidates[:n], nil
}

// failingStore fails every read and counts the attempts.
type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (s *failingStore) BatchGet(context.Context, []model.VectorID) (map[model.VectorID]model.VectorRecord, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return nil, errors.New("store unavailable")
}

func (s *failingStore) BatchPut(context.Context, []model.VectorRecord) error { return nil }
func (s *failingStore) Delete(context.Context, model.VectorID) error         { return nil }

func quickResolver() memvec.Option {
	return memvec.WithResolverOptions(resolver.Options{
		MaxAttempts:    1,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     time.Millisecond,
	})
}

func newCache(t *testing.T, capacity int) *cache.HotCache {
	t.Helper()

	c := cache.NewHotCache(cache.Options{MaxEntries: capacity})
	t.Cleanup(func() { _ = c.Close() })

	return c
}

// TestQueryEvictionOutcome walks the full pipeline with a capacity-2
// cache and verifies both the reranked answer and which entry the
// hybrid policy evicts to admit the fetched miss.
//
// With the default weights (recency 1, frequency 2) and the logical
// tick sequence Put(A)=1, Put(B)=2, resolve touches A=3 then B=4, the
// hot scores at eviction time are A=1*3+2*2=7 and B=1*4+2*2=8, so A is
// the victim.
func TestQueryEvictionOutcome(t *testing.T) {
	ctx := context.Background()

	const (
		a model.VectorID = 1
		b model.VectorID = 2
		c model.VectorID = 3
	)

	hot := newCache(t, 2)

	store := vectorstore.NewMapStore()
	_ = store.BatchPut(ctx, []model.VectorRecord{
		{ID: a, Vector: []float32{0.8, 0}},
		{ID: b, Vector: []float32{0.6, 0}},
		{ID: c, Vector: []float32{1.0, 0}},
	})

	// A and B start resident.
	_ = hot.Put(model.VectorRecord{ID: a, Vector: []float32{0.8, 0}})
	_ = hot.Put(model.VectorRecord{ID: b, Vector: []float32{0.6, 0}})

	ann := &stubIndex{candidates: []model.Candidate{
		{ID: a, Score: 0.9},
		{ID: c, Score: 0.85},
		{ID: b, Score: 0.8},
	}}

	mv, err := memvec.New(2, ann, hot, store, memvec.WithMetric(distance.MetricDot))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Threshold 2.0 is unreachable for these scores, so no
	// short-circuit: the full candidate set is resolved.
	results, quality, err := mv.Query(ctx, []float32{1, 0}, 2, 3, 2.0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if quality != model.QualityComplete {
		t.Errorf("quality = %s, want Complete", quality)
	}
	if len(results) != 2 || results[0].ID != c || results[1].ID != a {
		t.Fatalf("results = %v, want [vec(3) vec(1)]", results)
	}
	if results[0].Score != 1.0 || results[1].Score != 0.8 {
		t.Errorf("exact scores = %f, %f, want 1.0, 0.8", results[0].Score, results[1].Score)
	}

	// C was admitted at capacity, so exactly one of A/B was evicted:
	// A, because its hot score was lowest.
	if _, ok := hot.Get(a); ok {
		t.Error("A still resident, want evicted")
	}
	if _, ok := hot.Get(b); !ok {
		t.Error("B evicted, want resident")
	}
	if _, ok := hot.Get(c); !ok {
		t.Error("C not admitted to cache")
	}
}

func TestQueryEmptyCollection(t *testing.T) {
	hot := newCache(t, 10)

	ann, err := flat.New(flat.Options{Dimension: 2, Metric: distance.MetricSquaredL2})
	if err != nil {
		t.Fatalf("flat.New() error = %v", err)
	}

	mv, err := memvec.New(2, ann, hot, vectorstore.NewMapStore())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	results, quality, err := mv.Query(context.Background(), []float32{1, 2}, 2, 5, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want empty", results)
	}
	if quality != model.QualityComplete {
		t.Errorf("quality = %s, want Complete", quality)
	}
}

func TestQueryDegradedOnStoreFailure(t *testing.T) {
	ctx := context.Background()
	hot := newCache(t, 10)
	store := &failingStore{}

	const (
		a model.VectorID = 1
		b model.VectorID = 2
	)

	_ = hot.Put(model.VectorRecord{ID: a, Vector: []float32{1, 0}})

	ann := &stubIndex{candidates: []model.Candidate{
		{ID: a, Score: 0.9},
		{ID: b, Score: 0.5},
	}}

	mv, err := memvec.New(2, ann, hot, store, quickResolver())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	results, quality, err := mv.Query(ctx, []float32{1, 0}, 2, 2, 0)
	if err != nil {
		t.Fatalf("Query() error = %v, want graceful degradation", err)
	}

	if quality != model.QualityDegraded {
		t.Errorf("quality = %s, want Degraded", quality)
	}
	if len(results) != 1 || results[0].ID != a {
		t.Errorf("results = %v, want cache-hit subset [vec(1)]", results)
	}
}

func TestQueryPartialOnStaleReferences(t *testing.T) {
	ctx := context.Background()
	hot := newCache(t, 10)

	store := vectorstore.NewMapStore()
	_ = store.BatchPut(ctx, []model.VectorRecord{{ID: 1, Vector: []float32{1, 0}}})

	// Candidate 9 does not exist in the store anymore.
	ann := &stubIndex{candidates: []model.Candidate{
		{ID: 1, Score: 0.9},
		{ID: 9, Score: 0.8},
	}}

	mv, err := memvec.New(2, ann, hot, store)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	results, quality, err := mv.Query(ctx, []float32{1, 0}, 2, 2, 0)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if quality != model.QualityPartial {
		t.Errorf("quality = %s, want Partial", quality)
	}
	if len(results) != 1 || results[0].ID != 1 {
		t.Errorf("results = %v, want [vec(1)]", results)
	}
}

func TestQueryShortCircuitSkipsColdStore(t *testing.T) {
	ctx := context.Background()
	hot := newCache(t, 10)
	store := &failingStore{}

	const (
		a model.VectorID = 1
		b model.VectorID = 2
	)

	_ = hot.Put(model.VectorRecord{ID: a, Vector: []float32{0.5, 0}})
	_ = hot.Put(model.VectorRecord{ID: b, Vector: []float32{0.9, 0}})

	ann := &stubIndex{candidates: []model.Candidate{
		{ID: a, Score: 0.95},
		{ID: b, Score: 0.90},
		{ID: 99, Score: 0.1}, // beyond top-k, never resolved
	}}

	mv, err := memvec.New(2, ann, hot, store, memvec.WithMetric(distance.MetricDot))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	results, quality, err := mv.Query(ctx, []float32{1, 0}, 2, 3, 0.9)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if store.calls != 0 {
		t.Errorf("cold store calls = %d, want 0 (short-circuit)", store.calls)
	}
	if quality != model.QualityComplete {
		t.Errorf("quality = %s, want Complete", quality)
	}
	// Exact rerank reorders the cached subset: B's vector is closer to
	// the query under dot product.
	if len(results) != 2 || results[0].ID != b || results[1].ID != a {
		t.Errorf("results = %v, want [vec(2) vec(1)]", results)
	}
}

func TestQueryInvalidArguments(t *testing.T) {
	hot := newCache(t, 10)

	mv, err := memvec.New(2, &stubIndex{}, hot, vectorstore.NewMapStore())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()

	if _, _, err := mv.Query(ctx, []float32{1, 0}, 0, 5, 0); !errors.Is(err, memvec.ErrInvalidK) {
		t.Errorf("k=0 error = %v, want ErrInvalidK", err)
	}
	if _, _, err := mv.Query(ctx, []float32{1, 0}, 5, 3, 0); !errors.Is(err, memvec.ErrInvalidCandidateCount) {
		t.Errorf("candidateCount<k error = %v, want ErrInvalidCandidateCount", err)
	}

	var dm *memvec.ErrDimensionMismatch
	if _, _, err := mv.Query(ctx, []float32{1, 0, 0}, 1, 5, 0); !errors.As(err, &dm) {
		t.Errorf("dimension mismatch error = %v, want ErrDimensionMismatch", err)
	} else if dm.Expected != 2 || dm.Actual != 3 {
		t.Errorf("ErrDimensionMismatch = %+v, want Expected:2 Actual:3", dm)
	}
}

func TestInvalidateIdempotent(t *testing.T) {
	ctx := context.Background()
	hot := newCache(t, 10)

	mv, err := memvec.New(2, &stubIndex{}, hot, vectorstore.NewMapStore())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_ = hot.Put(model.VectorRecord{ID: 1, Vector: []float32{1, 0}})

	mv.Invalidate(ctx, 1)
	if _, ok := hot.Get(1); ok {
		t.Error("entry still resident after Invalidate")
	}

	// Idempotent, including for ids never cached.
	mv.Invalidate(ctx, 1)
	mv.Invalidate(ctx, 42)
}

func TestBatchQuery(t *testing.T) {
	ctx := context.Background()
	hot := newCache(t, 100)

	ann, err := flat.New(flat.Options{Dimension: 2, Metric: distance.MetricSquaredL2})
	if err != nil {
		t.Fatalf("flat.New() error = %v", err)
	}

	store := vectorstore.NewMapStore()
	for i := 1; i <= 8; i++ {
		rec := model.VectorRecord{ID: model.VectorID(i), Vector: []float32{float32(i), 0}}
		_ = store.BatchPut(ctx, []model.VectorRecord{rec})
		_ = ann.Insert(rec.ID, rec.Vector)
	}

	mv, err := memvec.New(2, ann, hot, store, memvec.WithBatchConcurrency(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	queries := [][]float32{{1, 0}, {8, 0}, {4, 0}}

	results, qualities, err := mv.BatchQuery(ctx, queries, 1, 3, 0)
	if err != nil {
		t.Fatalf("BatchQuery() error = %v", err)
	}
	if len(results) != 3 || len(qualities) != 3 {
		t.Fatalf("BatchQuery() returned %d/%d entries, want 3/3", len(results), len(qualities))
	}

	wantTop := []model.VectorID{1, 8, 4}
	for i, want := range wantTop {
		if len(results[i]) != 1 || results[i][0].ID != want {
			t.Errorf("query %d: results = %v, want top hit %s", i, results[i], want)
		}
		if qualities[i] != model.QualityComplete {
			t.Errorf("query %d: quality = %s, want Complete", i, qualities[i])
		}
	}
}

func TestQueryWithMetrics(t *testing.T) {
	ctx := context.Background()
	hot := newCache(t, 10)

	store := vectorstore.NewMapStore()
	_ = store.BatchPut(ctx, []model.VectorRecord{{ID: 1, Vector: []float32{1, 0}}})

	ann := &stubIndex{candidates: []model.Candidate{{ID: 1, Score: 0.9}}}

	collector := &memvec.BasicMetricsCollector{}

	mv, err := memvec.New(2, ann, hot, store, memvec.WithMetricsCollector(collector))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, _, err := mv.Query(ctx, []float32{1, 0}, 1, 1, 0); err != nil {
		t.Fatalf("Query() error = %v", err)
	}

	if collector.QueryCount.Load() != 1 {
		t.Errorf("QueryCount = %d, want 1", collector.QueryCount.Load())
	}
	if collector.ResolveCount.Load() != 1 {
		t.Errorf("ResolveCount = %d, want 1", collector.ResolveCount.Load())
	}
	if collector.ResolveMisses.Load() != 1 {
		t.Errorf("ResolveMisses = %d, want 1", collector.ResolveMisses.Load())
	}
}
