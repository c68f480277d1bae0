package memvec

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/memvec/cache"
	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/index"
	"github.com/hupe1980/memvec/model"
	"github.com/hupe1980/memvec/resolver"
	"github.com/hupe1980/memvec/vectorstore"
)

const defaultBatchConcurrency = 4

// MemVec is the query orchestrator over the two storage tiers. It runs
// the ANN index for candidates, resolves their vectors through the hot
// cache (falling back to the cold store), reranks them exactly and
// returns the top k.
//
// A MemVec instance is safe for concurrent use; queries are stateless
// and the hot cache is the only shared mutable state on the query path.
type MemVec struct {
	dimension int
	ann       index.ANNIndex
	hot       *cache.HotCache
	store     vectorstore.VectorStore
	res       *resolver.CacheResolver
	distFunc  distance.Func
	opts      options
}

// New creates a MemVec over an ANN index, a hot cache and a cold
// vector store. The three collaborators are caller-constructed and
// caller-owned; the caller closes them when done.
func New(dimension int, ann index.ANNIndex, hot *cache.HotCache, store vectorstore.VectorStore, optFns ...Option) (*MemVec, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("memvec: invalid dimension %d", dimension)
	}

	opts := options{
		metric:           distance.MetricSquaredL2,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		batchConcurrency: defaultBatchConcurrency,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	distFunc, err := distance.Provider(opts.metric)
	if err != nil {
		return nil, err
	}

	if opts.resolverOptions.Logger == nil {
		opts.resolverOptions.Logger = opts.logger.Logger
	}

	return &MemVec{
		dimension: dimension,
		ann:       ann,
		hot:       hot,
		store:     store,
		res:       resolver.New(hot, store, opts.resolverOptions),
		distFunc:  distFunc,
		opts:      opts,
	}, nil
}

// Query returns the top k results for the query vector.
//
// candidateCount is the number of approximate candidates requested from
// the ANN index and must be at least k. threshold is the approximate
// score a result must meet for the quality short-circuit: when the top
// k candidates are all cached and the best candidate meets it, the
// cold store is skipped entirely.
//
// The returned Quality distinguishes a complete answer from one that is
// short because of stale references (Partial) or an unavailable cold
// store (Degraded). Fewer than k results with QualityComplete simply
// means the collection is small.
func (m *MemVec) Query(ctx context.Context, query []float32, k, candidateCount int, threshold float32) ([]model.SearchResult, model.Quality, error) {
	start := time.Now()

	results, quality, err := m.query(ctx, query, k, candidateCount, threshold)

	m.opts.metricsCollector.RecordQuery(k, quality, time.Since(start), err)
	m.opts.logger.LogQuery(ctx, k, candidateCount, len(results), quality, err)

	return results, quality, err
}

func (m *MemVec) query(ctx context.Context, query []float32, k, candidateCount int, threshold float32) ([]model.SearchResult, model.Quality, error) {
	if k <= 0 {
		return nil, model.QualityComplete, ErrInvalidK
	}
	if candidateCount < k {
		return nil, model.QualityComplete, fmt.Errorf("%w: k=%d candidateCount=%d", ErrInvalidCandidateCount, k, candidateCount)
	}
	if len(query) != m.dimension {
		return nil, model.QualityComplete, &ErrDimensionMismatch{Expected: m.dimension, Actual: len(query)}
	}

	candidates, err := m.ann.Search(ctx, query, candidateCount)
	if err != nil {
		return nil, model.QualityComplete, fmt.Errorf("candidate search: %w", err)
	}

	if len(candidates) == 0 {
		return []model.SearchResult{}, model.QualityComplete, nil
	}

	if results, ok := m.tryShortCircuit(ctx, query, candidates, k, threshold); ok {
		return results, model.QualityComplete, nil
	}

	ids := make([]model.VectorID, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}

	resolveStart := time.Now()
	records, stats, err := m.res.Resolve(ctx, ids)
	if err != nil {
		return nil, model.QualityComplete, err
	}
	m.opts.metricsCollector.RecordResolve(stats, time.Since(resolveStart))
	m.opts.logger.LogResolve(ctx, stats)

	results := m.rerank(query, records)
	if len(results) > k {
		results = results[:k]
	}

	quality := model.QualityComplete
	switch {
	case stats.Degraded:
		quality = model.QualityDegraded
	case len(results) < k && stats.Stale > 0:
		quality = model.QualityPartial
	}

	return results, quality, nil
}

// tryShortCircuit answers the query from the cache alone when the top
// k approximate candidates are all resident and the best approximate
// score meets the threshold.
func (m *MemVec) tryShortCircuit(ctx context.Context, query []float32, candidates []model.Candidate, k int, threshold float32) ([]model.SearchResult, bool) {
	if !m.opts.metric.Meets(candidates[0].Score, threshold) {
		return nil, false
	}

	top := candidates
	if len(top) > k {
		top = top[:k]
	}

	ids := make([]model.VectorID, len(top))
	for i, c := range top {
		ids[i] = c.ID
	}

	cached := m.hot.MultiGet(ids)
	if len(cached) != len(top) {
		return nil, false
	}

	records := make([]model.VectorRecord, 0, len(top))
	for _, id := range ids {
		records = append(records, cached[id])
	}

	m.opts.metricsCollector.RecordShortCircuit(k)
	m.opts.logger.LogShortCircuit(ctx, k, candidates[0].Score)

	return m.rerank(query, records), true
}

// rerank recomputes exact scores with the collection metric and sorts
// best-first, correcting for ANN approximation error.
func (m *MemVec) rerank(query []float32, records []model.VectorRecord) []model.SearchResult {
	results := make([]model.SearchResult, 0, len(records))
	for _, rec := range records {
		results = append(results, model.SearchResult{
			ID:       rec.ID,
			Score:    m.distFunc(query, rec.Vector),
			Vector:   rec.Vector,
			Metadata: rec.Metadata,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return m.opts.metric.Better(results[i].Score, results[j].Score)
	})

	return results
}

// BatchQuery runs multiple queries concurrently and returns their
// results and qualities in input order. The first hard error aborts
// the batch; degraded or partial answers do not.
func (m *MemVec) BatchQuery(ctx context.Context, queries [][]float32, k, candidateCount int, threshold float32) ([][]model.SearchResult, []model.Quality, error) {
	results := make([][]model.SearchResult, len(queries))
	qualities := make([]model.Quality, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.batchConcurrency)

	for i, q := range queries {
		g.Go(func() error {
			res, quality, err := m.Query(gctx, q, k, candidateCount, threshold)
			if err != nil {
				return fmt.Errorf("query %d: %w", i, err)
			}

			results[i] = res
			qualities[i] = quality
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return results, qualities, nil
}

// Invalidate removes an id from the hot cache. It is idempotent and
// safe to call before the cold-store deletion has completed; the id
// simply misses until (and unless) it is resolved again.
func (m *MemVec) Invalidate(ctx context.Context, id model.VectorID) {
	m.hot.Invalidate(id)
	m.opts.metricsCollector.RecordInvalidate()
	m.opts.logger.LogInvalidate(ctx, id)
}

// Cache exposes the hot cache for lifecycle management and stats.
func (m *MemVec) Cache() *cache.HotCache { return m.hot }
