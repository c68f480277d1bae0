// Package index defines the candidate generation boundary for queries.
//
// An ANNIndex only has to produce approximate candidates; the query
// layer reranks them against exact vectors resolved from the cache or
// the cold store. Implementations may return stale ids for deleted
// vectors, the resolver drops those.
package index

import (
	"context"

	"github.com/hupe1980/memvec/model"
)

// ANNIndex generates approximate nearest neighbor candidates for a
// query vector.
type ANNIndex interface {
	// Search returns up to n candidates ordered best-first by the
	// index's own metric. An empty index returns an empty slice, not
	// an error.
	Search(ctx context.Context, query []float32, n int) ([]model.Candidate, error)
}
