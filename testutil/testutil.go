// Package testutil provides testing utilities for memvec.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random vectors, building record
// sets and computing exact ground-truth rankings.
package testutil

import (
	"math/rand"
	"sort"
	"sync"

	"github.com/hupe1980/memvec/distance"
	"github.com/hupe1980/memvec/model"
)

// RNG encapsulates a seeded random number generator. It is
// thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// FillUniform fills dst with random values in range [0, 1).
// Locks only once per call (preferred over per-value calls in a loop).
func (r *RNG) FillUniform(dst []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range dst {
		dst[i] = r.rand.Float32()
	}
}

// UniformVectors generates random vectors with values in range [0, 1).
// Uses a single backing array for efficiency.
func (r *RNG) UniformVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = r.rand.Float32()
		}
		vectors[i] = vec
	}

	return vectors
}

// GaussianVectors generates random vectors with values from a standard
// normal distribution.
func (r *RNG) GaussianVectors(num, dimensions int) [][]float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]float32, num*dimensions)
	vectors := make([][]float32, num)

	for i := range num {
		vec := data[i*dimensions : (i+1)*dimensions]
		for j := range vec {
			vec[j] = float32(r.rand.NormFloat64())
		}
		vectors[i] = vec
	}

	return vectors
}

// UnitVector generates a single L2-normalized random vector.
func (r *RNG) UnitVector(dimensions int) []float32 {
	r.mu.Lock()
	vec := make([]float32, dimensions)
	for j := range vec {
		vec[j] = float32(r.rand.NormFloat64())
	}
	r.mu.Unlock()

	distance.NormalizeL2InPlace(vec)
	return vec
}

// UnitVectors generates L2-normalized random vectors (on the
// hypersphere). Useful for cosine and dot product testing.
func (r *RNG) UnitVectors(num, dimensions int) [][]float32 {
	vectors := r.GaussianVectors(num, dimensions)
	for _, vec := range vectors {
		distance.NormalizeL2InPlace(vec)
	}
	return vectors
}

// Records wraps vectors into VectorRecords with sequential ids starting
// at startID.
func Records(startID model.VectorID, vectors [][]float32) []model.VectorRecord {
	records := make([]model.VectorRecord, len(vectors))
	for i, vec := range vectors {
		records[i] = model.VectorRecord{
			ID:     startID + model.VectorID(i),
			Vector: vec,
		}
	}
	return records
}

// ExactTopK computes the ground-truth top-k for query over records
// under the given metric, best-first.
func ExactTopK(query []float32, records []model.VectorRecord, k int, metric distance.Metric) []model.Candidate {
	distFunc, err := distance.Provider(metric)
	if err != nil {
		panic(err)
	}

	candidates := make([]model.Candidate, 0, len(records))
	for _, rec := range records {
		candidates = append(candidates, model.Candidate{
			ID:    rec.ID,
			Score: distFunc(query, rec.Vector),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return metric.Better(candidates[i].Score, candidates[j].Score)
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates
}

// ComputeRecall returns the fraction of exact ids present in the
// approximate result.
func ComputeRecall(approx []model.SearchResult, exact []model.Candidate) float64 {
	if len(exact) == 0 {
		return 1.0
	}

	got := make(map[model.VectorID]struct{}, len(approx))
	for _, r := range approx {
		got[r.ID] = struct{}{}
	}

	found := 0
	for _, c := range exact {
		if _, ok := got[c.ID]; ok {
			found++
		}
	}

	return float64(found) / float64(len(exact))
}
