// Package distance provides the exact similarity kernels and metric
// configuration used for reranking resolved vectors.
//
// The metric is a fixed collection-level configuration: the ANN index,
// the cold store and the reranker must all agree on it. Score
// orientation differs per metric (squared L2 is lower-better, dot and
// cosine are higher-better), so ordering and threshold checks go
// through Metric.Better and Metric.Meets instead of raw comparisons.
package distance

import (
	"fmt"
	"math"
	"slices"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float32) float32 {
	var ret float32
	for i := range a {
		ret += a[i] * b[i]
	}
	return ret
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two
// vectors. Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float32) float32 {
	var d float32
	for i := range a {
		d += (a[i] - b[i]) * (a[i] - b[i])
	}
	return d
}

// Cosine calculates the cosine similarity of two vectors.
// Returns 0 for zero-norm inputs.
func Cosine(a, b []float32) float32 {
	dot := Dot(a, b)
	na := Dot(a, a)
	nb := Dot(b, b)
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// NormalizeL2Copy returns a normalized copy of src.
// Returns false if src has zero L2 norm.
func NormalizeL2Copy(src []float32) ([]float32, bool) {
	dst := slices.Clone(src)
	if !NormalizeL2InPlace(dst) {
		return nil, false
	}
	return dst, true
}

// Metric represents the similarity metric used for vector comparison.
type Metric int

const (
	MetricSquaredL2 Metric = iota
	MetricDot
	MetricCosine
)

func (m Metric) String() string {
	switch m {
	case MetricSquaredL2:
		return "SquaredL2"
	case MetricDot:
		return "Dot"
	case MetricCosine:
		return "Cosine"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// HigherIsBetter reports the score orientation of the metric.
func (m Metric) HigherIsBetter() bool {
	return m != MetricSquaredL2
}

// Better reports whether score a is strictly better than score b
// under this metric.
func (m Metric) Better(a, b float32) bool {
	if m.HigherIsBetter() {
		return a > b
	}
	return a < b
}

// Meets reports whether a score satisfies a confidence threshold:
// at least the threshold for higher-better metrics, at most the
// threshold for lower-better metrics.
func (m Metric) Meets(score, threshold float32) bool {
	if m.HigherIsBetter() {
		return score >= threshold
	}
	return score <= threshold
}

// Func is a function type for similarity calculation.
type Func func(a, b []float32) float32

// Provider returns the similarity function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricSquaredL2:
		return SquaredL2, nil
	case MetricDot:
		return Dot, nil
	case MetricCosine:
		return Cosine, nil
	default:
		return nil, fmt.Errorf("unsupported metric: %v", m)
	}
}
