package model

import "fmt"

// VectorID is the stable, collection-wide identifier of a vector.
// IDs are assigned at ingestion time and are never reused after deletion
// within a process lifetime. The cold store additionally interprets the
// bit layout via the pointer package for chunk addressing; the cache tier
// treats IDs as fully opaque.
type VectorID uint64

// String returns a string representation of the VectorID.
func (id VectorID) String() string {
	return fmt.Sprintf("vec(%d)", uint64(id))
}

// VectorRecord is a vector with its identifier and optional metadata.
// Records are immutable once written to the cold store: a given VectorID
// always maps to the same vector. Updates are modeled as delete+insert.
type VectorRecord struct {
	ID       VectorID
	Vector   []float32
	Metadata map[string]interface{}
}

// Candidate is a (VectorID, approximate score) pair proposed by the ANN
// index for one query. Candidate lists are transient and scoped to a
// single query.
type Candidate struct {
	ID VectorID
	// Score is the approximate score reported by the ANN index.
	// Its orientation (higher-better vs lower-better) depends on the
	// collection metric.
	Score float32
}

// SearchResult is one reranked query result with its exact score.
type SearchResult struct {
	ID VectorID
	// Score is the exact similarity between the query and the resolved
	// vector, recomputed with the collection metric.
	Score float32
	// Vector is the resolved raw vector.
	Vector []float32
	// Metadata is the record metadata, if any.
	Metadata map[string]interface{}
}

// Quality signals the resolution quality of a query response. It is not
// an error: a Partial or Degraded response is still a valid response.
type Quality uint8

const (
	// QualityComplete means every resolvable candidate was considered.
	QualityComplete Quality = iota
	// QualityPartial means fewer than k results were returned because
	// candidates resolved to deleted or never-existing vectors.
	QualityPartial
	// QualityDegraded means the cold store was unavailable and only the
	// cache-hit subset was considered.
	QualityDegraded
)

func (q Quality) String() string {
	switch q {
	case QualityComplete:
		return "Complete"
	case QualityPartial:
		return "Partial"
	case QualityDegraded:
		return "Degraded"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(q))
	}
}
