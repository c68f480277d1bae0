// Package vectorstore implements the cold tier: a durable key→vector
// store organized in fixed-size chunks for batched reads.
//
// The primary implementation, ChunkStore, persists chunk objects in a
// blobstore.BlobStore (S3, MinIO, local disk or memory) and addresses
// them through the pointer-encoded VectorID layout. MapStore is an
// in-memory implementation for tests.
package vectorstore

import (
	"context"

	"github.com/hupe1980/memvec/model"
)

// VectorStore is the cold-store boundary consumed by the resolver.
//
// BatchGet is the only operation on the query hot path; BatchPut and
// Delete serve ingestion and deletion workflows.
type VectorStore interface {
	// BatchGet resolves ids to records. IDs that do not exist (deleted
	// or never written) are simply missing from the result, not an
	// error. Implementations must issue their backend reads as one
	// batched round trip per call.
	BatchGet(ctx context.Context, ids []model.VectorID) (map[model.VectorID]model.VectorRecord, error)

	// BatchPut persists records at the placement encoded in their IDs.
	BatchPut(ctx context.Context, records []model.VectorRecord) error

	// Delete removes a vector. Deleting a missing or already-deleted
	// id is a no-op.
	Delete(ctx context.Context, id model.VectorID) error
}
