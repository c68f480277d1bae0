package vectorstore

import (
	"context"
	"fmt"

	"github.com/hupe1980/memvec/model"
	"github.com/hupe1980/memvec/pointer"
)

// DefaultMaxVectorsPerChunk is the chunk fill limit used when none is
// configured. Chunks this size keep a cold read around one network
// round trip while amortizing per-object overhead.
const DefaultMaxVectorsPerChunk = 100

// ChunkWriterOption configures a ChunkWriter.
type ChunkWriterOption func(*ChunkWriter)

// WithMaxVectorsPerChunk sets the chunk fill limit.
func WithMaxVectorsPerChunk(n int) ChunkWriterOption {
	return func(w *ChunkWriter) { w.maxPerChunk = n }
}

// ChunkWriter assigns placement-encoded VectorIDs for a single
// document and writes vectors to the store in chunk-sized batches.
// IDs are allocated sequentially: offsets fill the current chunk up to
// the fill limit, then the writer advances to the next chunk.
//
// ChunkWriter is not safe for concurrent use.
type ChunkWriter struct {
	store       VectorStore
	document    uint64
	chunk       uint64
	offset      uint64
	maxPerChunk int
	pending     []model.VectorRecord
}

// NewChunkWriter creates a writer for the given document. Use
// pointer.RandomDocumentID to allocate a fresh document.
func NewChunkWriter(store VectorStore, document uint64, optFns ...ChunkWriterOption) (*ChunkWriter, error) {
	if document > pointer.MaxDocument {
		return nil, fmt.Errorf("vectorstore: document id %d out of range", document)
	}

	w := &ChunkWriter{
		store:       store,
		document:    document,
		maxPerChunk: DefaultMaxVectorsPerChunk,
	}

	for _, fn := range optFns {
		fn(w)
	}

	if w.maxPerChunk <= 0 || w.maxPerChunk > pointer.MaxOffset+1 {
		return nil, fmt.Errorf("vectorstore: invalid chunk fill limit %d", w.maxPerChunk)
	}

	return w, nil
}

// Add buffers a vector and returns its assigned id. The record is not
// durable until the chunk fills or Flush is called.
func (w *ChunkWriter) Add(ctx context.Context, vector []float32, metadata map[string]interface{}) (model.VectorID, error) {
	id, err := pointer.Encode(w.document, w.chunk, w.offset)
	if err != nil {
		return 0, err
	}

	w.pending = append(w.pending, model.VectorRecord{
		ID:       id,
		Vector:   vector,
		Metadata: metadata,
	})

	w.offset++
	if int(w.offset) >= w.maxPerChunk {
		if err := w.Flush(ctx); err != nil {
			return 0, err
		}
		w.chunk++
		w.offset = 0
	}

	return id, nil
}

// Flush writes all buffered records.
func (w *ChunkWriter) Flush(ctx context.Context) error {
	if len(w.pending) == 0 {
		return nil
	}

	if err := w.store.BatchPut(ctx, w.pending); err != nil {
		return err
	}

	w.pending = w.pending[:0]

	return nil
}
