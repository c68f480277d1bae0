// Package pointer implements the bit-packed VectorID layout used by the
// chunked cold store for storage-layer addressing.
//
// A VectorID packs three fields into the low 63 bits of a uint64:
//
//	[document: 27 bits][chunk: 20 bits][offset: 16 bits]
//
// The offset addresses a vector within a chunk, the chunk number counts
// chunks within a document, and the document number namespaces independent
// ingestion units. The layout is a storage concern of the cold store;
// the cache tier and the ANN index treat VectorIDs as opaque.
package pointer

import (
	"fmt"
	"math/rand"

	"github.com/hupe1980/memvec/model"
)

// Bit widths of the packed fields. The total of 63 bits keeps encoded
// IDs inside the non-negative range of a signed 64-bit integer, which
// matters for ANN backends that store IDs as int64.
const (
	OffsetBits   = 16
	ChunkBits    = 20
	DocumentBits = 27
)

// Derived limits and shifts.
const (
	MaxOffset   = 1<<OffsetBits - 1
	MaxChunk    = 1<<ChunkBits - 1
	MaxDocument = 1<<DocumentBits - 1

	chunkShift    = OffsetBits
	documentShift = OffsetBits + ChunkBits
)

// ChunkID identifies one persisted chunk: the document and chunk fields
// of a VectorID with the offset stripped.
type ChunkID uint64

// String returns the fixed-width hex form used in object store keys.
func (c ChunkID) String() string {
	return fmt.Sprintf("%012x", uint64(c))
}

// Encode packs document, chunk and offset into a VectorID.
// Field values outside their bit widths produce an error rather than
// silently corrupting neighboring fields.
func Encode(document, chunk, offset uint64) (model.VectorID, error) {
	if document > MaxDocument {
		return 0, fmt.Errorf("pointer: document %d exceeds maximum %d", document, MaxDocument)
	}
	if chunk > MaxChunk {
		return 0, fmt.Errorf("pointer: chunk %d exceeds maximum %d", chunk, MaxChunk)
	}
	if offset > MaxOffset {
		return 0, fmt.Errorf("pointer: offset %d exceeds maximum %d", offset, MaxOffset)
	}
	return model.VectorID(document<<documentShift | chunk<<chunkShift | offset), nil
}

// Decode unpacks a VectorID into its document, chunk and offset fields.
func Decode(id model.VectorID) (document, chunk, offset uint64) {
	v := uint64(id)
	offset = v & MaxOffset
	chunk = (v >> chunkShift) & MaxChunk
	document = (v >> documentShift) & MaxDocument
	return document, chunk, offset
}

// Chunk returns the ChunkID a VectorID belongs to.
func Chunk(id model.VectorID) ChunkID {
	return ChunkID(uint64(id) >> chunkShift)
}

// MakeChunkID combines a document and chunk number into a ChunkID.
func MakeChunkID(document, chunk uint64) ChunkID {
	return ChunkID(document<<ChunkBits | chunk)
}

// Offset returns the in-chunk offset of a VectorID.
func Offset(id model.VectorID) uint64 {
	return uint64(id) & MaxOffset
}

// GroupByChunk partitions ids by their chunk while preserving the input
// order within each group. The cold store uses this to turn a candidate
// miss set into per-chunk batched reads.
func GroupByChunk(ids []model.VectorID) map[ChunkID][]model.VectorID {
	groups := make(map[ChunkID][]model.VectorID)
	for _, id := range ids {
		cid := Chunk(id)
		groups[cid] = append(groups[cid], id)
	}
	return groups
}

// RandomDocumentID returns a random document number within the valid
// range. Ingestion uses it to namespace a new ingestion unit.
func RandomDocumentID(rng *rand.Rand) uint64 {
	if rng != nil {
		return rng.Uint64() & MaxDocument
	}
	return rand.Uint64() & MaxDocument
}
