package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/memvec/blobstore"
	"github.com/hupe1980/memvec/codec"
	"github.com/hupe1980/memvec/model"
	"github.com/hupe1980/memvec/pointer"
	"github.com/hupe1980/memvec/resource"
)

// ErrDimensionMismatch is returned when records do not match the
// dimension the store was opened with.
var ErrDimensionMismatch = errors.New("vectorstore: vector dimension mismatch")

// ChunkStoreOption configures a ChunkStore.
type ChunkStoreOption func(*ChunkStore)

// WithCompression sets the block compression for newly written chunks.
func WithCompression(c Compression) ChunkStoreOption {
	return func(cs *ChunkStore) { cs.compression = c }
}

// WithCodec sets the metadata codec. Defaults to JSON.
func WithCodec(c codec.Codec) ChunkStoreOption {
	return func(cs *ChunkStore) { cs.codec = c }
}

// WithResourceController bounds concurrent chunk fetches and fetch
// bandwidth. Defaults to an unbounded controller.
func WithResourceController(rc *resource.Controller) ChunkStoreOption {
	return func(cs *ChunkStore) { cs.ctrl = rc }
}

// ChunkStore is a VectorStore that persists vectors in immutable chunk
// objects inside a BlobStore, addressed via the bit-packed VectorID
// layout. Deletions are tombstones in a roaring bitmap; a manifest
// object tracks the live chunk inventory and is committed through the
// CURRENT pointer.
type ChunkStore struct {
	store blobstore.BlobStore
	codec codec.Codec
	ctrl  *resource.Controller

	compression Compression
	dimension   int

	mu         sync.Mutex
	manifest   *Manifest
	tombstones *roaring64.Bitmap
}

var _ VectorStore = (*ChunkStore)(nil)

// OpenChunkStore opens (or initializes) a chunk store over the given
// blobstore. An empty backend yields an empty store; the first commit
// creates manifest version 0.
func OpenChunkStore(ctx context.Context, store blobstore.BlobStore, dimension int, optFns ...ChunkStoreOption) (*ChunkStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("vectorstore: invalid dimension %d", dimension)
	}

	cs := &ChunkStore{
		store:       store,
		codec:       codec.Default,
		compression: CompressionLZ4,
		dimension:   dimension,
		tombstones:  roaring64.New(),
	}

	for _, fn := range optFns {
		fn(cs)
	}

	m, err := loadCurrentManifest(ctx, store)
	if err != nil {
		return nil, err
	}

	if m != nil {
		if m.Dimension != dimension {
			return nil, fmt.Errorf("%w: store has %d, opened with %d", ErrDimensionMismatch, m.Dimension, dimension)
		}
		cs.manifest = m

		if err := cs.loadTombstones(ctx); err != nil {
			return nil, err
		}
	} else {
		cs.manifest = newManifest(dimension, cs.compression)
	}

	return cs, nil
}

func (cs *ChunkStore) loadTombstones(ctx context.Context) error {
	data, err := cs.store.Get(ctx, tombstoneKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load tombstones: %w", err)
	}

	if err := cs.tombstones.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("decode tombstones: %w", err)
	}

	return nil
}

func (cs *ChunkStore) persistTombstonesLocked(ctx context.Context) error {
	data, err := cs.tombstones.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode tombstones: %w", err)
	}

	if err := cs.store.Put(ctx, tombstoneKey, data); err != nil {
		return fmt.Errorf("write tombstones: %w", err)
	}

	return nil
}

// Dimension returns the vector dimension of the store.
func (cs *ChunkStore) Dimension() int { return cs.dimension }

// Len returns the number of live vectors.
func (cs *ChunkStore) Len() uint64 {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	return cs.manifest.VectorCount - cs.tombstones.GetCardinality()
}

// BatchGet fetches the requested ids with one backend read per distinct
// chunk. Fetches run concurrently, bounded by the resource controller.
// Tombstoned ids and ids pointing at unknown chunks are silently
// missing from the result.
func (cs *ChunkStore) BatchGet(ctx context.Context, ids []model.VectorID) (map[model.VectorID]model.VectorRecord, error) {
	if len(ids) == 0 {
		return map[model.VectorID]model.VectorRecord{}, nil
	}

	cs.mu.Lock()
	live := make([]model.VectorID, 0, len(ids))
	for _, id := range ids {
		if !cs.tombstones.Contains(uint64(id)) {
			live = append(live, id)
		}
	}
	groups := pointer.GroupByChunk(live)
	for cid := range groups {
		if !cs.manifest.hasChunk(cid) {
			delete(groups, cid)
		}
	}
	cs.mu.Unlock()

	result := make(map[model.VectorID]model.VectorRecord, len(live))
	if len(groups) == 0 {
		return result, nil
	}

	var resultMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)

	for cid, want := range groups {
		g.Go(func() error {
			records, err := cs.fetchChunk(gctx, cid)
			if err != nil {
				return err
			}

			byID := make(map[model.VectorID]model.VectorRecord, len(records))
			for _, rec := range records {
				byID[rec.ID] = rec
			}

			resultMu.Lock()
			for _, id := range want {
				if rec, ok := byID[id]; ok {
					result[id] = rec
				}
			}
			resultMu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

func (cs *ChunkStore) fetchChunk(ctx context.Context, cid pointer.ChunkID) ([]model.VectorRecord, error) {
	if err := cs.ctrl.AcquireFetch(ctx); err != nil {
		return nil, err
	}
	defer cs.ctrl.ReleaseFetch()

	data, err := cs.store.Get(ctx, chunkKey(cid))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			// Chunk named by the manifest but gone from the backend.
			// Treat its vectors as missing rather than failing the
			// whole batch.
			return nil, nil
		}
		return nil, fmt.Errorf("fetch chunk %s: %w", cid, err)
	}

	if err := cs.ctrl.WaitIO(ctx, len(data)); err != nil {
		return nil, err
	}

	records, dim, err := DecodeChunk(data, cs.codec)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", cid, err)
	}
	if dim != cs.dimension {
		return nil, fmt.Errorf("chunk %s: %w: chunk has %d, store has %d", cid, ErrDimensionMismatch, dim, cs.dimension)
	}

	return records, nil
}

// BatchPut writes records at the placement encoded in their IDs,
// rewriting each touched chunk as a whole and committing a new
// manifest version. Re-putting a tombstoned id revives it.
func (cs *ChunkStore) BatchPut(ctx context.Context, records []model.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}

	for _, rec := range records {
		if len(rec.Vector) != cs.dimension {
			return fmt.Errorf("%w: %s has %d, store has %d", ErrDimensionMismatch, rec.ID, len(rec.Vector), cs.dimension)
		}
	}

	byChunk := make(map[pointer.ChunkID][]model.VectorRecord)
	ids := make([]model.VectorID, 0, len(records))
	for _, rec := range records {
		cid := pointer.Chunk(rec.ID)
		byChunk[cid] = append(byChunk[cid], rec)
		ids = append(ids, rec.ID)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	added := uint64(0)
	for cid, recs := range byChunk {
		merged := recs
		if cs.manifest.hasChunk(cid) {
			existing, err := cs.fetchChunk(ctx, cid)
			if err != nil {
				return err
			}
			merged = mergeChunkRecords(existing, recs)
		}

		data, err := EncodeChunk(merged, cs.dimension, cs.compression, cs.codec)
		if err != nil {
			return fmt.Errorf("encode chunk %s: %w", cid, err)
		}

		if err := cs.store.Put(ctx, chunkKey(cid), data); err != nil {
			return fmt.Errorf("write chunk %s: %w", cid, err)
		}

		prev := cs.manifest.Chunks[cid.String()]
		cs.manifest.Chunks[cid.String()] = len(merged)
		added += uint64(len(merged) - prev)
	}

	cs.manifest.VectorCount += added

	revived := false
	for _, id := range ids {
		if cs.tombstones.Contains(uint64(id)) {
			cs.tombstones.Remove(uint64(id))
			revived = true
		}
	}
	if revived {
		if err := cs.persistTombstonesLocked(ctx); err != nil {
			return err
		}
	}

	cs.manifest.Version++
	if err := commitManifest(ctx, cs.store, cs.manifest); err != nil {
		return err
	}

	return nil
}

// mergeChunkRecords overlays updates on existing records by id,
// preserving offset order within the chunk.
func mergeChunkRecords(existing, updates []model.VectorRecord) []model.VectorRecord {
	byOffset := make(map[uint64]model.VectorRecord, len(existing)+len(updates))
	for _, rec := range existing {
		byOffset[pointer.Offset(rec.ID)] = rec
	}
	for _, rec := range updates {
		byOffset[pointer.Offset(rec.ID)] = rec
	}

	merged := make([]model.VectorRecord, 0, len(byOffset))
	for off := uint64(0); len(merged) < len(byOffset); off++ {
		if rec, ok := byOffset[off]; ok {
			merged = append(merged, rec)
		}
	}

	return merged
}

// Delete tombstones a vector. The chunk object is left in place; the
// id simply stops resolving. Deleting an unknown id is a no-op that
// still records the tombstone.
func (cs *ChunkStore) Delete(ctx context.Context, id model.VectorID) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.tombstones.Contains(uint64(id)) {
		return nil
	}

	cs.tombstones.Add(uint64(id))

	return cs.persistTombstonesLocked(ctx)
}
