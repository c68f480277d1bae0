package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/memvec/blobstore"
	"github.com/hupe1980/memvec/pointer"
)

const (
	manifestKeyFormat = "manifests/%06d"
	currentKey        = "CURRENT"
	tombstoneKey      = "tombstones"
	chunkKeyPrefix    = "chunks/"
)

// Manifest is the immutable snapshot of a store's chunk inventory.
// Each commit writes a new numbered manifest object and then flips the
// CURRENT pointer to it.
type Manifest struct {
	Version     uint64    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	Dimension   int       `json:"dimension"`
	Compression string    `json:"compression"`

	// Chunks maps chunk id (pointer.ChunkID string form) to the
	// number of live slots written in that chunk.
	Chunks map[string]int `json:"chunks"`

	// VectorCount is the total number of vectors written across all
	// chunks, before tombstones are subtracted.
	VectorCount uint64 `json:"vector_count"`
}

func newManifest(dimension int, compression Compression) *Manifest {
	return &Manifest{
		Version:     0,
		CreatedAt:   time.Now().UTC(),
		Dimension:   dimension,
		Compression: compression.String(),
		Chunks:      make(map[string]int),
	}
}

func (m *Manifest) key() string {
	return fmt.Sprintf(manifestKeyFormat, m.Version)
}

func (m *Manifest) hasChunk(id pointer.ChunkID) bool {
	_, ok := m.Chunks[id.String()]
	return ok
}

func chunkKey(id pointer.ChunkID) string {
	return chunkKeyPrefix + id.String()
}

// loadCurrentManifest resolves the CURRENT pointer and loads the
// manifest it names. Returns (nil, nil) when the store is empty.
func loadCurrentManifest(ctx context.Context, store blobstore.BlobStore) (*Manifest, error) {
	ptr, err := store.Get(ctx, currentKey)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load CURRENT: %w", err)
	}

	data, err := store.Get(ctx, string(ptr))
	if err != nil {
		return nil, fmt.Errorf("load manifest %q: %w", string(ptr), err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest %q: %w", string(ptr), err)
	}

	return &m, nil
}

// commitManifest writes the manifest object and flips CURRENT to it.
// When the blobstore supports conditional writes on CURRENT (the
// DynamoDB commit store does), concurrent committers are rejected.
func commitManifest(ctx context.Context, store blobstore.BlobStore, m *Manifest) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	key := m.key()
	if err := store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write manifest %q: %w", key, err)
	}

	if err := store.Put(ctx, currentKey, []byte(key)); err != nil {
		return fmt.Errorf("commit CURRENT: %w", err)
	}

	return nil
}
