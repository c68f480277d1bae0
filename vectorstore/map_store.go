package vectorstore

import (
	"context"
	"sync"

	"github.com/hupe1980/memvec/model"
)

// MapStore is an in-memory VectorStore backed by a plain map. It is
// intended for tests and small embedded setups where durability does
// not matter.
type MapStore struct {
	mu      sync.RWMutex
	records map[model.VectorID]model.VectorRecord
}

var _ VectorStore = (*MapStore)(nil)

// NewMapStore creates an empty MapStore.
func NewMapStore() *MapStore {
	return &MapStore{
		records: make(map[model.VectorID]model.VectorRecord),
	}
}

// BatchGet resolves ids against the map. Missing ids are absent from
// the result.
func (s *MapStore) BatchGet(_ context.Context, ids []model.VectorID) (map[model.VectorID]model.VectorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[model.VectorID]model.VectorRecord, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			result[id] = rec
		}
	}

	return result, nil
}

// BatchPut stores the records, overwriting existing ids.
func (s *MapStore) BatchPut(_ context.Context, records []model.VectorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range records {
		s.records[rec.ID] = rec
	}

	return nil
}

// Delete removes an id. Deleting a missing id is a no-op.
func (s *MapStore) Delete(_ context.Context, id model.VectorID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)

	return nil
}

// Len returns the number of stored records.
func (s *MapStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
