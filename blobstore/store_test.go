package blobstore

import (
	"context"
	"errors"
	"sync"
	"testing"
)

// storeUnderTest exercises the BlobStore contract shared by all
// implementations.
func storeUnderTest(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	// Missing blob
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}

	// Put / Get round trip
	data := []byte("chunk payload")
	if err := store.Put(ctx, "chunks/0000000001", data); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, "chunks/0000000001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}

	// Overwrite
	if err := store.Put(ctx, "chunks/0000000001", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, err = store.Get(ctx, "chunks/0000000001")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v2" {
		t.Errorf("after overwrite got %q", got)
	}

	// List with prefix
	if err := store.Put(ctx, "chunks/0000000002", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := store.Put(ctx, "manifests/1", []byte("m")); err != nil {
		t.Fatal(err)
	}
	names, err := store.List(ctx, "chunks/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 2 {
		t.Errorf("List(chunks/) = %v, want 2 names", names)
	}

	// Delete is idempotent
	if err := store.Delete(ctx, "chunks/0000000002"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "chunks/0000000002"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := store.Get(ctx, "chunks/0000000002"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore(t *testing.T) {
	storeUnderTest(t, NewMemoryStore())
}

func TestLocalStore(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	storeUnderTest(t, store)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if err := store.Put(ctx, "a", []byte("abc")); err != nil {
		t.Fatal(err)
	}
	got, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	got[0] = 'x'

	again, err := store.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != "abc" {
		t.Errorf("stored blob mutated through returned slice: %q", again)
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			name := "chunks/0000000001"
			for range 200 {
				_ = store.Put(ctx, name, []byte{byte(g)})
				_, _ = store.Get(ctx, name)
			}
		}(g)
	}
	wg.Wait()
}
