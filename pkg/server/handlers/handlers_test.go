package handlers

import (
	"testing"

	"github.com/mnohosten/pagecache/pkg/storage"
)

// setupTestHandlers creates an in-memory buffer pool and handlers for testing.
func setupTestHandlers(t *testing.T) (*Handlers, func()) {
	store := storage.NewInMemoryBackingStore()
	pool := storage.NewBufferPool(storage.DefaultPoolFrames, storage.DefaultLRUK, store)

	h := New(pool)
	cleanup := func() {
		pool.Shutdown()
	}

	return h, cleanup
}
