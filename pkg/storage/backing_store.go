package storage

import (
	"io"
	"sync"
)

// BackingStore is the byte-addressed handle the disk scheduler's worker
// drives. ReadAt/WriteAt (rather than Read+Seek) let every request carry
// its own offset, so the worker never races with itself or a concurrent
// caller over a shared cursor.
type BackingStore interface {
	io.ReaderAt
	io.WriterAt
}

// FileBackingStore adapts an already-open file handle (typically *os.File,
// which already implements ReadAt/WriteAt) to BackingStore. It exists as a
// named type mainly for symmetry with InMemoryBackingStore and as a place
// to hang future file-specific behavior (e.g. Sync).
type FileBackingStore struct {
	f interface {
		io.ReaderAt
		io.WriterAt
	}
	syncer interface{ Sync() error }
}

// NewFileBackingStore wraps an already-open file handle. If f also
// implements Sync() error (as *os.File does), Sync forwards to it.
func NewFileBackingStore(f interface {
	io.ReaderAt
	io.WriterAt
}) *FileBackingStore {
	fbs := &FileBackingStore{f: f}
	if s, ok := f.(interface{ Sync() error }); ok {
		fbs.syncer = s
	}
	return fbs
}

func (fbs *FileBackingStore) ReadAt(p []byte, off int64) (int, error) {
	return fbs.f.ReadAt(p, off)
}

func (fbs *FileBackingStore) WriteAt(p []byte, off int64) (int, error) {
	return fbs.f.WriteAt(p, off)
}

// Sync flushes the underlying file to stable storage, if it supports it.
func (fbs *FileBackingStore) Sync() error {
	if fbs.syncer == nil {
		return nil
	}
	return fbs.syncer.Sync()
}

// InMemoryBackingStore is a growable in-process byte buffer satisfying
// BackingStore, useful for tests and for callers that want a pure
// in-memory database.
type InMemoryBackingStore struct {
	mu   sync.Mutex
	data []byte
}

// NewInMemoryBackingStore creates an empty in-memory backing store.
func NewInMemoryBackingStore() *InMemoryBackingStore {
	return &InMemoryBackingStore{}
}

func (m *InMemoryBackingStore) ReadAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if off < 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *InMemoryBackingStore) WriteAt(p []byte, off int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	end := off + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[off:end], p)
	return len(p), nil
}

// Len returns the current size of the backing store in bytes.
func (m *InMemoryBackingStore) Len() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.data))
}
