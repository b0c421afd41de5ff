package encryption

import (
	"crypto/aes"
	"fmt"

	"github.com/mnohosten/pagecache/pkg/storage"
)

// slotOverhead returns the number of extra bytes each algorithm's
// ciphertext carries beyond the plaintext page (nonce/IV plus, for GCM, an
// authentication tag), which is constant per algorithm and therefore lets
// every encrypted page occupy a fixed-size slot in the underlying store.
func slotOverhead(algo Algorithm) int {
	switch algo {
	case AlgorithmAES256GCM:
		const gcmNonceSize, gcmTagSize = 12, 16
		return gcmNonceSize + gcmTagSize
	case AlgorithmAES256CTR:
		return aes.BlockSize
	default:
		return 0
	}
}

// BackingStore wraps a storage.BackingStore and transparently
// encrypts/decrypts whole pages with the configured algorithm. It operates
// strictly below the page abstraction: the buffer pool above it still sees
// plain storage.PageSize bytes after decryption, so wrapping a store this
// way changes nothing about cache or eviction semantics.
type BackingStore struct {
	inner     storage.BackingStore
	encryptor *Encryptor
	slotSize  int64
}

// NewBackingStore wraps inner, encrypting every storage.PageSize-byte page
// with config before it reaches inner, and decrypting on the way back.
func NewBackingStore(inner storage.BackingStore, config *Config) (*BackingStore, error) {
	enc, err := NewEncryptor(config)
	if err != nil {
		return nil, fmt.Errorf("encryption: building encryptor: %w", err)
	}
	return &BackingStore{
		inner:     inner,
		encryptor: enc,
		slotSize:  int64(storage.PageSize) + int64(slotOverhead(config.Algorithm)),
	}, nil
}

// ReadAt decrypts the page at the given page-aligned offset. p must be
// exactly storage.PageSize bytes and off must be a multiple of
// storage.PageSize, matching how the disk scheduler always calls it.
func (s *BackingStore) ReadAt(p []byte, off int64) (int, error) {
	if err := s.checkAligned(p, off); err != nil {
		return 0, err
	}

	slot := make([]byte, s.slotSize)
	n, err := s.inner.ReadAt(slot, s.slotOffset(off))
	if n < len(slot) {
		// Never-written slot: treat as an empty page, same EOF contract
		// the unencrypted disk scheduler path exposes.
		for i := range p {
			p[i] = 0
		}
		return len(p), err
	}

	plaintext, decErr := s.encryptor.Decrypt(slot)
	if decErr != nil {
		return 0, fmt.Errorf("encryption: decrypting page at offset %d: %w", off, decErr)
	}
	if len(plaintext) != len(p) {
		return 0, fmt.Errorf("encryption: decrypted page size %d, want %d", len(plaintext), len(p))
	}
	copy(p, plaintext)
	return len(p), nil
}

// WriteAt encrypts p and writes it into the fixed-size slot for the page
// at off.
func (s *BackingStore) WriteAt(p []byte, off int64) (int, error) {
	if err := s.checkAligned(p, off); err != nil {
		return 0, err
	}

	ciphertext, err := s.encryptor.Encrypt(p)
	if err != nil {
		return 0, fmt.Errorf("encryption: encrypting page at offset %d: %w", off, err)
	}
	if int64(len(ciphertext)) != s.slotSize {
		return 0, fmt.Errorf("encryption: ciphertext size %d, want fixed slot size %d", len(ciphertext), s.slotSize)
	}

	if _, err := s.inner.WriteAt(ciphertext, s.slotOffset(off)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *BackingStore) slotOffset(pageOffset int64) int64 {
	pageID := pageOffset / storage.PageSize
	return pageID * s.slotSize
}

func (s *BackingStore) checkAligned(p []byte, off int64) error {
	if len(p) != storage.PageSize {
		return fmt.Errorf("encryption: buffer length %d, want %d", len(p), storage.PageSize)
	}
	if off%storage.PageSize != 0 {
		return fmt.Errorf("encryption: offset %d is not page-aligned", off)
	}
	return nil
}
