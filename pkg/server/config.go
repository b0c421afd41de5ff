package server

import (
	"time"

	"github.com/mnohosten/pagecache/pkg/storage"
)

// Config holds server configuration settings.
type Config struct {
	Host           string        // Server host address
	Port           int           // Server port
	DataFile       string        // Path to the backing store file; empty uses an in-memory store
	PoolFrames     int           // Buffer pool capacity in frames (1 frame = 4KB)
	LRUK           int           // LRU-K history depth
	Sharded        bool          // Use ShardedBufferPool instead of BufferPool
	ShardCount     uint32        // Shard count when Sharded is true
	ReadTimeout    time.Duration // HTTP read timeout
	WriteTimeout   time.Duration // HTTP write timeout
	IdleTimeout    time.Duration // HTTP idle timeout
	MaxRequestSize int64         // Maximum request body size in bytes
	EnableCORS     bool          // Enable CORS middleware
	AllowedOrigins []string      // CORS allowed origins
	EnableLogging  bool          // Enable request logging

	// TLS/SSL configuration
	EnableTLS   bool   // Enable TLS/SSL
	TLSCertFile string // Path to TLS certificate file
	TLSKeyFile  string // Path to TLS private key file

	// GraphQL configuration
	EnableGraphQL bool // Enable the read-only GraphQL API endpoint

	// AdminToken gates every admin endpoint with a bearer token when non-empty.
	AdminToken string

	// EncryptionKey, when non-empty 32 bytes, wraps the backing store in
	// AES-256-GCM at-rest encryption.
	EncryptionKey []byte
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "localhost",
		Port:           8080,
		DataFile:       "",
		PoolFrames:     storage.DefaultPoolFrames,
		LRUK:           storage.DefaultLRUK,
		Sharded:        false,
		ShardCount:     8,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxRequestSize: 1 * 1024 * 1024,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		EnableLogging:  true,
		EnableTLS:      false,
		EnableGraphQL:  false,
	}
}
