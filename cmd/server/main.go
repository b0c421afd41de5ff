package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/mnohosten/pagecache/pkg/server"
)

func main() {
	host := flag.String("host", "localhost", "Server host address")
	port := flag.Int("port", 8080, "Server port")
	dataFile := flag.String("data-file", "", "Path to the backing store file (empty uses an in-memory store)")
	poolFrames := flag.Int("pool-frames", 1000, "Buffer pool capacity in frames (1 frame = 4KB, default 1000 = ~4MB)")
	lruK := flag.Int("lru-k", 2, "LRU-K history depth")
	sharded := flag.Bool("sharded", false, "Use a sharded buffer pool")
	shardCount := flag.Uint("shard-count", 8, "Shard count when -sharded is set")
	corsOrigin := flag.String("cors-origin", "*", "CORS allowed origin")
	enableTLS := flag.Bool("tls", false, "Enable TLS/SSL")
	tlsCert := flag.String("tls-cert", "", "Path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "Path to TLS private key file")
	enableGraphQL := flag.Bool("graphql", false, "Enable GraphQL API endpoint (/graphql) and GraphiQL playground (/graphiql)")
	adminToken := flag.String("admin-token", "", "Bearer token required to reach admin endpoints (empty disables auth)")
	encryptionKeyHex := flag.String("encryption-key", "", "Hex-encoded 32-byte key enabling AES-256-GCM at-rest encryption")
	flag.Parse()

	config := server.DefaultConfig()
	config.Host = *host
	config.Port = *port
	config.DataFile = *dataFile
	config.PoolFrames = *poolFrames
	config.LRUK = *lruK
	config.Sharded = *sharded
	config.ShardCount = uint32(*shardCount)
	config.AllowedOrigins = []string{*corsOrigin}
	config.EnableTLS = *enableTLS
	config.TLSCertFile = *tlsCert
	config.TLSKeyFile = *tlsKey
	config.EnableGraphQL = *enableGraphQL
	config.AdminToken = *adminToken

	if *encryptionKeyHex != "" {
		key, err := hex.DecodeString(*encryptionKeyHex)
		if err != nil {
			fmt.Fprintf(os.Stderr, "❌ invalid -encryption-key: %v\n", err)
			os.Exit(1)
		}
		config.EncryptionKey = key
	}

	srv, err := server.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Failed to create server: %v\n", err)
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Server error: %v\n", err)
		os.Exit(1)
	}
}
