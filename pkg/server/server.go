package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mnohosten/pagecache/pkg/auth"
	"github.com/mnohosten/pagecache/pkg/encryption"
	gql "github.com/mnohosten/pagecache/pkg/graphql"
	"github.com/mnohosten/pagecache/pkg/metrics"
	"github.com/mnohosten/pagecache/pkg/server/handlers"
	"github.com/mnohosten/pagecache/pkg/storage"
)

// pool is the subset of *storage.BufferPool / *storage.ShardedBufferPool the
// admin server depends on directly.
type pool interface {
	handlers.Pool
	FetchPageRead(ctx context.Context, pageID storage.PageID) (storage.PageReadGuard, error)
	FetchPageWrite(ctx context.Context, pageID storage.PageID) (storage.PageWriteGuard, error)
	FlushAll(ctx context.Context) error
	Shutdown()
	SetEventSink(sink storage.EventSink)
}

// Server is the HTTP admin surface for a buffer pool: health checks,
// statistics, Prometheus metrics, a live event stream and an optional
// read-only GraphQL endpoint.
type Server struct {
	config      *Config
	pool        pool
	router      *chi.Mux
	httpSrv     *http.Server
	startTime   time.Time
	collector   *metrics.Collector
	promExp     *metrics.PrometheusExporter
	broadcaster *handlers.EventBroadcaster
	authn       *auth.TokenAuthenticator
}

// New builds the buffer pool described by config and wraps it in an admin
// HTTP server.
func New(config *Config) (*Server, error) {
	if config.EnableTLS {
		if config.TLSCertFile == "" || config.TLSKeyFile == "" {
			return nil, fmt.Errorf("server: TLS enabled but certificate or key file not specified")
		}
		if _, err := os.Stat(config.TLSCertFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("server: TLS certificate file not found: %s", config.TLSCertFile)
		}
		if _, err := os.Stat(config.TLSKeyFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("server: TLS key file not found: %s", config.TLSKeyFile)
		}
	}

	store, err := openBackingStore(config)
	if err != nil {
		return nil, fmt.Errorf("server: opening backing store: %w", err)
	}

	var bufferPool pool
	if config.Sharded {
		bufferPool = storage.NewShardedBufferPool(config.PoolFrames, config.LRUK, config.ShardCount, store)
	} else {
		bufferPool = storage.NewBufferPool(config.PoolFrames, config.LRUK, store)
	}

	collector := metrics.NewCollector()
	promExp := metrics.NewPrometheusExporter(collector)
	broadcaster := handlers.NewEventBroadcaster()
	bufferPool.SetEventSink(broadcaster)

	srv := &Server{
		config:      config,
		pool:        bufferPool,
		router:      chi.NewRouter(),
		startTime:   time.Now(),
		collector:   collector,
		promExp:     promExp,
		broadcaster: broadcaster,
	}

	if config.AdminToken != "" {
		authn, err := auth.NewTokenAuthenticator(config.AdminToken)
		if err != nil {
			return nil, fmt.Errorf("server: creating authenticator: %w", err)
		}
		srv.authn = authn
	}

	srv.setupMiddleware()
	srv.setupRoutes()

	if config.EnableGraphQL {
		srv.setupGraphQLRoutes()
	}

	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	srv.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return srv, nil
}

// openBackingStore resolves config into a storage.BackingStore, wrapping it
// in at-rest encryption when an encryption key is configured.
func openBackingStore(config *Config) (storage.BackingStore, error) {
	var base storage.BackingStore
	if config.DataFile == "" {
		base = storage.NewInMemoryBackingStore()
	} else {
		f, err := os.OpenFile(config.DataFile, os.O_RDWR|os.O_CREATE, 0600)
		if err != nil {
			return nil, fmt.Errorf("opening data file: %w", err)
		}
		base = storage.NewFileBackingStore(f)
	}

	if len(config.EncryptionKey) == 0 {
		return base, nil
	}

	encConfig, err := encryption.NewConfigFromKey(config.EncryptionKey, encryption.AlgorithmAES256GCM)
	if err != nil {
		return nil, fmt.Errorf("building encryption config: %w", err)
	}
	return encryption.NewBackingStore(base, encConfig)
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	if s.config.EnableLogging {
		s.router.Use(middleware.Logger)
	}
	if s.config.EnableCORS {
		s.router.Use(s.corsMiddleware)
	}

	s.router.Use(s.requestSizeLimitMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))
}

func (s *Server) setupRoutes() {
	h := handlers.New(s.pool)

	s.router.Get("/healthz", runHandler(h.Health(s.startTime)))

	adminRoutes := func(r chi.Router) {
		r.Get("/stats", runHandler(h.GetPoolStats))
		r.Get("/metrics", s.handlePrometheusMetrics)
		r.Get("/events", h.HandleEvents(s.broadcaster))
		r.Get("/events/info", runHandler(h.HandleEventsInfo()))
	}

	if s.authn != nil {
		s.router.Group(func(r chi.Router) {
			r.Use(s.authn.Middleware())
			adminRoutes(r)
		})
	} else {
		s.router.Group(adminRoutes)
	}
}

func runHandler(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fn(w, r)
	}
}

func (s *Server) setupGraphQLRoutes() {
	graphqlHandler, err := gql.NewHandler(s.pool)
	if err != nil {
		fmt.Printf("⚠️  Warning: failed to set up GraphQL handler: %v\n", err)
		return
	}

	mount := func(r chi.Router) {
		r.Post("/graphql", graphqlHandler.ServeHTTP)
		r.Get("/graphiql", gql.GraphiQLHandler())
	}
	if s.authn != nil {
		s.router.Group(func(r chi.Router) {
			r.Use(s.authn.Middleware())
			mount(r)
		})
	} else {
		s.router.Group(mount)
	}

	fmt.Println("✅ GraphQL API enabled at /graphql (playground at /graphiql)")
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := "*"
		if len(s.config.AllowedOrigins) > 0 {
			origin = s.config.AllowedOrigins[0]
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestSizeLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxRequestSize)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handlePrometheusMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := s.promExp.WriteMetrics(w, s.pool.Stats()); err != nil {
		http.Error(w, fmt.Sprintf("error writing metrics: %v", err), http.StatusInternalServerError)
	}
}

// Start runs the HTTP server until an error occurs or the process receives
// an interrupt/SIGTERM signal, at which point it shuts down gracefully.
func (s *Server) Start() error {
	protocol := "http"
	if s.config.EnableTLS {
		protocol = "https"
		fmt.Printf("🔒 TLS/SSL enabled\n")
		fmt.Printf("📜 Certificate: %s\n", s.config.TLSCertFile)
	}
	fmt.Printf("🚀 pagecache admin server starting on %s://%s:%d\n", protocol, s.config.Host, s.config.Port)
	fmt.Printf("💾 Buffer pool: %d frames, LRU-%d\n", s.config.PoolFrames, s.config.LRUK)

	errChan := make(chan error, 1)
	go func() {
		var err error
		if s.config.EnableTLS {
			err = s.httpSrv.ListenAndServeTLS(s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			err = s.httpSrv.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		fmt.Printf("\n⚠️  received signal: %v\n", sig)
		return s.Shutdown()
	}
}

// Pool returns the underlying buffer pool.
func (s *Server) Pool() pool {
	return s.pool
}

// Shutdown gracefully stops the HTTP server, flushes dirty pages and stops
// the disk scheduler.
func (s *Server) Shutdown() error {
	fmt.Println("🛑 shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		fmt.Printf("❌ server shutdown error: %v\n", err)
	}

	if err := s.pool.FlushAll(ctx); err != nil {
		fmt.Printf("⚠️  warning: error flushing dirty pages: %v\n", err)
	}
	s.pool.Shutdown()

	fmt.Println("✅ server shutdown complete")
	return nil
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		fmt.Printf("error encoding JSON response: %v\n", err)
	}
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, statusCode int, errorType, message string) {
	WriteJSON(w, statusCode, map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": message,
		"code":    statusCode,
	})
}
