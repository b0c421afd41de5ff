package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func setupTestServer(t *testing.T) (*Server, func()) {
	config := &Config{
		Host:           "localhost",
		Port:           0,
		DataFile:       "",
		PoolFrames:     16,
		LRUK:           2,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: 1024 * 1024,
		EnableCORS:     true,
		AllowedOrigins: []string{"*"},
		EnableLogging:  false,
	}

	srv, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cleanup := func() {
		srv.pool.Shutdown()
	}

	return srv, cleanup
}

func makeRequest(t *testing.T, srv *Server, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	var response map[string]interface{}
	if rr.Body.Len() > 0 {
		json.NewDecoder(rr.Body).Decode(&response)
	}

	return rr, response
}

func TestHealthEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	rr, resp := makeRequest(t, srv, http.MethodGet, "/healthz", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if ok, _ := resp["ok"].(bool); !ok {
		t.Fatalf("expected ok=true, got %v", resp["ok"])
	}
	result := resp["result"].(map[string]interface{})
	if result["status"] != "healthy" {
		t.Fatalf("status: got %v, want healthy", result["status"])
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	rr, resp := makeRequest(t, srv, http.MethodGet, "/stats", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	result := resp["result"].(map[string]interface{})
	if result["capacity"] == nil {
		t.Fatal("expected capacity in stats")
	}
}

func TestAdminTokenRequired(t *testing.T) {
	config := DefaultConfig()
	config.PoolFrames = 8
	config.AdminToken = "s3cret"
	config.EnableLogging = false

	srv, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.pool.Shutdown()

	rr, _ := makeRequest(t, srv, http.MethodGet, "/stats", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status without token: got %d, want %d", rr.Code, http.StatusUnauthorized)
	}

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status with token: got %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodOptions, "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin == "" {
		t.Fatal("expected Access-Control-Allow-Origin header")
	}
}

func TestPrometheusMetricsEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain; version=0.0.4; charset=utf-8" {
		t.Fatalf("content-type: got %s", ct)
	}

	body := rr.Body.String()
	for _, want := range []string{"pagecache_", "# TYPE", "# HELP"} {
		if !bytes.Contains([]byte(body), []byte(want)) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestEventsInfoEndpoint(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	rr, _ := makeRequest(t, srv, http.MethodGet, "/events/info", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
}

func TestGraphQLDisabledByDefault(t *testing.T) {
	srv, cleanup := setupTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{"query":"{poolStats{capacity}}"}`))
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestGraphQLEnabled(t *testing.T) {
	config := DefaultConfig()
	config.PoolFrames = 8
	config.EnableGraphQL = true
	config.EnableLogging = false

	srv, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.pool.Shutdown()

	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewBufferString(`{"query":"{poolStats{capacity}}"}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d, body %s", rr.Code, http.StatusOK, rr.Body.String())
	}
}

func TestRequestSizeLimit(t *testing.T) {
	config := DefaultConfig()
	config.PoolFrames = 8
	config.EnableGraphQL = true
	config.EnableLogging = false
	config.MaxRequestSize = 16

	srv, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.pool.Shutdown()

	oversized := bytes.Repeat([]byte("x"), 1024)
	req := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(oversized))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, req)

	if rr.Code == http.StatusOK {
		t.Fatal("expected oversized request to be rejected")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Host != "localhost" {
		t.Fatalf("host: got %s", config.Host)
	}
	if config.Port != 8080 {
		t.Fatalf("port: got %d", config.Port)
	}
	if config.ReadTimeout != 30*time.Second {
		t.Fatalf("read timeout: got %v", config.ReadTimeout)
	}
	if !config.EnableCORS {
		t.Fatal("expected CORS enabled by default")
	}
	if config.Sharded {
		t.Fatal("expected sharded disabled by default")
	}
	if config.EnableGraphQL {
		t.Fatal("expected GraphQL disabled by default")
	}
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, map[string]interface{}{"key": "value"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type: got %s", ct)
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(rr, http.StatusBadRequest, "TestError", "this is a test error")

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", rr.Code)
	}

	var result map[string]interface{}
	json.NewDecoder(rr.Body).Decode(&result)
	if ok, _ := result["ok"].(bool); ok {
		t.Fatal("expected ok=false")
	}
	if result["error"] != "TestError" {
		t.Fatalf("error: got %v", result["error"])
	}
}

func TestShutdownFlushesAndStops(t *testing.T) {
	srv, _ := setupTestServer(t)

	if err := srv.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
}

func TestNewRejectsMissingTLSFiles(t *testing.T) {
	config := DefaultConfig()
	config.EnableTLS = true
	config.TLSCertFile = ""
	config.TLSKeyFile = ""

	if _, err := New(config); err == nil {
		t.Fatal("expected error for TLS enabled without cert/key files")
	}
}

func TestNewShardedPool(t *testing.T) {
	config := DefaultConfig()
	config.Sharded = true
	config.ShardCount = 4
	config.PoolFrames = 32
	config.EnableLogging = false

	srv, err := New(config)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.pool.Shutdown()

	rr, resp := makeRequest(t, srv, http.MethodGet, "/stats", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	result := resp["result"].(map[string]interface{})
	if result["shards"] == nil {
		t.Fatal("expected shards in stats for sharded pool")
	}
}
