package handlers

import (
	"encoding/json"
	"net/http"
)

// Pool is the subset of storage.BufferPool/storage.ShardedBufferPool the
// admin handlers need.
type Pool interface {
	Stats() map[string]interface{}
	Len() int
	IsEmpty() bool
}

// Handlers holds the buffer pool instance and provides HTTP handlers for
// the admin surface.
type Handlers struct {
	pool Pool
}

// New creates a new Handlers instance over pool.
func New(pool Pool) *Handlers {
	return &Handlers{pool: pool}
}

// Error types for consistent error handling.

type BadRequestError struct {
	Message string
}

func (e *BadRequestError) Error() string {
	return e.Message
}

type InternalError struct {
	Message string
}

func (e *InternalError) Error() string {
	return e.Message
}

// writeError writes an error response with appropriate HTTP status code.
func writeError(w http.ResponseWriter, err error) {
	var statusCode int
	var errorType string
	var message string

	switch e := err.(type) {
	case *BadRequestError:
		statusCode = http.StatusBadRequest
		errorType = "BadRequest"
		message = e.Message
	case *InternalError:
		statusCode = http.StatusInternalServerError
		errorType = "InternalError"
		message = e.Message
	default:
		statusCode = http.StatusInternalServerError
		errorType = "InternalError"
		message = err.Error()
	}

	response := map[string]interface{}{
		"ok":      false,
		"error":   errorType,
		"message": message,
		"code":    statusCode,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}

// writeSuccess writes a success response.
func writeSuccess(w http.ResponseWriter, result interface{}) {
	response := map[string]interface{}{
		"ok":     true,
		"result": result,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
