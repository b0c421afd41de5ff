package handlers

import (
	"net/http"
	"time"
)

// Health returns a health check handler.
func (h *Handlers) Health(startTime time.Time) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := time.Since(startTime)
		result := map[string]interface{}{
			"status": "healthy",
			"uptime": uptime.String(),
			"time":   time.Now().Format(time.RFC3339),
		}
		writeSuccess(w, result)
	}
}

// GetPoolStats returns the buffer pool's cumulative counters.
func (h *Handlers) GetPoolStats(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, h.pool.Stats())
}
