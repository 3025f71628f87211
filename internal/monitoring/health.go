package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

var startTime = time.Now()

// HealthChecker reports pipeline liveness for the dashboard layer.
type HealthChecker struct {
	mu            sync.RWMutex
	lastIteration time.Time
	lastEquity    float64
	feedHealthy   bool
	openBreakers  []string
	errors        []string
}

// HealthStatus is the JSON health snapshot.
type HealthStatus struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	LastIteration time.Time `json:"last_iteration"`
	LastEquity    float64   `json:"last_equity"`
	FeedHealthy   bool      `json:"feed_healthy"`
	OpenBreakers  []string  `json:"open_breakers,omitempty"`
	Uptime        string    `json:"uptime"`
	Errors        []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a health checker.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		feedHealthy: true,
		errors:      make([]string, 0),
	}
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Resolve the final verdict before writing anything: errors trump
	// a degraded feed or open breakers.
	status := "healthy"
	code := http.StatusOK
	if !h.feedHealthy || len(h.openBreakers) > 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if len(h.errors) > 0 {
		status = "unhealthy"
		code = http.StatusInternalServerError
	}

	health := HealthStatus{
		Status:        status,
		Timestamp:     time.Now(),
		LastIteration: h.lastIteration,
		LastEquity:    h.lastEquity,
		FeedHealthy:   h.feedHealthy,
		OpenBreakers:  h.openBreakers,
		Uptime:        time.Since(startTime).String(),
		Errors:        h.errors,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}

// RecordIteration marks a completed pipeline iteration.
func (h *HealthChecker) RecordIteration(equity float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastIteration = time.Now()
	h.lastEquity = equity
}

// SetFeedHealthy marks the market data feed up or down.
func (h *HealthChecker) SetFeedHealthy(healthy bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.feedHealthy = healthy
}

// SetOpenBreakers replaces the list of currently open breakers.
func (h *HealthChecker) SetOpenBreakers(names []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.openBreakers = names
}

// AddError records a persistent error for the health report.
func (h *HealthChecker) AddError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = append(h.errors, msg)
	if len(h.errors) > 20 {
		h.errors = h.errors[len(h.errors)-20:]
	}
}

// ClearErrors wipes recorded errors.
func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}
