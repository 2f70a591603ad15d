package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"hardwarelens-api/pkg/response"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves liveness, readiness and status probes.
type Handler struct {
	service   string
	version   string
	cache     Pinger
	startTime time.Time
}

// New creates a new handler. cache may be nil.
func New(service, version string, cache Pinger) *Handler {
	return &Handler{
		service:   service,
		version:   version,
		cache:     cache,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// Health handles GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
	response.OK(w, resp)
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Ready     bool      `json:"ready"`
	Timestamp time.Time `json:"timestamp"`
	Checks    []Check   `json:"checks"`
}

// Check represents an individual readiness check.
type Check struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (h *Handler) cacheCheck(ctx context.Context) Check {
	if h.cache == nil {
		return Check{Name: "cache", Status: "not_configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.cache.Ping(ctx); err != nil {
		return Check{Name: "cache", Status: "error", Error: err.Error()}
	}
	return Check{Name: "cache", Status: "ok"}
}

// Ready handles GET /api/v1/ready. The cache store backs rate limiting, so
// the service is not ready without it.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := []Check{
		{Name: "api", Status: "ok"},
		h.cacheCheck(r.Context()),
	}

	allReady := true
	for _, check := range checks {
		if check.Status == "error" {
			allReady = false
			break
		}
	}

	resp := ReadyResponse{
		Ready:     allReady,
		Timestamp: time.Now().UTC(),
		Checks:    checks,
	}

	status := http.StatusOK
	if !allReady {
		status = http.StatusServiceUnavailable
	}
	response.JSON(w, status, resp)
}

// StatusChecks represents the checks in status response
type StatusChecks struct {
	Cache    string  `json:"cache"`
	MemoryMB float64 `json:"memory_mb"`
}

// StatusResponse is the compact status document polled by uptime monitors.
type StatusResponse struct {
	Service       string       `json:"service"`
	Status        string       `json:"status"`
	Timestamp     string       `json:"timestamp"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	PingMS        int64        `json:"ping_ms"`
	Checks        StatusChecks `json:"checks"`
}

// Status handles GET /api/status
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	requestStart := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	memoryMB := float64(memStats.Alloc) / 1024 / 1024

	cache := h.cacheCheck(r.Context())
	status := "ok"
	if cache.Status == "error" {
		status = "degraded"
	}

	resp := StatusResponse{
		Service:       h.service,
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		PingMS:        time.Since(requestStart).Milliseconds(),
		Checks: StatusChecks{
			Cache:    cache.Status,
			MemoryMB: float64(int(memoryMB*100)) / 100,
		},
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	response.OK(w, resp)
}
