package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"hardwarelens-api/internal/ledger"
	"hardwarelens-api/pkg/response"
)

// ScopeCounter reports how many access tokens are cached.
type ScopeCounter interface {
	Scopes() int
}

// AdminConfig wires the admin handler to the components it reports on.
type AdminConfig struct {
	Cache      Pinger
	CacheType  string
	Ledger     ledger.Sheet
	LedgerType string
	Tokens     ScopeCounter
	RateLimit  int64
}

// AdminHandler handles admin-related HTTP requests.
type AdminHandler struct {
	cfg       AdminConfig
	startTime time.Time
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg AdminConfig) *AdminHandler {
	return &AdminHandler{cfg: cfg, startTime: time.Now()}
}

// GetStats handles GET /api/v1/admin/stats
func (h *AdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := make(map[string]interface{})

	// System info
	stats["uptime_seconds"] = int64(time.Since(h.startTime).Seconds())
	stats["uptime_human"] = time.Since(h.startTime).Round(time.Second).String()
	stats["server_time"] = time.Now().Format(time.RFC3339)
	stats["rate_limit_per_minute"] = h.cfg.RateLimit

	// Memory stats
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	stats["memory"] = map[string]interface{}{
		"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
		"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
		"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
		"heap_alloc_mb":  float64(memStats.HeapAlloc) / 1024 / 1024,
		"heap_inuse_mb":  float64(memStats.HeapInuse) / 1024 / 1024,
		"num_gc":         memStats.NumGC,
		"goroutines":     runtime.NumGoroutine(),
	}

	stats["cache"] = h.cacheStats(ctx)
	stats["ledger"] = h.ledgerStats(ctx)

	if h.cfg.Tokens != nil {
		stats["credentials"] = map[string]interface{}{
			"cached_scopes": h.cfg.Tokens.Scopes(),
		}
	}

	// Runtime info
	stats["runtime"] = map[string]interface{}{
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"cpus":       runtime.NumCPU(),
	}

	response.OK(w, stats)
}

func (h *AdminHandler) cacheStats(ctx context.Context) map[string]interface{} {
	if h.cfg.Cache == nil {
		return map[string]interface{}{"status": "not_configured"}
	}
	out := map[string]interface{}{"type": h.cfg.CacheType}
	if err := h.cfg.Cache.Ping(ctx); err != nil {
		out["status"] = "error"
		out["error"] = err.Error()
		return out
	}
	out["status"] = "connected"
	return out
}

func (h *AdminHandler) ledgerStats(ctx context.Context) map[string]interface{} {
	if h.cfg.Ledger == nil {
		return map[string]interface{}{"status": "not_configured"}
	}
	sp, ok := h.cfg.Ledger.(ledger.StatsProvider)
	if !ok {
		return map[string]interface{}{"type": h.cfg.LedgerType, "status": "connected"}
	}
	s, err := sp.GetStats(ctx)
	if err != nil {
		return map[string]interface{}{"type": h.cfg.LedgerType, "status": "error", "error": err.Error()}
	}
	s["type"] = h.cfg.LedgerType
	s["status"] = "connected"
	return s
}

// GetHealth handles GET /api/v1/admin/health
func (h *AdminHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}
