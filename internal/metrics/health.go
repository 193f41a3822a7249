package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthStatus tracks the liveness of the aggregator's external
// dependencies (dedup backend, candle/tick repository) for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	DedupBackendOK bool      `json:"dedup_backend_ok"`
	RepositoryOK   bool      `json:"repository_ok"`
	LastTickAt     time.Time `json:"last_tick_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status stamped with the
// current time.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetDedupBackendOK(v bool) {
	h.mu.Lock()
	h.DedupBackendOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRepositoryOK(v bool) {
	h.mu.Lock()
	h.RepositoryOK = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetLastTickAt(t time.Time) {
	h.mu.Lock()
	h.LastTickAt = t
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := "healthy"
	code := http.StatusOK
	if !h.DedupBackendOK || !h.RepositoryOK {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	if !h.DedupBackendOK && !h.RepositoryOK {
		status = "unhealthy"
	}

	tickAge := ""
	if !h.LastTickAt.IsZero() {
		tickAge = time.Since(h.LastTickAt).Round(time.Millisecond).String()
	}

	body := struct {
		Status         string `json:"status"`
		Uptime         string `json:"uptime"`
		DedupBackendOK bool   `json:"dedup_backend_ok"`
		RepositoryOK   bool   `json:"repository_ok"`
		LastTickAt     string `json:"last_tick_at"`
		TickAge        string `json:"tick_age"`
	}{
		Status:         status,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		DedupBackendOK: h.DedupBackendOK,
		RepositoryOK:   h.RepositoryOK,
		LastTickAt:     h.LastTickAt.Format(time.RFC3339),
		TickAge:        tickAge,
	}

	w.Header().Set("Content-Type", "application/json")
	if code != http.StatusOK {
		w.WriteHeader(code)
	}
	json.NewEncoder(w).Encode(body)
}

// Server exposes /metrics (Prometheus, sourced from the Registry
// Collector) and /healthz.
type Server struct {
	health *HealthStatus
	srv    *http.Server
}

// NewServer wires a dedicated Prometheus registerer so the Collector
// doesn't collide with the global default registry's own collectors.
func NewServer(addr string, registry *Registry, health *HealthStatus) *Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(registry))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		srv:    &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a background goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts the metrics server down.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
