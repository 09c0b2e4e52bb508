package handler

import (
	"context"
	"net/http"
	"time"

	"portal/pkg/logger"
)

// Pinger is any dependency whose reachability can be checked.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

// SystemHandler reports service health.
type SystemHandler struct {
	service   string
	checks    map[string]Pinger
	logger    logger.Logger
	startTime time.Time
}

func NewSystemHandler(service string, checks map[string]Pinger, log logger.Logger) *SystemHandler {
	return &SystemHandler{
		service:   service,
		checks:    checks,
		logger:    log,
		startTime: time.Now(),
	}
}

type DependencyStatus struct {
	Status    string `json:"status"` // operational, degraded, outage
	LatencyMs int64  `json:"latency_ms"`
}

type HealthResponse struct {
	Status        string                      `json:"status"`
	Service       string                      `json:"service"`
	UptimeSeconds int64                       `json:"uptime_seconds"`
	Dependencies  map[string]DependencyStatus `json:"dependencies,omitempty"`
}

// Health pings each dependency. Any outage marks the service degraded; the
// portal keeps serving, so the response is still 200.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:        "healthy",
		Service:       h.service,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Dependencies:  make(map[string]DependencyStatus, len(h.checks)),
	}

	for name, p := range h.checks {
		start := time.Now()
		err := p.PingContext(ctx)
		latency := time.Since(start).Milliseconds()

		status := "operational"
		if err != nil {
			status = "outage"
			resp.Status = "degraded"
			h.logger.Error("Health check failed", map[string]interface{}{
				"dependency": name,
				"error":      err.Error(),
			})
		} else if latency > 200 {
			status = "degraded"
		}
		resp.Dependencies[name] = DependencyStatus{Status: status, LatencyMs: latency}
	}

	respondJSON(w, http.StatusOK, resp)
}
