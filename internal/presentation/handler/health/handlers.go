package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hilthontt/actionlog/internal/infrastructure/json"
	"github.com/hilthontt/actionlog/internal/infrastructure/logging"
)

const readinessTimeout = 2 * time.Second

var startTime = time.Now()

// Pinger reports whether a dependency can serve requests.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	store    Pinger
	logger   logging.Logger
	draining atomic.Bool
}

func NewHandler(store Pinger, logger logging.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Drain marks the service as shutting down so readiness fails while in-flight
// requests complete.
func (h *Handler) Drain() {
	h.draining.Store(true)
}

// GetHealth godoc
// @Summary      Liveness check
// @Description  Returns the liveness status of the API, including uptime and current timestamp
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "Service is alive"
// @Router       /health [get]
// @Router       /healthz [get]
// @Router       /live [get]
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	json.Write(w, http.StatusOK, newHealthResponse(statusOK, nil))
}

// GetReady godoc
// @Summary      Readiness check
// @Description  Reports whether the action store is reachable
// @Tags         health
// @Produce      json
// @Success      200 {object} healthResponse "Service is ready"
// @Failure      503 {object} healthResponse "Action store unreachable or shutting down"
// @Router       /ready [get]
func (h *Handler) GetReady(w http.ResponseWriter, r *http.Request) {
	if h.draining.Load() {
		json.Write(w, http.StatusServiceUnavailable, newHealthResponse(statusUnhealthy, map[string]string{"server": "draining"}))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		h.logger.Warn(logging.General, logging.HealthCheck, "action store is not ready", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.Write(w, http.StatusServiceUnavailable, newHealthResponse(statusUnhealthy, map[string]string{"store": "unreachable"}))
		return
	}

	json.Write(w, http.StatusOK, newHealthResponse(statusOK, map[string]string{"store": statusOK}))
}

func newHealthResponse(status string, checks map[string]string) healthResponse {
	return healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(startTime).Round(time.Second).String(),
		Checks:    checks,
	}
}
