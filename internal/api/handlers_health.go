package api

import (
	"context"
	"net/http"
	"time"

	"github.com/jschreck/saga/internal/chat"
	"github.com/jschreck/saga/internal/models"
	"github.com/jschreck/saga/internal/store"
)

// HealthChecker is any dependency that can report its own reachability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db       *store.DB
	chunks   *store.ChunkStore
	provider HealthChecker
	qdrant   HealthChecker
	registry *chat.Registry
	started  time.Time
}

func NewHealthHandler(db *store.DB, provider, qdrant HealthChecker, registry *chat.Registry) *HealthHandler {
	h := &HealthHandler{
		db:       db,
		provider: provider,
		qdrant:   qdrant,
		registry: registry,
		started:  time.Now(),
	}
	if db != nil {
		h.chunks = store.NewChunkStore(db)
	}
	return h
}

// Health handles GET /health and GET /api/status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := models.HealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
	}
	if h.registry != nil {
		resp.Conversations = h.registry.Len()
	}

	resp.Provider = check(ctx, h.provider, &resp.Status)
	resp.Qdrant = check(ctx, h.qdrant, &resp.Status)

	if h.chunks == nil {
		resp.DB = models.ServiceCheck{Status: "disabled"}
	} else if count, err := h.chunks.Count(); err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
		resp.ChunkCount = count
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func check(ctx context.Context, c HealthChecker, overall *string) models.ServiceCheck {
	if c == nil {
		return models.ServiceCheck{Status: "disabled"}
	}
	if err := c.HealthCheck(ctx); err != nil {
		*overall = "degraded"
		return models.ServiceCheck{Status: "error", Message: err.Error()}
	}
	return models.ServiceCheck{Status: "ok"}
}
