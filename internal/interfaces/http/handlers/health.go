// internal/interfaces/http/handlers/health.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Pinger is a dependency that can report its health
type Pinger interface {
	Health(ctx context.Context) error
}

// HealthHandler serves liveness and readiness checks
type HealthHandler struct {
	db      Pinger
	cache   Pinger
	version string
	log     logrus.FieldLogger
}

// NewHealthHandler creates a health handler. cache may be nil.
func NewHealthHandler(db, cache Pinger, version string, log logrus.FieldLogger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, version: version, log: log}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	})
}

// Ready handles GET /ready. PostgreSQL is required; Redis only degrades
// the service because carts fall back to the store.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	status := "ready"
	code := http.StatusOK

	if err := h.db.Health(ctx); err != nil {
		h.log.WithError(err).Error("Database readiness check failed")
		checks["database"] = "unhealthy"
		status = "not ready"
		code = http.StatusServiceUnavailable
	} else {
		checks["database"] = "healthy"
	}

	switch {
	case h.cache == nil:
		checks["redis"] = "disabled"
	case h.cache.Health(ctx) != nil:
		h.log.Warn("Redis readiness check failed, serving without cart cache")
		checks["redis"] = "degraded"
		if code == http.StatusOK {
			status = "degraded"
		}
	default:
		checks["redis"] = "healthy"
	}

	c.JSON(code, gin.H{
		"status":    status,
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	})
}
