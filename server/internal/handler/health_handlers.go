package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/twradar/internal/engine"
	"github.com/navid-fn/twradar/internal/faulttolerance"
	"github.com/navid-fn/twradar/server/internal/service"
)

const readyTimeout = 2 * time.Second

type HealthHandler struct {
	quoteService *service.QuoteService
}

func NewHealthHandler(service *service.QuoteService) *HealthHandler {
	return &HealthHandler{
		quoteService: service,
	}
}

// GetHealth reports per-provider breaker state. 503 when every circuit is open.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	report := h.quoteService.Health(c.Query("probe") == "true")
	status := http.StatusOK
	if report.Overall == faulttolerance.HealthStatusUnavailable {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}

// Reset clears breaker statistics for ?provider=, or for all providers.
func (h *HealthHandler) Reset(c *gin.Context) {
	provider := c.Query("provider")
	if err := h.quoteService.ResetStats(provider); err != nil {
		if errors.Is(err, engine.ErrUnknownProvider) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if provider == "" {
		provider = "all"
	}
	c.JSON(http.StatusOK, gin.H{"reset": provider})
}

func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if err := h.quoteService.Ready(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
