package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/twradar/internal/engine"
	"github.com/navid-fn/twradar/server/internal/service"
	"github.com/navid-fn/twradar/utils"
)

type DividendHandler struct {
	quoteService *service.QuoteService
}

func NewDividendHandler(service *service.QuoteService) *DividendHandler {
	return &DividendHandler{
		quoteService: service,
	}
}

// GetDividends returns live dividend history since ?since=YYYY-MM-DD (default five years).
// An unknown symbol yields an empty list, not an error.
func (h *DividendHandler) GetDividends(c *gin.Context) {
	since, ok := parseSince(c)
	if !ok {
		return
	}

	sym := c.Param("symbol")
	records, since, err := h.quoteService.GetDividends(c.Request.Context(), sym, since)
	if err != nil {
		if errors.Is(err, engine.ErrInvalidSymbol) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "symbol": sym})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    sym,
		"since":     since.Format(time.DateOnly),
		"dividends": records,
	})
}

// GetArchived returns dividends stored by the ingester.
func (h *DividendHandler) GetArchived(c *gin.Context) {
	since, ok := parseSince(c)
	if !ok {
		return
	}

	sym := c.Param("symbol")
	dividends, err := h.quoteService.GetArchivedDividends(c.Request.Context(), sym, since)
	if err != nil {
		writeArchiveError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": sym, "dividends": dividends})
}

func parseSince(c *gin.Context) (time.Time, bool) {
	raw := c.Query("since")
	if raw == "" {
		return time.Time{}, true
	}
	since, err := utils.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since must be YYYY-MM-DD"})
		return time.Time{}, false
	}
	return since, true
}
