// Package handler holds the gin handlers of the public API.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/twradar/internal/engine"
	"github.com/navid-fn/twradar/server/internal/service"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type QuoteHandler struct {
	quoteService *service.QuoteService
}

func NewQuoteHandler(service *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{
		quoteService: service,
	}
}

// GetQuote resolves a single symbol.
func (h *QuoteHandler) GetQuote(c *gin.Context) {
	sym := c.Param("symbol")
	quote, err := h.quoteService.GetQuote(c.Request.Context(), sym)
	if err != nil {
		h.writeLookupError(c, sym, err)
		return
	}
	c.JSON(http.StatusOK, quote)
}

// GetQuotes resolves ?symbols=2330,0050 in one batch. Unresolved symbols are listed in missing.
func (h *QuoteHandler) GetQuotes(c *gin.Context) {
	symbols, err := h.quoteService.SplitSymbols(c.Query("symbols"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.quoteService.GetQuotes(c.Request.Context(), symbols))
}

// GetHistory returns archived quotations, newest first.
func (h *QuoteHandler) GetHistory(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sym := c.Param("symbol")
	quotes, err := h.quoteService.GetQuoteHistory(c.Request.Context(), sym, limit)
	if err != nil {
		writeArchiveError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": sym, "quotes": quotes})
}

// GetStats counts archived quotes per source.
func (h *QuoteHandler) GetStats(c *gin.Context) {
	counts, err := h.quoteService.GetArchiveStats(c.Request.Context())
	if err != nil {
		writeArchiveError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

func (h *QuoteHandler) writeLookupError(c *gin.Context, sym string, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidSymbol):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":       err.Error(),
			"symbol":      sym,
			"suggestions": h.quoteService.Suggestions(sym),
		})
	case errors.Is(err, engine.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":       "no provider returned a price",
			"symbol":      sym,
			"suggestions": h.quoteService.Suggestions(sym),
		})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	}
}

func writeArchiveError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrArchiveUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, errors.New("limit must be a positive integer")
	}
	return min(limit, maxHistoryLimit), nil
}
