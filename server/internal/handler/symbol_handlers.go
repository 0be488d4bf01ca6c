package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/navid-fn/twradar/server/internal/service"
)

type SymbolHandler struct {
	quoteService *service.QuoteService
}

func NewSymbolHandler(service *service.QuoteService) *SymbolHandler {
	return &SymbolHandler{
		quoteService: service,
	}
}

// GetSymbol analyzes a ticker offline. With ?resolve=true it also looks up a
// live quotation and returns suggestions when nothing is found.
func (h *SymbolHandler) GetSymbol(c *gin.Context) {
	sym := c.Param("symbol")
	if c.Query("resolve") != "true" {
		c.JSON(http.StatusOK, h.quoteService.AnalyzeSymbol(sym))
		return
	}

	result, err := h.quoteService.Search(c.Request.Context(), sym)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
