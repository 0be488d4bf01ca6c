package router

import (
	"github.com/gin-gonic/gin"

	"github.com/navid-fn/twradar/server/internal/handler"
)

func registerQuoteRoutes(router *gin.RouterGroup, quoteHandler *handler.QuoteHandler) {
	quotes := router.Group("/quotes")
	{
		quotes.GET("", quoteHandler.GetQuotes)
		quotes.GET("/stats", quoteHandler.GetStats)
		quotes.GET("/:symbol", quoteHandler.GetQuote)
		quotes.GET("/:symbol/history", quoteHandler.GetHistory)
	}
}

func registerDividendRoutes(router *gin.RouterGroup, dividendHandler *handler.DividendHandler) {
	dividends := router.Group("/dividends")
	{
		dividends.GET("/:symbol", dividendHandler.GetDividends)
		dividends.GET("/:symbol/archive", dividendHandler.GetArchived)
	}
}

func registerSymbolRoutes(router *gin.RouterGroup, symbolHandler *handler.SymbolHandler) {
	router.GET("/symbols/:symbol", symbolHandler.GetSymbol)
}

func registerHealthRoutes(router *gin.RouterGroup, healthHandler *handler.HealthHandler) {
	health := router.Group("/health")
	{
		health.GET("", healthHandler.GetHealth)
		health.POST("/reset", healthHandler.Reset)
	}
}
