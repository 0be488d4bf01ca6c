package router

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/twradar/server/internal/handler"
)

type Config struct {
	QuoteHandler    *handler.QuoteHandler
	DividendHandler *handler.DividendHandler
	SymbolHandler   *handler.SymbolHandler
	HealthHandler   *handler.HealthHandler
	StreamHandler   *handler.StreamHandler
	Logger          *logrus.Logger
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), handler.RequestID(), handler.AccessLog(cfg.Logger))

	router.GET("/health/live", cfg.HealthHandler.Live)
	router.GET("/health/ready", cfg.HealthHandler.Ready)

	api := router.Group("/v1/")
	registerQuoteRoutes(api, cfg.QuoteHandler)
	registerDividendRoutes(api, cfg.DividendHandler)
	registerSymbolRoutes(api, cfg.SymbolHandler)
	registerHealthRoutes(api, cfg.HealthHandler)
	if cfg.StreamHandler != nil {
		api.GET("/stream", cfg.StreamHandler.Stream)
	}

	return router
}
