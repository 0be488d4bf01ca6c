package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/clickhouse"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/navid-fn/twradar/configs"
	"github.com/navid-fn/twradar/internal/bootstrap"
	"github.com/navid-fn/twradar/internal/logger"
	"github.com/navid-fn/twradar/internal/migrations"
	"github.com/navid-fn/twradar/server/config"
	"github.com/navid-fn/twradar/server/internal/handler"
	"github.com/navid-fn/twradar/server/internal/repository"
	"github.com/navid-fn/twradar/server/internal/router"
	"github.com/navid-fn/twradar/server/internal/service"
)

func main() {
	appConfig := configs.AppLoad()
	cfg := config.Load()
	log := logger.New(appConfig.LogLevel)

	if !cfg.IsDebug() {
		gin.SetMode(gin.ReleaseMode)
	}

	eng, err := bootstrap.NewEngine(appConfig, log)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng.Start(ctx)
	defer eng.Close()

	// The archive is optional: live quotes keep working without ClickHouse.
	var archive repository.ArchiveRepository
	db, err := gorm.Open(clickhouse.Open(cfg.ClickHouseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Warnf("Archive disabled, failed to connect to database: %v", err)
	} else {
		if cfg.Migrate {
			sqlDB, err := db.DB()
			if err != nil {
				log.Fatalf("Failed to get sql.DB: %v", err)
			}
			log.Info("Running database migrations...")
			if err := migrations.Up(sqlDB); err != nil {
				log.Fatalf("Goose migration failed: %v", err)
			}
		}
		archive = repository.NewGormArchiveRepository(db)
	}

	quoteService := service.NewQuoteService(eng, archive, cfg.MaxBatchSymbols)

	routerConfig := &router.Config{
		QuoteHandler:    handler.NewQuoteHandler(quoteService),
		DividendHandler: handler.NewDividendHandler(quoteService),
		SymbolHandler:   handler.NewSymbolHandler(quoteService),
		HealthHandler:   handler.NewHealthHandler(quoteService),
		StreamHandler: handler.NewStreamHandler(quoteService, handler.StreamConfig{
			DefaultInterval: cfg.StreamInterval,
			MinInterval:     cfg.StreamMinInterval,
		}, log),
		Logger: log,
	}

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router.NewRouter(routerConfig),
	}

	go func() {
		log.Infof("API listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down API...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Graceful shutdown failed: %v", err)
	}
	log.Info("API stopped")
}
