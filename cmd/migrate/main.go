package main

import (
	"database/sql"
	"flag"

	_ "github.com/ClickHouse/clickhouse-go/v2" // ClickHouse driver

	"github.com/navid-fn/twradar/configs"
	"github.com/navid-fn/twradar/internal/logger"
	"github.com/navid-fn/twradar/internal/migrations"
)

func main() {
	status := flag.Bool("status", false, "Print migration status and exit")
	flag.Parse()

	cfg := configs.AppLoad()
	log := logger.New(cfg.LogLevel)

	db, err := sql.Open("clickhouse", cfg.DBDSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if *status {
		if err := migrations.Status(db); err != nil {
			log.Fatalf("Goose status failed: %v", err)
		}
		return
	}

	log.Info("Running database migrations...")
	if err := migrations.Up(db); err != nil {
		log.Fatalf("Goose migration failed: %v", err)
	}
	log.Info("Migrations completed successfully")
}
