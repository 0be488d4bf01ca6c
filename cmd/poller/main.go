package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/navid-fn/twradar/configs"
	"github.com/navid-fn/twradar/internal/bootstrap"
	"github.com/navid-fn/twradar/internal/logger"
	"github.com/navid-fn/twradar/internal/poller"
	"github.com/navid-fn/twradar/internal/publisher"
)

func main() {
	runNow := flag.Bool("now", false, "Run the quote and dividend jobs once at startup")
	flag.Parse()

	cfg := configs.AppLoad()
	log := logger.New(cfg.LogLevel)

	eng, err := bootstrap.NewEngine(cfg, log)
	if err != nil {
		log.Fatalf("Failed to build engine: %v", err)
	}

	pub, err := publisher.New(cfg.KafkaQuote.Broker, publisher.Topics{
		Quote:    cfg.KafkaQuote.Topic,
		Dividend: cfg.KafkaDividend.Topic,
	}, log)
	if err != nil {
		log.Fatalf("Failed to start publisher: %v", err)
	}
	defer pub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng.Start(ctx)
	defer eng.Close()

	quotes := &poller.QuoteJob{Resolver: eng, Sink: pub, Symbols: cfg.Poller.Symbols, Logger: log}
	dividends := &poller.DividendJob{Resolver: eng, Sink: pub, Symbols: cfg.Poller.Symbols, Logger: log}

	p := poller.New(log)
	if err := p.AddJob(cfg.Poller.QuoteSchedule, quotes); err != nil {
		log.Fatalf("Invalid quote schedule %q: %v", cfg.Poller.QuoteSchedule, err)
	}
	if err := p.AddJob(cfg.Poller.DividendSchedule, dividends); err != nil {
		log.Fatalf("Invalid dividend schedule %q: %v", cfg.Poller.DividendSchedule, err)
	}

	p.Start(ctx)
	log.Infof("Polling %d symbols", len(cfg.Poller.Symbols))

	if *runNow {
		p.RunNow(quotes)
		p.RunNow(dividends)
	}

	<-ctx.Done()
	log.Info("Received shutdown signal, gracefully shutting down...")
	p.Stop()
}
