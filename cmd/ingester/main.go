package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/navid-fn/twradar/configs"
	"github.com/navid-fn/twradar/internal/ingester"
	"github.com/navid-fn/twradar/internal/logger"
	"github.com/navid-fn/twradar/internal/storage"
)

func main() {
	appConfig := configs.AppLoad()
	log := logger.New(appConfig.LogLevel)

	store, err := storage.NewClickHouseStorage(appConfig.DBDSN)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer store.Close()

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": appConfig.KafkaQuote.Broker,
		"group.id":          appConfig.KafkaQuote.GroupID,
		"auto.offset.reset": "earliest",
		// Offsets are committed by the ingester after each successful insert.
		"enable.auto.commit": false,
	})
	if err != nil {
		log.Fatalf("Failed to create Kafka consumer: %v", err)
	}
	defer consumer.Close()

	topics := []string{appConfig.KafkaQuote.Topic, appConfig.KafkaDividend.Topic}
	if err := consumer.SubscribeTopics(topics, nil); err != nil {
		log.Fatalf("Failed to subscribe to %v: %v", topics, err)
	}

	svc := ingester.NewIngester(
		consumer,
		store,
		log,
		ingester.Config{
			BatchSize:     appConfig.Ingester.BatchSize,
			BatchTimeout:  time.Duration(appConfig.Ingester.BatchTimeoutSeconds) * time.Second,
			QuoteTopic:    appConfig.KafkaQuote.Topic,
			DividendTopic: appConfig.KafkaDividend.Topic,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Infof("Ingester started for topics %v", topics)

	if err := svc.Start(ctx); err != nil {
		log.Errorf("Ingester stopped with error: %v", err)
		os.Exit(1)
	}

	log.Info("Ingester shutdown complete")
}
