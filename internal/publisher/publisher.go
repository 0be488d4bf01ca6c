// Package publisher sends resolved quotations and dividend records to Kafka as JSON events.
package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/twradar/internal/models"
)

const flushTimeoutMs = 5000

// Producer is the subset of *kafka.Producer the publisher uses.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// Topics names the destination of each event kind.
type Topics struct {
	Quote    string
	Dividend string
}

// Publisher encodes events and hands them to the producer.
// Delivery failures are reported asynchronously through the logger.
type Publisher struct {
	producer  Producer
	topics    Topics
	logger    *logrus.Logger
	closeOnce sync.Once
}

// New connects a Kafka producer to broker.
func New(broker string, topics Topics, logger *logrus.Logger) (*Publisher, error) {
	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": broker,
		"acks":              "all",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	logger.Info("Kafka Producer initialized successfully")
	return NewWithProducer(producer, topics, logger), nil
}

// NewWithProducer wraps an existing producer and starts its delivery report loop.
func NewWithProducer(producer Producer, topics Topics, logger *logrus.Logger) *Publisher {
	p := &Publisher{producer: producer, topics: topics, logger: logger}
	p.startDeliveryReport()
	return p
}

// startDeliveryReport drains the producer's Events channel and logs failed deliveries.
func (p *Publisher) startDeliveryReport() {
	events := p.producer.Events()
	if events == nil {
		return
	}
	go func() {
		for e := range events {
			switch ev := e.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					p.logger.Errorf("[publisher] delivery failed for %s: %v", string(ev.Key), ev.TopicPartition.Error)
				}
			case kafka.Error:
				p.logger.Warnf("[publisher] producer error: %v", ev)
			}
		}
	}()
}

// PublishQuotes sends one event per quotation, keyed by symbol.
// It keeps going after a failed message and returns the joined errors.
func (p *Publisher) PublishQuotes(quotes []*models.Quotation) error {
	var errs []error
	for _, q := range quotes {
		if q == nil {
			continue
		}
		if err := p.send(p.topics.Quote, q.Symbol, NewQuoteEvent(q)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishDividends sends one event per dividend record.
func (p *Publisher) PublishDividends(records []models.DividendRecord) error {
	var errs []error
	for _, r := range records {
		if err := p.send(p.topics.Dividend, r.Symbol, NewDividendEvent(r)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) send(topic, key string, event any) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
	}, nil)
	if err != nil {
		return fmt.Errorf("produce %s/%s: %w", topic, key, err)
	}
	return nil
}

// Close flushes outstanding messages and closes the producer.
func (p *Publisher) Close() {
	p.closeOnce.Do(func() {
		if left := p.producer.Flush(flushTimeoutMs); left > 0 {
			p.logger.Warnf("[publisher] %d messages not delivered before close", left)
		}
		p.producer.Close()
		p.logger.Info("Kafka Producer closed")
	})
}
