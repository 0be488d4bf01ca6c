// Package ingester consumes quote and dividend events from Kafka and persists them to ClickHouse.
// It handles batching, retry logic, and graceful shutdown.
package ingester

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/sirupsen/logrus"

	"github.com/navid-fn/twradar/internal/storage"
	"github.com/navid-fn/twradar/internal/storage/models"
)

const (
	insertRetryDelay = 2 * time.Second
	shutdownTimeout  = 10 * time.Second
)

// Reader is the subset of *kafka.Consumer the ingester uses.
type Reader interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitMessage(m *kafka.Message) ([]kafka.TopicPartition, error)
}

// Config holds ingester configuration parameters.
type Config struct {
	// BatchSize is the number of rows to accumulate before flushing to DB.
	BatchSize int

	// BatchTimeout is the maximum time to wait before flushing a partial batch.
	BatchTimeout time.Duration

	// QuoteTopic and DividendTopic route messages to their decoders.
	QuoteTopic    string
	DividendTopic string
}

// Ingester writes events to ClickHouse in batches.
// Offsets are committed only after the rows are stored (at-least-once);
// ReplacingMergeTree collapses redelivered events.
type Ingester struct {
	reader  Reader
	storage storage.Storage
	logger  *logrus.Logger
	cfg     Config

	retryDelay time.Duration
}

// NewIngester creates a new Ingester with the provided dependencies.
func NewIngester(reader Reader, storage storage.Storage, logger *logrus.Logger, cfg Config) *Ingester {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}
	return &Ingester{
		reader:  reader,
		storage: storage,
		logger:  logger,
		cfg:     cfg,

		retryDelay: insertRetryDelay,
	}
}

// batch accumulates rows and the latest message per partition.
type batch struct {
	quotes    []*models.Quote
	dividends []*models.Dividend
	offsets   map[string]*kafka.Message
}

func newBatch(size int) *batch {
	return &batch{
		quotes:    make([]*models.Quote, 0, size),
		dividends: make([]*models.Dividend, 0, size),
		offsets:   make(map[string]*kafka.Message),
	}
}

func (b *batch) rows() int {
	return len(b.quotes) + len(b.dividends)
}

// track remembers m as the newest message of its partition.
// Committing it commits everything before it on that partition.
func (b *batch) track(m *kafka.Message) {
	topic := ""
	if m.TopicPartition.Topic != nil {
		topic = *m.TopicPartition.Topic
	}
	b.offsets[fmt.Sprintf("%s/%d", topic, m.TopicPartition.Partition)] = m
}

func (b *batch) reset() {
	b.quotes = b.quotes[:0]
	b.dividends = b.dividends[:0]
	clear(b.offsets)
}

// Start runs the ingestion loop. It blocks until ctx is cancelled and
// flushes buffered rows on the way out.
//
// The loop:
//  1. Reads messages from Kafka
//  2. Decodes JSON events into storage rows
//  3. Accumulates rows until the batch is full or the timeout fires
//  4. Inserts the batch (retrying every 2s on failure)
//  5. Commits offsets only after a successful insert
func (ig *Ingester) Start(ctx context.Context) error {
	ig.logger.WithFields(logrus.Fields{
		"batch_size": ig.cfg.BatchSize,
		"timeout":    ig.cfg.BatchTimeout,
	}).Info("[ingester] starting loop")

	b := newBatch(ig.cfg.BatchSize)
	lastFlush := time.Now()

	for {
		if ctx.Err() != nil {
			return ig.shutdown(b)
		}

		if time.Since(lastFlush) >= ig.cfg.BatchTimeout {
			if err := ig.flush(ctx, b); err != nil {
				return ig.abort(b, err)
			}
			lastFlush = time.Now()
		}

		m, err := ig.reader.ReadMessage(ig.pollTimeout())
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			ig.logger.Errorf("[ingester] kafka read error: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
			continue
		}

		ig.decode(m, b)
		b.track(m)

		if b.rows() >= ig.cfg.BatchSize {
			if err := ig.flush(ctx, b); err != nil {
				return ig.abort(b, err)
			}
			lastFlush = time.Now()
		}
	}
}

// pollTimeout keeps reads short enough to honour the batch timeout and shutdown.
func (ig *Ingester) pollTimeout() time.Duration {
	return min(ig.cfg.BatchTimeout, 500*time.Millisecond)
}

// decode appends the rows carried by m. Undecodable messages are logged and
// still committed so a poison message cannot stall the partition.
func (ig *Ingester) decode(m *kafka.Message, b *batch) {
	topic := ""
	if m.TopicPartition.Topic != nil {
		topic = *m.TopicPartition.Topic
	}

	switch topic {
	case ig.cfg.DividendTopic:
		rows, err := ParseDividends(m.Value)
		if err != nil {
			ig.logger.Warnf("[ingester] dropping dividend message at %v: %v", m.TopicPartition, err)
			return
		}
		b.dividends = append(b.dividends, rows...)
	default:
		rows, err := ParseQuotes(m.Value)
		if err != nil {
			ig.logger.Warnf("[ingester] dropping quote message at %v: %v", m.TopicPartition, err)
			return
		}
		b.quotes = append(b.quotes, rows...)
	}
}

// flush writes accumulated rows and commits offsets. It never drops data:
// failed inserts are retried until they succeed or ctx ends.
func (ig *Ingester) flush(ctx context.Context, b *batch) error {
	if len(b.offsets) == 0 {
		return nil
	}

	if err := ig.retry(ctx, "quotes", func() error { return ig.storage.CreateQuotes(ctx, b.quotes) }); err != nil {
		return err
	}
	if err := ig.retry(ctx, "dividends", func() error { return ig.storage.CreateDividends(ctx, b.dividends) }); err != nil {
		return err
	}

	for _, m := range b.offsets {
		if _, err := ig.reader.CommitMessage(m); err != nil {
			ig.logger.Warnf("[ingester] failed to commit offset %v: %v", m.TopicPartition, err)
		}
	}

	ig.logger.Debugf("[ingester] flushed %d quotes, %d dividends", len(b.quotes), len(b.dividends))
	b.reset()
	return nil
}

// shutdown flushes what is left with a fresh deadline, since ctx is already done.
func (ig *Ingester) shutdown(b *batch) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := ig.flush(ctx, b); err != nil {
		return err
	}
	ig.logger.Info("[ingester] stopped")
	return nil
}

func (ig *Ingester) retry(ctx context.Context, what string, insert func() error) error {
	for {
		err := insert()
		if err == nil {
			return nil
		}
		ig.logger.Errorf("[ingester] insert %s failed (retrying in %s): %v", what, ig.retryDelay, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(ig.retryDelay):
		}
	}
}

// abort handles a flush interrupted by shutdown: the batch is retried once
// more with a fresh deadline instead of being lost.
func (ig *Ingester) abort(b *batch, err error) error {
	if errors.Is(err, context.Canceled) {
		return ig.shutdown(b)
	}
	return err
}
