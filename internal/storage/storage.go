// Package storage persists archived quotations and dividends to ClickHouse.
package storage

import (
	"context"
	"time"

	"github.com/navid-fn/twradar/internal/storage/models"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Storage persists quote and dividend rows.
// Implementations must be safe for concurrent use.
type Storage interface {
	// CreateQuotes inserts a batch of quotes.
	CreateQuotes(ctx context.Context, quotes []*models.Quote) error

	// CreateDividends inserts a batch of dividend events.
	CreateDividends(ctx context.Context, dividends []*models.Dividend) error

	// Close releases database connection resources.
	Close() error
}

// clickhouseStorage implements Storage with the native ClickHouse driver.
type clickhouseStorage struct {
	conn driver.Conn
}

// NewClickHouseStorage parses the DSN, opens a connection and pings it.
// Returns an error if the server does not answer within 5 seconds.
func NewClickHouseStorage(dsn string) (Storage, error) {
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &clickhouseStorage{conn: conn}, nil
}

// CreateQuotes inserts quotes with a single batch.
// All rows in the batch share the same inserted_at timestamp.
func (s *clickhouseStorage) CreateQuotes(ctx context.Context, quotes []*models.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO quote (
			event_id, symbol, name,
			price, change, change_percent, previous_close, volume,
			market, status, source,
			quoted_at, inserted_at
		)
	`)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, q := range quotes {
		err := batch.Append(
			q.EventID,
			q.Symbol,
			q.Name,
			q.Price,
			q.Change,
			q.ChangePercent,
			q.PreviousClose,
			q.Volume,
			q.Market,
			q.Status,
			q.Source,
			q.QuotedAt,
			now,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// CreateDividends inserts dividend rows with a single batch.
func (s *clickhouseStorage) CreateDividends(ctx context.Context, dividends []*models.Dividend) error {
	if len(dividends) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO dividend (
			event_id, symbol, ex_dividend_date, payment_date,
			year, quarter,
			cash_per_share, stock_per_share, total_dividend, stock_dividend_ratio,
			type, source, confidence,
			inserted_at
		)
	`)
	if err != nil {
		return err
	}

	now := time.Now()
	for _, d := range dividends {
		err := batch.Append(
			d.EventID,
			d.Symbol,
			d.ExDividendDate,
			d.PaymentDate,
			uint16(d.Year),
			d.Quarter,
			d.CashPerShare,
			d.StockPerShare,
			d.TotalDividend,
			d.StockDividendRatio,
			d.Type,
			d.Source,
			uint32(d.Confidence),
			now,
		)
		if err != nil {
			return err
		}
	}

	return batch.Send()
}

// Close closes the ClickHouse connection.
func (s *clickhouseStorage) Close() error {
	return s.conn.Close()
}
