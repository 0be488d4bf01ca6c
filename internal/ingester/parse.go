package ingester

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/navid-fn/twradar/internal/publisher"
	"github.com/navid-fn/twradar/internal/storage/models"
)

var errNoValidRows = errors.New("no valid rows in message")

// decodeEvents accepts a single JSON object or an array of them.
func decodeEvents[T any](value []byte) ([]T, error) {
	value = bytes.TrimSpace(value)
	if len(value) == 0 {
		return nil, errors.New("empty message")
	}
	if value[0] == '[' {
		var list []T
		if err := json.Unmarshal(value, &list); err != nil {
			return nil, fmt.Errorf("decode event array: %w", err)
		}
		return list, nil
	}
	var one T
	if err := json.Unmarshal(value, &one); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return []T{one}, nil
}

// ParseQuotes decodes quote events, skipping invalid ones.
// It fails only when nothing valid remains.
func ParseQuotes(value []byte) ([]*models.Quote, error) {
	events, err := decodeEvents[publisher.QuoteEvent](value)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Quote, 0, len(events))
	for _, ev := range events {
		q, err := transformQuote(ev)
		if err != nil {
			continue
		}
		out = append(out, q)
	}
	if len(out) == 0 {
		return nil, errNoValidRows
	}
	return out, nil
}

// ParseDividends decodes dividend events, skipping invalid ones.
func ParseDividends(value []byte) ([]*models.Dividend, error) {
	events, err := decodeEvents[publisher.DividendEvent](value)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Dividend, 0, len(events))
	for _, ev := range events {
		d, err := transformDividend(ev)
		if err != nil {
			continue
		}
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, errNoValidRows
	}
	return out, nil
}

func transformQuote(ev publisher.QuoteEvent) (*models.Quote, error) {
	if ev.EventID == "" || ev.Symbol == "" || ev.Source == "" {
		return nil, fmt.Errorf("missing required fields: event_id=%q symbol=%q source=%q", ev.EventID, ev.Symbol, ev.Source)
	}
	if !finite(ev.Price, ev.Change, ev.ChangePercent, ev.PreviousClose, ev.Volume) {
		return nil, errors.New("corrupted numeric data")
	}
	if ev.Price <= 0 {
		return nil, fmt.Errorf("invalid price: %v", ev.Price)
	}

	quotedAt := ev.QuotedAt
	if quotedAt.IsZero() {
		quotedAt = time.Now()
	}

	return &models.Quote{
		EventID:       ev.EventID,
		Symbol:        ev.Symbol,
		Name:          ev.Name,
		Price:         ev.Price,
		Change:        ev.Change,
		ChangePercent: ev.ChangePercent,
		PreviousClose: ev.PreviousClose,
		Volume:        ev.Volume,
		Market:        ev.Market,
		Status:        ev.Status,
		Source:        ev.Source,
		QuotedAt:      quotedAt,
		InsertedAt:    time.Now(),
	}, nil
}

func transformDividend(ev publisher.DividendEvent) (*models.Dividend, error) {
	if ev.EventID == "" || ev.Symbol == "" {
		return nil, fmt.Errorf("missing required fields: event_id=%q symbol=%q", ev.EventID, ev.Symbol)
	}
	if ev.ExDividendDate.IsZero() {
		return nil, errors.New("missing ex-dividend date")
	}
	if !finite(ev.CashPerShare, ev.StockPerShare, ev.TotalDividend, ev.StockDividendRatio) {
		return nil, errors.New("corrupted numeric data")
	}
	if ev.CashPerShare < 0 || ev.StockPerShare < 0 || ev.CashPerShare+ev.StockPerShare == 0 {
		return nil, fmt.Errorf("invalid amounts: cash=%v stock=%v", ev.CashPerShare, ev.StockPerShare)
	}

	return &models.Dividend{
		EventID:            ev.EventID,
		Symbol:             ev.Symbol,
		ExDividendDate:     ev.ExDividendDate,
		PaymentDate:        ev.PaymentDate,
		Year:               ev.Year,
		Quarter:            ev.Quarter,
		CashPerShare:       ev.CashPerShare,
		StockPerShare:      ev.StockPerShare,
		TotalDividend:      ev.TotalDividend,
		StockDividendRatio: ev.StockDividendRatio,
		Type:               ev.Type,
		Source:             ev.Source,
		Confidence:         ev.Confidence,
		InsertedAt:         time.Now(),
	}, nil
}

func finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
