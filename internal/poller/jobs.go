package poller

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/utils"
)

// DefaultDividendLookback is how far back the dividend job asks for history.
const DefaultDividendLookback = 5 * 365 * 24 * time.Hour

// Resolver is the engine surface the jobs need.
type Resolver interface {
	GetBatchPrices(ctx context.Context, symbols []string) map[string]*models.Quotation
	GetDividendHistory(ctx context.Context, symbol string, since time.Time) ([]models.DividendRecord, error)
}

// Sink receives resolved data.
type Sink interface {
	PublishQuotes(quotes []*models.Quotation) error
	PublishDividends(records []models.DividendRecord) error
}

// QuoteJob resolves the watchlist in one batch and publishes every quote found.
type QuoteJob struct {
	Resolver Resolver
	Sink     Sink
	Symbols  []string
	Logger   *logrus.Logger
}

func (j *QuoteJob) Name() string { return "quotes" }

func (j *QuoteJob) Run(ctx context.Context) error {
	results := j.Resolver.GetBatchPrices(ctx, j.Symbols)

	keys := make([]string, 0, len(results))
	for sym := range results {
		keys = append(keys, sym)
	}
	slices.Sort(keys)

	quotes := make([]*models.Quotation, 0, len(keys))
	for _, sym := range keys {
		quotes = append(quotes, results[sym])
	}

	if missing := len(j.Symbols) - len(quotes); missing > 0 {
		j.Logger.Warnf("[poller] %d of %d symbols unresolved", missing, len(j.Symbols))
	}
	if len(quotes) == 0 {
		return nil
	}
	return j.Sink.PublishQuotes(quotes)
}

// DividendJob refreshes dividend history symbol by symbol.
type DividendJob struct {
	Resolver Resolver
	Sink     Sink
	Symbols  []string
	Logger   *logrus.Logger

	// Lookback defaults to DefaultDividendLookback.
	Lookback time.Duration

	now func() time.Time
}

func (j *DividendJob) Name() string { return "dividends" }

func (j *DividendJob) Run(ctx context.Context) error {
	now := time.Now
	if j.now != nil {
		now = j.now
	}
	lookback := j.Lookback
	if lookback <= 0 {
		lookback = DefaultDividendLookback
	}
	since := utils.TaipeiDate(now().Add(-lookback))

	var errs []error
	for _, sym := range j.Symbols {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		records, err := j.Resolver.GetDividendHistory(ctx, sym, since)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
			continue
		}
		if len(records) == 0 {
			continue
		}
		if err := j.Sink.PublishDividends(records); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
		}
	}
	return errors.Join(errs...)
}
