package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/navid-fn/twradar/internal/engine"
	"github.com/navid-fn/twradar/internal/faulttolerance"
	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/symbol"
	"github.com/navid-fn/twradar/server/internal/model"
	"github.com/navid-fn/twradar/server/internal/repository"
)

// DefaultDividendLookback is used when a dividend request has no since date.
const DefaultDividendLookback = 5

var (
	// ErrNoSymbols is returned for an empty batch request.
	ErrNoSymbols = errors.New("no symbols requested")

	// ErrTooManySymbols is returned when a batch exceeds the configured cap.
	ErrTooManySymbols = errors.New("too many symbols requested")

	// ErrArchiveUnavailable means the API runs without a database.
	ErrArchiveUnavailable = errors.New("archive is not configured")
)

// Resolver is the engine surface the API uses.
type Resolver interface {
	GetPrice(ctx context.Context, symbol string) (*models.Quotation, error)
	GetBatchPrices(ctx context.Context, symbols []string) map[string]*models.Quotation
	GetDividendHistory(ctx context.Context, symbol string, since time.Time) ([]models.DividendRecord, error)
	Search(ctx context.Context, raw string) (engine.SearchResult, error)
	GetHealthStatus() engine.HealthReport
	ProbeProviders()
	ResetStats(name string) error
}

// BatchResult splits a batch into resolved quotes and symbols with no data.
type BatchResult struct {
	Quotes  map[string]*models.Quotation `json:"quotes"`
	Missing []string                     `json:"missing"`
}

// SymbolInfo is the offline analysis of a ticker.
type SymbolInfo struct {
	Symbol      string                `json:"symbol"`
	Valid       bool                  `json:"valid"`
	IsETF       bool                  `json:"is_etf"`
	MarketLabel models.Market         `json:"market_label"`
	Analysis    models.SymbolAnalysis `json:"analysis"`
	Suggestions []string              `json:"suggestions,omitempty"`
}

type QuoteService struct {
	engine     Resolver
	repo       repository.ArchiveRepository
	maxSymbols int
	now        func() time.Time
}

// NewQuoteService wires the engine and, optionally, the archive. repo may be nil.
func NewQuoteService(resolver Resolver, repo repository.ArchiveRepository, maxSymbols int) *QuoteService {
	if maxSymbols <= 0 {
		maxSymbols = 50
	}
	return &QuoteService{engine: resolver, repo: repo, maxSymbols: maxSymbols, now: time.Now}
}

func (s *QuoteService) GetQuote(ctx context.Context, sym string) (*models.Quotation, error) {
	return s.engine.GetPrice(ctx, sym)
}

// SplitSymbols parses a comma-separated list, normalizing and dropping duplicates.
func (s *QuoteService) SplitSymbols(raw string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	for _, part := range strings.Split(raw, ",") {
		sym := symbol.Normalize(part)
		if sym == "" {
			continue
		}
		if _, dup := seen[sym]; dup {
			continue
		}
		seen[sym] = struct{}{}
		out = append(out, sym)
	}
	if len(out) == 0 {
		return nil, ErrNoSymbols
	}
	if len(out) > s.maxSymbols {
		return nil, ErrTooManySymbols
	}
	return out, nil
}

func (s *QuoteService) GetQuotes(ctx context.Context, symbols []string) BatchResult {
	quotes := s.engine.GetBatchPrices(ctx, symbols)
	missing := []string{}
	for _, sym := range symbols {
		if _, ok := quotes[sym]; !ok {
			missing = append(missing, sym)
		}
	}
	return BatchResult{Quotes: quotes, Missing: missing}
}

// GetDividends returns live dividend history. A zero since means five years back.
func (s *QuoteService) GetDividends(ctx context.Context, sym string, since time.Time) ([]models.DividendRecord, time.Time, error) {
	if since.IsZero() {
		since = s.now().AddDate(-DefaultDividendLookback, 0, 0)
	}
	records, err := s.engine.GetDividendHistory(ctx, sym, since)
	return records, since, err
}

func (s *QuoteService) AnalyzeSymbol(raw string) SymbolInfo {
	sym := symbol.Normalize(raw)
	info := SymbolInfo{
		Symbol:      sym,
		Valid:       symbol.IsValid(sym),
		IsETF:       symbol.IsETF(sym),
		MarketLabel: symbol.MarketLabel(sym),
		Analysis:    symbol.Analyze(raw),
	}
	if !info.Valid {
		info.Suggestions = symbol.Suggestions(sym)
	}
	return info
}

func (s *QuoteService) Search(ctx context.Context, raw string) (engine.SearchResult, error) {
	return s.engine.Search(ctx, raw)
}

func (s *QuoteService) Suggestions(sym string) []string {
	return symbol.Suggestions(symbol.Normalize(sym))
}

func (s *QuoteService) GetQuoteHistory(ctx context.Context, sym string, limit int) ([]model.Quote, error) {
	if s.repo == nil {
		return nil, ErrArchiveUnavailable
	}
	return s.repo.GetQuoteHistory(ctx, symbol.Normalize(sym), limit)
}

func (s *QuoteService) GetArchivedDividends(ctx context.Context, sym string, since time.Time) ([]model.Dividend, error) {
	if s.repo == nil {
		return nil, ErrArchiveUnavailable
	}
	return s.repo.GetDividends(ctx, symbol.Normalize(sym), since)
}

func (s *QuoteService) GetArchiveStats(ctx context.Context) (map[string]int, error) {
	if s.repo == nil {
		return nil, ErrArchiveUnavailable
	}
	return s.repo.GetQuoteCountGroupBySource(ctx)
}

// Health returns the engine report, optionally running the reachability probes first.
func (s *QuoteService) Health(probe bool) engine.HealthReport {
	if probe {
		s.engine.ProbeProviders()
	}
	return s.engine.GetHealthStatus()
}

func (s *QuoteService) ResetStats(provider string) error {
	return s.engine.ResetStats(provider)
}

// Ready reports whether the API can serve: the archive answers (when configured)
// and at least one provider circuit is closed.
func (s *QuoteService) Ready(ctx context.Context) error {
	if s.repo != nil {
		if err := s.repo.Ping(ctx); err != nil {
			return err
		}
	}
	if s.engine.GetHealthStatus().Overall == faulttolerance.HealthStatusUnavailable {
		return errors.New("all provider circuits are open")
	}
	return nil
}
