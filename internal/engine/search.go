package engine

import (
	"context"
	"errors"

	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/symbol"
)

// SearchResult describes a symbol whether or not it resolved.
type SearchResult struct {
	Symbol      string                `json:"symbol"`
	Valid       bool                  `json:"valid"`
	Found       bool                  `json:"found"`
	Quotation   *models.Quotation     `json:"quotation,omitempty"`
	Analysis    models.SymbolAnalysis `json:"analysis"`
	MarketLabel models.Market         `json:"market_label"`
	Suggestions []string              `json:"suggestions,omitempty"`
}

// Search resolves raw and attaches the analysis. Only cancellation is an error;
// invalid and unknown symbols come back with Found false and suggestions.
func (e *Engine) Search(ctx context.Context, raw string) (SearchResult, error) {
	sym := symbol.Normalize(raw)
	res := SearchResult{
		Symbol:      sym,
		Valid:       symbol.IsValid(sym),
		Analysis:    symbol.Analyze(raw),
		MarketLabel: symbol.MarketLabel(sym),
	}
	if !res.Valid {
		res.Suggestions = symbol.Suggestions(sym)
		return res, nil
	}

	q, err := e.GetPrice(ctx, sym)
	switch {
	case err == nil:
		res.Found = true
		res.Quotation = q
	case errors.Is(err, ErrNotFound):
		res.Suggestions = symbol.Suggestions(sym)
	default:
		return res, err
	}
	return res, nil
}
