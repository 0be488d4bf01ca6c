// Package models defines the domain models used across the application.
package models

import (
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// SecurityType is the instrument class derived from a ticker symbol.
type SecurityType string

const (
	SecurityEquity  SecurityType = "equity"
	SecurityETF     SecurityType = "etf"
	SecurityBondETF SecurityType = "bondEtf"
)

// Market is a Taiwan market segment. Used for display and candidate ordering.
type Market string

const (
	MarketListed   Market = "listed"
	MarketOTC      Market = "otc"
	MarketEmerging Market = "emerging"
	MarketOther    Market = "other"
	MarketUnknown  Market = "unknown"
)

// QuoteStatus flags quotations whose price is not a live trade.
type QuoteStatus string

const (
	StatusTrading   QuoteStatus = "trading"
	StatusSuspended QuoteStatus = "suspended"
)

// SymbolAnalysis is the pure, pattern-based classification of a ticker.
type SymbolAnalysis struct {
	// RawSymbol is the input exactly as received.
	RawSymbol string `json:"raw_symbol"`

	// Symbol is the trimmed, uppercased ticker.
	Symbol string `json:"symbol"`

	SecurityType SecurityType `json:"security_type"`

	// CandidateSuffixes are the exchange suffixes to try, in order (".TW", ".TWO").
	CandidateSuffixes []string `json:"candidate_suffixes"`

	// CandidateMarkets mirrors CandidateSuffixes as market segments.
	CandidateMarkets []Market `json:"candidate_markets"`
}

// Quotation is the immutable result of a successful price resolution.
// Build it with NewQuotation so rounding is applied in one place.
type Quotation struct {
	// Symbol is the normalized ticker (e.g., "2330", "00679B").
	Symbol string `json:"symbol"`

	// Name is the localized security name (e.g., "台積電").
	// Empty when no provider could supply one.
	Name string `json:"name"`

	// Price is the last traded price in TWD, rounded to 2 decimals.
	Price float64 `json:"price"`

	// Change is Price minus PreviousClose.
	Change float64 `json:"change"`

	// ChangePercent is Change relative to PreviousClose, in percent.
	ChangePercent float64 `json:"change_percent"`

	PreviousClose float64 `json:"previous_close"`
	Open          float64 `json:"open,omitempty"`
	High          float64 `json:"high,omitempty"`
	Low           float64 `json:"low,omitempty"`
	Volume        float64 `json:"volume,omitempty"`

	// Market is the display label of the listing segment.
	Market Market `json:"market"`

	Status QuoteStatus `json:"status"`

	// Source names the provider that supplied the price, and after a name merge
	// the composite "price+name" (e.g., "Yahoo+FinMind").
	Source string `json:"source"`

	// Timestamp is when the upstream priced the quotation.
	Timestamp time.Time `json:"timestamp"`
}

// QuotationInput carries raw provider values into NewQuotation.
type QuotationInput struct {
	Symbol        string
	Name          string
	Price         float64
	PreviousClose float64
	// Change is only used when PreviousClose is unknown.
	Change    float64
	Open      float64
	High      float64
	Low       float64
	Volume    float64
	Market    Market
	Status    QuoteStatus
	Source    string
	Timestamp time.Time
}

// NewQuotation builds a Quotation applying the rounding policy:
// prices, changes and percentages to 2 decimals, volume to whole units.
func NewQuotation(in QuotationInput) Quotation {
	prev := in.PreviousClose
	change := in.Change
	if prev > 0 {
		change = in.Price - prev
	} else if change != 0 {
		prev = in.Price - change
	}

	var pct float64
	if prev > 0 {
		pct = change / prev * 100
	}

	status := in.Status
	if status == "" {
		status = StatusTrading
	}
	market := in.Market
	if market == "" {
		market = MarketUnknown
	}
	ts := in.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	return Quotation{
		Symbol:        in.Symbol,
		Name:          in.Name,
		Price:         Round(in.Price, 2),
		Change:        Round(change, 2),
		ChangePercent: Round(pct, 2),
		PreviousClose: Round(prev, 2),
		Open:          Round(in.Open, 2),
		High:          Round(in.High, 2),
		Low:           Round(in.Low, 2),
		Volume:        Round(in.Volume, 0),
		Market:        market,
		Status:        status,
		Source:        in.Source,
		Timestamp:     ts,
	}
}

// Usable reports whether the quotation carries a real price.
func (q Quotation) Usable() bool {
	return q.Price > 0
}

// HasLocalizedName reports whether Name is a real Chinese name. Empty names,
// the bare ticker and ASCII-only names (Yahoo's romanized longName) are placeholders.
func (q Quotation) HasLocalizedName() bool {
	if q.Name == "" || q.Name == q.Symbol {
		return false
	}
	for _, r := range q.Name {
		if r > unicode.MaxASCII {
			return true
		}
	}
	return false
}

// WithName returns a copy carrying a name supplied by another provider.
// Source becomes the composite "price+name".
func (q Quotation) WithName(name, nameSource string) Quotation {
	q.Name = name
	if nameSource != "" && nameSource != q.Source {
		q.Source = q.Source + "+" + nameSource
	}
	return q
}

// Round rounds half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
