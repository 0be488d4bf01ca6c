package models

import (
	"sort"
	"strconv"
	"time"
)

// DividendType classifies a distribution.
type DividendType string

const (
	DividendCash  DividendType = "cash"
	DividendStock DividendType = "stock"
	DividendBoth  DividendType = "both"
)

// DividendRecord is a single ex-dividend event for a security.
type DividendRecord struct {
	Symbol string `json:"symbol"`

	// ExDividendDate is the first trading day without entitlement.
	ExDividendDate time.Time `json:"ex_dividend_date"`

	// PaymentDate is set only when the upstream publishes it.
	PaymentDate *time.Time `json:"payment_date,omitempty"`

	// Year is the fiscal year the distribution belongs to.
	Year int `json:"year,omitempty"`

	// Quarter is the period label when the upstream reports one (e.g., "2024Q3").
	Quarter string `json:"quarter,omitempty"`

	// CashPerShare is the cash dividend in TWD per share, 4 decimals.
	CashPerShare float64 `json:"cash_per_share"`

	// StockPerShare is the stock dividend in TWD par value per share, 4 decimals.
	StockPerShare float64 `json:"stock_per_share"`

	TotalDividend float64 `json:"total_dividend"`

	// StockDividendRatio is the number of bonus shares per 1000 shares held.
	StockDividendRatio float64 `json:"stock_dividend_ratio,omitempty"`

	Type DividendType `json:"type"`

	Source string `json:"source"`

	// Confidence is the number of plausible table windows the scraper matched.
	// Zero for records from structured APIs.
	Confidence int `json:"confidence,omitempty"`
}

// DividendInput carries raw provider values into NewDividendRecord.
type DividendInput struct {
	Symbol         string
	ExDividendDate time.Time
	PaymentDate    *time.Time
	Year           int
	Quarter        string
	Cash           float64
	Stock          float64
	Source         string
	Confidence     int
}

// NewDividendRecord derives type and ratio, and rounds amounts to 4 decimals.
func NewDividendRecord(in DividendInput) DividendRecord {
	cash := Round(in.Cash, 4)
	stock := Round(in.Stock, 4)

	typ := DividendCash
	switch {
	case cash > 0 && stock > 0:
		typ = DividendBoth
	case stock > 0:
		typ = DividendStock
	}

	year := in.Year
	if year == 0 && !in.ExDividendDate.IsZero() {
		year = in.ExDividendDate.Year()
	}

	return DividendRecord{
		Symbol:             in.Symbol,
		ExDividendDate:     in.ExDividendDate,
		PaymentDate:        in.PaymentDate,
		Year:               year,
		Quarter:            in.Quarter,
		CashPerShare:       cash,
		StockPerShare:      stock,
		TotalDividend:      Round(cash+stock, 4),
		StockDividendRatio: Round(stock/10*1000, 0),
		Type:               typ,
		Source:             in.Source,
		Confidence:         in.Confidence,
	}
}

// DedupeDividends drops records sharing (ExDividendDate, CashPerShare),
// keeping the first occurrence.
func DedupeDividends(records []DividendRecord) []DividendRecord {
	seen := make(map[string]struct{}, len(records))
	out := make([]DividendRecord, 0, len(records))
	for _, r := range records {
		key := r.ExDividendDate.Format("2006-01-02") + "|" + strconv.FormatFloat(r.CashPerShare, 'f', 4, 64)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}

// SortDividendsDesc orders records newest first.
func SortDividendsDesc(records []DividendRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ExDividendDate.After(records[j].ExDividendDate)
	})
}

// DividendsSince keeps records whose ex-dividend date is on or after since.
func DividendsSince(records []DividendRecord, since time.Time) []DividendRecord {
	if since.IsZero() {
		return records
	}
	out := make([]DividendRecord, 0, len(records))
	for _, r := range records {
		if !r.ExDividendDate.Before(since) {
			out = append(out, r)
		}
	}
	return out
}
