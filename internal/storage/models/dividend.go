package models

import "time"

// Dividend is one archived ex-dividend event in the `dividend` table.
type Dividend struct {
	EventID string `json:"event_id"`
	Symbol  string `json:"symbol"`

	ExDividendDate time.Time `json:"ex_dividend_date"`

	// PaymentDate is nil when the upstream did not publish one.
	PaymentDate *time.Time `json:"payment_date"`

	Year    int    `json:"year"`
	Quarter string `json:"quarter"`

	CashPerShare       float64 `json:"cash_per_share"`
	StockPerShare      float64 `json:"stock_per_share"`
	TotalDividend      float64 `json:"total_dividend"`
	StockDividendRatio float64 `json:"stock_dividend_ratio"`

	// Type is "cash", "stock" or "both".
	Type   string `json:"type"`
	Source string `json:"source"`

	Confidence int `json:"confidence"`

	InsertedAt time.Time `json:"inserted_at"`
}
