package publisher

import (
	"time"

	"github.com/google/uuid"

	"github.com/navid-fn/twradar/internal/models"
)

// QuoteEvent is the JSON payload of the quote topic.
type QuoteEvent struct {
	EventID       string    `json:"event_id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	PreviousClose float64   `json:"previous_close"`
	Volume        float64   `json:"volume"`
	Source        string    `json:"source"`
	Status        string    `json:"status"`
	Market        string    `json:"market"`
	QuotedAt      time.Time `json:"quoted_at"`
}

// DividendEvent is the JSON payload of the dividend topic.
type DividendEvent struct {
	EventID            string     `json:"event_id"`
	Symbol             string     `json:"symbol"`
	ExDividendDate     time.Time  `json:"ex_dividend_date"`
	PaymentDate        *time.Time `json:"payment_date,omitempty"`
	Year               int        `json:"year"`
	Quarter            string     `json:"quarter,omitempty"`
	CashPerShare       float64    `json:"cash_per_share"`
	StockPerShare      float64    `json:"stock_per_share"`
	TotalDividend      float64    `json:"total_dividend"`
	StockDividendRatio float64    `json:"stock_dividend_ratio"`
	Type               string     `json:"type"`
	Source             string     `json:"source"`
	Confidence         int        `json:"confidence,omitempty"`
}

// NewQuoteEvent stamps a quotation with a fresh event id.
func NewQuoteEvent(q *models.Quotation) QuoteEvent {
	return QuoteEvent{
		EventID:       uuid.NewString(),
		Symbol:        q.Symbol,
		Name:          q.Name,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		PreviousClose: q.PreviousClose,
		Volume:        q.Volume,
		Source:        q.Source,
		Status:        string(q.Status),
		Market:        string(q.Market),
		QuotedAt:      q.Timestamp,
	}
}

// NewDividendEvent stamps a dividend record with a fresh event id.
func NewDividendEvent(r models.DividendRecord) DividendEvent {
	return DividendEvent{
		EventID:            uuid.NewString(),
		Symbol:             r.Symbol,
		ExDividendDate:     r.ExDividendDate,
		PaymentDate:        r.PaymentDate,
		Year:               r.Year,
		Quarter:            r.Quarter,
		CashPerShare:       r.CashPerShare,
		StockPerShare:      r.StockPerShare,
		TotalDividend:      r.TotalDividend,
		StockDividendRatio: r.StockDividendRatio,
		Type:               string(r.Type),
		Source:             r.Source,
		Confidence:         r.Confidence,
	}
}
