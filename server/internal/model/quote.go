package model

import "time"

// Quote is an archived quotation written by the ingester.
type Quote struct {
	EventID       string    `gorm:"column:event_id;primaryKey" json:"event_id"`
	Symbol        string    `gorm:"column:symbol" json:"symbol"`
	Name          string    `gorm:"column:name" json:"name"`
	Price         float64   `gorm:"column:price;type:Float64" json:"price"`
	Change        float64   `gorm:"column:change;type:Float64" json:"change"`
	ChangePercent float64   `gorm:"column:change_percent;type:Float64" json:"change_percent"`
	PreviousClose float64   `gorm:"column:previous_close;type:Float64" json:"previous_close"`
	Volume        float64   `gorm:"column:volume;type:Float64" json:"volume"`
	Market        string    `gorm:"column:market" json:"market"`
	Status        string    `gorm:"column:status" json:"status"`
	Source        string    `gorm:"column:source" json:"source"`
	QuotedAt      time.Time `gorm:"column:quoted_at;type:DateTime64(3, 'Asia/Taipei')" json:"quoted_at"`
	InsertedAt    time.Time `gorm:"column:inserted_at;type:DateTime('Asia/Taipei')" json:"inserted_at"`
}

func (Quote) TableName() string {
	return "quote"
}

// Dividend is an archived ex-dividend event.
type Dividend struct {
	EventID            string     `gorm:"column:event_id;primaryKey" json:"event_id"`
	Symbol             string     `gorm:"column:symbol" json:"symbol"`
	ExDividendDate     time.Time  `gorm:"column:ex_dividend_date;type:Date" json:"ex_dividend_date"`
	PaymentDate        *time.Time `gorm:"column:payment_date;type:Nullable(Date)" json:"payment_date,omitempty"`
	Year               uint16     `gorm:"column:year" json:"year"`
	Quarter            string     `gorm:"column:quarter" json:"quarter,omitempty"`
	CashPerShare       float64    `gorm:"column:cash_per_share;type:Float64" json:"cash_per_share"`
	StockPerShare      float64    `gorm:"column:stock_per_share;type:Float64" json:"stock_per_share"`
	TotalDividend      float64    `gorm:"column:total_dividend;type:Float64" json:"total_dividend"`
	StockDividendRatio float64    `gorm:"column:stock_dividend_ratio;type:Float64" json:"stock_dividend_ratio"`
	Type               string     `gorm:"column:type" json:"type"`
	Source             string     `gorm:"column:source" json:"source"`
	Confidence         uint32     `gorm:"column:confidence" json:"confidence,omitempty"`
	InsertedAt         time.Time  `gorm:"column:inserted_at;type:DateTime('Asia/Taipei')" json:"inserted_at"`
}

func (Dividend) TableName() string {
	return "dividend"
}
