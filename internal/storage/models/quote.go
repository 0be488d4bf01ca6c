// Package models defines the rows archived in ClickHouse.
package models

import "time"

// Quote is one archived quotation in the `quote` table.
// Rows are produced by the ingester from quote events published by the poller.
type Quote struct {
	// EventID is the uuid of the Kafka event the row came from.
	// ReplacingMergeTree collapses redelivered events on it.
	EventID string `json:"event_id"`

	// Symbol is the normalized ticker (e.g., "2330").
	Symbol string `json:"symbol"`

	Name string `json:"name"`

	// Price is the resolved price in TWD.
	Price float64 `json:"price"`

	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	PreviousClose float64 `json:"previous_close"`
	Volume        float64 `json:"volume"`

	// Market is the listing segment label ("listed", "otc", ...).
	Market string `json:"market"`

	// Status is "trading" or "suspended".
	Status string `json:"status"`

	// Source is the provider, or "price+name" after a name merge.
	Source string `json:"source"`

	// QuotedAt is when the upstream priced the quotation.
	QuotedAt time.Time `json:"quoted_at"`

	// InsertedAt is when the row was written.
	InsertedAt time.Time `json:"inserted_at"`
}
