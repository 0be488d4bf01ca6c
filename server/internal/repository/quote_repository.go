package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/navid-fn/twradar/server/internal/model"
)

// ArchiveRepository reads the ClickHouse archive filled by the ingester.
type ArchiveRepository interface {
	GetQuoteHistory(ctx context.Context, symbol string, limit int) ([]model.Quote, error)
	GetDividends(ctx context.Context, symbol string, since time.Time) ([]model.Dividend, error)
	GetQuoteCountGroupBySource(ctx context.Context) (map[string]int, error)
	Ping(ctx context.Context) error
}

type gormArchiveRepository struct {
	db *gorm.DB
}

func NewGormArchiveRepository(db *gorm.DB) ArchiveRepository {
	return &gormArchiveRepository{db: db}
}

// GetQuoteHistory returns the newest archived quotes first.
// FINAL collapses rows the ReplacingMergeTree has not merged yet.
func (r *gormArchiveRepository) GetQuoteHistory(ctx context.Context, symbol string, limit int) ([]model.Quote, error) {
	var quotes []model.Quote
	err := r.db.WithContext(ctx).
		Table("quote FINAL").
		Where("symbol = ?", symbol).
		Order("quoted_at DESC").
		Limit(limit).
		Find(&quotes).Error
	if err != nil {
		return nil, err
	}
	return quotes, nil
}

func (r *gormArchiveRepository) GetDividends(ctx context.Context, symbol string, since time.Time) ([]model.Dividend, error) {
	var dividends []model.Dividend
	err := r.db.WithContext(ctx).
		Table("dividend FINAL").
		Where("symbol = ? AND ex_dividend_date >= ?", symbol, since).
		Order("ex_dividend_date DESC").
		Find(&dividends).Error
	if err != nil {
		return nil, err
	}
	return dividends, nil
}

func (r *gormArchiveRepository) GetQuoteCountGroupBySource(ctx context.Context) (map[string]int, error) {
	type sourceCount struct {
		Source string
		Count  int
	}
	var rows []sourceCount
	err := r.db.WithContext(ctx).
		Model(&model.Quote{}).
		Select("source, count(*) as count").
		Group("source").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(rows))
	for _, row := range rows {
		result[row.Source] = row.Count
	}
	return result, nil
}

func (r *gormArchiveRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
