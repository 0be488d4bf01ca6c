package engine

import (
	"context"
	"sync"
	"time"

	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/symbol"
	"github.com/navid-fn/twradar/utils"
	"golang.org/x/sync/errgroup"
)

// GetBatchPrices resolves symbols in chunks of min(ConcurrencyLimit, BatchSize),
// pausing RequestInterval between chunks. Failed and invalid symbols are simply
// absent from the result; cancellation returns whatever resolved so far.
func (e *Engine) GetBatchPrices(ctx context.Context, symbols []string) map[string]*models.Quotation {
	unique := make([]string, 0, len(symbols))
	seen := make(map[string]bool, len(symbols))
	for _, raw := range symbols {
		sym := symbol.Normalize(raw)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		unique = append(unique, sym)
	}

	var (
		mu      sync.Mutex
		results = make(map[string]*models.Quotation, len(unique))
	)

	chunks := utils.ChunkSlice(unique, min(e.cfg.ConcurrencyLimit, e.cfg.BatchSize))
	for i, chunk := range chunks {
		if i > 0 && e.cfg.RequestInterval > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.RequestInterval):
			}
		}
		if ctx.Err() != nil {
			e.logger.Infof("[engine] batch cancelled after %d/%d chunks", i, len(chunks))
			break
		}

		var g errgroup.Group
		for _, sym := range chunk {
			g.Go(func() error {
				q, err := e.GetPrice(ctx, sym)
				if err != nil {
					e.logger.Debugf("[engine] batch: %s unresolved: %v", sym, err)
					return nil
				}
				mu.Lock()
				results[sym] = q
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	e.logger.Debugf("[engine] batch resolved %d/%d symbols", len(results), len(unique))
	return results
}
