// Package engine resolves Taiwan tickers against an ordered set of providers.
//
// Providers are tried in ascending priority. Each call goes through the
// provider's circuit breaker, a shared concurrency limiter and a retryer with
// a fresh per-attempt timeout. The first usable price wins; a missing localized
// name is filled from a name-capable provider. Results are cached briefly.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/navid-fn/twradar/configs"
	"github.com/navid-fn/twradar/internal/cache"
	"github.com/navid-fn/twradar/internal/faulttolerance"
	"github.com/navid-fn/twradar/internal/limiter"
	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/provider"
	"github.com/navid-fn/twradar/internal/symbol"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is the only failure GetPrice surfaces for a valid symbol.
	ErrNotFound = errors.New("quotation not found")

	// ErrAllProvidersExhausted is wrapped by ErrNotFound when every provider
	// answered "no data", failed, or was skipped by an open circuit.
	ErrAllProvidersExhausted = errors.New("all providers exhausted")

	ErrInvalidSymbol   = errors.New("invalid symbol")
	ErrNoProviders     = errors.New("no providers configured")
	ErrUnknownProvider = errors.New("unknown provider")
)

type entry struct {
	provider provider.Provider
	desc     provider.Descriptor
	breaker  *faulttolerance.CircuitBreaker
	retryer  *faulttolerance.Retryer
}

// Engine is safe for concurrent use. Create it with New and release it with Close.
type Engine struct {
	cfg     configs.EngineConfig
	logger  *logrus.Logger
	entries []*entry

	limiter   *limiter.Limiter
	quotes    *cache.Cache[models.Quotation]
	dividends *cache.Cache[[]models.DividendRecord]
	monitor   *faulttolerance.HealthMonitor

	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
}

// New builds an engine over providers. Zero config fields take the defaults
// documented on configs.EngineConfig and configs.CacheConfig.
func New(cfg configs.EngineConfig, cacheCfg configs.CacheConfig, providers []provider.Provider, logger *logrus.Logger) (*Engine, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	cfg = withDefaults(cfg)

	e := &Engine{
		cfg:     cfg,
		logger:  logger,
		limiter: limiter.New(cfg.ConcurrencyLimit),
		quotes: cache.New[models.Quotation](cache.Config{
			TTL:             cacheCfg.TTL,
			MaxSize:         cacheCfg.MaxSize,
			CleanupInterval: cacheCfg.CleanupInterval,
		}),
		dividends: cache.New[[]models.DividendRecord](cache.Config{
			TTL:             orDuration(cacheCfg.DividendTTL, time.Hour),
			MaxSize:         cacheCfg.MaxSize,
			CleanupInterval: cacheCfg.CleanupInterval,
		}),
		monitor: faulttolerance.NewHealthMonitor(logger, cfg.HealthCheckInterval),
	}

	seen := make(map[string]bool, len(providers))
	for _, p := range providers {
		desc := p.Descriptor()
		if desc.Name == "" {
			return nil, fmt.Errorf("provider with priority %d has no name", desc.Priority)
		}
		if seen[desc.Name] {
			return nil, fmt.Errorf("duplicate provider %q", desc.Name)
		}
		seen[desc.Name] = true

		timeout := cfg.GlobalTimeout
		if desc.Timeout > 0 && desc.Timeout < timeout {
			timeout = desc.Timeout
		}

		en := &entry{
			provider: p,
			desc:     desc,
			breaker: faulttolerance.NewCircuitBreaker(faulttolerance.CircuitBreakerConfig{
				Threshold: cfg.CircuitThreshold,
				CoolDown:  cfg.CircuitCoolDown,
				Name:      desc.Name,
				IsFailure: provider.IsFailure,
			}, logger),
			retryer: faulttolerance.NewRetryer(faulttolerance.RetryConfig{
				MaxRetries:  min(desc.MaxRetries, cfg.GlobalMaxRetries),
				BaseDelay:   desc.RetryBaseDelay,
				Timeout:     timeout,
				Name:        desc.Name,
				IsRetryable: provider.IsRetryable,
			}, logger),
		}
		e.entries = append(e.entries, en)
		e.monitor.AddBreaker(en.breaker)
		e.monitor.AddCheck(desc.Name, func(ctx context.Context) error {
			if !p.IsHealthy(ctx) {
				return fmt.Errorf("%s unreachable", desc.Name)
			}
			return nil
		})
	}

	sort.SliceStable(e.entries, func(i, j int) bool {
		return e.entries[i].desc.Priority < e.entries[j].desc.Priority
	})
	return e, nil
}

func withDefaults(cfg configs.EngineConfig) configs.EngineConfig {
	if cfg.GlobalTimeout <= 0 {
		cfg.GlobalTimeout = 10 * time.Second
	}
	if cfg.GlobalMaxRetries < 0 {
		cfg.GlobalMaxRetries = 0
	}
	if cfg.ConcurrencyLimit <= 0 {
		cfg.ConcurrencyLimit = 5
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.RequestInterval < 0 {
		cfg.RequestInterval = 0
	}
	if cfg.CircuitThreshold <= 0 {
		cfg.CircuitThreshold = 5
	}
	if cfg.CircuitCoolDown <= 0 {
		cfg.CircuitCoolDown = 30 * time.Second
	}
	if cfg.HealthCheckInterval <= 0 {
		cfg.HealthCheckInterval = 60 * time.Second
	}
	return cfg
}

func orDuration(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Start launches the cache sweepers and the provider health probes.
func (e *Engine) Start(ctx context.Context) {
	e.startOnce.Do(func() {
		ctx, e.cancel = context.WithCancel(ctx)
		e.quotes.Start(ctx)
		e.dividends.Start(ctx)
		e.monitor.Start()
		e.logger.Infof("[engine] started with %d providers", len(e.entries))
	})
}

// Close stops background work. It is safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		if e.cancel != nil {
			e.cancel()
		}
		e.quotes.Stop()
		e.dividends.Stop()
		e.monitor.Stop()
	})
}

// Providers lists registered providers in resolution order.
func (e *Engine) Providers() []provider.Descriptor {
	out := make([]provider.Descriptor, len(e.entries))
	for i, en := range e.entries {
		out[i] = en.desc
	}
	return out
}

// GetPrice resolves one symbol. A symbol no provider can price returns an
// error matching ErrNotFound.
func (e *Engine) GetPrice(ctx context.Context, raw string) (*models.Quotation, error) {
	sym, err := validate(raw)
	if err != nil {
		return nil, err
	}

	if q, ok := e.quotes.Get(sym); ok {
		return &q, nil
	}

	analysis := symbol.Analyze(sym)
	for _, en := range e.entries {
		q, err := call(ctx, e, en, func(ctx context.Context) (*models.Quotation, error) {
			q, err := en.provider.GetPrice(ctx, sym, analysis.CandidateSuffixes)
			if err != nil {
				return nil, err
			}
			if q == nil || !q.Usable() {
				return nil, provider.NotFound(en.desc.Name, "quote", "no usable price")
			}
			return q, nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.logOutcome(en, sym, err)
			continue
		}

		result := *q
		result.Symbol = sym
		if !result.HasLocalizedName() {
			if name, source, ok := e.lookupName(ctx, sym, en.desc.Name); ok {
				result = result.WithName(name, source)
			}
		}

		e.quotes.Set(sym, result)
		e.logger.Debugf("[engine] %s resolved by %s at %.2f", sym, result.Source, result.Price)
		return &result, nil
	}

	e.logger.Warnf("[engine] %s: all %d providers exhausted", sym, len(e.entries))
	return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, sym, ErrAllProvidersExhausted)
}

// GetDividendHistory returns the first non-empty history among dividend-capable
// providers, filtered to since, deduplicated and newest first. Nothing found is
// an empty slice, not an error.
func (e *Engine) GetDividendHistory(ctx context.Context, raw string, since time.Time) ([]models.DividendRecord, error) {
	sym, err := validate(raw)
	if err != nil {
		return nil, err
	}

	key := sym + "|" + since.Format("2006-01-02")
	if records, ok := e.dividends.Get(key); ok {
		return append([]models.DividendRecord(nil), records...), nil
	}

	for _, en := range e.entries {
		dp, ok := en.provider.(provider.DividendProvider)
		if !ok {
			continue
		}

		records, err := call(ctx, e, en, func(ctx context.Context) ([]models.DividendRecord, error) {
			records, err := dp.GetDividendHistory(ctx, sym, since)
			if err != nil {
				return nil, err
			}
			if len(records) == 0 {
				return nil, provider.NotFound(en.desc.Name, "dividends", "empty history")
			}
			return records, nil
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			e.logOutcome(en, sym, err)
			continue
		}

		records = models.DedupeDividends(models.DividendsSince(records, since))
		models.SortDividendsDesc(records)
		if len(records) == 0 {
			continue
		}

		e.dividends.Set(key, records)
		return append([]models.DividendRecord(nil), records...), nil
	}

	return []models.DividendRecord{}, nil
}

// GetName returns the localized name of sym from the cache or a name provider.
func (e *Engine) GetName(ctx context.Context, raw string) (string, error) {
	sym, err := validate(raw)
	if err != nil {
		return "", err
	}
	if q, ok := e.quotes.Get(sym); ok && q.HasLocalizedName() {
		return q.Name, nil
	}
	if name, _, ok := e.lookupName(ctx, sym, ""); ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: no name for %s", ErrNotFound, sym)
}

// ResetStats closes the named provider's circuit and zeroes its counters.
// An empty name resets every provider.
func (e *Engine) ResetStats(name string) error {
	found := false
	for _, en := range e.entries {
		if name == "" || en.desc.Name == name {
			en.breaker.Reset()
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return nil
}

// ClearCache drops every cached quotation and dividend history.
func (e *Engine) ClearCache() {
	e.quotes.Clear()
	e.dividends.Clear()
}

// lookupName asks name-capable providers other than exclude, in priority
// order, skipping open circuits. A failure here never fails the query.
func (e *Engine) lookupName(ctx context.Context, sym, exclude string) (string, string, bool) {
	for _, en := range e.entries {
		np, ok := en.provider.(provider.NameProvider)
		if !ok || en.desc.Name == exclude || !en.breaker.IsClosed() {
			continue
		}

		name, err := call(ctx, e, en, func(ctx context.Context) (string, error) {
			return np.GetName(ctx, sym)
		})
		if err != nil {
			e.logger.Debugf("[engine] name lookup for %s via %s failed: %v", sym, en.desc.Name, err)
			if ctx.Err() != nil {
				return "", "", false
			}
			continue
		}
		if name != "" && name != sym {
			return name, en.desc.Name, true
		}
	}
	return "", "", false
}

// call runs one provider operation under the limiter, breaker and retryer.
// Parent cancellation is not held against the provider.
func call[T any](ctx context.Context, e *Engine, en *entry, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	release, err := e.limiter.Acquire(ctx)
	if err != nil {
		return zero, err
	}
	defer release()

	done, err := en.breaker.Allow()
	if err != nil {
		return zero, err
	}

	v, err := faulttolerance.Do(ctx, en.retryer, fn)
	if ctx.Err() != nil {
		done(context.Canceled)
	} else {
		done(err)
	}
	return v, err
}

func (e *Engine) logOutcome(en *entry, sym string, err error) {
	switch {
	case errors.Is(err, faulttolerance.ErrCircuitBreakerOpen), errors.Is(err, faulttolerance.ErrTooManyRequests):
		e.logger.Debugf("[engine] %s skipped for %s: %v", en.desc.Name, sym, err)
	case provider.IsNotFound(err):
		e.logger.Debugf("[engine] %s has no data for %s", en.desc.Name, sym)
	default:
		e.logger.Warnf("[engine] %s failed for %s: %v", en.desc.Name, sym, err)
	}
}

func validate(raw string) (string, error) {
	sym := symbol.Normalize(raw)
	if !symbol.IsValid(sym) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSymbol, raw)
	}
	return sym, nil
}
