package engine

import (
	"time"

	"github.com/navid-fn/twradar/internal/cache"
	"github.com/navid-fn/twradar/internal/faulttolerance"
	"github.com/navid-fn/twradar/internal/limiter"
)

// ProviderStatus is one provider's breaker snapshot plus its last probe.
type ProviderStatus struct {
	faulttolerance.ProviderHealth
	Priority int                         `json:"priority"`
	Probe    *faulttolerance.HealthCheck `json:"probe,omitempty"`
}

// HealthReport is the engine-wide health view.
type HealthReport struct {
	Overall       faulttolerance.HealthStatus `json:"overall"`
	Providers     []ProviderStatus            `json:"providers"`
	Cache         cache.Stats                 `json:"cache"`
	DividendCache cache.Stats                 `json:"dividend_cache"`
	Limiter       limiter.Stats               `json:"limiter"`
	CheckedAt     time.Time                   `json:"checked_at"`
}

// GetHealthStatus reads breaker state directly; probes only add detail.
func (e *Engine) GetHealthStatus() HealthReport {
	probes := e.monitor.GetHealth()

	providers := make([]ProviderStatus, 0, len(e.entries))
	for _, en := range e.entries {
		status := ProviderStatus{
			ProviderHealth: en.breaker.Snapshot(),
			Priority:       en.desc.Priority,
		}
		if probe, ok := probes[en.desc.Name]; ok && !probe.LastCheck.IsZero() {
			status.Probe = probe
		}
		providers = append(providers, status)
	}

	return HealthReport{
		Overall:       e.monitor.GetOverallHealth(),
		Providers:     providers,
		Cache:         e.quotes.Stats(),
		DividendCache: e.dividends.Stats(),
		Limiter:       e.limiter.Stats(),
		CheckedAt:     time.Now(),
	}
}

// ProbeProviders runs every provider's reachability check once.
func (e *Engine) ProbeProviders() {
	e.monitor.RunChecks()
}
