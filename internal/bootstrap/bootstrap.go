// Package bootstrap assembles an engine from application configuration.
package bootstrap

import (
	"github.com/navid-fn/twradar/configs"
	"github.com/navid-fn/twradar/internal/engine"
	"github.com/navid-fn/twradar/internal/provider"
	"github.com/navid-fn/twradar/internal/provider/finmind"
	"github.com/navid-fn/twradar/internal/provider/goodinfo"
	"github.com/navid-fn/twradar/internal/provider/twse"
	"github.com/navid-fn/twradar/internal/provider/yahoo"
	"github.com/sirupsen/logrus"
)

// Providers builds every enabled upstream adapter.
func Providers(cfg *configs.AppConfig, logger *logrus.Logger) []provider.Provider {
	pc := cfg.Providers
	var out []provider.Provider

	if pc.TWSE.Enabled {
		out = append(out, twse.New(descriptor(twse.Name, pc.TWSE), pc.TWSE.BaseURL, logger))
	}
	if pc.Yahoo.Enabled {
		out = append(out, yahoo.New(descriptor(yahoo.Name, pc.Yahoo), pc.Yahoo.BaseURL, logger))
	}
	if pc.FinMind.Enabled {
		out = append(out, finmind.New(descriptor(finmind.Name, pc.FinMind), pc.FinMind.BaseURL, pc.FinMindToken, logger))
	}
	if pc.GoodInfo.Enabled {
		out = append(out, goodinfo.New(descriptor(goodinfo.Name, pc.GoodInfo), pc.GoodInfo.BaseURL, pc.GoodInfoRedirectDelay, logger))
	}
	return out
}

// NewEngine wires the enabled providers into a resolution engine.
func NewEngine(cfg *configs.AppConfig, logger *logrus.Logger) (*engine.Engine, error) {
	providers := Providers(cfg, logger)
	for _, p := range providers {
		d := p.Descriptor()
		logger.Infof("[bootstrap] provider %s priority=%d timeout=%s retries=%d rps=%.1f",
			d.Name, d.Priority, d.Timeout, d.MaxRetries, d.RequestsPerSecond)
	}
	return engine.New(cfg.Engine, cfg.Cache, providers, logger)
}

func descriptor(name string, pc configs.ProviderConfig) provider.Descriptor {
	return provider.Descriptor{
		Name:              name,
		Priority:          pc.Priority,
		Timeout:           pc.Timeout,
		MaxRetries:        pc.MaxRetries,
		RetryBaseDelay:    pc.RetryBaseDelay,
		RequestsPerSecond: pc.RequestsPerSecond,
	}
}
