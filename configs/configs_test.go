package configs

import (
	"reflect"
	"testing"
	"time"
)

func TestAppLoadDefaults(t *testing.T) {
	cfg := AppLoad()

	if cfg.Engine.GlobalTimeout != 10*time.Second {
		t.Errorf("Expected default global timeout 10s, got %v", cfg.Engine.GlobalTimeout)
	}
	if cfg.Engine.ConcurrencyLimit != 5 {
		t.Errorf("Expected default concurrency 5, got %d", cfg.Engine.ConcurrencyLimit)
	}
	if cfg.Engine.CircuitCoolDown != 30*time.Second {
		t.Errorf("Expected default cool-down 30s, got %v", cfg.Engine.CircuitCoolDown)
	}
	if cfg.Cache.TTL != 5*time.Second {
		t.Errorf("Expected default cache TTL 5s, got %v", cfg.Cache.TTL)
	}
	if cfg.Providers.TWSE.Priority >= cfg.Providers.Yahoo.Priority {
		t.Error("Expected TWSE to be tried before Yahoo by default")
	}
	if !cfg.Providers.GoodInfo.Enabled {
		t.Error("Expected providers enabled by default")
	}
	if cfg.KafkaQuote.Topic != "twradar_quotes" {
		t.Errorf("Expected default quote topic, got %q", cfg.KafkaQuote.Topic)
	}
}

func TestAppLoadOverrides(t *testing.T) {
	t.Setenv("ENGINE_GLOBAL_TIMEOUT_MS", "2500")
	t.Setenv("ENGINE_GLOBAL_MAX_RETRIES", "1")
	t.Setenv("YAHOO_ENABLED", "false")
	t.Setenv("FINMIND_RPS", "0.25")
	t.Setenv("FINMIND_TOKEN", "secret")
	t.Setenv("POLLER_SYMBOLS", " 2330, ,0056 ")
	t.Setenv("CACHE_MAX_SIZE", "not-a-number")

	cfg := AppLoad()

	if cfg.Engine.GlobalTimeout != 2500*time.Millisecond {
		t.Errorf("Expected 2.5s timeout, got %v", cfg.Engine.GlobalTimeout)
	}
	if cfg.Engine.GlobalMaxRetries != 1 {
		t.Errorf("Expected 1 retry, got %d", cfg.Engine.GlobalMaxRetries)
	}
	if cfg.Providers.Yahoo.Enabled {
		t.Error("Expected Yahoo disabled")
	}
	if cfg.Providers.FinMind.RequestsPerSecond != 0.25 {
		t.Errorf("Expected 0.25 rps, got %v", cfg.Providers.FinMind.RequestsPerSecond)
	}
	if cfg.Providers.FinMindToken != "secret" {
		t.Errorf("Expected token to load, got %q", cfg.Providers.FinMindToken)
	}
	if !reflect.DeepEqual(cfg.Poller.Symbols, []string{"2330", "0056"}) {
		t.Errorf("Unexpected watchlist %v", cfg.Poller.Symbols)
	}
	if cfg.Cache.MaxSize != 1000 {
		t.Errorf("Expected invalid int to fall back to 1000, got %d", cfg.Cache.MaxSize)
	}
}
