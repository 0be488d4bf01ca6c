package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/navid-fn/twradar/configs"
	"github.com/navid-fn/twradar/internal/faulttolerance"
	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/provider"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type mockProvider struct {
	mock.Mock
	desc provider.Descriptor
}

func testDescriptor(name string, priority int) provider.Descriptor {
	return provider.Descriptor{
		Name:           name,
		Priority:       priority,
		Timeout:        time.Second,
		MaxRetries:     0,
		RetryBaseDelay: time.Millisecond,
	}
}

func newMockProvider(name string, priority int) *mockProvider {
	return &mockProvider{desc: testDescriptor(name, priority)}
}

func (m *mockProvider) Descriptor() provider.Descriptor { return m.desc }

func (m *mockProvider) GetPrice(ctx context.Context, sym string, suffixes []string) (*models.Quotation, error) {
	args := m.Called(sym, suffixes)
	q, _ := args.Get(0).(*models.Quotation)
	return q, args.Error(1)
}

func (m *mockProvider) IsHealthy(ctx context.Context) bool {
	return true
}

// mockFullProvider also serves names and dividends.
type mockFullProvider struct {
	mockProvider
}

func newMockFullProvider(name string, priority int) *mockFullProvider {
	return &mockFullProvider{mockProvider: mockProvider{desc: testDescriptor(name, priority)}}
}

func (m *mockFullProvider) GetName(ctx context.Context, sym string) (string, error) {
	args := m.Called(sym)
	return args.String(0), args.Error(1)
}

func (m *mockFullProvider) GetDividendHistory(ctx context.Context, sym string, since time.Time) ([]models.DividendRecord, error) {
	args := m.Called(sym, since)
	records, _ := args.Get(0).([]models.DividendRecord)
	return records, args.Error(1)
}

// funcProvider is for behaviour a mock cannot express, such as blocking.
type funcProvider struct {
	desc     provider.Descriptor
	getPrice func(ctx context.Context, sym string) (*models.Quotation, error)
}

func (f *funcProvider) Descriptor() provider.Descriptor { return f.desc }

func (f *funcProvider) GetPrice(ctx context.Context, sym string, _ []string) (*models.Quotation, error) {
	return f.getPrice(ctx, sym)
}

func (f *funcProvider) IsHealthy(ctx context.Context) bool { return true }

func quote(sym, name, source string, price float64) *models.Quotation {
	q := models.NewQuotation(models.QuotationInput{
		Symbol:        sym,
		Name:          name,
		Price:         price,
		PreviousClose: price - 1,
		Source:        source,
	})
	return &q
}

func notFound(name string) error {
	return provider.NotFound(name, "quote", "no data")
}

func testConfig() configs.EngineConfig {
	return configs.EngineConfig{
		GlobalTimeout:    time.Second,
		GlobalMaxRetries: 3,
		ConcurrencyLimit: 5,
		BatchSize:        5,
		CircuitThreshold: 5,
		CircuitCoolDown:  time.Minute,
	}
}

func newTestEngine(t *testing.T, cfg configs.EngineConfig, providers ...provider.Provider) *Engine {
	t.Helper()
	e, err := New(cfg, configs.CacheConfig{TTL: time.Minute}, providers, quietLogger())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func snapshot(t *testing.T, e *Engine, name string) faulttolerance.ProviderHealth {
	t.Helper()
	for _, p := range e.GetHealthStatus().Providers {
		if p.Name == name {
			return p.ProviderHealth
		}
	}
	t.Fatalf("provider %s not in health report", name)
	return faulttolerance.ProviderHealth{}
}

func TestNewRejectsBadProviderSets(t *testing.T) {
	_, err := New(testConfig(), configs.CacheConfig{}, nil, quietLogger())
	assert.ErrorIs(t, err, ErrNoProviders)

	a := newMockProvider("A", 1)
	b := newMockProvider("A", 2)
	_, err = New(testConfig(), configs.CacheConfig{}, []provider.Provider{a, b}, quietLogger())
	assert.Error(t, err)
}

func TestProvidersOrderedByPriority(t *testing.T) {
	low := newMockProvider("Low", 3)
	high := newMockProvider("High", 1)
	mid := newMockProvider("Mid", 2)

	e := newTestEngine(t, testConfig(), low, high, mid)

	var names []string
	for _, d := range e.Providers() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"High", "Mid", "Low"}, names)
}

func TestGetPriceFallbackOrder(t *testing.T) {
	a := newMockProvider("A", 1)
	b := newMockProvider("B", 2)
	c := newMockProvider("C", 3)

	var order []string
	a.On("GetPrice", "2330", []string{".TW", ".TWO"}).
		Run(func(mock.Arguments) { order = append(order, "A") }).
		Return(nil, notFound("A"))
	b.On("GetPrice", "2330", mock.Anything).
		Run(func(mock.Arguments) { order = append(order, "B") }).
		Return(quote("2330", "台積電", "B", 1005), nil)

	e := newTestEngine(t, testConfig(), c, b, a)

	q, err := e.GetPrice(context.Background(), " 2330 ")
	require.NoError(t, err)

	assert.Equal(t, "B", q.Source)
	assert.Equal(t, 1005.0, q.Price)
	assert.Equal(t, []string{"A", "B"}, order)
	c.AssertNotCalled(t, "GetPrice", mock.Anything, mock.Anything)

	// Not-found is not a health penalty.
	health := snapshot(t, e, "A")
	assert.Equal(t, int64(0), health.FailureCount)
	assert.Equal(t, int64(1), health.SuccessCount)
}

func TestGetPriceSkipsUnusablePrice(t *testing.T) {
	a := newMockProvider("A", 1)
	b := newMockProvider("B", 2)
	a.On("GetPrice", "2330", mock.Anything).Return(quote("2330", "台積電", "A", 0), nil)
	b.On("GetPrice", "2330", mock.Anything).Return(quote("2330", "台積電", "B", 1000), nil)

	e := newTestEngine(t, testConfig(), a, b)

	q, err := e.GetPrice(context.Background(), "2330")
	require.NoError(t, err)
	assert.Equal(t, "B", q.Source)
}

func TestGetPriceCircuitTrips(t *testing.T) {
	cfg := testConfig()
	cfg.CircuitThreshold = 2

	a := newMockProvider("A", 1)
	b := newMockProvider("B", 2)
	a.On("GetPrice", mock.Anything, mock.Anything).
		Return(nil, provider.NewError(provider.KindTransport, "A", "GET", errors.New("status 502")))
	b.On("GetPrice", mock.Anything, mock.Anything).
		Return(quote("0000", "名稱", "B", 10), nil)

	e := newTestEngine(t, cfg, a, b)
	ctx := context.Background()

	for _, sym := range []string{"2330", "2317", "1101"} {
		q, err := e.GetPrice(ctx, sym)
		require.NoError(t, err)
		assert.Equal(t, "B", q.Source)
		assert.Equal(t, sym, q.Symbol)
	}

	a.AssertNumberOfCalls(t, "GetPrice", 2)
	b.AssertNumberOfCalls(t, "GetPrice", 3)

	health := snapshot(t, e, "A")
	assert.True(t, health.CircuitOpen)
	assert.Equal(t, 2, health.ConsecutiveFailures)
	assert.Equal(t, faulttolerance.HealthStatusDegraded, e.GetHealthStatus().Overall)

	require.NoError(t, e.ResetStats("A"))
	assert.False(t, snapshot(t, e, "A").CircuitOpen)
	assert.Equal(t, faulttolerance.HealthStatusHealthy, e.GetHealthStatus().Overall)
}

func TestGetPriceCacheHit(t *testing.T) {
	a := newMockProvider("A", 1)
	a.On("GetPrice", "0050", mock.Anything).Return(quote("0050", "元大台灣50", "A", 180.5), nil)

	e := newTestEngine(t, testConfig(), a)
	ctx := context.Background()

	first, err := e.GetPrice(ctx, "0050")
	require.NoError(t, err)
	second, err := e.GetPrice(ctx, "0050")
	require.NoError(t, err)

	assert.Equal(t, first.Price, second.Price)
	a.AssertNumberOfCalls(t, "GetPrice", 1)
	assert.Equal(t, int64(1), e.GetHealthStatus().Cache.Hits)

	e.ClearCache()
	_, err = e.GetPrice(ctx, "0050")
	require.NoError(t, err)
	a.AssertNumberOfCalls(t, "GetPrice", 2)
}

func TestGetPriceRetryBound(t *testing.T) {
	cfg := testConfig()
	cfg.GlobalMaxRetries = 2

	a := newMockProvider("A", 1)
	a.desc.MaxRetries = 5
	b := newMockProvider("B", 2)
	a.On("GetPrice", "2330", mock.Anything).
		Return(nil, provider.NewError(provider.KindTimeout, "A", "GET", context.DeadlineExceeded))
	b.On("GetPrice", "2330", mock.Anything).Return(quote("2330", "台積電", "B", 1000), nil)

	e := newTestEngine(t, cfg, a, b)

	q, err := e.GetPrice(context.Background(), "2330")
	require.NoError(t, err)
	assert.Equal(t, "B", q.Source)

	// min(5, 2) retries plus the first attempt.
	a.AssertNumberOfCalls(t, "GetPrice", 3)
	assert.Equal(t, int64(1), snapshot(t, e, "A").FailureCount)
}

func TestGetPriceMalformedIsRetried(t *testing.T) {
	a := newMockProvider("A", 1)
	a.desc.MaxRetries = 1
	a.On("GetPrice", "2330", mock.Anything).
		Return(nil, provider.Malformed("A", "decode", errors.New("unexpected field"))).Once()
	a.On("GetPrice", "2330", mock.Anything).
		Return(quote("2330", "台積電", "A", 1000), nil).Once()

	e := newTestEngine(t, testConfig(), a)

	q, err := e.GetPrice(context.Background(), "2330")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, q.Price)
	a.AssertNumberOfCalls(t, "GetPrice", 2)
}

func TestGetPriceAttemptTimeout(t *testing.T) {
	slow := &funcProvider{
		desc: provider.Descriptor{Name: "Slow", Priority: 1, Timeout: 20 * time.Millisecond, RetryBaseDelay: time.Millisecond},
		getPrice: func(ctx context.Context, sym string) (*models.Quotation, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	fast := newMockProvider("Fast", 2)
	fast.On("GetPrice", "2330", mock.Anything).Return(quote("2330", "台積電", "Fast", 1000), nil)

	e := newTestEngine(t, testConfig(), slow, fast)

	start := time.Now()
	q, err := e.GetPrice(context.Background(), "2330")
	require.NoError(t, err)

	assert.Equal(t, "Fast", q.Source)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.Equal(t, int64(1), snapshot(t, e, "Slow").FailureCount)
}

func TestGetPriceAllNotFound(t *testing.T) {
	a := newMockProvider("A", 1)
	b := newMockProvider("B", 2)
	a.On("GetPrice", "9999", mock.Anything).Return(nil, notFound("A"))
	b.On("GetPrice", "9999", mock.Anything).Return(nil, notFound("B"))

	e := newTestEngine(t, testConfig(), a, b)

	q, err := e.GetPrice(context.Background(), "9999")
	assert.Nil(t, q)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, err, ErrAllProvidersExhausted)

	for _, name := range []string{"A", "B"} {
		health := snapshot(t, e, name)
		assert.Equal(t, int64(0), health.FailureCount)
		assert.False(t, health.CircuitOpen)
	}
	a.AssertNumberOfCalls(t, "GetPrice", 1)
}

func TestGetPriceInvalidSymbol(t *testing.T) {
	a := newMockProvider("A", 1)
	e := newTestEngine(t, testConfig(), a)

	for _, raw := range []string{"", "AAPL", "12", "2330-TW"} {
		_, err := e.GetPrice(context.Background(), raw)
		assert.ErrorIs(t, err, ErrInvalidSymbol, raw)
	}
	a.AssertNotCalled(t, "GetPrice", mock.Anything, mock.Anything)
}

func TestGetPriceMergesName(t *testing.T) {
	a := newMockProvider("A", 1)
	b := newMockFullProvider("B", 2)
	a.On("GetPrice", "2330", mock.Anything).
		Return(quote("2330", "Taiwan Semiconductor Manufacturing", "A", 1005), nil)
	b.On("GetName", "2330").Return("台積電", nil)

	e := newTestEngine(t, testConfig(), a, b)

	q, err := e.GetPrice(context.Background(), "2330")
	require.NoError(t, err)

	assert.Equal(t, "台積電", q.Name)
	assert.Equal(t, 1005.0, q.Price)
	assert.Equal(t, "A+B", q.Source)
	b.AssertNotCalled(t, "GetPrice", mock.Anything, mock.Anything)
}

func TestGetPriceNameFailureKeepsPrice(t *testing.T) {
	a := newMockProvider("A", 1)
	b := newMockFullProvider("B", 2)
	a.On("GetPrice", "2330", mock.Anything).Return(quote("2330", "2330", "A", 1005), nil)
	b.On("GetName", "2330").Return("", notFound("B"))

	e := newTestEngine(t, testConfig(), a, b)

	q, err := e.GetPrice(context.Background(), "2330")
	require.NoError(t, err)

	assert.Equal(t, "2330", q.Name)
	assert.Equal(t, "A", q.Source)
}

func TestGetPriceLocalizedNameSkipsMerge(t *testing.T) {
	a := newMockProvider("A", 1)
	b := newMockFullProvider("B", 2)
	a.On("GetPrice", "2330", mock.Anything).Return(quote("2330", "台積電", "A", 1005), nil)

	e := newTestEngine(t, testConfig(), a, b)

	q, err := e.GetPrice(context.Background(), "2330")
	require.NoError(t, err)

	assert.Equal(t, "A", q.Source)
	b.AssertNotCalled(t, "GetName", mock.Anything)
}

func TestGetPriceCancelled(t *testing.T) {
	a := newMockProvider("A", 1)
	a.On("GetPrice", mock.Anything, mock.Anything).Return(nil, context.Canceled).Maybe()
	e := newTestEngine(t, testConfig(), a)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.GetPrice(ctx, "2330")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), snapshot(t, e, "A").FailureCount)
}

func TestGetDividendHistory(t *testing.T) {
	exDate := func(s string) time.Time {
		d, _ := time.Parse("2006-01-02", s)
		return d
	}
	record := func(date string, cash float64) models.DividendRecord {
		return models.NewDividendRecord(models.DividendInput{Symbol: "0056", ExDividendDate: exDate(date), Cash: cash, Source: "B"})
	}

	since := exDate("2023-01-01")
	a := newMockFullProvider("A", 1)
	b := newMockFullProvider("B", 2)
	plain := newMockProvider("Plain", 0)
	a.On("GetDividendHistory", "0056", since).Return(nil, provider.NotFound("A", "dividends", "none"))
	b.On("GetDividendHistory", "0056", since).Return([]models.DividendRecord{
		record("2023-07-18", 1.0),
		record("2024-04-18", 0.7),
		record("2023-07-18", 1.0),
		record("2022-07-18", 1.8),
	}, nil)

	e := newTestEngine(t, testConfig(), a, b, plain)

	records, err := e.GetDividendHistory(context.Background(), "0056", since)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-04-18", records[0].ExDividendDate.Format("2006-01-02"))
	assert.Equal(t, "2023-07-18", records[1].ExDividendDate.Format("2006-01-02"))

	// Served from cache the second time.
	_, err = e.GetDividendHistory(context.Background(), "0056", since)
	require.NoError(t, err)
	b.AssertNumberOfCalls(t, "GetDividendHistory", 1)
}

func TestGetDividendHistoryNothingFound(t *testing.T) {
	a := newMockFullProvider("A", 1)
	a.On("GetDividendHistory", "2330", mock.Anything).Return(nil, provider.NotFound("A", "dividends", "none"))

	e := newTestEngine(t, testConfig(), a)

	records, err := e.GetDividendHistory(context.Background(), "2330", time.Time{})
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)
}

func TestGetName(t *testing.T) {
	a := newMockProvider("A", 1)
	b := newMockFullProvider("B", 2)
	b.On("GetName", "2454").Return("聯發科", nil).Once()
	b.On("GetName", "9999").Return("", notFound("B"))

	e := newTestEngine(t, testConfig(), a, b)

	name, err := e.GetName(context.Background(), "2454")
	require.NoError(t, err)
	assert.Equal(t, "聯發科", name)

	_, err = e.GetName(context.Background(), "9999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResetStatsUnknownProvider(t *testing.T) {
	e := newTestEngine(t, testConfig(), newMockProvider("A", 1))

	assert.ErrorIs(t, e.ResetStats("Nope"), ErrUnknownProvider)
	assert.NoError(t, e.ResetStats(""))
}

func TestSearch(t *testing.T) {
	a := newMockProvider("A", 1)
	a.On("GetPrice", "0050", mock.Anything).Return(nil, notFound("A"))
	a.On("GetPrice", "2330", mock.Anything).Return(quote("2330", "台積電", "A", 1000), nil)

	e := newTestEngine(t, testConfig(), a)
	ctx := context.Background()

	found, err := e.Search(ctx, "2330")
	require.NoError(t, err)
	assert.True(t, found.Found)
	assert.Equal(t, models.MarketListed, found.MarketLabel)
	assert.Empty(t, found.Suggestions)

	missing, err := e.Search(ctx, "0050")
	require.NoError(t, err)
	assert.False(t, missing.Found)
	assert.Equal(t, models.SecurityETF, missing.Analysis.SecurityType)
	assert.NotEmpty(t, missing.Suggestions)

	invalid, err := e.Search(ctx, "hello")
	require.NoError(t, err)
	assert.False(t, invalid.Valid)
	assert.NotEmpty(t, invalid.Suggestions)
}

func TestHealthReportAndProbes(t *testing.T) {
	a := newMockProvider("A", 1)
	e := newTestEngine(t, testConfig(), a)

	report := e.GetHealthStatus()
	require.Len(t, report.Providers, 1)
	assert.Nil(t, report.Providers[0].Probe)
	assert.Equal(t, faulttolerance.HealthStatusHealthy, report.Overall)
	assert.Equal(t, int64(5), report.Limiter.Limit)

	e.ProbeProviders()
	report = e.GetHealthStatus()
	require.NotNil(t, report.Providers[0].Probe)
	assert.Equal(t, faulttolerance.HealthStatusHealthy, report.Providers[0].Probe.Status)
}

func TestConcurrentGetPrice(t *testing.T) {
	a := newMockProvider("A", 1)
	a.On("GetPrice", "2330", mock.Anything).Return(quote("2330", "台積電", "A", 1000), nil)

	e := newTestEngine(t, testConfig(), a)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := e.GetPrice(context.Background(), "2330")
			if err != nil || q.Price != 1000 {
				t.Errorf("unexpected result %v, %v", q, err)
			}
		}()
	}
	wg.Wait()
}
