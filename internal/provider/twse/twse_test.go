package twse

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/navid-fn/twradar/internal/models"
	"github.com/navid-fn/twradar/internal/provider"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeMIS answers per ex_ch channel from a fixed table.
func fakeMIS(t *testing.T, rows map[string]string) (*httptest.Server, *[]string) {
	t.Helper()
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ch := r.URL.Query().Get("ex_ch")
		seen = append(seen, ch)
		row, ok := rows[ch]
		if !ok {
			fmt.Fprint(w, `{"msgArray":[],"rtcode":"0000"}`)
			return
		}
		fmt.Fprintf(w, `{"msgArray":[%s],"rtcode":"0000","rtmessage":"OK"}`, row)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestGetPriceListed(t *testing.T) {
	srv, seen := fakeMIS(t, map[string]string{
		"tse_2330.tw": `{"c":"2330","n":"台積電","z":"1005.0000","pz":"1000.0000","y":"995.0000","o":"998.0000","h":"1010.0000","l":"990.0000","v":"23456","d":"20240513","t":"13:30:00","tlong":"1715578200000"}`,
	})

	c := New(provider.Descriptor{Name: Name}, srv.URL, quietLogger())
	q, err := c.GetPrice(context.Background(), "2330", []string{".TW", ".TWO"})
	require.NoError(t, err)

	assert.Equal(t, "台積電", q.Name)
	assert.Equal(t, 1005.0, q.Price)
	assert.Equal(t, 995.0, q.PreviousClose)
	assert.Equal(t, 10.0, q.Change)
	assert.Equal(t, 1.01, q.ChangePercent)
	assert.Equal(t, models.MarketListed, q.Market)
	assert.Equal(t, models.StatusTrading, q.Status)
	assert.Equal(t, "TWSE", q.Source)
	assert.Equal(t, int64(1715578200000), q.Timestamp.UnixMilli())
	assert.Equal(t, []string{"tse_2330.tw"}, *seen)
}

func TestGetPriceFallsThroughSegments(t *testing.T) {
	srv, seen := fakeMIS(t, map[string]string{
		"tse_00679b.tw": `{"c":"00679B","n":"?","z":"-","y":"-"}`,
		"otc_00679b.tw": `{"c":"00679B","n":"元大美債20年","z":"-","pz":"28.1500","y":"28.0000"}`,
	})

	c := New(provider.Descriptor{}, srv.URL, quietLogger())
	q, err := c.GetPrice(context.Background(), "00679B", []string{".TWO", ".TW"})
	require.NoError(t, err)

	assert.Equal(t, 28.15, q.Price)
	assert.Equal(t, models.MarketOTC, q.Market)
	assert.Equal(t, []string{"otc_00679b.tw"}, *seen)
}

func TestGetPriceSuspendedUsesYesterday(t *testing.T) {
	srv, _ := fakeMIS(t, map[string]string{
		"tse_1101.tw": `{"c":"1101","n":"台泥","z":"-","pz":"-","y":"32.5000"}`,
	})

	c := New(provider.Descriptor{}, srv.URL, quietLogger())
	q, err := c.GetPrice(context.Background(), "1101", []string{".TW", ".TWO"})
	require.NoError(t, err)

	assert.Equal(t, 32.5, q.Price)
	assert.Equal(t, 0.0, q.Change)
	assert.Equal(t, models.StatusSuspended, q.Status)
}

func TestGetPriceNotFound(t *testing.T) {
	srv, seen := fakeMIS(t, map[string]string{
		"tse_9999.tw": `{"c":"9999","n":""}`,
	})

	c := New(provider.Descriptor{}, srv.URL, quietLogger())
	_, err := c.GetPrice(context.Background(), "9999", []string{".TW", ".TWO"})

	assert.True(t, provider.IsNotFound(err))
	assert.Equal(t, []string{"tse_9999.tw", "otc_9999.tw"}, *seen)
}

func TestGetPriceUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := New(provider.Descriptor{}, srv.URL, quietLogger())
	_, err := c.GetPrice(context.Background(), "2330", []string{".TW"})

	require.Error(t, err)
	assert.False(t, provider.IsNotFound(err))
	assert.True(t, provider.IsRetryable(err))
}

func TestParseField(t *testing.T) {
	tests := []struct {
		in       string
		expected float64
		ok       bool
	}{
		{"1005.0000", 1005, true},
		{"-", 0, false},
		{"", 0, false},
		{" 12.5 ", 12.5, true},
		{"101.5000_101.0000_", 101.5, true},
		{"abc", 0, false},
	}

	for _, tt := range tests {
		v, ok := parseField(tt.in)
		if ok != tt.ok || v != tt.expected {
			t.Errorf("parseField(%q) = %v, %v; expected %v, %v", tt.in, v, ok, tt.expected, tt.ok)
		}
	}
}

func TestSegments(t *testing.T) {
	assert.Equal(t, []string{"otc", "tse"}, segments([]string{".TWO", ".TW"}))
	assert.Equal(t, []string{"tse", "otc"}, segments(nil))
	assert.Equal(t, []string{"tse"}, segments([]string{".TW", ".tw"}))
}
