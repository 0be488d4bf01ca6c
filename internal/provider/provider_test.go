package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected Kind
	}{
		{"Typed malformed", Malformed("Yahoo", "decode", errors.New("bad json")), KindMalformed},
		{"Bare not found", ErrNotFound, KindNotFound},
		{"Wrapped not found", fmt.Errorf("twse: %w", ErrNotFound), KindNotFound},
		{"Deadline", context.DeadlineExceeded, KindTimeout},
		{"Wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), KindTimeout},
		{"Unknown", errors.New("connection reset"), KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewError(KindTimeout, "p", "op", context.DeadlineExceeded)))
	assert.True(t, IsRetryable(NewError(KindTransport, "p", "op", errors.New("502"))))
	assert.True(t, IsRetryable(Malformed("p", "op", errors.New("schema"))))
	assert.False(t, IsRetryable(NotFound("p", "op", "unlisted")))
	assert.False(t, IsRetryable(NewError(KindTransport, "p", "op", context.Canceled)))
	assert.False(t, IsRetryable(nil))
}

func TestNotFoundMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NotFound("FinMind", "price", "empty data"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "not_found")
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		kind Kind
		bad  bool
	}{
		{200, 0, false},
		{204, 0, false},
		{404, KindNotFound, true},
		{504, KindTimeout, true},
		{429, KindTransport, true},
		{500, KindTransport, true},
		{403, KindTransport, true},
	}

	for _, tt := range tests {
		kind, bad := ClassifyStatus(tt.code)
		assert.Equal(t, tt.bad, bad, "status %d", tt.code)
		if tt.bad {
			assert.Equal(t, tt.kind, kind, "status %d", tt.code)
		}
	}
}

func TestHTTPClientGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "yes", r.Header.Get("X-Test"))
			assert.Equal(t, BrowserUserAgent, r.Header.Get("User-Agent"))
			fmt.Fprint(w, `{"value": 42}`)
		case "/bad":
			fmt.Fprint(w, `{"value": `)
		case "/down":
			w.WriteHeader(http.StatusBadGateway)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient("test", 0)
	ctx := context.Background()

	var out struct {
		Value int `json:"value"`
	}
	require.NoError(t, c.GetJSON(ctx, srv.URL+"/ok", map[string]string{"X-Test": "yes"}, &out))
	assert.Equal(t, 42, out.Value)

	err := c.GetJSON(ctx, srv.URL+"/bad", nil, &out)
	assert.Equal(t, KindMalformed, KindOf(err))

	err = c.GetJSON(ctx, srv.URL+"/down", nil, &out)
	assert.Equal(t, KindTransport, KindOf(err))

	err = c.GetJSON(ctx, srv.URL+"/missing", nil, &out)
	assert.True(t, IsNotFound(err))

	assert.True(t, c.Reachable(ctx, srv.URL+"/ok"))
}

func TestHTTPClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewHTTPClient("test", 0).Get(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.True(t, IsRetryable(err))
}

func TestHTTPClientRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c := NewHTTPClient("test", 10)
	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Get(context.Background(), srv.URL, nil)
		require.NoError(t, err)
	}
	// burst of 10 for 10 rps, so three calls go through without waiting
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	slow := NewHTTPClient("slow", 1)
	_, err := slow.Get(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = slow.Get(ctx, srv.URL, nil)
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}
