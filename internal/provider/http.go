package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BrowserUserAgent is sent by default; several upstreams reject bare clients.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	maxBodySize = 8 << 20
)

// HTTPClient is a rate-limited http.Client wrapper that classifies failures.
// Deadlines come from the request context, not from the client.
type HTTPClient struct {
	HTTP        *http.Client
	RateLimiter *rate.Limiter
	Headers     map[string]string
	Name        string
}

// NewHTTPClient creates a client for one provider. rps <= 0 disables throttling.
func NewHTTPClient(name string, rps float64) *HTTPClient {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(1, int(rps)))
	}

	return &HTTPClient{
		HTTP:        &http.Client{Transport: transport},
		RateLimiter: limiter,
		Name:        name,
		Headers: map[string]string{
			"User-Agent":      BrowserUserAgent,
			"Accept-Language": "zh-TW,zh;q=0.9,en;q=0.8",
		},
	}
}

// Get fetches url and returns the body of a 2xx response.
// Non-2xx statuses map through ClassifyStatus.
func (c *HTTPClient) Get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	if c.RateLimiter != nil {
		if err := c.RateLimiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, NewError(KindOf(ctxErr), c.Name, "rate wait", ctxErr)
			}
			return nil, NewError(KindTimeout, c.Name, "rate wait", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewError(KindTransport, c.Name, "build request", err)
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, NewError(KindOf(err), c.Name, "GET", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, NewError(KindOf(err), c.Name, "read body", err)
	}

	if kind, bad := ClassifyStatus(resp.StatusCode); bad {
		return nil, NewError(kind, c.Name, "GET", fmt.Errorf("status %d", resp.StatusCode))
	}
	return body, nil
}

// GetJSON fetches url and decodes the body into out.
func (c *HTTPClient) GetJSON(ctx context.Context, url string, headers map[string]string, out any) error {
	body, err := c.Get(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return Malformed(c.Name, "decode", err)
	}
	return nil
}

// Reachable sends a HEAD request and reports whether the host answered below 500.
func (c *HTTPClient) Reachable(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	for k, v := range c.Headers {
		req.Header.Set(k, v)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < http.StatusInternalServerError
}
