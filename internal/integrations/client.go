// Package integrations holds the HTTP plumbing shared by provider API clients.
package integrations

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"rtranslator/internal/cache"

	"golang.org/x/time/rate"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = time.Second
)

// Options configures a Client. Zero values select defaults.
type Options struct {
	Cache      cache.Cache
	CacheTTL   time.Duration
	RateLimit  float64 // requests per second, 0 = unlimited
	UserAgent  string
	Headers    map[string]string
	RetryDelay time.Duration
}

// Client provides caching, rate limiting, retries and common headers for
// provider API calls.
type Client struct {
	http       *http.Client
	cache      cache.Cache
	ttl        time.Duration
	limiter    *rate.Limiter
	headers    map[string]string
	retryDelay time.Duration
}

// NewHTTPClient returns an http.Client tuned for API calls.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: defaultTimeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        50,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}
}

func NewClient(opts Options) *Client {
	c := &Client{
		http:       NewHTTPClient(),
		cache:      opts.Cache,
		ttl:        opts.CacheTTL,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		headers:    map[string]string{"Accept": "application/json"},
		retryDelay: opts.RetryDelay,
	}
	if c.cache == nil {
		c.cache = cache.NewNullCache()
	}
	if c.retryDelay <= 0 {
		c.retryDelay = defaultRetryDelay
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}
	if opts.UserAgent != "" {
		c.headers["User-Agent"] = opts.UserAgent
	}
	for k, v := range opts.Headers {
		c.headers[k] = v
	}
	return c
}

// Cached retrieves a value from cache or executes fetch and caches the result.
// fetch must populate v; on success v is stored as JSON.
func (c *Client) Cached(ctx context.Context, key string, v any, fetch func() error) error {
	if data, ok, _ := c.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(data, v); err == nil {
			return nil
		}
	}
	if err := Retry(ctx, defaultAttempts, c.retryDelay, fetch); err != nil {
		return err
	}
	if data, err := json.Marshal(v); err == nil {
		_ = c.cache.Set(ctx, key, data, c.ttl)
	}
	return nil
}

// Get performs a cached, retried GET and JSON-decodes the response into v.
func (c *Client) Get(ctx context.Context, url string, v any) error {
	return c.Cached(ctx, "GET "+url, v, func() error {
		return c.getJSON(ctx, url, v)
	})
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	body, err := c.doRequest(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

func (c *Client) doRequest(ctx context.Context, url string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("%w: %v", ErrNetwork, err)}
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests || code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrNetwork, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrNetwork, code)
	}
}
