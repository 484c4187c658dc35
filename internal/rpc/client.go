// Package rpc provides the shared HTTP client used for the optional
// gas-simulate RPC call (internal/detector) and the reference Oracle REST
// feed (internal/downstream): a resty client with retry, a token-bucket
// rate limiter, and optional HMAC request signing, grounded on
// internal/exchange/client.go (teacher).
package rpc

import (
	"context"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config tunes a Client's transport, rate limit, and optional auth.
type Config struct {
	Timeout             time.Duration
	APIKey              string // sent as a bearer token when HMACSecret is unset
	HMACSecret          string // when set, requests are HMAC-signed instead of bearer-authed
	RateCapacity        float64
	RateRefillPerSecond float64
}

// DefaultConfig returns sane defaults: a 2s timeout and a 20-burst/10-per-sec
// rate limit, the same shape as the teacher's Book category.
func DefaultConfig() Config {
	return Config{Timeout: 2 * time.Second, RateCapacity: 20, RateRefillPerSecond: 10}
}

// Client wraps resty with retry-on-5xx, a token-bucket rate limiter, and
// optional HMAC signing — the same composition as
// internal/exchange/client.go (teacher), retargeted from CLOB trading
// endpoints to the gas-simulate and oracle-price endpoints.
type Client struct {
	http   *resty.Client
	rl     *TokenBucket
	signer *HMACSigner
	log    *slog.Logger
}

// NewClient builds a Client. An empty cfg.HMACSecret means requests carry no
// signature beyond the optional bearer token.
func NewClient(cfg Config, log *slog.Logger) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	http := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" && cfg.HMACSecret == "" {
		http.SetAuthToken(cfg.APIKey)
	}

	var signer *HMACSigner
	if cfg.HMACSecret != "" {
		s, err := NewHMACSigner(cfg.HMACSecret)
		if err != nil {
			return nil, fmt.Errorf("rpc client: %w", err)
		}
		signer = s
	}

	capacity := cfg.RateCapacity
	if capacity == 0 {
		capacity = 20
	}
	refill := cfg.RateRefillPerSecond
	if refill == 0 {
		refill = 10
	}

	return &Client{
		http:   http,
		rl:     NewTokenBucket(capacity, refill),
		signer: signer,
		log:    log.With("component", "rpc_client"),
	}, nil
}

// PostJSON rate-limits, optionally signs, and POSTs body as JSON to url,
// unmarshalling the response into result.
func (c *Client) PostJSON(ctx context.Context, url string, body, result any) (*resty.Response, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	req := c.http.R().SetContext(ctx).SetBody(body).SetResult(result)
	if c.signer != nil {
		req.SetHeaders(c.signer.Headers(nethttp.MethodPost, url, ""))
	}
	return req.Post(url)
}

// GetJSON rate-limits, optionally signs, and GETs url with query, unmarshalling
// the response into result.
func (c *Client) GetJSON(ctx context.Context, url string, query map[string]string, result any) (*resty.Response, error) {
	if err := c.rl.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}
	req := c.http.R().SetContext(ctx).SetQueryParams(query).SetResult(result)
	if c.signer != nil {
		req.SetHeaders(c.signer.Headers(nethttp.MethodGet, url, ""))
	}
	return req.Get(url)
}
