// Package edge is a client for the DNS/edge provider's zone health API.
package edge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Provider errors.
var (
	ErrZoneNotFound = errors.New("zone not found")
	ErrNoHealthData = errors.New("no health data for zone")
)

const (
	// DialTimeout is the connection timeout.
	DialTimeout = 5 * time.Second
	// TLSHandshakeTimeout is the TLS negotiation timeout.
	TLSHandshakeTimeout = 5 * time.Second

	maxResponseBytes = 1 << 20
)

// APIError is a non-success envelope or HTTP status from the provider.
type APIError struct {
	StatusCode int
	Messages   []string
}

func (e *APIError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("edge api: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("edge api: HTTP %d: %s", e.StatusCode, strings.Join(e.Messages, "; "))
}

// Retryable reports whether the request may succeed if repeated.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// envelope is the provider's response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Errors  []apiMessage    `json:"errors"`
	Result  json.RawMessage `json:"result"`
}

type apiMessage struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type zone struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type zoneHealth struct {
	Score  *int   `json:"score"`
	Status string `json:"status"`
}

// Config configures a Client.
type Config struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	MaxAttempts int
}

// Client calls the provider with bearer auth. All requests are idempotent GETs.
type Client struct {
	baseURL     string
	token       string
	http        *http.Client
	logger      *slog.Logger
	maxAttempts int
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewHTTPClient creates an HTTP client for provider calls.
// It does not follow redirects.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   DialTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: TLSHandshakeTimeout,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// NewClient creates a provider client.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		token:       cfg.Token,
		http:        NewHTTPClient(cfg.Timeout),
		logger:      logger.With("component", "edge.client"),
		maxAttempts: cfg.MaxAttempts,
		sleep:       sleepContext,
	}
}

// LookupZoneID returns the provider zone id for a domain name.
func (c *Client) LookupZoneID(ctx context.Context, domain string) (string, error) {
	var zones []zone
	if err := c.get(ctx, "/zones?name="+url.QueryEscape(domain), &zones); err != nil {
		return "", err
	}
	for _, z := range zones {
		if strings.EqualFold(z.Name, domain) && z.ID != "" {
			return z.ID, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrZoneNotFound, domain)
}

// HealthScore returns the 0-100 health score the provider reports for a zone.
func (c *Client) HealthScore(ctx context.Context, zoneID string) (int, error) {
	var health zoneHealth
	if err := c.get(ctx, "/zones/"+url.PathEscape(zoneID)+"/health", &health); err != nil {
		return 0, err
	}
	if health.Score == nil {
		return 0, fmt.Errorf("%w: %s", ErrNoHealthData, zoneID)
	}
	return clampScore(*health.Score), nil
}

// get performs a GET with retries on transport errors, 429 and 5xx.
func (c *Client) get(ctx context.Context, path string, result any) error {
	var lastErr error
	for attempt := 0; !IsExhausted(attempt, c.maxAttempts); attempt++ {
		if attempt > 0 {
			if err := c.sleep(ctx, NextRetryDelay(attempt-1)); err != nil {
				return err
			}
		}

		err := c.do(ctx, path, result)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Retryable() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Debug("edge request failed, retrying",
			"path", path,
			"attempt", attempt+1,
			"error", err,
		)
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Tracker-DomainHealth/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("edge request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(body, &env)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || decodeErr != nil || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		for _, m := range env.Errors {
			apiErr.Messages = append(apiErr.Messages, m.Message)
		}
		if decodeErr != nil && resp.StatusCode < 300 {
			return fmt.Errorf("decode envelope: %w", decodeErr)
		}
		return apiErr
	}

	if err := json.Unmarshal(env.Result, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
