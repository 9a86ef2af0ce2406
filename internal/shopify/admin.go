package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// ErrMissingField marks a successful admin response that lacks a field we rely on.
var ErrMissingField = errors.New("admin response missing expected field")

// UpstreamError is a non-2xx answer from the Admin API.
type UpstreamError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("shopify returned status %d for %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// Requester is the part of the admin client the resolvers depend on.
type Requester interface {
	Do(ctx context.Context, method, path string, body, out any) error
}

// CallObserver receives one event per admin call.
type CallObserver interface {
	ObserveAdminCall(method, path string, status int, elapsed time.Duration)
}

type AdminConfig struct {
	ShopDomain string
	APIVersion string
	Timeout    time.Duration
	// BaseURL overrides https://<shop>/admin/api/<version>; used against test servers.
	BaseURL string
}

type AdminClient struct {
	cfg      AdminConfig
	tokens   TokenSource
	http     *http.Client
	log      *slog.Logger
	observer CallObserver
}

func NewAdminClient(cfg AdminConfig, tokens TokenSource, logger *slog.Logger) *AdminClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &AdminClient{
		cfg:    cfg,
		tokens: tokens,
		http:   &http.Client{Timeout: timeout},
		log:    logger,
	}
}

// WithObserver attaches a metrics observer and returns the client.
func (c *AdminClient) WithObserver(o CallObserver) *AdminClient {
	c.observer = o
	return c
}

func (c *AdminClient) ShopDomain() string {
	return c.cfg.ShopDomain
}

// AdminURL is the merchant-facing admin page for a draft order.
func (c *AdminClient) AdminURL(draftOrderID int64) string {
	return fmt.Sprintf("https://%s/admin/draft_orders/%d", c.cfg.ShopDomain, draftOrderID)
}

func (c *AdminClient) endpoint(path string) string {
	base := c.cfg.BaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s/admin/api/%s", c.cfg.ShopDomain, c.cfg.APIVersion)
	}
	return strings.TrimRight(base, "/") + path
}

// Do sends body as JSON to the Admin API and decodes a 2xx response into out.
// out may be nil when the caller does not need the response.
func (c *AdminClient) Do(ctx context.Context, method, path string, body, out any) error {
	token, err := c.tokens.AccessToken(ctx, c.cfg.ShopDomain)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Shopify-Access-Token", token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	route, _, _ := strings.Cut(path, "?")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(method, route, 0, start)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	c.observe(method, route, resp.StatusCode, start)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.log.Warn("admin api call failed", "method", method, "path", route, "status", resp.StatusCode)
		return &UpstreamError{Method: method, Path: route, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

func (c *AdminClient) observe(method, path string, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveAdminCall(method, path, status, time.Since(start))
	}
}
