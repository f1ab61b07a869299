// Package graph talks to the Facebook Graph API: page tokens, leadgen forms,
// lead pages and pixel events.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"gitlab.com/timkado/api/meta-lead-sync/internal/apperrors"
	"gitlab.com/timkado/api/meta-lead-sync/internal/config"
	"gitlab.com/timkado/api/meta-lead-sync/internal/observer"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/logger"
	"gitlab.com/timkado/api/meta-lead-sync/pkg/utils"
)

const (
	// DefaultTimeout bounds every Graph call.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxBodyBytes is the largest response body read (10MB)
	DefaultMaxBodyBytes = 10 * 1024 * 1024

	redacted = "[redacted]"
)

// Client issues Graph API requests. Transport failures come back wrapping
// apperrors.ErrTimeout or apperrors.ErrNetwork, remote error payloads as *apperrors.APIError.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	baseURL string
	version string
	maxBody int64
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// NewClient creates a Graph client from configuration.
func NewClient(cfg config.GraphConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst < 1 {
		burst = 1
	}

	c := &Client{
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    100,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(limit, burst),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: cfg.Version,
		maxBody: maxBody,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NodeURL builds {base}/{version}/{parts...}. Empty base or version fall back to the client defaults.
func (c *Client) NodeURL(base, version string, parts ...string) string {
	if base == "" {
		base = c.baseURL
	}
	if version == "" {
		version = c.version
	}
	segs := append([]string{strings.TrimRight(base, "/"), version}, parts...)
	return strings.Join(segs, "/")
}

// Get requests rawURL with params merged into its query and returns the body.
func (c *Client) Get(ctx context.Context, endpoint, rawURL string, params url.Values) ([]byte, error) {
	return c.do(ctx, endpoint, http.MethodGet, rawURL, params, nil)
}

// Post sends body as JSON to rawURL with params merged into its query.
func (c *Client) Post(ctx context.Context, endpoint, rawURL string, params url.Values, body interface{}) ([]byte, error) {
	return c.do(ctx, endpoint, http.MethodPost, rawURL, params, body)
}

// GetJSON is Get followed by decoding the body into out.
func (c *Client) GetJSON(ctx context.Context, endpoint, rawURL string, params url.Values, out interface{}) error {
	body, err := c.Get(ctx, endpoint, rawURL, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", endpoint, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, endpoint, method, rawURL string, params url.Values, payload interface{}) ([]byte, error) {
	start := time.Now()
	body, err := c.roundTrip(ctx, method, rawURL, params, payload)
	observer.ObserveGraphRequest(endpoint, time.Since(start), err)

	log := logger.FromContext(ctx)
	if err != nil {
		log.Debug("Graph request failed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	} else {
		log.Debug("Graph request completed",
			zap.String("endpoint", endpoint),
			zap.String("method", method),
			zap.Duration("duration", time.Since(start)),
			zap.String("size", utils.ByteCountSI(len(body))))
	}
	return body, err
}

func (c *Client) roundTrip(ctx context.Context, method, rawURL string, params url.Values, payload interface{}) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid url %q: %v", apperrors.ErrBadRequest, rawURL, err)
	}
	// a paging.next URL carries no extra params and is requested verbatim
	if len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	displayURL := *u
	displayURL.RawQuery = ""
	shown := redactParams(u.Query())

	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classifyTransport(ctx, method, displayURL.String(), err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", apperrors.ErrBadRequest, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(ctx, method, displayURL.String(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, classifyTransport(ctx, method, displayURL.String(), err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, &apperrors.APIError{
			Method: method, URL: displayURL.String(), Params: shown, StatusCode: resp.StatusCode,
			Body: fmt.Sprintf("response body exceeds %s", utils.ByteCountSI(int(c.maxBody))),
		}
	}

	var envelope struct {
		Error map[string]interface{} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &apperrors.APIError{
			Method: method, URL: displayURL.String(), Params: shown, StatusCode: resp.StatusCode,
			Body: utils.Truncate(string(body), 512),
		}
	}
	if envelope.Error != nil {
		return nil, &apperrors.APIError{
			Method: method, URL: displayURL.String(), Params: shown, StatusCode: resp.StatusCode,
			Fields: envelope.Error,
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, &apperrors.APIError{
			Method: method, URL: displayURL.String(), Params: shown, StatusCode: resp.StatusCode,
			Body: utils.Truncate(string(body), 512),
		}
	}
	return body, nil
}

// classifyTransport maps a failed round trip onto the timeout/network taxonomy.
// Cancellation by the caller is returned as is.
func classifyTransport(ctx context.Context, method, shownURL string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s %s: %w", method, shownURL, ctx.Err())
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s %s: %v", apperrors.ErrTimeout, method, shownURL, stripQuery(err))
	}
	return fmt.Errorf("%w: %s %s: %v", apperrors.ErrNetwork, method, shownURL, stripQuery(err))
}

// stripQuery keeps tokens carried in a url.Error out of messages.
func stripQuery(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if u, perr := url.Parse(urlErr.URL); perr == nil {
			u.RawQuery = ""
			return &url.Error{Op: urlErr.Op, URL: u.String(), Err: urlErr.Err}
		}
	}
	return err
}

func redactParams(q url.Values) map[string]string {
	if len(q) == 0 {
		return nil
	}
	out := make(map[string]string, len(q))
	for k, vs := range q {
		if isSecretParam(k) {
			out[k] = redacted
			continue
		}
		out[k] = strings.Join(vs, ",")
	}
	return out
}

func isSecretParam(k string) bool {
	k = strings.ToLower(k)
	return k == "access_token" || k == "appsecret_proof" || strings.HasSuffix(k, "_token")
}
