// Package api is the typed client for the nuts scheduling service REST API.
//
// Every method maps to exactly one backend endpoint. Path identifiers are
// escaped with url.PathEscape. No method retries; mutating calls in particular
// are issued once and their outcome reported to the caller.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/internal/httpclient"
	"github.com/nutsq/nutsdash/logger"
	"github.com/nutsq/nutsdash/version"
)

// DefaultTimeout bounds every backend request unless Config.Timeout is set
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a response body is read
const maxBodyBytes = 8 << 20

// Config configures a Client
type Config struct {
	BaseURL           string
	Timeout           time.Duration // 0 = DefaultTimeout
	RequestsPerSecond float64       // 0 = unlimited
}

// Option customizes a Client
type Option func(*Client)

// WithLogger sets the client's logger
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// Client talks to one nuts backend
type Client struct {
	baseURL string
	timeout time.Duration
	http    *httpclient.Client
	log     *zap.SugaredLogger
}

// New creates a Client for cfg.BaseURL
func New(cfg Config, opts ...Option) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, errors.New("nuts api: base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	hc := httpclient.New(httpclient.Options{
		Timeout:           timeout,
		RequestsPerSecond: cfg.RequestsPerSecond,
		UserAgent:         version.UserAgent(),
	})
	if _, err := hc.ValidateURL(base); err != nil {
		return nil, errors.Wrapf(err, "nuts api: invalid base URL %q", cfg.BaseURL)
	}

	c := &Client{
		baseURL: base,
		timeout: timeout,
		http:    hc,
		log:     logger.ComponentLogger("nuts-api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log.Debugw("nuts api client ready",
		logger.FieldBaseURL, base,
		"timeout", timeout)
	return c, nil
}

// BaseURL returns the backend base URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do issues one request. path must already be escaped. body, when non-nil,
// is JSON encoded. out, when non-nil, receives the decoded 2xx body.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return errors.Wrapf(err, "encode %s %s request", method, path)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrapf(err, "build %s %s request", method, path)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportError(ctx, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return c.transportError(ctx, method, path, err)
	}

	c.log.Debugw("nuts api request",
		logger.FieldMethod, method,
		logger.FieldPath, path,
		logger.FieldStatusCode, resp.StatusCode,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RequestError{
			StatusCode: resp.StatusCode,
			Detail:     detailFromBody(resp.StatusCode, data),
			Method:     method,
			Path:       path,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Wrapf(err, "decode %s %s response", method, path)
	}
	return nil
}

// transportError classifies a failure that produced no HTTP response.
// The client's own deadline becomes a RequestError; everything else,
// including a caller-cancelled context, is a NetworkError.
func (c *Client) transportError(ctx context.Context, method, path string, err error) error {
	if ctx.Err() == nil && isTimeout(err) {
		return &RequestError{
			Detail:  "request timed out after " + c.timeout.String(),
			Method:  method,
			Path:    path,
			Timeout: true,
		}
	}
	return &NetworkError{Method: method, Path: path, Err: err}
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// escape encodes a path-embedded identifier
func escape(name string) string {
	return url.PathEscape(name)
}
