package httpclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/nutsq/nutsdash/errors"
	"github.com/nutsq/nutsdash/logger"
)

// RequestIDHeader carries a per-request correlation id to the backend
const RequestIDHeader = "X-Request-ID"

// Options configures a Client. Zero values select defaults.
type Options struct {
	Timeout           time.Duration // Default: 10s
	MaxRedirects      int           // Default: 10
	RequestsPerSecond float64       // 0 = unlimited
	AllowedSchemes    []string      // Default: ["http", "https"]
	UserAgent         string
}

// Client wraps http.Client with a timeout, a redirect cap, scheme validation,
// optional client-side throttling and request id stamping.
type Client struct {
	*http.Client
	allowedSchemes []string
	maxRedirects   int
	limiter        *rate.Limiter // nil = unlimited
	userAgent      string
}

// New creates a Client from opts
func New(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return wrap(&http.Client{Timeout: timeout}, opts)
}

// WrapClient wraps an existing http.Client (e.g. httptest.Server.Client()).
func WrapClient(client *http.Client) *Client {
	return wrap(client, Options{})
}

func wrap(hc *http.Client, opts Options) *Client {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 10
	}
	allowedSchemes := opts.AllowedSchemes
	if allowedSchemes == nil {
		allowedSchemes = []string{"http", "https"}
	}

	c := &Client{
		Client:         hc,
		allowedSchemes: allowedSchemes,
		maxRedirects:   maxRedirects,
		userAgent:      opts.UserAgent,
	}
	if opts.RequestsPerSecond > 0 {
		burst := int(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return errors.Newf("stopped after %d redirects", c.maxRedirects)
		}
		if err := c.validateURL(req.URL); err != nil {
			return errors.Wrap(err, "redirect blocked")
		}
		return nil
	}

	return c
}

// validateURL checks scheme and host before a request leaves the process
func (c *Client) validateURL(u *url.URL) error {
	scheme := strings.ToLower(u.Scheme)
	allowed := false
	for _, allowedScheme := range c.allowedSchemes {
		if scheme == allowedScheme {
			allowed = true
			break
		}
	}
	if !allowed {
		return errors.Newf("scheme %q not allowed (allowed: %v)", scheme, c.allowedSchemes)
	}

	if u.Hostname() == "" {
		return errors.New("URL missing hostname")
	}

	return nil
}

// ValidateURL parses and validates a URL string before creating a request
func (c *Client) ValidateURL(urlStr string) (*url.URL, error) {
	u, err := url.Parse(urlStr)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}

	if err := c.validateURL(u); err != nil {
		return nil, err
	}

	return u, nil
}

// Do validates the request URL, waits for the rate limiter, stamps
// X-Request-ID and User-Agent, then executes the request.
// The request id comes from the request context (logger.WithRequestID) or a new uuid.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.validateURL(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}

	if err := c.waitForSlot(req.Context()); err != nil {
		return nil, err
	}

	if req.Header.Get(RequestIDHeader) == "" {
		id := logger.RequestIDFromContext(req.Context())
		if id == "" {
			id = uuid.NewString()
		}
		req.Header.Set(RequestIDHeader, id)
	}
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	return c.Client.Do(req)
}

// waitForSlot blocks on the rate limiter for at most the client timeout.
// Running out of that budget is reported as context.DeadlineExceeded so
// callers classify it as a timeout.
func (c *Client) waitForSlot(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	waitCtx := ctx
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(waitCtx); err != nil {
		if ctx.Err() == nil {
			return errors.Wrapf(context.DeadlineExceeded, "rate limiter: no request slot within %s", c.Timeout)
		}
		return errors.Wrap(err, "rate limiter")
	}
	return nil
}
