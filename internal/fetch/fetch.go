// Package fetch retrieves feeds and pages over HTTP, trying the origin first
// and then each configured proxy.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"

	"github.com/ppiankov/newspan/internal/cache"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; newspan/1.0; +https://github.com/ppiankov/newspan)"
	DefaultRetries   = 3
	DefaultCacheTTL  = time.Hour

	maxBodyBytes     = 5 << 20
	urlPlaceholder   = "{url}"
	robotsFetchLimit = 512 << 10
)

// DefaultProxies are tried, in order, after a direct fetch fails.
var DefaultProxies = []string{
	"https://api.allorigins.win/raw?url={url}",
	"https://corsproxy.io/?{url}",
}

// ErrDisallowed is returned by FetchPage when robots.txt forbids the URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", e.URL, e.Code)
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	Timeout       time.Duration
	UserAgent     string
	Retries       int
	Proxies       []string
	RespectRobots bool
	Cache         cache.Cache
	CacheTTL      time.Duration
	Transport     http.RoundTripper
	Logger        *slog.Logger
}

// Client fetches feed and page bodies.
type Client struct {
	http          *http.Client
	userAgent     string
	retries       int
	proxies       []string
	respectRobots bool
	cache         cache.Cache
	cacheTTL      time.Duration
	logger        *slog.Logger

	mu     sync.Mutex
	robots map[string]*robotstxt.RobotsData
}

// New creates a Client from opts. A nil Proxies slice means DefaultProxies;
// an empty non-nil slice disables proxies.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Proxies == nil {
		opts.Proxies = DefaultProxies
	}
	if opts.Cache == nil {
		opts.Cache = cache.Nop{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &userAgentTransport{base: opts.Transport, userAgent: opts.UserAgent},
		},
		userAgent:     opts.UserAgent,
		retries:       opts.Retries,
		proxies:       opts.Proxies,
		respectRobots: opts.RespectRobots,
		cache:         opts.Cache,
		cacheTTL:      opts.CacheTTL,
		logger:        opts.Logger,
		robots:        make(map[string]*robotstxt.RobotsData),
	}
}

// FetchFeed returns the raw feed document at feedURL. The body is returned
// undecoded so the feed parser can honour the XML encoding declaration.
func (c *Client) FetchFeed(ctx context.Context, feedURL string) (string, error) {
	return c.fetch(ctx, feedURL, false)
}

// FetchPage returns the HTML of an article or search page, decoded to UTF-8.
// Pages are cached for the configured TTL.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	if body, ok := c.cache.Get(ctx, pageURL); ok {
		return body, nil
	}
	if c.respectRobots && !c.allowed(ctx, pageURL) {
		return "", fmt.Errorf("fetch %s: %w", pageURL, ErrDisallowed)
	}

	body, err := c.fetch(ctx, pageURL, true)
	if err != nil {
		return "", err
	}
	c.cache.Set(ctx, pageURL, body, c.cacheTTL)
	return body, nil
}

func (c *Client) fetch(ctx context.Context, target string, decode bool) (string, error) {
	var errs []error
	for _, candidate := range c.candidates(target) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		body, err := c.getWithRetry(ctx, candidate, decode)
		if err == nil {
			return body, nil
		}
		c.logger.Debug("fetch attempt failed", "url", candidate, "err", err)
		errs = append(errs, err)
	}
	return "", fmt.Errorf("fetch %s: %w", target, errors.Join(errs...))
}

// candidates lists the direct URL followed by every proxied form of it.
func (c *Client) candidates(target string) []string {
	out := make([]string, 0, len(c.proxies)+1)
	out = append(out, target)
	escaped := url.QueryEscape(target)
	for _, tpl := range c.proxies {
		out = append(out, strings.ReplaceAll(tpl, urlPlaceholder, escaped))
	}
	return out
}

// sleepFunc waits between retries; tests replace it.
var sleepFunc = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Client) getWithRetry(ctx context.Context, target string, decode bool) (string, error) {
	var lastErr error
	for attempt := range c.retries {
		body, err := c.get(ctx, target, decode)
		if err == nil {
			return body, nil
		}
		if !isRetryableError(err) {
			return "", err
		}
		lastErr = err
		if attempt < c.retries-1 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second // 1s, 2s, 4s
			if err := sleepFunc(ctx, backoff); err != nil {
				return "", err
			}
		}
	}
	return "", lastErr
}

func (c *Client) get(ctx context.Context, target string, decode bool) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{URL: target, Code: resp.StatusCode}
	}

	var r io.Reader = io.LimitReader(resp.Body, maxBodyBytes)
	if decode {
		if utf8Reader, err := charset.NewReader(r, resp.Header.Get("Content-Type")); err == nil {
			r = utf8Reader
		}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("%s: empty response", target)
	}
	return string(data), nil
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "connection refused") || strings.Contains(s, "connection reset")
}

// userAgentTransport injects a User-Agent header into every request.
type userAgentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(req)
}
