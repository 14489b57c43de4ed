package webfetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Defaults applied by NewFetcher when the corresponding Config field
// is zero.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultUserAgent      = "safekb/1.0"
	DefaultMaxContentSize = 10 << 20 // 10 MiB
	DefaultRatePerSecond  = 2
	maxRedirects          = 5
)

// Config configures a Fetcher.
type Config struct {
	// Timeout bounds a single request including the body read.
	Timeout time.Duration

	// UserAgent is sent on every request.
	UserAgent string

	// MaxContentSize caps the response body size in bytes.
	MaxContentSize int64

	// RatePerSecond limits outbound requests per second.
	RatePerSecond float64

	// AllowPrivate disables URL validation and the safe dialer.
	// Only for fetching from local development servers.
	AllowPrivate bool
}

// Result is a fetched response.
type Result struct {
	Body         []byte
	ContentType  string
	ETag         string
	LastModified time.Time
	StatusCode   int
}

// Fetcher fetches web content with SSRF protection, a size cap and
// request rate limiting. Safe for concurrent use.
type Fetcher struct {
	client         *http.Client
	limiter        *rate.Limiter
	userAgent      string
	maxContentSize int64
	allowPrivate   bool
}

// NewFetcher creates a Fetcher from cfg, filling in defaults for
// zero-valued fields.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxContentSize <= 0 {
		cfg.MaxContentSize = DefaultMaxContentSize
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = DefaultRatePerSecond
	}

	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	// Re-validate resolved addresses at dial time so a hostname cannot
	// pass URL validation and then resolve to a private IP.
	safeDialContext := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid address: %w", err)
		}

		ips, err := net.DefaultResolver.LookupIPAddr(ctx, host)
		if err != nil {
			return nil, fmt.Errorf("DNS lookup failed: %w", err)
		}

		for _, ipAddr := range ips {
			if IsPrivateIP(ipAddr.IP) {
				return nil, fmt.Errorf("connection to private IP %s is not allowed", ipAddr.IP)
			}
		}

		for _, ipAddr := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ipAddr.IP.String(), port))
			if err == nil {
				return conn, nil
			}
		}

		return nil, fmt.Errorf("failed to connect to any resolved IP")
	}

	transport := &http.Transport{
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	if !cfg.AllowPrivate {
		transport.DialContext = safeDialContext
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	if !cfg.AllowPrivate {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("too many redirects (max %d)", maxRedirects)
			}
			if err := ValidateURL(req.URL.String()); err != nil {
				return fmt.Errorf("redirect blocked: %w", err)
			}
			return nil
		}
	}

	return &Fetcher{
		client:         client,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		userAgent:      cfg.UserAgent,
		maxContentSize: cfg.MaxContentSize,
		allowPrivate:   cfg.AllowPrivate,
	}
}

// Fetch retrieves the content at urlStr.
func (f *Fetcher) Fetch(ctx context.Context, urlStr string) (*Result, error) {
	return f.FetchWithETag(ctx, urlStr, "")
}

// FetchWithETag retrieves content with conditional fetch support.
// When etag is set and the origin reports the content unchanged, the
// result carries StatusCode 304 and no body.
func (f *Fetcher) FetchWithETag(ctx context.Context, urlStr, etag string) (*Result, error) {
	if !f.allowPrivate {
		if err := ValidateURL(urlStr); err != nil {
			return nil, err
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	result := &Result{
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
		StatusCode:  resp.StatusCode,
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			result.LastModified = t
		}
	}

	if resp.StatusCode == http.StatusNotModified {
		return result, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(body)) > f.maxContentSize {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", f.maxContentSize)
	}

	result.Body = body
	return result, nil
}

// Post sends a JSON body to urlStr and returns the response body,
// subject to the same validation, rate and size limits as Fetch.
func (f *Fetcher) Post(ctx context.Context, urlStr string, body io.Reader) ([]byte, error) {
	if !f.allowPrivate {
		if err := ValidateURL(urlStr); err != nil {
			return nil, err
		}
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, urlStr, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("posting to %s: %w", urlStr, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > f.maxContentSize {
		return nil, fmt.Errorf("content too large (exceeds %d bytes)", f.maxContentSize)
	}

	return data, nil
}
