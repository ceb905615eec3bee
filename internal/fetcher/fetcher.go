// Package fetcher issues single-page HTTP requests with rotating browser
// identities, escalating per-attempt timeouts, bounded retries and per-host
// rate limiting.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	infrahttp "github.com/Meltveit/qrydex/infrastructure/http"
	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/infrastructure/retry"
)

const acceptHeader = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

// Response is a fetched page.
type Response struct {
	// URL is the final URL after redirects.
	URL         string
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        []byte
	Attempts    int
	Duration    time.Duration
}

// Fetcher fetches single pages. Safe for concurrent use.
type Fetcher struct {
	cfg        Config
	client     *http.Client
	identities *IdentityRotator
	log        logger.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher with its own HTTP client. The client has no global
// timeout; each attempt is bounded by its entry in AttemptTimeouts.
func New(cfg Config, log logger.Logger) *Fetcher {
	cfg = cfg.WithDefaults()
	client := infrahttp.NewClient(&infrahttp.ClientConfig{
		Timeout:      -1,
		MaxRedirects: cfg.MaxRedirects,
	})
	return NewWithClient(cfg, client, log)
}

// NewWithClient creates a Fetcher around an existing client.
func NewWithClient(cfg Config, client *http.Client, log logger.Logger) *Fetcher {
	cfg = cfg.WithDefaults()
	return &Fetcher{
		cfg:        cfg,
		client:     client,
		identities: NewIdentityRotator(cfg.UserAgents),
		log:        log.With(logger.String("component", "fetcher")),
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Client returns the underlying HTTP client.
func (f *Fetcher) Client() *http.Client {
	return f.client
}

// RobotsAgent returns the product token matched against robots.txt groups.
func (f *Fetcher) RobotsAgent() string {
	return f.cfg.RobotsAgent
}

// Fetch retrieves rawURL. Attempts are retried while IsRetryable holds; each
// attempt uses the next identity and the next, longer timeout. Responses
// with status 400 and above are returned as *StatusError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	start := time.Now()

	cfg := retry.Config{
		MaxAttempts:     len(f.cfg.AttemptTimeouts),
		InitialDelay:    f.cfg.RetryDelay,
		MaxDelay:        defaultMaxDelay,
		AttemptTimeouts: f.cfg.AttemptTimeouts,
		IsRetryable:     IsRetryable,
	}

	var resp *Response
	err := retry.Do(ctx, cfg, func(attemptCtx context.Context, attempt int) error {
		r, fetchErr := f.fetchOnce(attemptCtx, rawURL)
		if fetchErr != nil {
			f.log.Debug("Fetch attempt failed",
				logger.String("url", rawURL),
				logger.Int("attempt", attempt),
				logger.Duration("timeout", cfg.TimeoutFor(attempt)),
				logger.Error(fetchErr),
			)
			return fetchErr
		}
		r.Attempts = attempt
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}

	resp.Duration = time.Since(start)
	return resp, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context, rawURL string) (*Response, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	if err = f.limiterFor(parsed.Hostname()).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	id := f.identities.Next()
	req.Header.Set("User-Agent", id.UserAgent)
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Language", id.AcceptLanguage)

	httpResp, err := f.client.Do(req) //nolint:gosec // URL comes from the crawl target
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	finalURL := rawURL
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		finalURL = httpResp.Request.URL.String()
	}

	if httpResp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 64*1024))
		return nil, &StatusError{URL: finalURL, Code: httpResp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, f.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &Response{
		URL:         finalURL,
		StatusCode:  httpResp.StatusCode,
		ContentType: httpResp.Header.Get("Content-Type"),
		Header:      httpResp.Header,
		Body:        body,
	}, nil
}

func (f *Fetcher) limiterFor(host string) *rate.Limiter {
	host = strings.ToLower(host)

	f.mu.Lock()
	defer f.mu.Unlock()

	l, ok := f.limiters[host]
	if !ok {
		limit := rate.Inf
		if f.cfg.HostRate > 0 {
			limit = rate.Limit(f.cfg.HostRate)
		}
		l = rate.NewLimiter(limit, f.cfg.HostBurst)
		f.limiters[host] = l
	}
	return l
}

// IsHTML reports whether a response carries an HTML document. A missing
// Content-Type is sniffed from the body.
func (r *Response) IsHTML() bool {
	ct := r.ContentType
	if ct == "" {
		ct = http.DetectContentType(r.Body)
	}
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
