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

	"github.com/temoto/robotstxt"
)

const (
	defaultRobotsCacheTTL = 24 * time.Hour
	robotsTxtPath         = "/robots.txt"
	maxRobotsBodyBytes    = 512 * 1024
	robotsFetchTimeout    = 10 * time.Second
)

// RobotsChecker checks and caches robots.txt rules per host. A missing or
// unreachable robots.txt allows everything.
type RobotsChecker struct {
	httpClient *http.Client
	userAgent  string
	cacheTTL   time.Duration

	mu    sync.RWMutex
	cache map[string]*robotsCacheEntry
}

type robotsCacheEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
	allowAll  bool
}

// NewRobotsChecker creates a new RobotsChecker.
func NewRobotsChecker(httpClient *http.Client, userAgent string, cacheTTL time.Duration) *RobotsChecker {
	if cacheTTL == 0 {
		cacheTTL = defaultRobotsCacheTTL
	}
	return &RobotsChecker{
		httpClient: httpClient,
		userAgent:  userAgent,
		cacheTTL:   cacheTTL,
		cache:      make(map[string]*robotsCacheEntry),
	}
}

// IsAllowed reports whether rawURL may be fetched under its host's robots.txt.
func (r *RobotsChecker) IsAllowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, entry, err := r.entryFor(ctx, rawURL)
	if err != nil {
		return false, err
	}
	if entry.allowAll {
		return true, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}
	return entry.data.TestAgent(path, r.userAgent), nil
}

// Sitemaps returns the Sitemap directives declared in the host's robots.txt.
func (r *RobotsChecker) Sitemaps(ctx context.Context, rawURL string) ([]string, error) {
	_, entry, err := r.entryFor(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	if entry.allowAll || entry.data == nil {
		return nil, nil
	}
	return entry.data.Sitemaps, nil
}

func (r *RobotsChecker) entryFor(ctx context.Context, rawURL string) (*url.URL, *robotsCacheEntry, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("robots: parse url: %w", err)
	}
	host := strings.ToLower(parsed.Host)
	if host == "" {
		return nil, nil, fmt.Errorf("robots: empty host in url %q", rawURL)
	}

	if entry, ok := r.cached(host); ok {
		return parsed, entry, nil
	}
	return parsed, r.fetchAndCache(ctx, host, parsed.Scheme), nil
}

func (r *RobotsChecker) cached(host string) (*robotsCacheEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.cache[host]
	if !ok || time.Since(entry.fetchedAt) > r.cacheTTL {
		return nil, false
	}
	return entry, true
}

func (r *RobotsChecker) fetchAndCache(ctx context.Context, host, scheme string) *robotsCacheEntry {
	if scheme == "" {
		scheme = "https"
	}

	entry := &robotsCacheEntry{fetchedAt: time.Now(), allowAll: true}
	body, status, err := r.doFetch(ctx, scheme+"://"+host+robotsTxtPath)
	if err == nil && status >= http.StatusOK && status < http.StatusMultipleChoices {
		if data, parseErr := robotstxt.FromBytes(body); parseErr == nil {
			entry = &robotsCacheEntry{data: data, fetchedAt: time.Now()}
		}
	}

	r.mu.Lock()
	r.cache[host] = entry
	r.mu.Unlock()
	return entry
}

func (r *RobotsChecker) doFetch(ctx context.Context, robotsURL string) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, robotsFetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, http.NoBody)
	if err != nil {
		return nil, 0, fmt.Errorf("robots: create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req) //nolint:gosec // URL from crawl target
	if err != nil {
		return nil, 0, fmt.Errorf("robots: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("robots: read body: %w", err)
	}
	return body, resp.StatusCode, nil
}
