// Package crawler performs bounded, homepage-first deep crawls of business
// websites.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/fetcher"
)

// ErrInvalidStartURL is returned when the domain cannot be turned into a URL.
var ErrInvalidStartURL = errors.New("invalid start url")

// PageFetcher fetches one URL following redirects.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Response, error)
}

// RobotsPolicy answers robots.txt questions for a host.
type RobotsPolicy interface {
	IsAllowed(ctx context.Context, rawURL string) (bool, error)
	Sitemaps(ctx context.Context, rawURL string) ([]string, error)
}

// Crawler walks a single site breadth-first. It is safe for concurrent use;
// the fetch semaphore is shared by every crawl running on it.
type Crawler struct {
	cfg     Config
	fetcher PageFetcher
	robots  RobotsPolicy
	sem     *semaphore.Weighted
	log     logger.Logger
	now     func() time.Time
}

// New creates a Crawler. robots may be nil, in which case every URL is allowed.
func New(cfg Config, pf PageFetcher, robots RobotsPolicy, log logger.Logger) *Crawler {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Crawler{
		cfg:     cfg,
		fetcher: pf,
		robots:  robots,
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		log:     log,
		now:     time.Now,
	}
}

// MaxPages returns the configured default page budget.
func (c *Crawler) MaxPages() int {
	return c.cfg.MaxPages
}

// Crawl fetches the homepage of domain and then up to maxPages-1 further
// same-site pages. An unreachable homepage gives an empty result and a nil
// error; the caller decides what a failed crawl means. The only errors are an
// unusable domain and context cancellation.
func (c *Crawler) Crawl(ctx context.Context, domain string, maxPages int) (*CrawlResult, error) {
	if maxPages <= 0 {
		maxPages = c.cfg.MaxPages
	}

	start, err := NormalizeStart(domain)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrInvalidStartURL, domain, err)
	}

	result := &CrawlResult{BaseURL: start}
	result.Stats.StartedAt = c.now()
	defer func() { result.Stats.Duration = c.now().Sub(result.Stats.StartedAt) }()

	home, ok := c.fetchPage(ctx, start, result)
	if !ok {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		c.log.Info("Homepage unreachable",
			logger.String("url", start),
			logger.Int("failed", result.Stats.PagesFailed),
		)
		return result, nil
	}

	result.BaseURL = home.URL
	result.addPage(home)

	front := newFrontier(home.URL)
	front.markSeen(start)
	front.markSeen(home.URL)

	result.SitemapURLs = c.discoverSitemap(ctx, home.URL)
	result.Stats.UsedSitemap = len(result.SitemapURLs) > 0
	for _, u := range result.SitemapURLs {
		front.push(u)
	}
	for _, link := range home.Links {
		front.push(link)
	}

	for len(result.Pages) < maxPages && front.len() > 0 {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		batch := front.pop(maxPages - len(result.Pages))
		pages := c.fetchWave(ctx, batch, front, result)
		result.Stats.Waves++
		for _, p := range pages {
			if len(result.Pages) >= maxPages {
				break
			}
			result.addPage(p)
			for _, link := range p.Links {
				front.push(link)
			}
		}
	}

	c.log.Debug("Crawl finished",
		logger.String("base_url", result.BaseURL),
		logger.Int("pages", len(result.Pages)),
		logger.Int("failed", result.Stats.PagesFailed),
		logger.Int("skipped", result.Stats.PagesSkipped),
		logger.Bool("sitemap", result.Stats.UsedSitemap),
	)
	return result, ctx.Err()
}

// fetchWave fetches batch concurrently and returns the parsed pages in batch
// order. Redirects that land on an already seen or off-site URL are dropped.
func (c *Crawler) fetchWave(ctx context.Context, batch []string, front *frontier, result *CrawlResult) []*PageResult {
	type slot struct {
		page    *PageResult
		failure *FailedURL
		skipped bool
	}
	slots := make([]slot, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	for i, target := range batch {
		g.Go(func() error {
			if !c.allowed(gctx, target) {
				slots[i].skipped = true
				return nil
			}
			if err := c.sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer c.sem.Release(1)

			page, failure, skipped := c.load(gctx, target)
			slots[i] = slot{page: page, failure: failure, skipped: skipped}
			return nil
		})
	}
	// Only semaphore acquisition can fail, and only on cancellation, which
	// the caller observes through ctx.
	_ = g.Wait()

	// Redirect targets are deduplicated after the wave so concurrent fetches
	// never race on the frontier.
	pages := make([]*PageResult, 0, len(batch))
	for i, s := range slots {
		switch {
		case s.failure != nil:
			result.addFailure(s.failure.URL, s.failure.Reason)
		case s.skipped:
			result.Stats.PagesSkipped++
		case s.page != nil:
			if !front.sameSite(s.page.URL) || (!sameURL(batch[i], s.page.URL) && !front.markSeen(s.page.URL)) {
				result.Stats.PagesSkipped++
				continue
			}
			pages = append(pages, s.page)
		}
	}
	return pages
}

func sameURL(a, b string) bool {
	ka, errA := URLKey(a)
	kb, errB := URLKey(b)
	return errA == nil && errB == nil && ka == kb
}

// fetchPage fetches the homepage synchronously.
func (c *Crawler) fetchPage(ctx context.Context, target string, result *CrawlResult) (*PageResult, bool) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, false
	}
	defer c.sem.Release(1)

	page, failure, skipped := c.load(ctx, target)
	switch {
	case failure != nil:
		result.addFailure(failure.URL, failure.Reason)
		return nil, false
	case skipped:
		result.Stats.PagesSkipped++
		return nil, false
	}
	return page, true
}

// load fetches and parses one URL. Exactly one of page, failure or skipped
// is set.
func (c *Crawler) load(ctx context.Context, target string) (*PageResult, *FailedURL, bool) {
	resp, err := c.fetcher.Fetch(ctx, target)
	if err != nil {
		return nil, &FailedURL{URL: target, Reason: err.Error()}, false
	}
	if !resp.IsHTML() {
		return nil, nil, true
	}

	finalURL := resp.URL
	if normalized, normErr := NormalizeURL(finalURL); normErr == nil {
		finalURL = normalized
	}

	page, err := ParsePage(finalURL, resp.Body, resp.ContentType, ParseLimits{
		MaxMarkupBytes: c.cfg.MaxMarkupBytes,
		MaxTextChars:   c.cfg.MaxTextChars,
	})
	if err != nil {
		return nil, &FailedURL{URL: target, Reason: err.Error()}, false
	}
	page.StatusCode = resp.StatusCode
	page.FetchDuration = resp.Duration
	return page, nil, false
}

func (c *Crawler) allowed(ctx context.Context, target string) bool {
	if c.robots == nil || c.cfg.IgnoreRobots {
		return true
	}
	ok, err := c.robots.IsAllowed(ctx, target)
	if err != nil {
		return true
	}
	return ok
}

// discoverSitemap tries robots.txt Sitemap directives, then /sitemap.xml and
// /sitemap_index.xml. The first candidate that yields URLs wins.
func (c *Crawler) discoverSitemap(ctx context.Context, homeURL string) []string {
	candidates := make([]string, 0, 4)
	if c.robots != nil {
		if declared, err := c.robots.Sitemaps(ctx, homeURL); err == nil {
			candidates = append(candidates, declared...)
		}
	}
	if u, err := url.Parse(homeURL); err == nil {
		root := u.Scheme + "://" + u.Host
		candidates = append(candidates, root+"/sitemap.xml", root+"/sitemap_index.xml")
	}

	tried := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if _, dup := tried[candidate]; dup {
			continue
		}
		tried[candidate] = struct{}{}
		if urls := c.readSitemap(ctx, candidate, homeURL, true); len(urls) > 0 {
			return urls
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

func (c *Crawler) readSitemap(ctx context.Context, sitemapURL, homeURL string, expand bool) []string {
	resp, err := c.fetcher.Fetch(ctx, sitemapURL)
	if err != nil {
		c.log.Debug("Sitemap unavailable", logger.String("url", sitemapURL), logger.Error(err))
		return nil
	}

	if IsSitemapIndex(resp.Body) {
		if !expand {
			return nil
		}
		children, indexErr := ParseSitemapIndex(resp.Body)
		if indexErr != nil {
			return nil
		}
		var urls []string
		for i, child := range children {
			if i >= c.cfg.MaxSitemapChildren || len(urls) >= c.cfg.MaxSitemapURLs {
				break
			}
			urls = append(urls, c.readSitemap(ctx, child, homeURL, false)...)
		}
		return capStrings(urls, c.cfg.MaxSitemapURLs)
	}

	entries, err := ParseSitemap(resp.Body)
	if err != nil {
		return nil
	}
	urls := make([]string, 0, len(entries))
	for _, e := range entries {
		if len(urls) >= c.cfg.MaxSitemapURLs {
			break
		}
		if SameSite(e.Loc, homeURL) && !IsAssetURL(e.Loc) {
			urls = append(urls, e.Loc)
		}
	}
	return urls
}

func capStrings(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
