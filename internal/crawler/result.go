package crawler

import "time"

// Image is an image reference discovered on a page.
type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt,omitempty"`
	Class  string `json:"class,omitempty"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
	// Social marks the og:image preview.
	Social bool `json:"social,omitempty"`
	// Icon marks a <link rel="icon"> entry.
	Icon bool `json:"icon,omitempty"`
}

// PageResult is one fetched and parsed HTML page.
type PageResult struct {
	URL             string        `json:"url"`
	Title           string        `json:"title"`
	TextContent     string        `json:"text_content"`
	RawMarkup       string        `json:"-"`
	MetaDescription string        `json:"meta_description,omitempty"`
	MetaLanguage    string        `json:"meta_language,omitempty"`
	Headings        []string      `json:"headings,omitempty"`
	Links           []string      `json:"links,omitempty"`
	StructuredData  []string      `json:"structured_data,omitempty"`
	Images          []Image       `json:"images,omitempty"`
	StatusCode      int           `json:"status_code"`
	FetchDuration   time.Duration `json:"fetch_duration"`
}

// FailedURL records a page that could not be fetched or parsed.
type FailedURL struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// CrawlStats summarizes one crawl.
type CrawlStats struct {
	StartedAt    time.Time     `json:"started_at"`
	Duration     time.Duration `json:"duration"`
	PagesFetched int           `json:"pages_fetched"`
	PagesFailed  int           `json:"pages_failed"`
	PagesSkipped int           `json:"pages_skipped"`
	Waves        int           `json:"waves"`
	UsedSitemap  bool          `json:"used_sitemap"`
}

// CrawlResult is the outcome of one crawl. Pages[0] is always the homepage
// when any page was fetched.
type CrawlResult struct {
	BaseURL     string       `json:"base_url"`
	Pages       []PageResult `json:"pages"`
	SitemapURLs []string     `json:"sitemap_urls,omitempty"`
	Images      []Image      `json:"images,omitempty"`
	FailedURLs  []FailedURL  `json:"failed_urls,omitempty"`
	Stats       CrawlStats   `json:"stats"`
}

// Empty reports whether the crawl produced no pages. An empty result is a
// crawl failure, not a site without content.
func (r *CrawlResult) Empty() bool {
	return r == nil || len(r.Pages) == 0
}

// Homepage returns the first page, or nil for an empty result.
func (r *CrawlResult) Homepage() *PageResult {
	if r.Empty() {
		return nil
	}
	return &r.Pages[0]
}

const maxResultImages = 150

func (r *CrawlResult) addPage(p *PageResult) {
	r.Pages = append(r.Pages, *p)
	r.Stats.PagesFetched++

	seen := make(map[string]struct{}, len(r.Images))
	for i := range r.Images {
		seen[r.Images[i].URL] = struct{}{}
	}
	for _, img := range p.Images {
		if len(r.Images) >= maxResultImages {
			return
		}
		if _, dup := seen[img.URL]; dup {
			continue
		}
		seen[img.URL] = struct{}{}
		r.Images = append(r.Images, img)
	}
}

func (r *CrawlResult) addFailure(url, reason string) {
	r.FailedURLs = append(r.FailedURLs, FailedURL{URL: url, Reason: reason})
	r.Stats.PagesFailed++
}
