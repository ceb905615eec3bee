package crawler

// Default configuration values.
const (
	defaultMaxPages           = 10
	defaultMaxConcurrency     = 5
	maxConcurrencyCeiling     = 10
	defaultMaxSitemapURLs     = 500
	defaultMaxSitemapChildren = 5
)

// Config holds deep crawler configuration.
type Config struct {
	MaxPages int `env:"CRAWLER_MAX_PAGES" yaml:"max_pages"`
	// MaxConcurrency caps in-flight page fetches across all crawls of one Crawler.
	MaxConcurrency     int  `env:"CRAWLER_MAX_CONCURRENCY" yaml:"max_concurrency"`
	IgnoreRobots       bool `env:"CRAWLER_IGNORE_ROBOTS"   yaml:"ignore_robots"`
	MaxSitemapURLs     int  `yaml:"max_sitemap_urls"`
	MaxSitemapChildren int  `yaml:"max_sitemap_children"`
	MaxMarkupBytes     int  `yaml:"max_markup_bytes"`
	MaxTextChars       int  `yaml:"max_text_chars"`
}

// WithDefaults returns a copy of the config with default values applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = defaultMaxPages
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = defaultMaxConcurrency
	}
	c.MaxConcurrency = min(c.MaxConcurrency, maxConcurrencyCeiling)
	if c.MaxSitemapURLs <= 0 {
		c.MaxSitemapURLs = defaultMaxSitemapURLs
	}
	if c.MaxSitemapChildren <= 0 {
		c.MaxSitemapChildren = defaultMaxSitemapChildren
	}
	return c
}
