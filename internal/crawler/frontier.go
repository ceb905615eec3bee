package crawler

import (
	"net/url"
	"strings"
)

// notableKeywords move a link to the front of the queue. They cover the
// subpages sitelink selection looks for, in English and the Nordic languages.
var notableKeywords = []string{
	"contact", "kontakt", "yhteys", "about", "om-oss", "omoss", "om-os", "about-us", "meist", "yritys",
	"team", "ansatte", "medarbeidere", "people", "tietoa",
	"product", "produkt", "tjenester", "services", "palvelut", "losninger",
	"investor", "news", "nyheter", "aktuelt", "presse", "uutiset",
}

// frontier is the BFS queue of one crawl. Every URL enters at most once.
type frontier struct {
	site     string
	seen     map[string]struct{}
	priority []string
	normal   []string
}

func newFrontier(homeURL string) *frontier {
	return &frontier{
		site: SiteHost(homeURL),
		seen: make(map[string]struct{}),
	}
}

// markSeen records a URL without queueing it. It reports whether the URL was new.
func (f *frontier) markSeen(raw string) bool {
	key, err := URLKey(raw)
	if err != nil {
		return false
	}
	if _, dup := f.seen[key]; dup {
		return false
	}
	f.seen[key] = struct{}{}
	return true
}

// push queues a same-site, non-asset URL that has not been seen before.
func (f *frontier) push(raw string) {
	normalized, err := NormalizeURL(raw)
	if err != nil || SiteHost(normalized) != f.site || IsAssetURL(normalized) {
		return
	}
	if !f.markSeen(normalized) {
		return
	}
	if isNotable(normalized) {
		f.priority = append(f.priority, normalized)
		return
	}
	f.normal = append(f.normal, normalized)
}

func (f *frontier) pop(n int) []string {
	out := make([]string, 0, n)
	for len(out) < n && len(f.priority) > 0 {
		out = append(out, f.priority[0])
		f.priority = f.priority[1:]
	}
	for len(out) < n && len(f.normal) > 0 {
		out = append(out, f.normal[0])
		f.normal = f.normal[1:]
	}
	return out
}

func (f *frontier) len() int {
	return len(f.priority) + len(f.normal)
}

func (f *frontier) sameSite(raw string) bool {
	return SiteHost(raw) == f.site
}

func isNotable(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	for _, kw := range notableKeywords {
		if strings.Contains(p, kw) {
			return true
		}
	}
	return false
}
