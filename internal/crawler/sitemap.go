package crawler

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dateOnlyFormat = "2006-01-02"

var errEmptyLastMod = errors.New("empty lastmod")

// SitemapURL is a single URL entry extracted from a sitemap.
type SitemapURL struct {
	Loc     string     `json:"loc"`
	LastMod *time.Time `json:"lastmod,omitempty"`
}

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

type xmlSitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	Sitemaps []xmlSitemap `xml:"sitemap"`
}

type xmlSitemap struct {
	Loc string `xml:"loc"`
}

// ParseSitemap parses a <urlset> document. Entries without a <loc> are dropped.
func ParseSitemap(body []byte) ([]SitemapURL, error) {
	var urlset xmlURLSet
	if err := xml.Unmarshal(body, &urlset); err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}

	result := make([]SitemapURL, 0, len(urlset.URLs))
	for i := range urlset.URLs {
		entry := &urlset.URLs[i]
		loc := strings.TrimSpace(entry.Loc)
		if loc == "" {
			continue
		}
		su := SitemapURL{Loc: loc}
		if t, err := parseLastMod(entry.LastMod); err == nil {
			su.LastMod = &t
		}
		result = append(result, su)
	}
	return result, nil
}

// ParseSitemapIndex parses a <sitemapindex> document and returns the child sitemap URLs.
func ParseSitemapIndex(body []byte) ([]string, error) {
	var index xmlSitemapIndex
	if err := xml.Unmarshal(body, &index); err != nil {
		return nil, fmt.Errorf("parse sitemap index: %w", err)
	}

	urls := make([]string, 0, len(index.Sitemaps))
	for _, s := range index.Sitemaps {
		if loc := strings.TrimSpace(s.Loc); loc != "" {
			urls = append(urls, loc)
		}
	}
	return urls, nil
}

// IsSitemapIndex reports whether body looks like a sitemap index rather than a urlset.
func IsSitemapIndex(body []byte) bool {
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	return strings.Contains(string(head), "<sitemapindex")
}

func parseLastMod(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, errEmptyLastMod
	}
	if t, err := time.Parse(time.RFC3339, trimmed); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateOnlyFormat, trimmed)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse lastmod %q: %w", trimmed, err)
	}
	return t, nil
}
