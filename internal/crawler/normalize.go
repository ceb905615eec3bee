package crawler

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"sort"
	"strings"
)

// trackingParams are stripped during normalization; they never change page content.
var trackingParams = map[string]struct{}{
	"utm_source":   {},
	"utm_medium":   {},
	"utm_campaign": {},
	"utm_term":     {},
	"utm_content":  {},
	"fbclid":       {},
	"gclid":        {},
	"gclsrc":       {},
	"dclid":        {},
	"msclkid":      {},
}

var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
}

var (
	errEmptyInput          = errors.New("normalize url: empty input")
	errMissingSchemeOrHost = errors.New("normalize url: missing scheme or host")
	errUnsupportedScheme   = errors.New("normalize url: unsupported scheme")
)

// NormalizeURL lowercases scheme and host, drops default ports, fragments
// and tracking parameters, sorts the query and resolves dot-segments.
// The scheme is kept so the result stays fetchable.
func NormalizeURL(rawURL string) (string, error) {
	u, err := normalize(rawURL)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// URLKey returns the dedup key for a URL: its normalized form without the
// scheme, so http and https variants of a page collapse into one entry.
func URLKey(rawURL string) (string, error) {
	u, err := normalize(rawURL)
	if err != nil {
		return "", err
	}
	key := u.Host + u.EscapedPath()
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	return key, nil
}

// NormalizeStart turns a bare domain such as "example.no" into a fetchable
// https URL and normalizes it.
func NormalizeStart(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", errEmptyInput
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return NormalizeURL(raw)
}

func normalize(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, errEmptyInput
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, fmt.Errorf("normalize url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errMissingSchemeOrHost
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errUnsupportedScheme
	}

	u.Host = normalizeHost(u)
	u.User = nil
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = cleanQuery(u.Query())
	u.Path = normalizePath(u.Path)
	u.RawPath = ""
	return u, nil
}

func normalizeHost(u *url.URL) string {
	hostname := strings.TrimSuffix(strings.ToLower(u.Hostname()), ".")
	port := u.Port()
	if port == "" || defaultPorts[u.Scheme] == port {
		return hostname
	}
	return hostname + ":" + port
}

func cleanQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		if _, tracking := trackingParams[strings.ToLower(key)]; !tracking {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		for _, val := range values[key] {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(key))
			b.WriteByte('=')
			b.WriteString(url.QueryEscape(val))
		}
	}
	return b.String()
}

func normalizePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	cleaned := path.Clean(p)
	if cleaned == "/" {
		return cleaned
	}
	return strings.TrimRight(cleaned, "/")
}

// SiteHost returns the host used for same-site comparison: lowercased,
// port kept, leading "www." removed.
func SiteHost(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// SameSite reports whether two URLs share a site host.
func SameSite(a, b string) bool {
	ha := SiteHost(a)
	return ha != "" && ha == SiteHost(b)
}

var assetExtensions = map[string]struct{}{
	".pdf": {}, ".jpg": {}, ".jpeg": {}, ".png": {}, ".gif": {}, ".webp": {}, ".svg": {},
	".ico": {}, ".zip": {}, ".rar": {}, ".gz": {}, ".mp4": {}, ".mp3": {}, ".avi": {},
	".mov": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {},
	".css": {}, ".js": {}, ".xml": {}, ".json": {}, ".woff": {}, ".woff2": {}, ".ttf": {},
}

// IsAssetURL reports whether a URL points at a binary or static asset that
// is never worth fetching as a page.
func IsAssetURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := assetExtensions[strings.ToLower(path.Ext(u.Path))]
	return ok
}
