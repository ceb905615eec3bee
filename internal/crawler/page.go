package crawler

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/language"
)

// Per-page caps.
const (
	maxHeadingsPerPage       = 30
	maxStructuredPerPage     = 10
	maxStructuredBlockBytes  = 8 * 1024
	maxImagesPerPage         = 50
	maxLinksPerPage          = 300
	defaultMaxMarkupBytes    = 512 * 1024
	defaultMaxTextCharacters = 20000
)

// ParseLimits bound how much of a page is retained.
type ParseLimits struct {
	MaxMarkupBytes int
	MaxTextChars   int
}

func (l ParseLimits) withDefaults() ParseLimits {
	if l.MaxMarkupBytes <= 0 {
		l.MaxMarkupBytes = defaultMaxMarkupBytes
	}
	if l.MaxTextChars <= 0 {
		l.MaxTextChars = defaultMaxTextCharacters
	}
	return l
}

// ParsePage decodes body using the charset declared in contentType or in
// the document, then extracts everything the extractor consumes.
func ParsePage(pageURL string, body []byte, contentType string, limits ParseLimits) (*PageResult, error) {
	limits = limits.withDefaults()

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	decoded, err := decodeBody(body, contentType)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if b, resolveErr := base.Parse(strings.TrimSpace(href)); resolveErr == nil {
			base = b
		}
	}

	page := &PageResult{
		URL:             pageURL,
		Title:           extractTitle(doc),
		MetaDescription: metaContent(doc, "description", "og:description"),
		MetaLanguage:    extractLanguage(doc),
		Headings:        extractHeadings(doc),
		StructuredData:  extractStructuredData(doc),
		Images:          extractImages(doc, base),
		Links:           extractLinks(doc, base, pageURL),
		RawMarkup:       truncateBytes(string(decoded), limits.MaxMarkupBytes),
	}

	page.TextContent = truncateRunes(visibleText(doc, decoded, base), limits.MaxTextChars)
	return page, nil
}

func decodeBody(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// Unknown charset labels fall back to the raw bytes.
		return body, nil //nolint:nilerr // undecodable charset is not fatal
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return decoded, nil
}

func extractTitle(doc *goquery.Document) string {
	if title := collapse(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return metaContent(doc, "og:title")
}

// metaContent returns the first non-empty content of <meta name=...> or
// <meta property=...> for the given keys, matched case-insensitively.
func metaContent(doc *goquery.Document, keys ...string) string {
	for _, key := range keys {
		var found string
		doc.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			name := s.AttrOr("name", s.AttrOr("property", ""))
			if strings.EqualFold(strings.TrimSpace(name), key) {
				found = collapse(s.AttrOr("content", ""))
			}
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

func extractLanguage(doc *goquery.Document) string {
	raw := doc.Find("html").AttrOr("lang", "")
	if raw == "" {
		doc.Find("meta[http-equiv]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if strings.EqualFold(s.AttrOr("http-equiv", ""), "content-language") {
				raw = s.AttrOr("content", "")
			}
			return raw == ""
		})
	}
	return NormalizeLanguage(raw)
}

// NormalizeLanguage reduces a language tag such as "nb-NO" or "en_US" to its
// base language ("nb", "en"). Unparseable tags yield "".
func NormalizeLanguage(raw string) string {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "_", "-"))
	if raw == "" {
		return ""
	}
	if i := strings.IndexByte(raw, ','); i >= 0 {
		raw = raw[:i]
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	if base.String() == "und" {
		return ""
	}
	return base.String()
}

func extractHeadings(doc *goquery.Document) []string {
	seen := make(map[string]struct{})
	var headings []string
	doc.Find("h1, h2, h3").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := collapse(s.Text())
		if text == "" {
			return true
		}
		if _, dup := seen[text]; !dup {
			seen[text] = struct{}{}
			headings = append(headings, text)
		}
		return len(headings) < maxHeadingsPerPage
	})
	return headings
}

func extractStructuredData(doc *goquery.Document) []string {
	var blocks []string
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if block := strings.TrimSpace(s.Text()); block != "" {
			blocks = append(blocks, truncateBytes(block, maxStructuredBlockBytes))
		}
		return len(blocks) < maxStructuredPerPage
	})
	return blocks
}

func extractImages(doc *goquery.Document, base *url.URL) []Image {
	var images []Image
	seen := make(map[string]struct{})

	add := func(img Image) {
		if img.URL == "" {
			return
		}
		if _, dup := seen[img.URL]; dup {
			return
		}
		seen[img.URL] = struct{}{}
		images = append(images, img)
	}

	if og := metaContent(doc, "og:image"); og != "" {
		add(Image{URL: resolve(base, og), Social: true})
	}

	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		src := s.AttrOr("src", "")
		if src == "" || strings.HasPrefix(src, "data:") {
			src = s.AttrOr("data-src", "")
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return true
		}
		add(Image{
			URL:    resolve(base, src),
			Alt:    collapse(s.AttrOr("alt", "")),
			Class:  s.AttrOr("class", "") + " " + s.AttrOr("id", ""),
			Width:  atoiPrefix(s.AttrOr("width", "")),
			Height: atoiPrefix(s.AttrOr("height", "")),
		})
		return len(images) < maxImagesPerPage
	})

	doc.Find("link[rel]").Each(func(_ int, s *goquery.Selection) {
		rel := strings.ToLower(s.AttrOr("rel", ""))
		if strings.Contains(rel, "icon") {
			add(Image{URL: resolve(base, s.AttrOr("href", "")), Icon: true})
		}
	})

	return images
}

// extractLinks returns same-site http(s) links without fragments, in
// document order and deduplicated.
func extractLinks(doc *goquery.Document, base *url.URL, pageURL string) []string {
	seen := make(map[string]struct{})
	var links []string
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		abs, err := NormalizeURL(resolve(base, href))
		if err != nil || !SameSite(abs, pageURL) {
			return true
		}
		if _, dup := seen[abs]; !dup {
			seen[abs] = struct{}{}
			links = append(links, abs)
		}
		return len(links) < maxLinksPerPage
	})
	return links
}

const invisibleSelectors = "script, style, noscript, template, svg, iframe, canvas"

func visibleText(doc *goquery.Document, decoded []byte, base *url.URL) string {
	body := doc.Find("body")
	body.Find(invisibleSelectors).Remove()
	if text := selectionText(body); text != "" {
		return text
	}

	article, err := readability.FromReader(bytes.NewReader(decoded), base)
	if err != nil {
		return ""
	}
	fallback, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return ""
	}
	return selectionText(fallback.Selection)
}

// blockElements start a new run of text. Inline elements join their
// neighbours so markup like <b>Fjord</b>bygg stays one word.
var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true,
	"br": true, "dd": true, "details": true, "dialog": true, "div": true,
	"dl": true, "dt": true, "fieldset": true, "figcaption": true,
	"figure": true, "footer": true, "form": true, "h1": true, "h2": true,
	"h3": true, "h4": true, "h5": true, "h6": true, "header": true,
	"hr": true, "li": true, "main": true, "nav": true, "ol": true,
	"option": true, "p": true, "pre": true, "section": true,
	"summary": true, "table": true, "td": true, "th": true, "tr": true,
	"ul": true,
}

func selectionText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeNodeText(&b, n)
	}
	return collapse(b.String())
}

func writeNodeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode:
		return
	}
	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte(' ')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNodeText(b, c)
	}
	if block {
		b.WriteByte(' ')
	}
}

func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ""
	}
	return u.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func atoiPrefix(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, _ := strconv.Atoi(s[:end])
	return n
}

func truncateBytes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}
