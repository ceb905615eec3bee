// Package extractor turns crawl results into the structured signals stored
// on a business record.
package extractor

import (
	"net/url"
	"strings"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/crawler"
	"github.com/Meltveit/qrydex/internal/domain"
)

// UnknownIndustry is the category used until text intelligence supplies one.
const UnknownIndustry = "Unknown"

// Aggregation caps.
const (
	maxHeadings         = 50
	maxMetaDescriptions = 100
	maxImages           = 150
	maxLanguages        = 10
	maxTextSampleRunes  = 8000
)

// EnrichedData is everything extracted from one crawl. Every field has a
// usable zero value; a failed crawl yields defaults only.
type EnrichedData struct {
	BaseURL    string
	SiteDomain string
	HTTPS      bool
	PageCount  int

	Title              string
	CompanyDescription string
	IndustryCategory   string

	LogoURL     string
	Sitelinks   []domain.Sitelink
	SocialMedia domain.SocialMedia

	Emails            []string
	Phones            []string
	TaxID             string
	ProfessionalEmail bool

	Headings         []string
	MetaDescriptions []string
	Images           []string
	Languages        []string
	StructuredData   bool

	// TextSample is a bounded window of visible text, homepage first.
	TextSample string
}

// ContactInfo returns the persisted contact shape.
func (e *EnrichedData) ContactInfo() domain.ContactInfo {
	return domain.ContactInfo{
		Emails:    nonNil(e.Emails),
		Phones:    nonNil(e.Phones),
		VATNumber: e.TaxID,
	}
}

// SiteSignals returns the technical observations kept for rescoring.
func (e *EnrichedData) SiteSignals() domain.SiteSignals {
	return domain.SiteSignals{
		HTTPS:          e.HTTPS,
		PageCount:      e.PageCount,
		StructuredData: e.StructuredData,
		Languages:      e.Languages,
		SiteDomain:     e.SiteDomain,
	}
}

// Extractor extracts signals from crawl results. The zero value is not
// usable; call New.
type Extractor struct {
	log logger.Logger
}

// New creates an Extractor.
func New(log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{log: log}
}

// Extract extracts signals without a country hint; tax identifiers are
// tried in table order.
func (x *Extractor) Extract(result *crawler.CrawlResult) *EnrichedData {
	return x.ExtractForCountry(result, "")
}

// ExtractForCountry extracts signals, trying the tax identifier scheme of
// country before the others.
func (x *Extractor) ExtractForCountry(result *crawler.CrawlResult, country string) *EnrichedData {
	data := &EnrichedData{
		IndustryCategory: UnknownIndustry,
		SocialMedia:      domain.SocialMedia{},
		Sitelinks:        []domain.Sitelink{},
		Emails:           []string{},
		Phones:           []string{},
	}
	if result.Empty() {
		return data
	}

	home := result.Homepage()
	data.BaseURL = result.BaseURL
	data.PageCount = len(result.Pages)
	data.Title = home.Title
	if u, err := url.Parse(result.BaseURL); err == nil {
		data.HTTPS = u.Scheme == "https"
		data.SiteDomain = RegistrableDomain(u.Hostname())
	}

	var text strings.Builder
	var markup []string
	headings := newCappedSet(maxHeadings)
	metas := newCappedSet(maxMetaDescriptions)
	langs := newCappedSet(maxLanguages)

	for i := range result.Pages {
		p := &result.Pages[i]
		for _, h := range p.Headings {
			headings.add(h)
		}
		metas.add(p.MetaDescription)
		langs.add(p.MetaLanguage)
		if len(p.StructuredData) > 0 {
			data.StructuredData = true
		}
		if data.CompanyDescription == "" {
			data.CompanyDescription = p.MetaDescription
		}
		if text.Len() > 0 {
			text.WriteString("\n")
		}
		text.WriteString(p.TextContent)
		markup = append(markup, p.RawMarkup)
	}

	data.Headings = headings.items
	data.MetaDescriptions = metas.items
	data.Languages = langs.items
	data.TextSample = truncateRunes(text.String(), maxTextSampleRunes)

	corpus := text.String() + "\n" + strings.Join(markup, "\n")
	data.Emails = RankEmails(ExtractEmails(corpus), data.SiteDomain)
	data.ProfessionalEmail = hasProfessionalEmail(data.Emails, data.SiteDomain)
	data.Phones = ExtractPhones(text.String(), markup)
	if id, ok := MatchTaxID(text.String(), country); ok {
		data.TaxID = id
	}

	data.Sitelinks = SelectSitelinks(result.Pages)
	data.SocialMedia = FindSocialLinks(markup)
	data.LogoURL = FindLogo(result.Images)

	images := newCappedSet(maxImages)
	for _, img := range result.Images {
		images.add(img.URL)
	}
	data.Images = images.items

	x.log.Debug("Extracted site signals",
		logger.String("base_url", data.BaseURL),
		logger.Int("emails", len(data.Emails)),
		logger.Int("phones", len(data.Phones)),
		logger.Int("sitelinks", len(data.Sitelinks)),
		logger.Bool("tax_id", data.TaxID != ""),
	)
	return data
}

// cappedSet is an insertion-ordered, deduplicated, size-bounded list of
// non-empty strings.
type cappedSet struct {
	limit int
	seen  map[string]struct{}
	items []string
}

func newCappedSet(limit int) *cappedSet {
	return &cappedSet{limit: limit, seen: make(map[string]struct{}), items: []string{}}
}

func (s *cappedSet) add(v string) {
	v = strings.TrimSpace(v)
	if v == "" || len(s.items) >= s.limit {
		return
	}
	if _, dup := s.seen[v]; dup {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
