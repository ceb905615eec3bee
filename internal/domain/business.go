// Package domain holds the business record and the value types persisted with it.
package domain

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// WebsiteStatus is the crawl lifecycle state of a record's website.
type WebsiteStatus string

const (
	// WebsiteStatusUnset marks a record that has never been crawled. Stored as NULL.
	WebsiteStatusUnset WebsiteStatus = ""
	// WebsiteStatusActive marks a site whose last crawl produced pages.
	WebsiteStatusActive WebsiteStatus = "active"
	// WebsiteStatusDead marks a site that never answered within the attempt budget.
	WebsiteStatusDead WebsiteStatus = "dead"
	// WebsiteStatusNeedsRescue marks a site whose recent crawls failed but may recover.
	WebsiteStatusNeedsRescue WebsiteStatus = "needs_rescue"
	// WebsiteStatusRescueFailed marks a once-active site that exhausted the attempt budget.
	WebsiteStatusRescueFailed WebsiteStatus = "rescue_failed"
	// WebsiteStatusRegistryFallback marks a domain taken from registry data, not yet crawled.
	WebsiteStatusRegistryFallback WebsiteStatus = "registry_fallback"
)

// Terminal reports whether the status removes the record from crawl eligibility.
func (s WebsiteStatus) Terminal() bool {
	return s == WebsiteStatusDead || s == WebsiteStatusRescueFailed
}

// Scan implements sql.Scanner; NULL scans to WebsiteStatusUnset.
func (s *WebsiteStatus) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*s = WebsiteStatusUnset
	case string:
		*s = WebsiteStatus(v)
	case []byte:
		*s = WebsiteStatus(v)
	default:
		return fmt.Errorf("unsupported type %T for website status", value)
	}
	return nil
}

// Value implements driver.Valuer; WebsiteStatusUnset is stored as NULL.
func (s WebsiteStatus) Value() (driver.Value, error) {
	if s == WebsiteStatusUnset {
		return nil, nil
	}
	return string(s), nil
}

// BusinessRecord is the unit of work and persistence. OrgNumber and
// CountryCode together identify a record globally.
type BusinessRecord struct {
	ID          string  `db:"id"           json:"id"`
	OrgNumber   string  `db:"org_number"   json:"org_number"`
	CountryCode string  `db:"country_code" json:"country_code"`
	Name        string  `db:"name"         json:"name"`
	Domain      *string `db:"domain"       json:"domain,omitempty"`

	// Crawl state
	WebsiteStatus  WebsiteStatus `db:"website_status"  json:"website_status"`
	LastScrapedAt  *time.Time    `db:"last_scraped_at" json:"last_scraped_at,omitempty"`
	ScrapeCount    int           `db:"scrape_count"    json:"scrape_count"`
	ScrapeAttempts int           `db:"scrape_attempts" json:"scrape_attempts"`
	NextScrapeAt   *time.Time    `db:"next_scrape_at"  json:"next_scrape_at,omitempty"`

	// Extracted content
	CompanyDescription string       `db:"company_description" json:"company_description"`
	IndustryCategory   string       `db:"industry_category"   json:"industry_category"`
	LogoURL            string       `db:"logo_url"            json:"logo_url"`
	Sitelinks          Sitelinks    `db:"sitelinks"           json:"sitelinks"`
	SocialMedia        SocialMedia  `db:"social_media"        json:"social_media"`
	ContactInfo        ContactInfo  `db:"contact_info"        json:"contact_info"`
	Translations       Translations `db:"translations"        json:"translations"`
	SiteSignals        SiteSignals  `db:"site_signals"        json:"site_signals"`

	// Scoring
	TrustScore          int                 `db:"trust_score"           json:"trust_score"`
	TrustScoreBreakdown TrustScoreBreakdown `db:"trust_score_breakdown" json:"trust_score_breakdown"`

	RegistryData RegistryData `db:"registry_data" json:"registry_data"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Key returns the record's identity.
func (r *BusinessRecord) Key() Key {
	return Key{OrgNumber: r.OrgNumber, CountryCode: r.CountryCode}
}

// DomainName returns the domain or an empty string when none is known.
func (r *BusinessRecord) DomainName() string {
	if r.Domain == nil {
		return ""
	}
	return *r.Domain
}

// Key identifies a business across the system.
type Key struct {
	OrgNumber   string
	CountryCode string
}

// NewKey normalizes the parts of a key: the country code is upper-cased and
// whitespace is stripped from the org number.
func NewKey(orgNumber, countryCode string) Key {
	return Key{
		OrgNumber:   strings.Join(strings.Fields(orgNumber), ""),
		CountryCode: strings.ToUpper(strings.TrimSpace(countryCode)),
	}
}

// String renders the key as "NO:912676951". This form is also the shard hash input.
func (k Key) String() string {
	return k.CountryCode + ":" + k.OrgNumber
}

// SitelinkType classifies a notable subpage.
type SitelinkType string

// Sitelink types.
const (
	SitelinkContact   SitelinkType = "contact"
	SitelinkAbout     SitelinkType = "about"
	SitelinkTeam      SitelinkType = "team"
	SitelinkProducts  SitelinkType = "products"
	SitelinkInvestors SitelinkType = "investors"
	SitelinkNews      SitelinkType = "news"
	SitelinkOther     SitelinkType = "other"
)

// Sitelink is a classified link to a notable subpage.
type Sitelink struct {
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Description string       `json:"description,omitempty"`
	Type        SitelinkType `json:"type"`
	Score       int          `json:"score"`
}

// Sitelinks is the JSONB-backed list of sitelinks.
type Sitelinks []Sitelink

// SocialMedia maps a platform name to the profile URL.
type SocialMedia map[string]string

// ContactInfo holds the contact data found on a site.
type ContactInfo struct {
	Emails    []string `json:"emails"`
	Phones    []string `json:"phones"`
	VATNumber string   `json:"vat_number,omitempty"`
}

// Translation is a localized description with its service list.
type Translation struct {
	Description string   `json:"description"`
	Services    []string `json:"services"`
}

// Translations maps a language code to its translation.
type Translations map[string]Translation

// SiteSignals are the technical crawl observations kept for rescoring
// without a fresh crawl.
type SiteSignals struct {
	HTTPS          bool     `json:"https"`
	PageCount      int      `json:"page_count"`
	StructuredData bool     `json:"structured_data"`
	Languages      []string `json:"languages,omitempty"`
	SiteDomain     string   `json:"site_domain,omitempty"`
	RiskLevel      string   `json:"risk_level,omitempty"`
	RedFlags       []string `json:"red_flags,omitempty"`
	// Sentiment is set when text analysis reported one.
	Sentiment *float64 `json:"sentiment,omitempty"`
}

// BucketScore is one additive component of the trust score.
type BucketScore struct {
	Score   int      `json:"score"`
	Max     int      `json:"max"`
	Signals []string `json:"signals,omitempty"`
}

// TrustScoreBreakdown is the auditable decomposition of a trust score.
// Total always equals the stored trust score.
type TrustScoreBreakdown struct {
	Registry  BucketScore `json:"registry"`
	Quality   BucketScore `json:"quality"`
	Social    BucketScore `json:"social"`
	Technical BucketScore `json:"technical"`
	News      BucketScore `json:"news"`
}

// Total sums the bucket scores.
func (b TrustScoreBreakdown) Total() int {
	return b.Registry.Score + b.Quality.Score + b.Social.Score + b.Technical.Score + b.News.Score
}
