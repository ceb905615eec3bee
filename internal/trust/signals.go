package trust

import (
	"sort"
	"strings"

	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/extractor"
)

// Signals are the site observations the quality, social and technical
// buckets score.
type Signals struct {
	HasDescription    bool
	SitelinkCount     int
	ProfessionalEmail bool
	HasPhone          bool
	TaxIDMatch        bool
	HasLogo           bool
	// SocialPlatforms is sorted.
	SocialPlatforms []string

	HTTPS          bool
	PageCount      int
	StructuredData bool
}

// SignalsFromEnriched derives signals from a fresh extraction. It returns
// nil for a nil or empty crawl.
func SignalsFromEnriched(e *extractor.EnrichedData, orgNumber string) *Signals {
	if e == nil || e.PageCount == 0 {
		return nil
	}
	return &Signals{
		HasDescription:    hasDescription(e.CompanyDescription),
		SitelinkCount:     len(e.Sitelinks),
		ProfessionalEmail: e.ProfessionalEmail,
		HasPhone:          len(e.Phones) > 0,
		TaxIDMatch:        TaxIDMatches(e.TaxID, orgNumber),
		HasLogo:           e.LogoURL != "",
		SocialPlatforms:   platforms(e.SocialMedia),
		HTTPS:             e.HTTPS,
		PageCount:         e.PageCount,
		StructuredData:    e.StructuredData,
	}
}

// SignalsFromRecord rebuilds signals and risk from a persisted record so it
// can be rescored without crawling. Records that were never crawled
// successfully yield nil signals.
func SignalsFromRecord(rec *domain.BusinessRecord) (*Signals, domain.RiskSignals) {
	risk := domain.NeutralRisk()
	if rec == nil {
		return nil, risk
	}
	if rec.SiteSignals.RiskLevel != "" {
		risk.Level = rec.SiteSignals.RiskLevel
	}
	if len(rec.SiteSignals.RedFlags) > 0 {
		risk.RedFlags = rec.SiteSignals.RedFlags
	}
	if rec.SiteSignals.Sentiment != nil {
		risk.Sentiment = *rec.SiteSignals.Sentiment
		risk.HasSentiment = true
	}
	if rec.SiteSignals.PageCount == 0 {
		return nil, risk
	}

	return &Signals{
		HasDescription:    hasDescription(rec.CompanyDescription),
		SitelinkCount:     len(rec.Sitelinks),
		ProfessionalEmail: professionalEmail(rec.ContactInfo.Emails, rec.SiteSignals.SiteDomain),
		HasPhone:          len(rec.ContactInfo.Phones) > 0,
		TaxIDMatch:        TaxIDMatches(rec.ContactInfo.VATNumber, rec.OrgNumber),
		HasLogo:           rec.LogoURL != "",
		SocialPlatforms:   platforms(rec.SocialMedia),
		HTTPS:             rec.SiteSignals.HTTPS,
		PageCount:         rec.SiteSignals.PageCount,
		StructuredData:    rec.SiteSignals.StructuredData,
	}, risk
}

// TaxIDMatches reports whether the digits of a tax identifier found on the
// site contain the registered org number, as NO "NO912676951MVA" or SE
// "SE556036079301" do.
func TaxIDMatches(taxID, orgNumber string) bool {
	tax := extractor.TaxIDDigits(taxID)
	org := extractor.TaxIDDigits(orgNumber)
	return org != "" && tax != "" && strings.Contains(tax, org)
}

func hasDescription(s string) bool {
	return strings.TrimSpace(s) != ""
}

func professionalEmail(emails []string, siteDomain string) bool {
	for _, e := range emails {
		if extractor.IsProfessionalEmail(e, siteDomain) {
			return true
		}
	}
	return false
}

func platforms(m domain.SocialMedia) []string {
	out := make([]string, 0, len(m))
	for platform, u := range m {
		if u != "" {
			out = append(out, platform)
		}
	}
	sort.Strings(out)
	return out
}
