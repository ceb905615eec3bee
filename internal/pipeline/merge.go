package pipeline

import (
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/extractor"
	"github.com/Meltveit/qrydex/internal/intelligence"
	"github.com/Meltveit/qrydex/internal/trust"
)

// Merge returns a copy of rec carrying the results of one successful crawl.
// Scheduling fields are left to the caller. Text intelligence output is
// preferred over extracted metadata when the call succeeded.
func Merge(
	rec *domain.BusinessRecord,
	e *extractor.EnrichedData,
	intel intelligence.Result,
	reg domain.RegistryData,
	scored trust.Result,
) *domain.BusinessRecord {
	out := *rec

	out.CompanyDescription = e.CompanyDescription
	out.IndustryCategory = e.IndustryCategory
	if intel.OK() {
		if intel.Enrichment.Description != "" {
			out.CompanyDescription = intel.Enrichment.Description
		}
		if intel.Enrichment.IndustryCategory != "" && intel.Enrichment.IndustryCategory != intelligence.UnknownIndustry {
			out.IndustryCategory = intel.Enrichment.IndustryCategory
		}
		if len(intel.Enrichment.Translations) > 0 {
			out.Translations = intel.Enrichment.Translations
		}
	}
	if out.Translations == nil {
		out.Translations = domain.Translations{}
	}

	out.LogoURL = e.LogoURL
	out.Sitelinks = domain.Sitelinks(e.Sitelinks)
	out.SocialMedia = e.SocialMedia
	out.ContactInfo = e.ContactInfo()

	signals := e.SiteSignals()
	risk := intel.Enrichment.Risk
	signals.RiskLevel = risk.Level
	signals.RedFlags = risk.RedFlags
	if risk.HasSentiment {
		sentiment := risk.Sentiment
		signals.Sentiment = &sentiment
	}
	out.SiteSignals = signals

	out.RegistryData = reg
	if out.Name == "" {
		out.Name = reg.LegalName
	}
	out.TrustScore = scored.Score
	out.TrustScoreBreakdown = scored.Breakdown
	return &out
}
