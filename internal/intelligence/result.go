package intelligence

import "github.com/Meltveit/qrydex/internal/domain"

// Enrichment is the structured output of one text intelligence call.
type Enrichment struct {
	Description      string
	IndustryCategory string
	Services         []string
	Products         []string
	SearchKeywords   []string
	Risk             domain.RiskSignals
	Translations     domain.Translations
}

// Result is either a parsed enrichment or a fallback with its reason.
// Callers must check OK; a fallback still carries usable default values.
type Result struct {
	Enrichment Enrichment
	Reason     string
	ok         bool
}

// Ok wraps a parsed enrichment.
func Ok(e Enrichment) Result {
	return Result{Enrichment: e, ok: true}
}

// Fallback returns the deterministic default enrichment: unknown industry,
// empty lists and neutral risk.
func Fallback(reason string) Result {
	return Result{Enrichment: defaultEnrichment(), Reason: reason}
}

// OK reports whether the result holds a parsed response.
func (r Result) OK() bool {
	return r.ok
}

func defaultEnrichment() Enrichment {
	return Enrichment{
		IndustryCategory: UnknownIndustry,
		Services:         []string{},
		Products:         []string{},
		SearchKeywords:   []string{},
		Risk:             domain.NeutralRisk(),
		Translations:     domain.Translations{},
	}
}
