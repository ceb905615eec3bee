package intelligence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Meltveit/qrydex/internal/domain"
)

// UnknownIndustry is used when no category could be determined.
const UnknownIndustry = "Unknown"

// Parse errors.
var (
	ErrEmptyResponse = errors.New("empty response")
	ErrNotJSON       = errors.New("response is not a JSON object")
	ErrNoContent     = errors.New("response has neither description nor category")
)

const maxListItems = 20

type wireRisk struct {
	Level     string   `json:"level"`
	RedFlags  []string `json:"red_flags"`
	Sentiment *float64 `json:"sentiment"`
}

type wireTranslation struct {
	Description string   `json:"description"`
	Services    []string `json:"services"`
}

type wireEnrichment struct {
	Description      string                     `json:"description"`
	IndustryCategory string                     `json:"industry_category"`
	Services         []string                   `json:"services"`
	Products         []string                   `json:"products"`
	SearchKeywords   []string                   `json:"search_keywords"`
	Risk             *wireRisk                  `json:"risk"`
	Translations     map[string]wireTranslation `json:"translations"`
}

// ParseEnrichment parses a model response. Code fences and prose around the
// outermost JSON object are ignored.
func ParseEnrichment(raw string) (Enrichment, error) {
	body, err := jsonObject(raw)
	if err != nil {
		return Enrichment{}, err
	}

	var w wireEnrichment
	if err := json.Unmarshal([]byte(body), &w); err != nil {
		return Enrichment{}, fmt.Errorf("%w: %w", ErrNotJSON, err)
	}

	e := defaultEnrichment()
	e.Description = strings.TrimSpace(w.Description)
	if c := strings.TrimSpace(w.IndustryCategory); c != "" {
		e.IndustryCategory = c
	}
	if e.Description == "" && e.IndustryCategory == UnknownIndustry {
		return Enrichment{}, ErrNoContent
	}
	e.Services = cleanList(w.Services)
	e.Products = cleanList(w.Products)
	e.SearchKeywords = cleanList(w.SearchKeywords)

	if w.Risk != nil {
		e.Risk = parseRisk(w.Risk)
	}
	for lang, tr := range w.Translations {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" || strings.TrimSpace(tr.Description) == "" {
			continue
		}
		e.Translations[lang] = domain.Translation{
			Description: strings.TrimSpace(tr.Description),
			Services:    cleanList(tr.Services),
		}
	}
	return e, nil
}

// jsonObject strips code fences and returns the text between the first
// "{" and the last "}".
func jsonObject(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrEmptyResponse
	}
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", ErrNotJSON
	}
	return s[start : end+1], nil
}

func parseRisk(w *wireRisk) domain.RiskSignals {
	r := domain.NeutralRisk()
	switch level := strings.ToLower(strings.TrimSpace(w.Level)); level {
	case domain.RiskLow, domain.RiskHigh, domain.RiskNeutral:
		r.Level = level
	case "medium":
		r.Level = domain.RiskNeutral
	}
	r.RedFlags = cleanList(w.RedFlags)
	if w.Sentiment != nil {
		r.HasSentiment = true
		r.Sentiment = min(1, max(-1, *w.Sentiment))
	}
	return r
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
		if len(out) == maxListItems {
			break
		}
	}
	return out
}
