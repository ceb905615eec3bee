package intelligence

import (
	"fmt"
	"strings"
)

// SiteContext is the bounded view of a business sent for enrichment.
type SiteContext struct {
	Name        string
	Domain      string
	CountryCode string
	Title       string
	Description string
	Headings    []string
	Text        string
}

const promptTemplate = `You analyse business websites for a company directory.
Business: %s
Country: %s
Website: %s
Page title: %s
Meta description: %s
Headings: %s

Website text:
"""
%s
"""

Reply with a single JSON object and nothing else, using exactly these keys:
{
  "description": "two sentences describing what the business does",
  "industry_category": "short industry name",
  "services": ["..."],
  "products": ["..."],
  "search_keywords": ["..."],
  "risk": {"level": "low|neutral|high", "red_flags": ["..."], "sentiment": 0.0},
  "translations": {%s}
}
"sentiment" is between -1 and 1 and reflects only what the text says about the business.
List red flags such as missing contact details, copied content or scam wording; use an empty list when there are none.`

// BuildPrompt renders the enrichment prompt. The site text is cut to
// maxChars runes and headings to the first 15.
func BuildPrompt(sc SiteContext, languages []string, maxChars int) string {
	headings := sc.Headings
	if len(headings) > 15 {
		headings = headings[:15]
	}

	translations := make([]string, 0, len(languages))
	for _, lang := range languages {
		translations = append(translations, fmt.Sprintf(`"%s": {"description": "...", "services": ["..."]}`, lang))
	}

	return fmt.Sprintf(promptTemplate,
		orUnknown(sc.Name),
		orUnknown(sc.CountryCode),
		orUnknown(sc.Domain),
		orUnknown(sc.Title),
		orUnknown(sc.Description),
		strings.Join(headings, "; "),
		truncate(sc.Text, maxChars),
		strings.Join(translations, ", "),
	)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "unknown"
	}
	return s
}

func truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
