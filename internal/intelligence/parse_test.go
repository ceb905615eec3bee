package intelligence_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/intelligence"
)

const fullResponse = "```json\n" + `{
  "description": " Fjord Bygg er et tømrerfirma i Bergen. ",
  "industry_category": "Construction",
  "services": ["Tømrer", "tømrer", "", "Rehabilitering"],
  "products": [],
  "search_keywords": ["tømrer bergen"],
  "risk": {"level": "LOW", "red_flags": [], "sentiment": 1.7},
  "translations": {"EN": {"description": "A carpentry firm in Bergen.", "services": ["Carpentry"]}, "no": {"description": ""}}
}` + "\n```"

func TestParseEnrichment_Full(t *testing.T) {
	t.Parallel()

	e, err := intelligence.ParseEnrichment(fullResponse)
	require.NoError(t, err)

	assert.Equal(t, "Fjord Bygg er et tømrerfirma i Bergen.", e.Description)
	assert.Equal(t, "Construction", e.IndustryCategory)
	assert.Equal(t, []string{"Tømrer", "Rehabilitering"}, e.Services)
	assert.Equal(t, []string{}, e.Products)
	assert.Equal(t, domain.RiskLow, e.Risk.Level)
	assert.True(t, e.Risk.HasSentiment)
	assert.InDelta(t, 1.0, e.Risk.Sentiment, 1e-9)
	assert.Equal(t, domain.Translations{
		"en": {Description: "A carpentry firm in Bergen.", Services: []string{"Carpentry"}},
	}, e.Translations)
}

func TestParseEnrichment_ProseAroundJSON(t *testing.T) {
	t.Parallel()

	e, err := intelligence.ParseEnrichment(`Here you go: {"industry_category": "Retail"} Hope that helps.`)
	require.NoError(t, err)
	assert.Equal(t, "Retail", e.IndustryCategory)
	assert.Equal(t, domain.RiskNeutral, e.Risk.Level)
	assert.False(t, e.Risk.HasSentiment)
}

func TestParseEnrichment_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"empty", "   ", intelligence.ErrEmptyResponse},
		{"prose refusal", "I'm sorry, I can't help with that.", intelligence.ErrNotJSON},
		{"broken json", `{"description": "x",`, intelligence.ErrNotJSON},
		{"invalid object", `{"description": 5}`, intelligence.ErrNotJSON},
		{"no content", `{"services": ["a"]}`, intelligence.ErrNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := intelligence.ParseEnrichment(tt.raw)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestBuildPrompt_Truncates(t *testing.T) {
	t.Parallel()

	sc := intelligence.SiteContext{Name: "Fjord Bygg AS", Text: "abcdefghij"}
	prompt := intelligence.BuildPrompt(sc, []string{"en", "de"}, 4)

	assert.Contains(t, prompt, "Business: Fjord Bygg AS")
	assert.Contains(t, prompt, "\"\"\"\nabcd\n\"\"\"")
	assert.NotContains(t, prompt, "abcde")
	assert.Contains(t, prompt, `"de": {"description"`)
	assert.Contains(t, prompt, "Website: unknown")
}
