package intelligence_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/intelligence"
)

type stubGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	return g.reply, g.err
}

type recorder struct {
	outcomes []string
}

func (r *recorder) RecordEnrichment(outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

var site = intelligence.SiteContext{
	Name:   "Fjord Bygg AS",
	Domain: "fjordbygg.no",
	Text:   "Vi bygger hus i Bergen.",
}

func TestEnrich_Ok(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: `{"description": "Tømrer.", "industry_category": "Construction"}`}
	rec := &recorder{}
	a := intelligence.NewAdapter(gen, intelligence.Config{}, logger.NewNop()).WithRecorder(rec)

	res := a.Enrich(context.Background(), site)
	require.True(t, res.OK())
	assert.Equal(t, "Construction", res.Enrichment.IndustryCategory)
	assert.Empty(t, res.Reason)
	assert.Equal(t, []string{"ok"}, rec.outcomes)
	assert.True(t, strings.Contains(gen.prompts[0], "fjordbygg.no"))
}

func TestEnrich_NonJSONFallsBack(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: "I cannot analyse this website."}
	res := intelligence.NewAdapter(gen, intelligence.Config{}, nil).Enrich(context.Background(), site)

	require.False(t, res.OK())
	assert.Contains(t, res.Reason, "parse")
	assert.Equal(t, intelligence.UnknownIndustry, res.Enrichment.IndustryCategory)
	assert.Equal(t, domain.NeutralRisk(), res.Enrichment.Risk)
	assert.Equal(t, []string{}, res.Enrichment.Services)
}

func TestEnrich_Disabled(t *testing.T) {
	t.Parallel()

	a := intelligence.NewAdapter(nil, intelligence.Config{}, nil)
	assert.False(t, a.Enabled())
	res := a.Enrich(context.Background(), site)
	assert.False(t, res.OK())
	assert.Equal(t, intelligence.ReasonDisabled, res.Reason)
}

func TestEnrich_NoContentSkipsCall(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{reply: `{"industry_category": "x"}`}
	res := intelligence.NewAdapter(gen, intelligence.Config{}, nil).Enrich(context.Background(), intelligence.SiteContext{Domain: "x.no"})
	assert.Equal(t, intelligence.ReasonNoContent, res.Reason)
	assert.Zero(t, gen.calls)
}

func TestEnrich_BreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	gen := &stubGenerator{err: errors.New("529 overloaded")}
	a := intelligence.NewAdapter(gen, intelligence.Config{FailureThreshold: 2, Cooldown: time.Hour}, nil)
	ctx := context.Background()

	first := a.Enrich(ctx, site)
	assert.Contains(t, first.Reason, "generate")
	_ = a.Enrich(ctx, site)

	third := a.Enrich(ctx, site)
	assert.Equal(t, intelligence.ReasonCircuitOpen, third.Reason)
	assert.Equal(t, 2, gen.calls)
}

func TestFallback_IsDeterministic(t *testing.T) {
	t.Parallel()

	assert.Equal(t, intelligence.Fallback("a").Enrichment, intelligence.Fallback("b").Enrichment)
}
