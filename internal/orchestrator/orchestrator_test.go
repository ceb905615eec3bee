package orchestrator_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/intelligence"
	"github.com/Meltveit/qrydex/internal/orchestrator"
	"github.com/Meltveit/qrydex/internal/registry"
	"github.com/Meltveit/qrydex/internal/registry/mocks"
	"github.com/Meltveit/qrydex/internal/store"
	"github.com/Meltveit/qrydex/internal/trust"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func brregEntity(website string) *domain.RegistryData {
	return &domain.RegistryData{
		LegalName:            "FJORD BYGG AS",
		RegistrationDate:     ptr(time.Date(2012, 5, 2, 0, 0, 0, 0, time.UTC)),
		CompanyStatus:        domain.CompanyStatusActive,
		IndustryCodes:        []domain.IndustryCode{{Code: "41.200"}},
		Website:              website,
		Source:               "brreg",
		LastVerifiedRegistry: now,
	}
}

type stubEnricher struct {
	result intelligence.Result
	calls  int
}

func (s *stubEnricher) Enrich(context.Context, intelligence.SiteContext) intelligence.Result {
	s.calls++
	return s.result
}

type failingUpserts struct {
	*store.Memory
}

func (f failingUpserts) UpsertWithAudit(context.Context, *domain.BusinessRecord, *domain.AuditEntry) error {
	return errors.New("deadlock detected")
}

func newOrchestrator(t *testing.T, lookup registry.Lookup, st orchestrator.Store, enricher orchestrator.Enricher) *orchestrator.Orchestrator {
	t.Helper()

	verifier := registry.NewVerifier(logger.NewNop())
	if lookup != nil {
		verifier.Register("NO", lookup)
	}
	scorer := trust.NewEngine(logger.NewNop()).WithClock(func() time.Time { return now })
	return orchestrator.New(verifier, enricher, scorer, st, nil, logger.NewNop())
}

func mockBrreg(t *testing.T) *mocks.MockLookup {
	t.Helper()
	m := mocks.NewMockLookup(gomock.NewController(t))
	m.EXPECT().Name().Return("brreg").AnyTimes()
	return m
}

func TestVerifyAndStore_IsIdempotent(t *testing.T) {
	t.Parallel()

	lookup := mockBrreg(t)
	lookup.EXPECT().Lookup(gomock.Any(), "912676951").Return(brregEntity(""), nil).Times(2)
	mem := store.NewMemory()
	o := newOrchestrator(t, lookup, mem, nil)

	first, err := o.VerifyAndStore(context.Background(), "912 676 951", "no", &orchestrator.Hints{Domain: "fjordbygg.no"})
	require.NoError(t, err)
	second, err := o.VerifyAndStore(context.Background(), "912676951", "NO", nil)
	require.NoError(t, err)

	require.True(t, second.Verified())
	assert.Equal(t, 1, mem.Len())

	stored, err := mem.Get(context.Background(), domain.NewKey("912676951", "NO"))
	require.NoError(t, err)
	assert.Equal(t, first.Record.ID, stored.ID)
	assert.Equal(t, second.Record.TrustScore, stored.TrustScore)
	assert.Equal(t, second.Record.TrustScoreBreakdown, stored.TrustScoreBreakdown)
	assert.Equal(t, "FJORD BYGG AS", stored.Name)
	assert.Equal(t, "fjordbygg.no", stored.DomainName())
	assert.Equal(t, 40, stored.TrustScore)
	assert.Equal(t, stored.TrustScore, stored.TrustScoreBreakdown.Total())

	audit, err := mem.AuditLog(context.Background(), stored.Key(), 10)
	require.NoError(t, err)
	require.Len(t, audit, 2)
	for _, e := range audit {
		assert.Equal(t, domain.AuditSuccess, e.Outcome)
		assert.Equal(t, "brreg", e.Source)
		assert.Equal(t, 40, e.RegistryScore)
		assert.Zero(t, e.QualityScore)
		assert.Equal(t, 40, e.TrustScore)
		assert.NotEmpty(t, e.ID)
	}
}

func TestVerifyAndStore_NotFoundIsAuditedAndNotStored(t *testing.T) {
	t.Parallel()

	lookup := mockBrreg(t)
	lookup.EXPECT().Lookup(gomock.Any(), "999999999").Return(nil, registry.ErrNotFound)
	mem := store.NewMemory()
	o := newOrchestrator(t, lookup, mem, nil)

	out, err := o.VerifyAndStore(context.Background(), "999999999", "NO", nil)
	require.NoError(t, err)
	assert.False(t, out.Verified())
	assert.Nil(t, out.Record)
	assert.Equal(t, domain.AuditNotFound, out.Audit.Outcome)
	assert.Equal(t, "brreg", out.Audit.Source)
	assert.Zero(t, mem.Len())

	audit, err := mem.AuditLog(context.Background(), domain.NewKey("999999999", "NO"), 0)
	require.NoError(t, err)
	require.Len(t, audit, 1)
	assert.Equal(t, domain.AuditNotFound, audit[0].Outcome)
}

func TestVerifyAndStore_UnroutedCountry(t *testing.T) {
	t.Parallel()

	mem := store.NewMemory()
	o := newOrchestrator(t, nil, mem, nil)

	out, err := o.VerifyAndStore(context.Background(), "123", "XX", nil)
	require.NoError(t, err)
	assert.False(t, out.Verified())
	assert.Equal(t, "none", out.Audit.Source)
}

func TestVerifyAndStore_RegistryWebsiteBecomesFallbackDomain(t *testing.T) {
	t.Parallel()

	lookup := mockBrreg(t)
	lookup.EXPECT().Lookup(gomock.Any(), "912676951").Return(brregEntity("www.FjordBygg.no"), nil)
	mem := store.NewMemory()
	o := newOrchestrator(t, lookup, mem, nil)

	out, err := o.VerifyAndStore(context.Background(), "912676951", "NO", nil)
	require.NoError(t, err)
	assert.Equal(t, "fjordbygg.no", out.Record.DomainName())
	assert.Equal(t, domain.WebsiteStatusRegistryFallback, out.Record.WebsiteStatus)
}

func TestVerifyAndStore_HintedDomainIsNotFallback(t *testing.T) {
	t.Parallel()

	lookup := mockBrreg(t)
	lookup.EXPECT().Lookup(gomock.Any(), "912676951").Return(brregEntity("https://other.no"), nil)
	o := newOrchestrator(t, lookup, store.NewMemory(), nil)

	out, err := o.VerifyAndStore(context.Background(), "912676951", "NO", &orchestrator.Hints{Name: "Fjord Bygg", Domain: "fjordbygg.no"})
	require.NoError(t, err)
	assert.Equal(t, "fjordbygg.no", out.Record.DomainName())
	assert.Equal(t, domain.WebsiteStatusUnset, out.Record.WebsiteStatus)
	assert.Equal(t, "Fjord Bygg", out.Record.Name)
}

func TestVerifyAndStore_RescoresCrawledRecordWithQualityPass(t *testing.T) {
	t.Parallel()

	lookup := mockBrreg(t)
	lookup.EXPECT().Lookup(gomock.Any(), "912676951").Return(brregEntity(""), nil)
	mem := store.NewMemory()
	require.NoError(t, mem.Upsert(context.Background(), &domain.BusinessRecord{
		OrgNumber:          "912676951",
		CountryCode:        "NO",
		Domain:             ptr("fjordbygg.no"),
		WebsiteStatus:      domain.WebsiteStatusActive,
		CompanyDescription: "Fjord Bygg builds houses.",
		SiteSignals:        domain.SiteSignals{HTTPS: true, PageCount: 4, SiteDomain: "fjordbygg.no"},
	}))

	enricher := &stubEnricher{result: intelligence.Ok(intelligence.Enrichment{
		Description:      "Fjord Bygg builds houses.",
		IndustryCategory: "Construction",
		Risk:             domain.RiskSignals{Level: domain.RiskHigh, RedFlags: []string{"copied content"}},
		Translations:     domain.Translations{},
	})}
	o := newOrchestrator(t, lookup, mem, enricher)

	out, err := o.VerifyAndStore(context.Background(), "912676951", "NO", nil)
	require.NoError(t, err)
	require.True(t, out.Verified())
	assert.Equal(t, 1, enricher.calls)

	b := out.Record.TrustScoreBreakdown
	assert.Equal(t, 40, b.Registry.Score)
	assert.Equal(t, 5, b.Quality.Score)
	// https + pages, no red-flag bonus
	assert.Equal(t, 9, b.Technical.Score)
	assert.Equal(t, 54, out.Record.TrustScore)
	assert.Equal(t, "Construction", out.Record.IndustryCategory)
	assert.Equal(t, []string{"copied content"}, out.Record.SiteSignals.RedFlags)
	assert.Equal(t, 5, out.Audit.QualityScore)
}

func TestVerifyAndStore_StoreFailureIsAudited(t *testing.T) {
	t.Parallel()

	lookup := mockBrreg(t)
	lookup.EXPECT().Lookup(gomock.Any(), "912676951").Return(brregEntity(""), nil)
	mem := store.NewMemory()
	o := newOrchestrator(t, lookup, failingUpserts{Memory: mem}, nil)

	out, err := o.VerifyAndStore(context.Background(), "912676951", "NO", nil)
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Zero(t, mem.Len())

	audit, auditErr := mem.AuditLog(context.Background(), domain.NewKey("912676951", "NO"), 0)
	require.NoError(t, auditErr)
	require.Len(t, audit, 1)
	assert.Equal(t, domain.AuditFailure, audit[0].Outcome)
	assert.Contains(t, audit[0].Reason, "deadlock")
}

func TestVerifyAndStore_InvalidKey(t *testing.T) {
	t.Parallel()

	o := newOrchestrator(t, nil, store.NewMemory(), nil)
	_, err := o.VerifyAndStore(context.Background(), " ", "NO", nil)
	require.ErrorIs(t, err, orchestrator.ErrInvalidKey)
}
