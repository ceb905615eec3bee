package registry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/registry"
	"github.com/Meltveit/qrydex/internal/registry/mocks"
)

type outcomeRecorder struct {
	outcomes []string
}

func (r *outcomeRecorder) RecordLookup(_, outcome string, _ time.Duration) {
	r.outcomes = append(r.outcomes, outcome)
}

func active(name, source string) *domain.RegistryData {
	return &domain.RegistryData{LegalName: name, CompanyStatus: domain.CompanyStatusActive, Source: source}
}

func TestVerifier_RoutesByCountry(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	no := mocks.NewMockLookup(ctrl)
	dk := mocks.NewMockLookup(ctrl)

	no.EXPECT().Lookup(gomock.Any(), "912676951").Return(active("Fjord Bygg AS", "brreg"), nil)
	dk.EXPECT().Lookup(gomock.Any(), gomock.Any()).Times(0)

	v := registry.NewVerifier(nil)
	v.Register("no", no)
	v.Register("DK", dk)

	data, found := v.Verify(context.Background(), "NO", "912676951")
	require.True(t, found)
	assert.Equal(t, "Fjord Bygg AS", data.LegalName)
}

func TestVerifier_Fallback(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	oc := mocks.NewMockLookup(ctrl)
	oc.EXPECT().Lookup(gomock.Any(), "123").Return(active("Acme BV", "opencorporates"), nil)

	var asked string
	v := registry.NewVerifier(nil)
	v.SetFallback(func(country string) registry.Lookup {
		asked = country
		return oc
	})

	data, found := v.Verify(context.Background(), "nl", "123")
	require.True(t, found)
	assert.Equal(t, "Acme BV", data.LegalName)
	assert.Equal(t, "NL", asked)
}

func TestVerifier_FailuresAreNotFound(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	l := mocks.NewMockLookup(ctrl)
	l.EXPECT().Name().Return("stub").AnyTimes()
	gomock.InOrder(
		l.EXPECT().Lookup(gomock.Any(), "1").Return(nil, registry.ErrNotFound),
		l.EXPECT().Lookup(gomock.Any(), "2").Return(nil, errors.New("connection reset")),
		l.EXPECT().Lookup(gomock.Any(), "3").Return(nil, nil),
	)

	rec := &outcomeRecorder{}
	v := registry.NewVerifier(nil).WithRecorder(rec)
	v.Register("NO", l)

	for _, id := range []string{"1", "2", "3"} {
		data, found := v.Verify(context.Background(), "NO", id)
		assert.False(t, found, id)
		assert.Nil(t, data, id)
	}
	_, found := v.Verify(context.Background(), "SE", "1")
	assert.False(t, found, "no strategy and no fallback")

	assert.Equal(t, []string{
		registry.OutcomeNotFound,
		registry.OutcomeError,
		registry.OutcomeNotFound,
		registry.OutcomeNotFound,
	}, rec.outcomes)
}

func TestChain_FirstSuccessWins(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	first := mocks.NewMockLookup(ctrl)
	second := mocks.NewMockLookup(ctrl)
	third := mocks.NewMockLookup(ctrl)

	first.EXPECT().Name().Return("first").AnyTimes()
	second.EXPECT().Name().Return("second").AnyTimes()
	third.EXPECT().Name().Return("third").AnyTimes()

	first.EXPECT().Lookup(gomock.Any(), "1").Return(nil, errors.New("timeout"))
	second.EXPECT().Lookup(gomock.Any(), "1").Return(&domain.RegistryData{
		CompanyStatus: domain.CompanyStatusLiquidation, Source: "second",
	}, nil)
	third.EXPECT().Lookup(gomock.Any(), gomock.Any()).Times(0)

	c := registry.Chain(first, nil, second, third)
	assert.Equal(t, "first>second>third", c.Name())

	data, err := c.Lookup(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "second", data.Source, "no merging across sources")
}

func TestChain_AllMiss(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	a := mocks.NewMockLookup(ctrl)
	b := mocks.NewMockLookup(ctrl)
	a.EXPECT().Name().Return("a").AnyTimes()
	b.EXPECT().Name().Return("b").AnyTimes()

	a.EXPECT().Lookup(gomock.Any(), "1").Return(nil, registry.ErrNotFound)
	b.EXPECT().Lookup(gomock.Any(), "1").Return(nil, registry.ErrNotFound)
	a.EXPECT().Lookup(gomock.Any(), "2").Return(nil, errors.New("boom"))
	b.EXPECT().Lookup(gomock.Any(), "2").Return(nil, registry.ErrNotFound)

	c := registry.Chain(a, b)
	_, err := c.Lookup(context.Background(), "1")
	require.ErrorIs(t, err, registry.ErrNotFound)

	_, err = c.Lookup(context.Background(), "2")
	require.ErrorIs(t, err, registry.ErrNotFound)
	assert.Contains(t, err.Error(), "a: boom")
}

func TestNormalizeStatus(t *testing.T) {
	t.Parallel()

	tests := map[string]domain.CompanyStatus{
		"active":                 domain.CompanyStatusActive,
		" Active ":               domain.CompanyStatusActive,
		"dissolved":              domain.CompanyStatusDissolved,
		"Converted-Closed":       domain.CompanyStatusDissolved,
		"liquidation":            domain.CompanyStatusLiquidation,
		"Under  avvikling":       domain.CompanyStatusLiquidation,
		"voluntary liquidation":  domain.CompanyStatusLiquidation,
		"insolvency-proceedings": domain.CompanyStatusLiquidation,
		"":                       domain.CompanyStatusUnknown,
		"dormant":                domain.CompanyStatusUnknown,
	}
	for raw, want := range tests {
		assert.Equal(t, want, registry.NormalizeStatus(raw), raw)
	}
}
