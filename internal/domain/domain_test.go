package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/internal/domain"
)

func TestWebsiteStatus_UnsetIsNull(t *testing.T) {
	t.Parallel()

	v, err := domain.WebsiteStatusUnset.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var s domain.WebsiteStatus = domain.WebsiteStatusActive
	require.NoError(t, s.Scan(nil))
	assert.Equal(t, domain.WebsiteStatusUnset, s)

	require.NoError(t, s.Scan([]byte("needs_rescue")))
	assert.Equal(t, domain.WebsiteStatusNeedsRescue, s)
}

func TestWebsiteStatus_Terminal(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.WebsiteStatusDead.Terminal())
	assert.True(t, domain.WebsiteStatusRescueFailed.Terminal())
	assert.False(t, domain.WebsiteStatusNeedsRescue.Terminal())
	assert.False(t, domain.WebsiteStatusUnset.Terminal())
}

func TestNewKey_Normalizes(t *testing.T) {
	t.Parallel()

	k := domain.NewKey(" 912 676 951 ", "no")
	assert.Equal(t, domain.Key{OrgNumber: "912676951", CountryCode: "NO"}, k)
	assert.Equal(t, "NO:912676951", k.String())
}

func TestRegistryData_NullWhenEmpty(t *testing.T) {
	t.Parallel()

	v, err := domain.RegistryData{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	var r domain.RegistryData
	require.NoError(t, r.Scan([]byte(`{"legal_name":"Acme AS","company_status":"Active","source":"brreg"}`)))
	assert.Equal(t, domain.CompanyStatusActive, r.CompanyStatus)
	assert.False(t, r.IsZero())
}

func TestRegistryData_Stale(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	fresh := domain.RegistryData{LegalName: "Acme", LastVerifiedRegistry: now.Add(-24 * time.Hour)}
	old := domain.RegistryData{LegalName: "Acme", LastVerifiedRegistry: now.Add(-40 * 24 * time.Hour)}

	assert.False(t, fresh.Stale(now, 30*24*time.Hour))
	assert.True(t, old.Stale(now, 30*24*time.Hour))
	assert.True(t, domain.RegistryData{}.Stale(now, 30*24*time.Hour))
}

func TestSitelinks_NilStoredAsEmptyArray(t *testing.T) {
	t.Parallel()

	v, err := domain.Sitelinks(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	var s domain.Sitelinks
	require.NoError(t, s.Scan(`[{"title":"Contact","url":"https://a.no/kontakt","type":"contact","score":100}]`))
	require.Len(t, s, 1)
	assert.Equal(t, domain.SitelinkContact, s[0].Type)
}
