package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/store"
)

func ptr[T any](v T) *T { return &v }

func TestMemory_UpsertIsIdempotent(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	ctx := context.Background()

	first := &domain.BusinessRecord{OrgNumber: "912676951", CountryCode: "NO", Name: "Old", TrustScore: 10}
	require.NoError(t, m.Upsert(ctx, first))
	require.NotEmpty(t, first.ID)

	second := &domain.BusinessRecord{OrgNumber: "912676951", CountryCode: "NO", Name: "FJORD BYGG AS", TrustScore: 72}
	require.NoError(t, m.Upsert(ctx, second))

	assert.Equal(t, 1, m.Len())
	assert.Equal(t, first.ID, second.ID)

	got, err := m.Get(ctx, domain.NewKey("912676951", "NO"))
	require.NoError(t, err)
	assert.Equal(t, "FJORD BYGG AS", got.Name)
	assert.Equal(t, 72, got.TrustScore)
}

func TestMemory_CopiesOnReadAndWrite(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	ctx := context.Background()

	rec := &domain.BusinessRecord{
		OrgNumber:   "1",
		CountryCode: "NO",
		SocialMedia: domain.SocialMedia{"x": "https://x.com/a"},
		Domain:      ptr("a.no"),
	}
	require.NoError(t, m.Upsert(ctx, rec))
	rec.SocialMedia["x"] = "changed"
	*rec.Domain = "b.no"

	got, err := m.Get(ctx, rec.Key())
	require.NoError(t, err)
	assert.Equal(t, "https://x.com/a", got.SocialMedia["x"])
	assert.Equal(t, "a.no", got.DomainName())
}

func TestMemory_FindDue(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	m := store.NewMemory()
	ctx := context.Background()

	records := []*domain.BusinessRecord{
		{OrgNumber: "1", CountryCode: "NO", Domain: ptr("never.no")},
		{OrgNumber: "2", CountryCode: "NO", Domain: ptr("retry.no"), NextScrapeAt: ptr(now.Add(-time.Hour)), ScrapeAttempts: 2},
		{OrgNumber: "3", CountryCode: "NO", Domain: ptr("later.no"), NextScrapeAt: ptr(now.Add(time.Hour))},
		{OrgNumber: "4", CountryCode: "NO", Domain: ptr("dead.no"), WebsiteStatus: domain.WebsiteStatusDead},
		{OrgNumber: "5", CountryCode: "NO"},
		{OrgNumber: "6", CountryCode: "NO", Domain: ptr("capped.no"), ScrapeAttempts: 4},
		{OrgNumber: "7", CountryCode: "NO", Domain: ptr("stale.no"), LastScrapedAt: ptr(now.Add(-48 * time.Hour))},
		{OrgNumber: "8", CountryCode: "NO", Domain: ptr("fresh.no"), LastScrapedAt: ptr(now.Add(-time.Hour))},
		{OrgNumber: "9", CountryCode: "DK", Domain: ptr("rescue.dk"), WebsiteStatus: domain.WebsiteStatusRescueFailed},
		{OrgNumber: "10", CountryCode: "NO", Domain: ptr(""), WebsiteStatus: domain.WebsiteStatusRegistryFallback},
	}
	for _, r := range records {
		require.NoError(t, m.Upsert(ctx, r))
	}

	due, err := m.Find(ctx, store.Filter{Due: &store.DueFilter{
		At: now, StaleBefore: now.Add(-24 * time.Hour), MaxAttempts: 4,
	}})
	require.NoError(t, err)

	var orgs []string
	for _, r := range due {
		orgs = append(orgs, r.OrgNumber)
	}
	assert.Equal(t, []string{"1", "7", "2"}, orgs)
}

func TestMemory_FindPaging(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	ctx := context.Background()
	for _, org := range []string{"3", "1", "2"} {
		require.NoError(t, m.Upsert(ctx, &domain.BusinessRecord{OrgNumber: org, CountryCode: "NO"}))
	}
	require.NoError(t, m.Upsert(ctx, &domain.BusinessRecord{OrgNumber: "1", CountryCode: "DK"}))

	page, err := m.Find(ctx, store.Filter{CountryCode: "NO", Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "2", page[0].OrgNumber)
	assert.Equal(t, "3", page[1].OrgNumber)

	page, err = m.Find(ctx, store.Filter{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemory_UpdateFields(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	ctx := context.Background()
	key := domain.NewKey("912676951", "NO")

	err := m.UpdateFields(ctx, key, store.Patch{ScrapeAttempts: ptr(1)})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, m.Upsert(ctx, &domain.BusinessRecord{OrgNumber: key.OrgNumber, CountryCode: key.CountryCode, Name: "A"}))
	require.NoError(t, m.UpdateFields(ctx, key, store.Patch{
		WebsiteStatus:  ptr(domain.WebsiteStatusNeedsRescue),
		ScrapeAttempts: ptr(3),
	}))

	got, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, domain.WebsiteStatusNeedsRescue, got.WebsiteStatus)
	assert.Equal(t, 3, got.ScrapeAttempts)
	assert.Equal(t, "A", got.Name, "untouched fields survive")
}

func TestMemory_AuditLog(t *testing.T) {
	t.Parallel()

	m := store.NewMemory()
	ctx := context.Background()
	key := domain.NewKey("912676951", "NO")

	require.NoError(t, m.AppendAudit(ctx, &domain.AuditEntry{OrgNumber: key.OrgNumber, CountryCode: "NO", Outcome: domain.AuditNotFound}))
	require.NoError(t, m.AppendAudit(ctx, &domain.AuditEntry{OrgNumber: "other", CountryCode: "NO", Outcome: domain.AuditSuccess}))
	require.NoError(t, m.UpsertWithAudit(ctx,
		&domain.BusinessRecord{OrgNumber: key.OrgNumber, CountryCode: "NO"},
		&domain.AuditEntry{OrgNumber: key.OrgNumber, CountryCode: "NO", Outcome: domain.AuditSuccess, TrustScore: 50}))

	entries, err := m.AuditLog(ctx, key, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, domain.AuditSuccess, entries[0].Outcome, "newest first")
	assert.Equal(t, domain.AuditNotFound, entries[1].Outcome)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, 1, m.Len())
}
