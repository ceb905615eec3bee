// Package store persists business records and their audit log.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/Meltveit/qrydex/internal/domain"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("record not found")

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Store is the record store. Writes are keyed by (org number, country code)
// so concurrent writers targeting disjoint shards never conflict.
type Store interface {
	Find(ctx context.Context, f Filter) ([]*domain.BusinessRecord, error)
	Get(ctx context.Context, key domain.Key) (*domain.BusinessRecord, error)
	// Upsert inserts or replaces the record with the same key. rec.ID,
	// CreatedAt and UpdatedAt are set from the stored row.
	Upsert(ctx context.Context, rec *domain.BusinessRecord) error
	// UpsertWithAudit writes the record and the audit entry atomically.
	UpsertWithAudit(ctx context.Context, rec *domain.BusinessRecord, entry *domain.AuditEntry) error
	UpdateFields(ctx context.Context, key domain.Key, p Patch) error
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
	AuditLog(ctx context.Context, key domain.Key, limit int) ([]domain.AuditEntry, error)
}

// Filter selects records. Zero fields do not constrain.
type Filter struct {
	CountryCode string
	Statuses    []domain.WebsiteStatus
	Due         *DueFilter
	Limit       int
	Offset      int
}

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultLimit
	case f.Limit > maxLimit:
		return maxLimit
	}
	return f.Limit
}

func (f Filter) matches(rec *domain.BusinessRecord) bool {
	if f.CountryCode != "" && rec.CountryCode != f.CountryCode {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, rec.WebsiteStatus) {
		return false
	}
	return f.Due == nil || f.Due.Matches(rec)
}

// DueFilter selects records eligible for a crawl at At. Due results are
// ordered oldest first: never-scheduled records, then by next_scrape_at.
type DueFilter struct {
	At time.Time
	// StaleBefore applies to records without next_scrape_at: they are due
	// when never scraped or last scraped at or before StaleBefore.
	StaleBefore time.Time
	MaxAttempts int
}

// Matches reports whether rec is due.
func (d DueFilter) Matches(rec *domain.BusinessRecord) bool {
	switch {
	case rec.DomainName() == "":
		return false
	case rec.WebsiteStatus.Terminal():
		return false
	case d.MaxAttempts > 0 && rec.ScrapeAttempts >= d.MaxAttempts:
		return false
	case rec.NextScrapeAt != nil:
		return !rec.NextScrapeAt.After(d.At)
	case rec.LastScrapedAt == nil:
		return true
	}
	return !rec.LastScrapedAt.After(d.StaleBefore)
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Domain              *string
	WebsiteStatus       *domain.WebsiteStatus
	ScrapeAttempts      *int
	ScrapeCount         *int
	LastScrapedAt       *time.Time
	NextScrapeAt        *time.Time
	TrustScore          *int
	TrustScoreBreakdown *domain.TrustScoreBreakdown
	SiteSignals         *domain.SiteSignals
	RegistryData        *domain.RegistryData
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p == Patch{}
}

// Apply writes the patch onto rec.
func (p Patch) Apply(rec *domain.BusinessRecord) {
	if p.Domain != nil {
		d := *p.Domain
		rec.Domain = &d
	}
	if p.WebsiteStatus != nil {
		rec.WebsiteStatus = *p.WebsiteStatus
	}
	if p.ScrapeAttempts != nil {
		rec.ScrapeAttempts = *p.ScrapeAttempts
	}
	if p.ScrapeCount != nil {
		rec.ScrapeCount = *p.ScrapeCount
	}
	if p.LastScrapedAt != nil {
		t := *p.LastScrapedAt
		rec.LastScrapedAt = &t
	}
	if p.NextScrapeAt != nil {
		t := *p.NextScrapeAt
		rec.NextScrapeAt = &t
	}
	if p.TrustScore != nil {
		rec.TrustScore = *p.TrustScore
	}
	if p.TrustScoreBreakdown != nil {
		rec.TrustScoreBreakdown = *p.TrustScoreBreakdown
	}
	if p.SiteSignals != nil {
		rec.SiteSignals = *p.SiteSignals
	}
	if p.RegistryData != nil {
		rec.RegistryData = *p.RegistryData
	}
}

func containsStatus(list []domain.WebsiteStatus, s domain.WebsiteStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
