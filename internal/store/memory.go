package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Meltveit/qrydex/internal/domain"
)

// Memory is an in-process Store used when no database is configured and in
// tests. Records are copied on the way in and out.
type Memory struct {
	mu      sync.RWMutex
	records map[domain.Key]*domain.BusinessRecord
	audit   []domain.AuditEntry
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{records: make(map[domain.Key]*domain.BusinessRecord), now: time.Now}
}

// Find implements Store.
func (m *Memory) Find(_ context.Context, f Filter) ([]*domain.BusinessRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*domain.BusinessRecord, 0)
	for _, rec := range m.records {
		if f.matches(rec) {
			matched = append(matched, rec)
		}
	}

	if f.Due != nil {
		slices.SortFunc(matched, compareDue)
	} else {
		slices.SortFunc(matched, compareKey)
	}

	offset := min(max(f.Offset, 0), len(matched))
	matched = matched[offset:]
	matched = matched[:min(f.limit(), len(matched))]

	out := make([]*domain.BusinessRecord, len(matched))
	for i, rec := range matched {
		out[i] = clone(rec)
	}
	return out, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key domain.Key) (*domain.BusinessRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return clone(rec), nil
}

// Upsert implements Store.
func (m *Memory) Upsert(_ context.Context, rec *domain.BusinessRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(rec)
	return nil
}

// UpsertWithAudit implements Store.
func (m *Memory) UpsertWithAudit(_ context.Context, rec *domain.BusinessRecord, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertLocked(rec)
	m.appendLocked(entry)
	return nil
}

func (m *Memory) upsertLocked(rec *domain.BusinessRecord) {
	now := m.now().UTC()
	key := rec.Key()
	if existing, ok := m.records[key]; ok {
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
	} else {
		if rec.ID == "" {
			rec.ID = uuid.NewString()
		}
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.records[key] = clone(rec)
}

// UpdateFields implements Store.
func (m *Memory) UpdateFields(_ context.Context, key domain.Key, p Patch) error {
	if p.Empty() {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	p.Apply(rec)
	rec.UpdatedAt = m.now().UTC()
	return nil
}

// AppendAudit implements Store.
func (m *Memory) AppendAudit(_ context.Context, entry *domain.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLocked(entry)
	return nil
}

func (m *Memory) appendLocked(entry *domain.AuditEntry) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.now().UTC()
	}
	m.audit = append(m.audit, *entry)
}

// AuditLog implements Store. Entries are newest first.
func (m *Memory) AuditLog(_ context.Context, key domain.Key, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []domain.AuditEntry{}
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.audit[i]
		if e.OrgNumber == key.OrgNumber && e.CountryCode == key.CountryCode {
			out = append(out, e)
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func compareKey(a, b *domain.BusinessRecord) int {
	return cmp.Or(cmp.Compare(a.CountryCode, b.CountryCode), cmp.Compare(a.OrgNumber, b.OrgNumber))
}

// compareDue orders like the SQL store: NULLs first, then ascending.
func compareDue(a, b *domain.BusinessRecord) int {
	return cmp.Or(
		compareNullableTime(a.NextScrapeAt, b.NextScrapeAt),
		compareNullableTime(a.LastScrapedAt, b.LastScrapedAt),
		compareKey(a, b),
	)
}

func compareNullableTime(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clone(rec *domain.BusinessRecord) *domain.BusinessRecord {
	c := *rec
	c.Domain = clonePtr(rec.Domain)
	c.LastScrapedAt = clonePtr(rec.LastScrapedAt)
	c.NextScrapeAt = clonePtr(rec.NextScrapeAt)
	c.Sitelinks = slices.Clone(rec.Sitelinks)
	c.SocialMedia = maps.Clone(rec.SocialMedia)
	c.ContactInfo.Emails = slices.Clone(rec.ContactInfo.Emails)
	c.ContactInfo.Phones = slices.Clone(rec.ContactInfo.Phones)
	c.Translations = maps.Clone(rec.Translations)
	c.SiteSignals.Languages = slices.Clone(rec.SiteSignals.Languages)
	c.SiteSignals.RedFlags = slices.Clone(rec.SiteSignals.RedFlags)
	c.SiteSignals.Sentiment = clonePtr(rec.SiteSignals.Sentiment)
	c.RegistryData.RegistrationDate = clonePtr(rec.RegistryData.RegistrationDate)
	c.RegistryData.EmployeeCount = clonePtr(rec.RegistryData.EmployeeCount)
	c.RegistryData.IndustryCodes = slices.Clone(rec.RegistryData.IndustryCodes)
	return &c
}
