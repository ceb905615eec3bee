package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Meltveit/qrydex/infrastructure/config"
	"github.com/Meltveit/qrydex/internal/domain"
)

const pingTimeout = 5 * time.Second

//go:embed schema.sql
var schema string

// recordColumns lists the businesses columns in scan order.
const recordColumns = `id, org_number, country_code, name, domain, website_status, last_scraped_at,
	scrape_count, scrape_attempts, next_scrape_at, company_description, industry_category, logo_url,
	sitelinks, social_media, contact_info, translations, site_signals, trust_score,
	trust_score_breakdown, registry_data, created_at, updated_at`

const upsertQuery = `
	INSERT INTO businesses (id, org_number, country_code, name, domain, website_status, last_scraped_at,
		scrape_count, scrape_attempts, next_scrape_at, company_description, industry_category, logo_url,
		sitelinks, social_media, contact_info, translations, site_signals, trust_score,
		trust_score_breakdown, registry_data)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	ON CONFLICT (org_number, country_code) DO UPDATE SET
		name = EXCLUDED.name,
		domain = EXCLUDED.domain,
		website_status = EXCLUDED.website_status,
		last_scraped_at = EXCLUDED.last_scraped_at,
		scrape_count = EXCLUDED.scrape_count,
		scrape_attempts = EXCLUDED.scrape_attempts,
		next_scrape_at = EXCLUDED.next_scrape_at,
		company_description = EXCLUDED.company_description,
		industry_category = EXCLUDED.industry_category,
		logo_url = EXCLUDED.logo_url,
		sitelinks = EXCLUDED.sitelinks,
		social_media = EXCLUDED.social_media,
		contact_info = EXCLUDED.contact_info,
		translations = EXCLUDED.translations,
		site_signals = EXCLUDED.site_signals,
		trust_score = EXCLUDED.trust_score,
		trust_score_breakdown = EXCLUDED.trust_score_breakdown,
		registry_data = EXCLUDED.registry_data,
		updated_at = NOW()
	RETURNING id, created_at, updated_at
`

const insertAuditQuery = `
	INSERT INTO business_audit_log (id, org_number, country_code, source, outcome,
		registry_score, quality_score, trust_score, reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

// Connect opens a PostgreSQL pool and verifies it with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", pingErr)
	}

	return db, nil
}

// Postgres is the PostgreSQL record store.
type Postgres struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ Store = (*Postgres)(nil)

// NewPostgres creates a store on an open pool.
func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

// Migrate creates the tables and indexes if they do not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Find returns records matching f.
func (p *Postgres) Find(ctx context.Context, f Filter) ([]*domain.BusinessRecord, error) {
	whereClause, args := buildWhere(f)

	orderBy := "ORDER BY country_code, org_number"
	if f.Due != nil {
		orderBy = "ORDER BY next_scrape_at ASC NULLS FIRST, last_scraped_at ASC NULLS FIRST, country_code, org_number"
	}

	query := fmt.Sprintf("SELECT %s FROM businesses %s %s LIMIT $%d OFFSET $%d",
		recordColumns, whereClause, orderBy, len(args)+1, len(args)+2)
	args = append(args, f.limit(), max(f.Offset, 0))

	var records []*domain.BusinessRecord
	if err := p.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("failed to find businesses: %w", err)
	}
	if records == nil {
		records = []*domain.BusinessRecord{}
	}
	return records, nil
}

// buildWhere builds the WHERE clause and args for f.
func buildWhere(f Filter) (whereClause string, args []any) {
	var conditions []string
	args = []any{}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.CountryCode != "" {
		conditions = append(conditions, "country_code = "+next(f.CountryCode))
	}
	if len(f.Statuses) > 0 {
		conditions = append(conditions, "COALESCE(website_status, '') = ANY("+next(pq.Array(statusStrings(f.Statuses)))+")")
	}
	if d := f.Due; d != nil {
		terminal := []domain.WebsiteStatus{domain.WebsiteStatusDead, domain.WebsiteStatusRescueFailed}
		conditions = append(conditions,
			"domain IS NOT NULL AND domain <> ''",
			"COALESCE(website_status, '') <> ALL("+next(pq.Array(statusStrings(terminal)))+")",
		)
		if d.MaxAttempts > 0 {
			conditions = append(conditions, "scrape_attempts < "+next(d.MaxAttempts))
		}
		at := next(d.At)
		stale := next(d.StaleBefore)
		conditions = append(conditions, fmt.Sprintf(
			"(next_scrape_at <= %s OR (next_scrape_at IS NULL AND (last_scraped_at IS NULL OR last_scraped_at <= %s)))",
			at, stale))
	}

	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}
	return whereClause, args
}

// Get returns the record for key or ErrNotFound.
func (p *Postgres) Get(ctx context.Context, key domain.Key) (*domain.BusinessRecord, error) {
	var rec domain.BusinessRecord
	query := "SELECT " + recordColumns + " FROM businesses WHERE org_number = $1 AND country_code = $2"

	err := p.db.GetContext(ctx, &rec, query, key.OrgNumber, key.CountryCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to get business %s: %w", key, err)
	}
	return &rec, nil
}

// Upsert implements Store.
func (p *Postgres) Upsert(ctx context.Context, rec *domain.BusinessRecord) error {
	return upsert(ctx, p.db, rec)
}

// UpsertWithAudit implements Store.
func (p *Postgres) UpsertWithAudit(ctx context.Context, rec *domain.BusinessRecord, entry *domain.AuditEntry) (err error) {
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = upsert(ctx, tx, rec); err != nil {
		return err
	}
	if err = p.appendAudit(ctx, tx, entry); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit business %s: %w", rec.Key(), err)
	}
	return nil
}

func upsert(ctx context.Context, q sqlx.ExtContext, rec *domain.BusinessRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	err := q.QueryRowxContext(ctx, upsertQuery,
		rec.ID,
		rec.OrgNumber,
		rec.CountryCode,
		rec.Name,
		rec.Domain,
		rec.WebsiteStatus,
		rec.LastScrapedAt,
		rec.ScrapeCount,
		rec.ScrapeAttempts,
		rec.NextScrapeAt,
		rec.CompanyDescription,
		rec.IndustryCategory,
		rec.LogoURL,
		rec.Sitelinks,
		rec.SocialMedia,
		rec.ContactInfo,
		rec.Translations,
		rec.SiteSignals,
		rec.TrustScore,
		rec.TrustScoreBreakdown,
		rec.RegistryData,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert business %s: %w", rec.Key(), err)
	}
	return nil
}

// UpdateFields implements Store. An empty patch is a no-op.
func (p *Postgres) UpdateFields(ctx context.Context, key domain.Key, patch Patch) error {
	if patch.Empty() {
		return nil
	}

	var sets []string
	var args []any
	set := func(column string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Domain != nil {
		set("domain", *patch.Domain)
	}
	if patch.WebsiteStatus != nil {
		set("website_status", *patch.WebsiteStatus)
	}
	if patch.ScrapeAttempts != nil {
		set("scrape_attempts", *patch.ScrapeAttempts)
	}
	if patch.ScrapeCount != nil {
		set("scrape_count", *patch.ScrapeCount)
	}
	if patch.LastScrapedAt != nil {
		set("last_scraped_at", *patch.LastScrapedAt)
	}
	if patch.NextScrapeAt != nil {
		set("next_scrape_at", *patch.NextScrapeAt)
	}
	if patch.TrustScore != nil {
		set("trust_score", *patch.TrustScore)
	}
	if patch.TrustScoreBreakdown != nil {
		set("trust_score_breakdown", *patch.TrustScoreBreakdown)
	}
	if patch.SiteSignals != nil {
		set("site_signals", *patch.SiteSignals)
	}
	if patch.RegistryData != nil {
		set("registry_data", *patch.RegistryData)
	}

	query := fmt.Sprintf("UPDATE businesses SET %s, updated_at = NOW() WHERE org_number = $%d AND country_code = $%d",
		strings.Join(sets, ", "), len(args)+1, len(args)+2)
	args = append(args, key.OrgNumber, key.CountryCode)

	result, err := p.db.ExecContext(ctx, query, args...)
	if err = execRequireRows(result, err, fmt.Errorf("%w: %s", ErrNotFound, key)); err != nil {
		return fmt.Errorf("failed to update business %s: %w", key, err)
	}
	return nil
}

// AppendAudit implements Store.
func (p *Postgres) AppendAudit(ctx context.Context, entry *domain.AuditEntry) error {
	return p.appendAudit(ctx, p.db, entry)
}

func (p *Postgres) appendAudit(ctx context.Context, q sqlx.ExtContext, entry *domain.AuditEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = p.now().UTC()
	}
	_, err := q.ExecContext(ctx, insertAuditQuery,
		entry.ID,
		entry.OrgNumber,
		entry.CountryCode,
		entry.Source,
		entry.Outcome,
		entry.RegistryScore,
		entry.QualityScore,
		entry.TrustScore,
		entry.Reason,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// AuditLog returns the newest audit entries for key.
func (p *Postgres) AuditLog(ctx context.Context, key domain.Key, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}
	query := `
		SELECT id, org_number, country_code, source, outcome, registry_score, quality_score,
		       trust_score, reason, created_at
		FROM business_audit_log
		WHERE org_number = $1 AND country_code = $2
		ORDER BY created_at DESC
		LIMIT $3
	`

	entries := []domain.AuditEntry{}
	if err := p.db.SelectContext(ctx, &entries, query, key.OrgNumber, key.CountryCode, limit); err != nil {
		return nil, fmt.Errorf("failed to list audit log: %w", err)
	}
	return entries, nil
}

// execRequireRows validates that an ExecContext result affected at least one row.
// Returns err if non-nil, or notFoundErr if rowsAffected is 0.
func execRequireRows(result sql.Result, err, notFoundErr error) error {
	if err != nil {
		return err
	}
	n, affectedErr := result.RowsAffected()
	if affectedErr != nil {
		return affectedErr
	}
	if n == 0 {
		return notFoundErr
	}
	return nil
}

func statusStrings(statuses []domain.WebsiteStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
