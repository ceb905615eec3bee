// Package orchestrator verifies a business against its registry, scores it
// and stores it together with an audit entry.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/crawler"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/intelligence"
	"github.com/Meltveit/qrydex/internal/registry"
	"github.com/Meltveit/qrydex/internal/store"
	"github.com/Meltveit/qrydex/internal/trust"
)

// ErrInvalidKey is returned for an empty org number or country code.
var ErrInvalidKey = errors.New("org number and country code are required")

const noSource = "none"

// Verifier resolves registry strategies per country.
type Verifier interface {
	Verify(ctx context.Context, country, id string) (*domain.RegistryData, bool)
	LookupFor(country string) (registry.Lookup, bool)
}

// Enricher runs the text intelligence quality pass.
type Enricher interface {
	Enrich(ctx context.Context, sc intelligence.SiteContext) intelligence.Result
}

// Scorer scores stored site signals.
type Scorer interface {
	ScoreSignals(reg *domain.RegistryData, site *trust.Signals, risk domain.RiskSignals) trust.Result
}

// Store is the subset of store.Store the orchestrator writes through.
type Store interface {
	Get(ctx context.Context, key domain.Key) (*domain.BusinessRecord, error)
	UpsertWithAudit(ctx context.Context, rec *domain.BusinessRecord, entry *domain.AuditEntry) error
	AppendAudit(ctx context.Context, entry *domain.AuditEntry) error
}

// Indexer publishes stored records to search.
type Indexer interface {
	Index(ctx context.Context, rec *domain.BusinessRecord) error
}

// Hints seed a record that does not exist yet. Empty fields are ignored and
// existing values are never replaced.
type Hints struct {
	Name   string
	Domain string
}

// Outcome is the result of one VerifyAndStore call. Record is nil unless
// the business was verified and stored.
type Outcome struct {
	Record *domain.BusinessRecord
	Audit  domain.AuditEntry
}

// Verified reports whether the registry confirmed the business.
func (o *Outcome) Verified() bool {
	return o != nil && o.Audit.Outcome == domain.AuditSuccess
}

// Orchestrator runs the verification sequence.
type Orchestrator struct {
	verifier Verifier
	enricher Enricher
	scorer   Scorer
	store    Store
	indexer  Indexer
	log      logger.Logger
}

// New creates an orchestrator. enricher and indexer may be nil.
func New(verifier Verifier, enricher Enricher, scorer Scorer, st Store, indexer Indexer, log logger.Logger) *Orchestrator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		verifier: verifier,
		enricher: enricher,
		scorer:   scorer,
		store:    st,
		indexer:  indexer,
		log:      log,
	}
}

// VerifyAndStore looks the business up, scores it and upserts it by
// (orgNumber, countryCode) in the same transaction as its audit entry. A
// registry miss is recorded in the audit log and returned as an unverified
// outcome with a nil error; errors are reserved for storage failures,
// invalid keys and cancellation.
func (o *Orchestrator) VerifyAndStore(ctx context.Context, orgNumber, countryCode string, hints *Hints) (*Outcome, error) {
	key := domain.NewKey(orgNumber, countryCode)
	if key.OrgNumber == "" || key.CountryCode == "" {
		return nil, ErrInvalidKey
	}
	log := o.log.With(
		logger.String("org_number", key.OrgNumber),
		logger.String("country_code", key.CountryCode),
	)

	rec, err := o.load(ctx, key, hints)
	if err != nil {
		return nil, err
	}

	data, found := o.verifier.Verify(ctx, key.CountryCode, key.OrgNumber)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if !found {
		return o.recordMiss(ctx, log, key)
	}

	rec.RegistryData = *data
	if rec.Name == "" {
		rec.Name = data.LegalName
	}
	applyRegistryWebsite(rec, data.Website)

	o.qualityPass(ctx, rec)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	site, risk := trust.SignalsFromRecord(rec)
	scored := o.scorer.ScoreSignals(&rec.RegistryData, site, risk)
	rec.TrustScore = scored.Score
	rec.TrustScoreBreakdown = scored.Breakdown

	entry := &domain.AuditEntry{
		OrgNumber:     key.OrgNumber,
		CountryCode:   key.CountryCode,
		Source:        data.Source,
		Outcome:       domain.AuditSuccess,
		RegistryScore: scored.Breakdown.Registry.Score,
		QualityScore:  scored.Breakdown.Quality.Score,
		TrustScore:    scored.Score,
	}
	if upsertErr := o.store.UpsertWithAudit(ctx, rec, entry); upsertErr != nil {
		o.recordStoreFailure(ctx, log, key, data.Source, upsertErr)
		return nil, fmt.Errorf("store %s: %w", key, upsertErr)
	}

	if o.indexer != nil {
		if indexErr := o.indexer.Index(ctx, rec); indexErr != nil {
			log.Warn("Search indexing failed", logger.Error(indexErr))
		}
	}

	log.Info("Business verified",
		logger.String("source", data.Source),
		logger.String("company_status", string(data.CompanyStatus)),
		logger.Int("trust_score", scored.Score),
	)
	return &Outcome{Record: rec, Audit: *entry}, nil
}

func (o *Orchestrator) load(ctx context.Context, key domain.Key, hints *Hints) (*domain.BusinessRecord, error) {
	rec, err := o.store.Get(ctx, key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec = &domain.BusinessRecord{OrgNumber: key.OrgNumber, CountryCode: key.CountryCode}
	case err != nil:
		return nil, fmt.Errorf("load %s: %w", key, err)
	}

	if hints != nil {
		if rec.Name == "" {
			rec.Name = hints.Name
		}
		if rec.DomainName() == "" && hints.Domain != "" {
			d := hints.Domain
			rec.Domain = &d
		}
	}
	return rec, nil
}

// applyRegistryWebsite gives a domainless record the registry's homepage and
// marks it registry_fallback so the crawl bot picks it up.
func applyRegistryWebsite(rec *domain.BusinessRecord, website string) {
	if rec.DomainName() != "" || website == "" {
		return
	}
	start, err := crawler.NormalizeStart(website)
	if err != nil {
		return
	}
	host := crawler.SiteHost(start)
	if host == "" {
		return
	}
	rec.Domain = &host
	if rec.WebsiteStatus == domain.WebsiteStatusUnset {
		rec.WebsiteStatus = domain.WebsiteStatusRegistryFallback
	}
}

// qualityPass asks text intelligence about content already on the record
// and stores the risk it reports. Records without content and fallbacks keep
// their stored risk, which is neutral for a new record.
func (o *Orchestrator) qualityPass(ctx context.Context, rec *domain.BusinessRecord) {
	if o.enricher == nil || rec.CompanyDescription == "" {
		return
	}
	res := o.enricher.Enrich(ctx, intelligence.SiteContext{
		Name:        rec.Name,
		Domain:      rec.DomainName(),
		CountryCode: rec.CountryCode,
		Description: rec.CompanyDescription,
		Text:        rec.CompanyDescription,
	})
	if !res.OK() {
		return
	}

	e := res.Enrichment
	if cat := e.IndustryCategory; cat != "" && cat != intelligence.UnknownIndustry {
		rec.IndustryCategory = cat
	}
	if len(e.Translations) > 0 {
		rec.Translations = e.Translations
	}
	rec.SiteSignals.RiskLevel = e.Risk.Level
	rec.SiteSignals.RedFlags = e.Risk.RedFlags
	rec.SiteSignals.Sentiment = nil
	if e.Risk.HasSentiment {
		s := e.Risk.Sentiment
		rec.SiteSignals.Sentiment = &s
	}
}

func (o *Orchestrator) sourceName(country string) string {
	if l, ok := o.verifier.LookupFor(country); ok {
		return l.Name()
	}
	return noSource
}

func (o *Orchestrator) recordMiss(ctx context.Context, log logger.Logger, key domain.Key) (*Outcome, error) {
	entry := &domain.AuditEntry{
		OrgNumber:   key.OrgNumber,
		CountryCode: key.CountryCode,
		Source:      o.sourceName(key.CountryCode),
		Outcome:     domain.AuditNotFound,
		Reason:      "registry lookup found no entity",
	}
	if err := o.store.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("audit %s: %w", key, err)
	}
	log.Info("Business not found in registry", logger.String("source", entry.Source))
	return &Outcome{Audit: *entry}, nil
}

func (o *Orchestrator) recordStoreFailure(ctx context.Context, log logger.Logger, key domain.Key, source string, cause error) {
	log.Error("Failed to store verified business", logger.Error(cause))
	entry := &domain.AuditEntry{
		OrgNumber:   key.OrgNumber,
		CountryCode: key.CountryCode,
		Source:      source,
		Outcome:     domain.AuditFailure,
		Reason:      cause.Error(),
	}
	if err := o.store.AppendAudit(ctx, entry); err != nil {
		log.Warn("Failed to audit store failure", logger.Error(err))
	}
}
