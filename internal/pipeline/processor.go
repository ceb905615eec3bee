// Package pipeline runs the crawl, extract, enrich, verify and score flow for
// one business record and persists the outcome.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/crawler"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/extractor"
	"github.com/Meltveit/qrydex/internal/intelligence"
	"github.com/Meltveit/qrydex/internal/scheduler"
	"github.com/Meltveit/qrydex/internal/store"
	"github.com/Meltveit/qrydex/internal/trust"
)

// ErrCrawlFailed is returned when a crawl produced no pages. The failure
// transition has already been persisted when it is returned.
var ErrCrawlFailed = errors.New("crawl failed")

// Crawl outcomes reported to the Recorder.
const (
	OutcomeSuccess    = "success"
	OutcomeFailed     = "failed"
	OutcomeDeadLetter = "dead_letter"
)

const defaultRegistryMaxAge = 30 * 24 * time.Hour

// Crawler deep-crawls a domain.
type Crawler interface {
	Crawl(ctx context.Context, domain string, maxPages int) (*crawler.CrawlResult, error)
}

// Extractor turns crawl results into signals.
type Extractor interface {
	ExtractForCountry(result *crawler.CrawlResult, country string) *extractor.EnrichedData
}

// Enricher runs the text intelligence pass.
type Enricher interface {
	Enrich(ctx context.Context, sc intelligence.SiteContext) intelligence.Result
}

// Verifier looks businesses up in their national registry.
type Verifier interface {
	Verify(ctx context.Context, country, id string) (*domain.RegistryData, bool)
}

// Scorer computes trust scores.
type Scorer interface {
	Score(orgNumber string, reg *domain.RegistryData, enriched *extractor.EnrichedData, risk domain.RiskSignals) trust.Result
	ScoreSignals(reg *domain.RegistryData, site *trust.Signals, risk domain.RiskSignals) trust.Result
}

// Writer persists records.
type Writer interface {
	Upsert(ctx context.Context, rec *domain.BusinessRecord) error
	UpdateFields(ctx context.Context, key domain.Key, p store.Patch) error
}

// Indexer publishes records to search. Failures never fail an item.
type Indexer interface {
	Index(ctx context.Context, rec *domain.BusinessRecord) error
}

// Recorder observes crawl outcomes.
type Recorder interface {
	RecordCrawl(outcome string, pages int, d time.Duration)
}

// Config configures the processor.
type Config struct {
	// MaxPages is the crawl page budget; zero uses the crawler default.
	MaxPages int `yaml:"max_pages"`
	// RegistryMaxAge is how old a registry snapshot may get before the
	// pipeline looks the business up again.
	RegistryMaxAge time.Duration `yaml:"registry_max_age"`
}

// Deps are the processor's collaborators. Enricher, Verifier, Indexer and
// Recorder are optional.
type Deps struct {
	Crawler     Crawler
	Extractor   Extractor
	Enricher    Enricher
	Verifier    Verifier
	Scorer      Scorer
	Store       Writer
	Indexer     Indexer
	Recorder    Recorder
	Eligibility scheduler.Eligibility
}

// Processor implements scheduler.Processor for the crawl bot.
type Processor struct {
	deps Deps
	cfg  Config
	log  logger.Logger
	now  func() time.Time
}

var _ scheduler.Processor = (*Processor)(nil)

// New creates a processor.
func New(deps Deps, cfg Config, log logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	if cfg.RegistryMaxAge <= 0 {
		cfg.RegistryMaxAge = defaultRegistryMaxAge
	}
	return &Processor{deps: deps, cfg: cfg, log: log, now: time.Now}
}

// WithClock replaces the wall clock.
func (p *Processor) WithClock(now func() time.Time) *Processor {
	p.now = now
	return p
}

// Process crawls rec's domain and stores the result. A cancelled context
// returns the context error without changing the record.
func (p *Processor) Process(ctx context.Context, rec *domain.BusinessRecord) error {
	log := p.log.With(
		logger.String("org_number", rec.OrgNumber),
		logger.String("country_code", rec.CountryCode),
		logger.String("domain", rec.DomainName()),
	)
	start := p.now()

	result, err := p.deps.Crawler.Crawl(ctx, rec.DomainName(), p.cfg.MaxPages)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err != nil {
		return p.fail(ctx, log, rec, err.Error(), start)
	}
	if result.Empty() {
		return p.fail(ctx, log, rec, fmt.Sprintf("no pages fetched (%d failed)", len(result.FailedURLs)), start)
	}

	enriched := p.deps.Extractor.ExtractForCountry(result, rec.CountryCode)
	intel := p.enrich(ctx, rec, enriched)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	reg := p.verifyIfStale(ctx, rec)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	scored := p.deps.Scorer.Score(rec.OrgNumber, &reg, enriched, intel.Enrichment.Risk)

	updated := Merge(rec, enriched, intel, reg, scored)
	p.deps.Eligibility.OnSuccess(rec, p.now()).Apply(updated)

	if upsertErr := p.deps.Store.Upsert(ctx, updated); upsertErr != nil {
		return fmt.Errorf("persist %s: %w", rec.Key(), upsertErr)
	}
	p.index(ctx, log, updated)
	p.record(OutcomeSuccess, enriched.PageCount, start)

	log.Info("Business crawled",
		logger.Int("pages", enriched.PageCount),
		logger.Int("trust_score", scored.Score),
		logger.Bool("enriched", intel.OK()),
		logger.Duration("duration", p.now().Sub(start)),
	)
	return nil
}

// fail records a failed attempt. Trust is recomputed from registry data
// alone, so the site buckets drop to zero.
func (p *Processor) fail(ctx context.Context, log logger.Logger, rec *domain.BusinessRecord, reason string, start time.Time) error {
	patch := p.deps.Eligibility.OnFailure(rec, p.now())
	scored := p.deps.Scorer.ScoreSignals(&rec.RegistryData, nil, domain.NeutralRisk())
	patch.TrustScore = &scored.Score
	patch.TrustScoreBreakdown = &scored.Breakdown

	if err := p.deps.Store.UpdateFields(ctx, rec.Key(), patch); err != nil {
		return fmt.Errorf("persist failure for %s: %w", rec.Key(), err)
	}

	updated := *rec
	patch.Apply(&updated)
	p.index(ctx, log, &updated)

	outcome := OutcomeFailed
	if updated.WebsiteStatus.Terminal() {
		outcome = OutcomeDeadLetter
		log.Warn("Business dead-lettered",
			logger.String("website_status", string(updated.WebsiteStatus)),
			logger.Int("scrape_attempts", updated.ScrapeAttempts),
			logger.String("reason", reason),
		)
	} else {
		log.Info("Crawl failed",
			logger.Int("scrape_attempts", updated.ScrapeAttempts),
			logger.String("reason", reason),
		)
	}
	p.record(outcome, 0, start)
	return fmt.Errorf("%w: %s", ErrCrawlFailed, reason)
}

func (p *Processor) enrich(ctx context.Context, rec *domain.BusinessRecord, e *extractor.EnrichedData) intelligence.Result {
	if p.deps.Enricher == nil {
		return intelligence.Fallback(intelligence.ReasonDisabled)
	}
	return p.deps.Enricher.Enrich(ctx, intelligence.SiteContext{
		Name:        rec.Name,
		Domain:      rec.DomainName(),
		CountryCode: rec.CountryCode,
		Title:       e.Title,
		Description: e.CompanyDescription,
		Headings:    e.Headings,
		Text:        e.TextSample,
	})
}

// verifyIfStale returns the stored registry snapshot, refreshed when it is
// missing or older than RegistryMaxAge. A failed lookup keeps the old one.
func (p *Processor) verifyIfStale(ctx context.Context, rec *domain.BusinessRecord) domain.RegistryData {
	if p.deps.Verifier == nil || !rec.RegistryData.Stale(p.now(), p.cfg.RegistryMaxAge) {
		return rec.RegistryData
	}
	data, found := p.deps.Verifier.Verify(ctx, rec.CountryCode, rec.OrgNumber)
	if !found {
		return rec.RegistryData
	}
	return *data
}

func (p *Processor) index(ctx context.Context, log logger.Logger, rec *domain.BusinessRecord) {
	if p.deps.Indexer == nil {
		return
	}
	if err := p.deps.Indexer.Index(ctx, rec); err != nil {
		log.Warn("Search indexing failed", logger.Error(err))
	}
}

func (p *Processor) record(outcome string, pages int, start time.Time) {
	if p.deps.Recorder != nil {
		p.deps.Recorder.RecordCrawl(outcome, pages, p.now().Sub(start))
	}
}
