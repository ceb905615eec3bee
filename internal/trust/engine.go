// Package trust computes the credibility score and its additive breakdown.
package trust

import (
	"math"
	"time"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/extractor"
)

const (
	maxScore = 100

	// Bucket maximums; they add up to maxScore.
	maxRegistry  = 40
	maxQuality   = 25
	maxSocial    = 15
	maxTechnical = 15
	maxNews      = 5

	registryActive      = 30
	registryLiquidation = 10
	registryRecent      = 5
	registryEstablished = 5
	recentVerification  = 30 * 24 * time.Hour
	establishedYears    = 3

	qualityDescription   = 5
	qualitySitelinksMany = 5
	qualitySitelinksSome = 3
	qualityEmail         = 5
	qualityPhone         = 3
	qualityTaxIDMatch    = 5
	qualityLogo          = 2
	sitelinksManyCount   = 3

	socialPerPlatform = 3

	technicalHTTPS      = 5
	technicalPagesMany  = 4
	technicalPagesSome  = 2
	technicalStructured = 2
	technicalNoFlags    = 4
	pagesManyCount      = 3
)

// Signal names recorded in the breakdown.
const (
	SignalRegistryActive      = "registry_active"
	SignalRegistryLiquidation = "registry_liquidation"
	SignalVerifiedRecently    = "verified_recently"
	SignalEstablished         = "established"
	SignalDescription         = "description"
	SignalSitelinks           = "sitelinks"
	SignalProfessionalEmail   = "professional_email"
	SignalPhone               = "phone"
	SignalTaxIDMatch          = "tax_id_match"
	SignalLogo                = "logo"
	SignalHTTPS               = "https"
	SignalPages               = "pages"
	SignalStructuredData      = "structured_data"
	SignalNoRedFlags          = "no_red_flags"
	SignalSentiment           = "sentiment"
)

// Result is a score with its breakdown. Breakdown.Total() == Score.
type Result struct {
	Score     int
	Breakdown domain.TrustScoreBreakdown
}

// Recorder observes computed scores.
type Recorder interface {
	RecordTrustScore(score int)
}

// Engine scores businesses. It is stateless apart from its clock.
type Engine struct {
	log      logger.Logger
	now      func() time.Time
	recorder Recorder
}

// NewEngine creates an engine using the wall clock.
func NewEngine(log logger.Logger) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	return &Engine{log: log, now: time.Now}
}

// WithClock replaces the clock used for recency bonuses.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithRecorder attaches a score recorder.
func (e *Engine) WithRecorder(r Recorder) *Engine {
	e.recorder = r
	return e
}

// Score combines registry data, crawl extraction and risk signals. orgNumber
// is used to cross-check a tax identifier found on the site. A nil enriched
// means no crawl data: the quality, social and technical buckets are zero.
func (e *Engine) Score(orgNumber string, reg *domain.RegistryData, enriched *extractor.EnrichedData, risk domain.RiskSignals) Result {
	return e.ScoreSignals(reg, SignalsFromEnriched(enriched, orgNumber), risk)
}

// ScoreSignals scores precomputed site signals. A nil site scores like a
// failed crawl.
func (e *Engine) ScoreSignals(reg *domain.RegistryData, site *Signals, risk domain.RiskSignals) Result {
	b := domain.TrustScoreBreakdown{
		Registry:  e.registryBucket(reg),
		Quality:   qualityBucket(site),
		Social:    socialBucket(site),
		Technical: technicalBucket(site, risk),
		News:      newsBucket(risk),
	}

	// Each bucket is clamped and the maximums sum to maxScore.
	score := min(b.Total(), maxScore)

	e.log.Debug("Trust score calculated",
		logger.Int("trust_score", score),
		logger.Int("registry", b.Registry.Score),
		logger.Int("quality", b.Quality.Score),
		logger.Int("social", b.Social.Score),
		logger.Int("technical", b.Technical.Score),
		logger.Int("news", b.News.Score),
	)
	if e.recorder != nil {
		e.recorder.RecordTrustScore(score)
	}
	return Result{Score: score, Breakdown: b}
}

func (e *Engine) registryBucket(reg *domain.RegistryData) domain.BucketScore {
	bucket := domain.BucketScore{Max: maxRegistry, Signals: []string{}}
	if reg == nil || reg.IsZero() {
		return bucket
	}

	switch reg.CompanyStatus {
	case domain.CompanyStatusActive:
		award(&bucket, registryActive, SignalRegistryActive)
	case domain.CompanyStatusLiquidation:
		award(&bucket, registryLiquidation, SignalRegistryLiquidation)
	case domain.CompanyStatusDissolved, domain.CompanyStatusUnknown:
	}

	now := e.now()
	if !reg.LastVerifiedRegistry.IsZero() && now.Sub(reg.LastVerifiedRegistry) < recentVerification {
		award(&bucket, registryRecent, SignalVerifiedRecently)
	}
	if reg.RegistrationDate != nil && !reg.RegistrationDate.After(now.AddDate(-establishedYears, 0, 0)) {
		award(&bucket, registryEstablished, SignalEstablished)
	}
	return clamp(bucket)
}

func qualityBucket(site *Signals) domain.BucketScore {
	bucket := domain.BucketScore{Max: maxQuality, Signals: []string{}}
	if site == nil {
		return bucket
	}

	if site.HasDescription {
		award(&bucket, qualityDescription, SignalDescription)
	}
	switch {
	case site.SitelinkCount >= sitelinksManyCount:
		award(&bucket, qualitySitelinksMany, SignalSitelinks)
	case site.SitelinkCount > 0:
		award(&bucket, qualitySitelinksSome, SignalSitelinks)
	}
	if site.ProfessionalEmail {
		award(&bucket, qualityEmail, SignalProfessionalEmail)
	}
	if site.HasPhone {
		award(&bucket, qualityPhone, SignalPhone)
	}
	if site.TaxIDMatch {
		award(&bucket, qualityTaxIDMatch, SignalTaxIDMatch)
	}
	if site.HasLogo {
		award(&bucket, qualityLogo, SignalLogo)
	}
	return clamp(bucket)
}

func socialBucket(site *Signals) domain.BucketScore {
	bucket := domain.BucketScore{Max: maxSocial, Signals: []string{}}
	if site == nil {
		return bucket
	}
	for _, platform := range site.SocialPlatforms {
		award(&bucket, socialPerPlatform, platform)
	}
	return clamp(bucket)
}

func technicalBucket(site *Signals, risk domain.RiskSignals) domain.BucketScore {
	bucket := domain.BucketScore{Max: maxTechnical, Signals: []string{}}
	if site == nil {
		return bucket
	}

	if site.HTTPS {
		award(&bucket, technicalHTTPS, SignalHTTPS)
	}
	switch {
	case site.PageCount >= pagesManyCount:
		award(&bucket, technicalPagesMany, SignalPages)
	case site.PageCount > 0:
		award(&bucket, technicalPagesSome, SignalPages)
	}
	if site.StructuredData {
		award(&bucket, technicalStructured, SignalStructuredData)
	}
	if len(risk.RedFlags) == 0 && risk.Level != domain.RiskHigh {
		award(&bucket, technicalNoFlags, SignalNoRedFlags)
	}
	return clamp(bucket)
}

// newsBucket maps sentiment in [-1, 1] linearly onto [0, maxNews].
func newsBucket(risk domain.RiskSignals) domain.BucketScore {
	bucket := domain.BucketScore{Max: maxNews, Signals: []string{}}
	if !risk.HasSentiment {
		return bucket
	}
	s := math.Max(-1, math.Min(1, risk.Sentiment))
	award(&bucket, int(math.Round((s+1)/2*maxNews)), SignalSentiment)
	return clamp(bucket)
}

func award(b *domain.BucketScore, points int, signal string) {
	b.Score += points
	b.Signals = append(b.Signals, signal)
}

func clamp(b domain.BucketScore) domain.BucketScore {
	b.Score = max(0, min(b.Score, b.Max))
	return b
}
