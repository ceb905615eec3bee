package scheduler

import (
	"math"
	"time"

	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/store"
)

// Policy defaults.
const (
	DefaultMaxAttempts  = 4
	DefaultFreshness    = 24 * time.Hour
	DefaultRetryBackoff = 1 * time.Hour
	DefaultMaxBackoff   = 24 * time.Hour

	exponentialBackoffBase = 2
)

// Eligibility decides when a record is due and how processing outcomes move
// it through the website status lifecycle.
type Eligibility struct {
	// MaxAttempts is the number of consecutive failures after which a
	// record becomes terminal.
	MaxAttempts int
	// Freshness is the revisit interval after a successful crawl. Records
	// without next_scrape_at are due once last_scraped_at is older.
	Freshness time.Duration
	// RetryBackoff is the first retry delay; it doubles with each attempt.
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

// DefaultEligibility returns the production policy.
func DefaultEligibility() Eligibility {
	return Eligibility{
		MaxAttempts:  DefaultMaxAttempts,
		Freshness:    DefaultFreshness,
		RetryBackoff: DefaultRetryBackoff,
		MaxBackoff:   DefaultMaxBackoff,
	}
}

func (e Eligibility) withDefaults() Eligibility {
	d := DefaultEligibility()
	if e.MaxAttempts <= 0 {
		e.MaxAttempts = d.MaxAttempts
	}
	if e.Freshness <= 0 {
		e.Freshness = d.Freshness
	}
	if e.RetryBackoff <= 0 {
		e.RetryBackoff = d.RetryBackoff
	}
	if e.MaxBackoff <= 0 {
		e.MaxBackoff = d.MaxBackoff
	}
	return e
}

// Filter returns the store-side due filter at now.
func (e Eligibility) Filter(now time.Time) *store.DueFilter {
	e = e.withDefaults()
	return &store.DueFilter{
		At:          now,
		StaleBefore: now.Add(-e.Freshness),
		MaxAttempts: e.MaxAttempts,
	}
}

// Due reports whether rec should be processed at now.
func (e Eligibility) Due(rec *domain.BusinessRecord, now time.Time) bool {
	return e.Filter(now).Matches(rec)
}

// OnSuccess is the patch for a crawl that produced pages.
func (e Eligibility) OnSuccess(rec *domain.BusinessRecord, now time.Time) store.Patch {
	e = e.withDefaults()
	status := domain.WebsiteStatusActive
	attempts := 0
	count := rec.ScrapeCount + 1
	next := now.Add(e.Freshness)
	return store.Patch{
		WebsiteStatus:  &status,
		ScrapeAttempts: &attempts,
		ScrapeCount:    &count,
		LastScrapedAt:  &now,
		NextScrapeAt:   &next,
	}
}

// OnFailure is the patch for a failed crawl. The attempt counter counts
// consecutive failures; reaching MaxAttempts makes the record terminal:
// rescue_failed for a site that once worked, dead for one that never did.
func (e Eligibility) OnFailure(rec *domain.BusinessRecord, now time.Time) store.Patch {
	e = e.withDefaults()
	attempts := rec.ScrapeAttempts + 1
	next := now.Add(e.Backoff(attempts))

	status := domain.WebsiteStatusNeedsRescue
	if attempts >= e.MaxAttempts {
		status = domain.WebsiteStatusDead
		if rec.ScrapeCount > 0 || rec.WebsiteStatus == domain.WebsiteStatusActive {
			status = domain.WebsiteStatusRescueFailed
		}
	}
	return store.Patch{
		WebsiteStatus:  &status,
		ScrapeAttempts: &attempts,
		NextScrapeAt:   &next,
	}
}

// Backoff returns the retry delay after the given attempt:
// RetryBackoff * 2^(attempt-1), capped at MaxBackoff.
func (e Eligibility) Backoff(attempt int) time.Duration {
	e = e.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	multiplier := math.Pow(exponentialBackoffBase, float64(attempt-1))
	backoff := float64(e.RetryBackoff) * multiplier
	if backoff >= float64(e.MaxBackoff) {
		return e.MaxBackoff
	}
	return time.Duration(backoff)
}
