package registry

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/domain"
)

// Lookup outcomes reported to the Recorder.
const (
	OutcomeFound    = "found"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Recorder observes lookup outcomes.
type Recorder interface {
	RecordLookup(country, outcome string, d time.Duration)
}

// Verifier routes a country code to its registered Lookup.
type Verifier struct {
	mu         sync.RWMutex
	strategies map[string]Lookup
	fallback   func(country string) Lookup

	log      logger.Logger
	recorder Recorder
}

// NewVerifier creates a Verifier with no strategies.
func NewVerifier(log logger.Logger) *Verifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &Verifier{strategies: make(map[string]Lookup), log: log}
}

// Register sets the Lookup for a country, replacing any previous one.
func (v *Verifier) Register(country string, l Lookup) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.strategies[strings.ToUpper(country)] = l
}

// SetFallback sets the Lookup factory used for countries without a
// registered strategy.
func (v *Verifier) SetFallback(f func(country string) Lookup) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fallback = f
}

// WithRecorder attaches an outcome recorder.
func (v *Verifier) WithRecorder(r Recorder) *Verifier {
	v.recorder = r
	return v
}

// LookupFor returns the Lookup that serves country.
func (v *Verifier) LookupFor(country string) (Lookup, bool) {
	country = strings.ToUpper(strings.TrimSpace(country))
	v.mu.RLock()
	defer v.mu.RUnlock()
	if l, ok := v.strategies[country]; ok {
		return l, true
	}
	if v.fallback != nil && country != "" {
		if l := v.fallback(country); l != nil {
			return l, true
		}
	}
	return nil, false
}

// Verify looks up id in the registry for country. Failures of any kind are
// logged and reported as not found; found reports whether data is set.
func (v *Verifier) Verify(ctx context.Context, country, id string) (data *domain.RegistryData, found bool) {
	start := time.Now()
	outcome := OutcomeNotFound
	defer func() {
		if v.recorder != nil {
			v.recorder.RecordLookup(strings.ToUpper(country), outcome, time.Since(start))
		}
	}()

	l, ok := v.LookupFor(country)
	if !ok {
		v.log.Debug("No registry for country", logger.String("country", country))
		return nil, false
	}

	data, err := l.Lookup(ctx, id)
	switch {
	case err == nil && data != nil:
		outcome = OutcomeFound
		return data, true
	case err == nil, notFoundOnly(err):
		v.log.Debug("Registry entity not found",
			logger.String("country", country),
			logger.String("org_number", id),
			logger.String("source", l.Name()),
		)
	default:
		outcome = OutcomeError
		v.log.Warn("Registry lookup failed",
			logger.String("country", country),
			logger.String("org_number", id),
			logger.String("source", l.Name()),
			logger.Error(err),
		)
	}
	return nil, false
}

// notFoundOnly reports whether err is a clean not-found with no transport
// failure joined behind it.
func notFoundOnly(err error) bool {
	if !errors.Is(err, ErrNotFound) {
		return false
	}
	_, joined := err.(interface{ Unwrap() []error }) //nolint:errorlint // checks the outer wrapper only
	return !joined
}

// Config configures the default strategies.
type Config struct {
	UserAgent            string `env:"REGISTRY_USER_AGENT"      yaml:"user_agent"`
	CompaniesHouseAPIKey string `env:"COMPANIES_HOUSE_API_KEY"  yaml:"companies_house_api_key"`
	OpenCorporatesToken  string `env:"OPENCORPORATES_API_TOKEN" yaml:"opencorporates_api_token"`
	// Base URL overrides, mainly for tests.
	BrregBaseURL          string `yaml:"brreg_base_url"`
	CVRBaseURL            string `yaml:"cvr_base_url"`
	PRHBaseURL            string `yaml:"prh_base_url"`
	CompaniesHouseBaseURL string `yaml:"companies_house_base_url"`
	OpenCorporatesBaseURL string `yaml:"opencorporates_base_url"`
}

// NewDefaultVerifier wires the national registries with OpenCorporates
// behind each of them and as the fallback for every other country. UK
// lookups use Companies House only when an API key is configured.
func NewDefaultVerifier(client *http.Client, cfg Config, log logger.Logger) *Verifier {
	src := func(base string) SourceConfig {
		return SourceConfig{BaseURL: base, UserAgent: cfg.UserAgent}
	}
	oc := NewOpenCorporates(client, cfg.OpenCorporatesToken, src(cfg.OpenCorporatesBaseURL))

	v := NewVerifier(log)
	v.Register("NO", Chain(NewBrreg(client, src(cfg.BrregBaseURL)), oc.ForJurisdiction("no")))
	v.Register("DK", Chain(NewCVR(client, src(cfg.CVRBaseURL)), oc.ForJurisdiction("dk")))
	v.Register("FI", Chain(NewPRH(client, src(cfg.PRHBaseURL)), oc.ForJurisdiction("fi")))
	if cfg.CompaniesHouseAPIKey != "" {
		v.Register("GB", Chain(NewCompaniesHouse(client, cfg.CompaniesHouseAPIKey, src(cfg.CompaniesHouseBaseURL)), oc.ForJurisdiction("gb")))
	}
	v.SetFallback(oc.ForJurisdiction)
	return v
}
