// Package intelligence enriches crawled sites through a generative text
// service. Every failure becomes a Fallback result.
package intelligence

import (
	"context"
	"errors"
	"time"

	"github.com/Meltveit/qrydex/infrastructure/circuitbreaker"
	"github.com/Meltveit/qrydex/infrastructure/logger"
)

// Fallback reasons.
const (
	ReasonDisabled    = "disabled"
	ReasonCircuitOpen = "circuit open"
	ReasonNoContent   = "no content"
)

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Recorder observes enrichment outcomes.
type Recorder interface {
	RecordEnrichment(outcome string, d time.Duration)
}

// Config configures the adapter.
type Config struct {
	MaxContentChars int           `yaml:"max_content_chars"`
	Languages       []string      `env:"INTELLIGENCE_LANGUAGES" yaml:"languages"`
	Timeout         time.Duration `yaml:"timeout"`
	// FailureThreshold consecutive generate errors open the breaker for Cooldown.
	FailureThreshold int           `yaml:"failure_threshold"`
	Cooldown         time.Duration `yaml:"cooldown"`
}

// WithDefaults returns a copy of the config with default values applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if c.MaxContentChars <= 0 {
		c.MaxContentChars = 6000
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"en", "no"}
	}
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.Cooldown <= 0 {
		c.Cooldown = time.Minute
	}
	return c
}

// Adapter turns a SiteContext into an Enrichment.
type Adapter struct {
	gen      Generator
	cfg      Config
	breaker  *circuitbreaker.Breaker
	log      logger.Logger
	recorder Recorder
}

// NewAdapter creates an adapter. A nil generator makes every call a
// Fallback(ReasonDisabled).
func NewAdapter(gen Generator, cfg Config, log logger.Logger) *Adapter {
	cfg = cfg.WithDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	a := &Adapter{gen: gen, cfg: cfg, log: log}
	a.breaker = circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		Cooldown:         cfg.Cooldown,
		OnStateChange: func(from, to circuitbreaker.State) {
			log.Warn("Text intelligence breaker state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return a
}

// WithRecorder attaches an outcome recorder.
func (a *Adapter) WithRecorder(r Recorder) *Adapter {
	a.recorder = r
	return a
}

// Enabled reports whether a generator is configured.
func (a *Adapter) Enabled() bool {
	return a.gen != nil
}

// Enrich asks the generator about sc and parses the reply. It never
// returns an error; check Result.OK.
func (a *Adapter) Enrich(ctx context.Context, sc SiteContext) Result {
	start := time.Now()
	res := a.enrich(ctx, sc)

	outcome := "ok"
	if !res.OK() {
		outcome = "fallback"
		a.log.Debug("Text intelligence fallback",
			logger.String("domain", sc.Domain),
			logger.String("reason", res.Reason),
		)
	}
	if a.recorder != nil {
		a.recorder.RecordEnrichment(outcome, time.Since(start))
	}
	return res
}

func (a *Adapter) enrich(ctx context.Context, sc SiteContext) Result {
	if a.gen == nil {
		return Fallback(ReasonDisabled)
	}
	if sc.Text == "" && sc.Description == "" && sc.Title == "" {
		return Fallback(ReasonNoContent)
	}

	prompt := BuildPrompt(sc, a.cfg.Languages, a.cfg.MaxContentChars)

	var raw string
	err := a.breaker.Execute(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
		var genErr error
		raw, genErr = a.gen.Generate(callCtx, prompt)
		return genErr
	})
	switch {
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return Fallback(ReasonCircuitOpen)
	case err != nil:
		return Fallback("generate: " + err.Error())
	}

	e, err := ParseEnrichment(raw)
	if err != nil {
		return Fallback("parse: " + err.Error())
	}
	return Ok(e)
}
