package bootstrap

import (
	"errors"
	"time"

	infrahttp "github.com/Meltveit/qrydex/infrastructure/http"
	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/crawler"
	"github.com/Meltveit/qrydex/internal/extractor"
	"github.com/Meltveit/qrydex/internal/fetcher"
	"github.com/Meltveit/qrydex/internal/importer"
	"github.com/Meltveit/qrydex/internal/intelligence"
	"github.com/Meltveit/qrydex/internal/orchestrator"
	"github.com/Meltveit/qrydex/internal/pipeline"
	"github.com/Meltveit/qrydex/internal/registry"
	"github.com/Meltveit/qrydex/internal/scheduler"
	"github.com/Meltveit/qrydex/internal/trust"
)

const registryTimeout = 20 * time.Second

func (a *App) setupServices() error {
	cfg := a.Config

	a.Fetcher = fetcher.New(cfg.Fetcher, a.Log)
	var robots crawler.RobotsPolicy
	if !cfg.Crawler.IgnoreRobots {
		robots = fetcher.NewRobotsChecker(a.Fetcher.Client(), a.Fetcher.RobotsAgent(), 0)
	}
	a.Crawler = crawler.New(cfg.Crawler, a.Fetcher, robots, a.Log)
	a.Extractor = extractor.New(a.Log)

	client := infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: registryTimeout})
	a.Registry = registry.NewDefaultVerifier(client, cfg.Registry, a.Log).WithRecorder(a.Metrics)

	enricher, err := a.newEnricher()
	if err != nil {
		return wrapSetup("text intelligence", err)
	}
	a.Enricher = enricher
	a.Trust = trust.NewEngine(a.Log).WithRecorder(a.Metrics)

	deps := pipeline.Deps{
		Crawler:     a.Crawler,
		Extractor:   a.Extractor,
		Enricher:    a.Enricher,
		Verifier:    a.Registry,
		Scorer:      a.Trust,
		Store:       a.Store,
		Recorder:    a.Metrics,
		Eligibility: cfg.Scheduler.Eligibility(),
	}
	var orchIndexer orchestrator.Indexer
	if a.Indexer != nil {
		deps.Indexer = a.Indexer
		orchIndexer = a.Indexer
	}
	a.Processor = pipeline.New(deps, pipeline.Config{
		MaxPages:       cfg.Crawler.MaxPages,
		RegistryMaxAge: cfg.Scheduler.RegistryMaxAge,
	}, a.Log)
	a.Orchestrator = orchestrator.New(a.Registry, a.Enricher, a.Trust, a.Store, orchIndexer, a.Log)
	return nil
}

// newEnricher builds the adapter. Without an API key every call falls back.
func (a *App) newEnricher() (*intelligence.Adapter, error) {
	cfg := a.Config.Intelligence

	var gen intelligence.Generator
	if cfg.Enabled() {
		anthropicGen, err := intelligence.NewAnthropicGenerator(cfg.Anthropic)
		if err != nil {
			return nil, err
		}
		gen = anthropicGen
	} else {
		a.Log.Warn("No Anthropic API key configured, text intelligence uses fallbacks")
	}
	return intelligence.NewAdapter(gen, cfg.Adapter, a.Log).WithRecorder(a.Metrics), nil
}

// Runner builds this worker's crawl loop.
func (a *App) Runner() (*scheduler.Runner, error) {
	cfg := a.Config.Scheduler
	shard, err := cfg.Shard()
	if err != nil {
		return nil, err
	}
	return scheduler.NewRunner(a.Log, a.Store, a.Processor,
		scheduler.WithShard(shard),
		scheduler.WithEligibility(cfg.Eligibility()),
		scheduler.WithBatchSize(cfg.BatchSize),
		scheduler.WithIdleSleep(cfg.IdleSleep),
		scheduler.WithItemDelay(cfg.ItemDelay),
		scheduler.WithRecorder(a.Metrics),
	), nil
}

// BrregBot builds the Norwegian registry import bot.
func (a *App) BrregBot() *importer.Bot {
	cfg := a.Config
	brreg := registry.NewBrreg(infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: registryTimeout}), registry.SourceConfig{
		BaseURL:   cfg.Registry.BrregBaseURL,
		UserAgent: cfg.Registry.UserAgent,
	})
	catalog := importer.NewBrregCatalog(brreg, cfg.Importer.BrregPageSize, cfg.Importer.BrregOrgForm)
	return importer.NewBot(catalog, a.Orchestrator, a.Cursors, a.Log).WithItemDelay(cfg.Importer.ItemDelay)
}

// SheetBot builds an import bot over parsed workbook rows.
func (a *App) SheetBot(name string, rows []importer.WorkbookRow) *importer.Bot {
	cfg := a.Config.Importer
	catalog := importer.NewSheetCatalog(name, rows, cfg.SheetPageSize)
	return importer.NewBot(catalog, a.Orchestrator, a.Cursors, a.Log).WithItemDelay(cfg.ItemDelay)
}

// ErrNoSchedule is returned by ImportScheduler when no cron expression is set.
var ErrNoSchedule = errors.New("importer.schedule is not set")

// ImportScheduler schedules the registry bot on importer.schedule.
func (a *App) ImportScheduler() (*importer.Scheduler, error) {
	spec := a.Config.Importer.Schedule
	if spec == "" {
		return nil, ErrNoSchedule
	}
	s := importer.NewScheduler(a.Log)
	if err := s.Add(spec, a.BrregBot()); err != nil {
		return nil, err
	}
	a.Log.Info("Registry import scheduled", logger.String("schedule", spec))
	return s, nil
}
