// Package metrics exposes the Prometheus collectors for crawls, registry
// lookups, text intelligence, scheduler cycles and trust scores.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric.
const Namespace = "qrydex"

// Metrics holds all collectors. Its methods satisfy the recorder interfaces
// of the pipeline, registry, intelligence, scheduler and trust packages.
type Metrics struct {
	gatherer prometheus.Gatherer

	// Crawl metrics
	CrawlsTotal          *prometheus.CounterVec
	CrawlDurationSeconds prometheus.Histogram
	CrawlPages           prometheus.Histogram

	// Registry metrics
	RegistryLookupsTotal          *prometheus.CounterVec
	RegistryLookupDurationSeconds *prometheus.HistogramVec

	// Text intelligence metrics
	EnrichmentsTotal          *prometheus.CounterVec
	EnrichmentDurationSeconds prometheus.Histogram

	// Scheduler metrics
	CycleRecordsTotal     *prometheus.CounterVec
	CycleDurationSeconds  *prometheus.HistogramVec
	LastCycleTimestamp    *prometheus.GaugeVec
	LastCycleFailedRecord *prometheus.GaugeVec

	TrustScore prometheus.Histogram
}

// New registers the collectors with reg. A nil reg uses a fresh registry,
// which keeps repeated construction in tests from colliding.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	m := &Metrics{gatherer: reg}

	m.initCrawlMetrics(factory)
	m.initRegistryMetrics(factory)
	m.initEnrichmentMetrics(factory)
	m.initSchedulerMetrics(factory)

	m.TrustScore = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "trust_score",
		Help:      "Distribution of computed trust scores",
		Buckets:   prometheus.LinearBuckets(10, 10, 10),
	})
	return m
}

func (m *Metrics) initCrawlMetrics(factory promauto.Factory) {
	m.CrawlsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "crawl",
			Name:      "records_total",
			Help:      "Records processed by the crawl bot, by outcome",
		},
		[]string{"outcome"},
	)
	m.CrawlDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "crawl",
		Name:      "duration_seconds",
		Help:      "Time to crawl, enrich and persist one record",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4min
	})
	m.CrawlPages = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "crawl",
		Name:      "pages",
		Help:      "Pages fetched per site",
		Buckets:   []float64{0, 1, 2, 5, 10, 20, 50},
	})
}

func (m *Metrics) initRegistryMetrics(factory promauto.Factory) {
	m.RegistryLookupsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "registry",
			Name:      "lookups_total",
			Help:      "Registry lookups, by country and outcome",
		},
		[]string{"country", "outcome"},
	)
	m.RegistryLookupDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "registry",
			Name:      "lookup_duration_seconds",
			Help:      "Registry lookup latency, by country",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"country"},
	)
}

func (m *Metrics) initEnrichmentMetrics(factory promauto.Factory) {
	m.EnrichmentsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "intelligence",
			Name:      "enrichments_total",
			Help:      "Text intelligence requests, by outcome",
		},
		[]string{"outcome"},
	)
	m.EnrichmentDurationSeconds = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: "intelligence",
		Name:      "duration_seconds",
		Help:      "Text intelligence latency",
		Buckets:   prometheus.ExponentialBuckets(0.25, 2, 9),
	})
}

func (m *Metrics) initSchedulerMetrics(factory promauto.Factory) {
	m.CycleRecordsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "records_total",
			Help:      "Records handled by scheduler cycles, by shard and result",
		},
		[]string{"shard", "result"},
	)
	m.CycleDurationSeconds = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one scheduler cycle",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
		[]string{"shard"},
	)
	m.LastCycleTimestamp = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed cycle",
		},
		[]string{"shard"},
	)
	m.LastCycleFailedRecord = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "last_cycle_failed_records",
			Help:      "Failed records in the last completed cycle",
		},
		[]string{"shard"},
	)
}

// RecordCrawl counts one crawl bot item.
func (m *Metrics) RecordCrawl(outcome string, pages int, d time.Duration) {
	m.CrawlsTotal.WithLabelValues(outcome).Inc()
	m.CrawlDurationSeconds.Observe(d.Seconds())
	m.CrawlPages.Observe(float64(pages))
}

// RecordLookup counts one registry lookup.
func (m *Metrics) RecordLookup(country, outcome string, d time.Duration) {
	m.RegistryLookupsTotal.WithLabelValues(country, outcome).Inc()
	m.RegistryLookupDurationSeconds.WithLabelValues(country).Observe(d.Seconds())
}

// RecordEnrichment counts one text intelligence request.
func (m *Metrics) RecordEnrichment(outcome string, d time.Duration) {
	m.EnrichmentsTotal.WithLabelValues(outcome).Inc()
	m.EnrichmentDurationSeconds.Observe(d.Seconds())
}

// RecordCycle records a completed scheduler cycle.
func (m *Metrics) RecordCycle(shard string, processed, failed int, elapsed time.Duration) {
	m.CycleRecordsTotal.WithLabelValues(shard, "succeeded").Add(float64(processed - failed))
	m.CycleRecordsTotal.WithLabelValues(shard, "failed").Add(float64(failed))
	m.CycleDurationSeconds.WithLabelValues(shard).Observe(elapsed.Seconds())
	m.LastCycleTimestamp.WithLabelValues(shard).SetToCurrentTime()
	m.LastCycleFailedRecord.WithLabelValues(shard).Set(float64(failed))
}

// RecordTrustScore observes a computed score.
func (m *Metrics) RecordTrustScore(score int) {
	m.TrustScore.Observe(float64(score))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
