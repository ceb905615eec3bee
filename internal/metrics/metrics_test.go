package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/internal/intelligence"
	"github.com/Meltveit/qrydex/internal/metrics"
	"github.com/Meltveit/qrydex/internal/pipeline"
	"github.com/Meltveit/qrydex/internal/registry"
	"github.com/Meltveit/qrydex/internal/scheduler"
	"github.com/Meltveit/qrydex/internal/trust"
)

var (
	_ pipeline.Recorder     = (*metrics.Metrics)(nil)
	_ registry.Recorder     = (*metrics.Metrics)(nil)
	_ intelligence.Recorder = (*metrics.Metrics)(nil)
	_ scheduler.Recorder    = (*metrics.Metrics)(nil)
	_ trust.Recorder        = (*metrics.Metrics)(nil)
)

func TestMetrics_RecordCycleSplitsResults(t *testing.T) {
	t.Parallel()

	m := metrics.New(nil)
	m.RecordCycle("1/4", 7, 2, 3*time.Second)
	m.RecordCycle("1/4", 3, 0, time.Second)

	assert.InDelta(t, 8, testutil.ToFloat64(m.CycleRecordsTotal.WithLabelValues("1/4", "succeeded")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(m.CycleRecordsTotal.WithLabelValues("1/4", "failed")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.LastCycleFailedRecord.WithLabelValues("1/4")), 0)
}

func TestMetrics_CountersByLabel(t *testing.T) {
	t.Parallel()

	m := metrics.New(prometheus.NewRegistry())
	m.RecordCrawl("success", 5, time.Second)
	m.RecordCrawl("dead_letter", 0, time.Second)
	m.RecordLookup("NO", "found", 200*time.Millisecond)
	m.RecordEnrichment("fallback", time.Second)
	m.RecordTrustScore(61)

	assert.InDelta(t, 1, testutil.ToFloat64(m.CrawlsTotal.WithLabelValues("dead_letter")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RegistryLookupsTotal.WithLabelValues("NO", "found")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.EnrichmentsTotal.WithLabelValues("fallback")), 0)
}

func TestMetrics_HandlerExposesRegistry(t *testing.T) {
	t.Parallel()

	m := metrics.New(nil)
	m.RecordTrustScore(40)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "qrydex_trust_score_count 1")
}
