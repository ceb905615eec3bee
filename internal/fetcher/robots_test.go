package fetcher_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/internal/fetcher"
)

func newTestChecker() *fetcher.RobotsChecker {
	return fetcher.NewRobotsChecker(&http.Client{Timeout: time.Second}, "QrydexBot", time.Hour)
}

func robotsServer(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRobots_AllowAndDisallow(t *testing.T) {
	t.Parallel()

	srv := robotsServer(t, "User-agent: *\nDisallow: /private/\n", nil)
	checker := newTestChecker()

	allowed, err := checker.IsAllowed(context.Background(), srv.URL+"/public/page")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = checker.IsAllowed(context.Background(), srv.URL+"/private/secret")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRobots_MissingAllowsAll(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	allowed, err := newTestChecker().IsAllowed(context.Background(), srv.URL+"/anything")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRobots_CachesPerHost(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := robotsServer(t, "User-agent: *\nAllow: /\n", &hits)
	checker := newTestChecker()

	for range 3 {
		_, err := checker.IsAllowed(context.Background(), srv.URL+"/page")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestRobots_Sitemaps(t *testing.T) {
	t.Parallel()

	srv := robotsServer(t, "User-agent: *\nAllow: /\nSitemap: https://example.no/sitemap.xml\n", nil)

	sitemaps, err := newTestChecker().Sitemaps(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.no/sitemap.xml"}, sitemaps)
}

func TestRobots_InvalidURL(t *testing.T) {
	t.Parallel()

	_, err := newTestChecker().IsAllowed(context.Background(), "/relative/only")
	require.Error(t, err)
}
