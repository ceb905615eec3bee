package fetcher_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/fetcher"
)

func newTestFetcher(timeouts ...time.Duration) *fetcher.Fetcher {
	if len(timeouts) == 0 {
		timeouts = []time.Duration{time.Second, time.Second, time.Second}
	}
	return fetcher.New(fetcher.Config{
		AttemptTimeouts: timeouts,
		RetryDelay:      time.Millisecond,
		HostRate:        -1,
	}, logger.NewNop())
}

func TestFetch_FollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><title>New</title></html>"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := newTestFetcher().Fetch(context.Background(), srv.URL+"/old")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/new", resp.URL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.IsHTML())
	assert.Equal(t, 1, resp.Attempts)
	assert.Contains(t, string(resp.Body), "New")
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	resp, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Attempts)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_NotFoundIsTerminal(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)

	var statusErr *fetcher.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ThrottledExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestFetcher().Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_TimeoutEscalation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(80 * time.Millisecond):
			_, _ = w.Write([]byte("slow but fine"))
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher(20*time.Millisecond, 30*time.Millisecond, 2*time.Second)
	resp, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Attempts)
}

func TestFetch_RotatesIdentities(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	seen := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.UserAgent()] = true
		mu.Unlock()
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	f := newTestFetcher()
	for range 3 {
		_, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 3)
}

func TestIdentityRotator_CustomAgents(t *testing.T) {
	t.Parallel()

	r := fetcher.NewIdentityRotator([]string{"a", "b"})
	assert.Equal(t, "a", r.Next().UserAgent)
	assert.Equal(t, "b", r.Next().UserAgent)
	assert.Equal(t, "a", r.Next().UserAgent)
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"forbidden", &fetcher.StatusError{Code: http.StatusForbidden}, true},
		{"throttled", &fetcher.StatusError{Code: http.StatusTooManyRequests}, true},
		{"bad gateway", &fetcher.StatusError{Code: http.StatusBadGateway}, true},
		{"not found", &fetcher.StatusError{Code: http.StatusNotFound}, false},
		{"gone", &fetcher.StatusError{Code: http.StatusGone}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"cancelled", context.Canceled, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"other", errors.New("unsupported protocol scheme"), false},
	}

	for i := range tests {
		tt := &tests[i]
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, fetcher.IsRetryable(tt.err))
		})
	}
}

func TestResponse_IsHTML_Sniffs(t *testing.T) {
	t.Parallel()

	assert.True(t, (&fetcher.Response{Body: []byte("<!DOCTYPE html><html></html>")}).IsHTML())
	assert.False(t, (&fetcher.Response{ContentType: "application/pdf"}).IsHTML())
	assert.True(t, (&fetcher.Response{ContentType: "application/xhtml+xml"}).IsHTML())
}
