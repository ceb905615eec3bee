package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Meltveit/qrydex/infrastructure/retry"
)

const (
	maxResponseBytes = 2 << 20
	defaultUserAgent = "QrydexBot/1.0 (+https://qrydex.com/bot)"
)

// StatusError is an unexpected HTTP status from a registry.
type StatusError struct {
	Source string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Source, e.Code)
}

// SourceConfig holds settings shared by the HTTP sources.
type SourceConfig struct {
	BaseURL   string
	UserAgent string
	Retry     retry.Config
}

// httpSource performs JSON GETs with retries on 429 and 5xx.
type httpSource struct {
	name   string
	client *http.Client
	cfg    SourceConfig
}

func newHTTPSource(name string, client *http.Client, cfg SourceConfig, defaultBase string) httpSource {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBase
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Config{
			MaxAttempts:  2,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
		}
	}
	cfg.Retry.IsRetryable = retryableRegistryError
	return httpSource{name: name, client: client, cfg: cfg}
}

func retryableRegistryError(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= http.StatusInternalServerError
	}
	return !errors.Is(err, ErrNotFound) && !errors.Is(err, errDecode) && !errors.Is(err, context.Canceled)
}

var errDecode = errors.New("decode registry response")

// getJSON fetches path and decodes the body into out. 404 becomes
// ErrNotFound; statuses listed in accept are returned without error so the
// caller can interpret them.
func (s *httpSource) getJSON(ctx context.Context, path string, header http.Header, out any, accept ...int) (int, error) {
	var status int
	err := retry.Retry(ctx, s.cfg.Retry, func() error {
		var err error
		status, err = s.getOnce(ctx, path, header, out, accept)
		return err
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			return status, ErrNotFound
		case errors.Is(err, retry.ErrContextCancelled):
			return status, ctx.Err()
		}
		return status, err
	}
	return status, nil
}

func (s *httpSource) getOnce(ctx context.Context, path string, header http.Header, out any, accept []int) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("%s: build request: %w", s.name, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", s.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	accepted := resp.StatusCode == http.StatusOK
	for _, code := range accept {
		if resp.StatusCode == code {
			accepted = true
		}
	}
	if !accepted {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		if resp.StatusCode == http.StatusNotFound {
			return resp.StatusCode, ErrNotFound
		}
		return resp.StatusCode, &StatusError{Source: s.name, Code: resp.StatusCode}
	}

	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("%s: %w: %w", s.name, errDecode, err)
		}
	}
	return resp.StatusCode, nil
}

// parseDate accepts the date layouts the registries use.
func parseDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339, "02/01 - 2006", "02.01.2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

// leadingInt parses "50-99" or "12" as the first integer; it returns nil
// when raw has no leading digits.
func leadingInt(raw string) *int {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		return nil
	}
	return &n
}

// digitsOnly strips everything but ASCII digits.
func digitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}
