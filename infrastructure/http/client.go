// Package http builds http.Clients with consistent transport settings.
package http

import (
	"crypto/tls"
	"errors"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the default overall request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxIdleConns is the default maximum number of idle connections.
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the default idle connections kept per host.
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is the default idle connection timeout.
	DefaultIdleConnTimeout = 90 * time.Second
	// DefaultTLSHandshakeTimeout is the default TLS handshake timeout.
	DefaultTLSHandshakeTimeout = 10 * time.Second
	// DefaultMaxRedirects is the number of redirects followed before giving up.
	DefaultMaxRedirects = 10
)

// ErrTooManyRedirects is returned when a redirect chain exceeds MaxRedirects.
var ErrTooManyRedirects = errors.New("too many redirects")

// ClientConfig configures an HTTP client.
type ClientConfig struct {
	// Timeout bounds a whole request. Negative disables the client-level
	// timeout so callers can bound requests with contexts instead.
	Timeout time.Duration
	// TLSConfig overrides the default TLS configuration.
	TLSConfig *tls.Config
	// MaxIdleConnsPerHost caps keep-alive connections per host.
	MaxIdleConnsPerHost int
	// MaxRedirects caps the redirect chain length.
	MaxRedirects int
	// Transport replaces the default transport, mainly for tests.
	Transport http.RoundTripper
}

// NewClient creates an HTTP client. A nil cfg uses defaults.
func NewClient(cfg *ClientConfig) *http.Client {
	if cfg == nil {
		cfg = &ClientConfig{}
	}

	timeout := cfg.Timeout
	switch {
	case timeout == 0:
		timeout = DefaultTimeout
	case timeout < 0:
		timeout = 0
	}

	perHost := cfg.MaxIdleConnsPerHost
	if perHost == 0 {
		perHost = DefaultMaxIdleConnsPerHost
	}

	maxRedirects := cfg.MaxRedirects
	if maxRedirects == 0 {
		maxRedirects = DefaultMaxRedirects
	}

	transport := cfg.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.MaxIdleConns = DefaultMaxIdleConns
		t.MaxIdleConnsPerHost = perHost
		t.IdleConnTimeout = DefaultIdleConnTimeout
		t.TLSHandshakeTimeout = DefaultTLSHandshakeTimeout
		if cfg.TLSConfig != nil {
			t.TLSClientConfig = cfg.TLSConfig
		}
		transport = t
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}
}
