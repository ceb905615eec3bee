package elasticsearch

import (
	"time"

	"github.com/Meltveit/qrydex/infrastructure/retry"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	// URL is the server address; a missing scheme defaults to http.
	URL      string
	Username string
	Password string
	// APIKey takes precedence over basic auth when set.
	APIKey string
	// MaxRetries is the client-level retry count for individual requests.
	MaxRetries int
	// PingTimeout bounds each connection check.
	PingTimeout time.Duration
	// Retry controls how long NewClient keeps trying to reach the cluster.
	Retry retry.Config
}

// SetDefaults applies default values to the config if not set.
func (c *Config) SetDefaults() {
	if c.URL == "" {
		c.URL = "http://localhost:9200"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 5 * time.Second
	}
	if c.Retry.MaxAttempts == 0 {
		c.Retry = retry.Config{
			MaxAttempts:  5,
			InitialDelay: 2 * time.Second,
			MaxDelay:     10 * time.Second,
			IsRetryable:  func(error) bool { return true },
		}
	}
}
