package fetcher

import "time"

// Default configuration values.
const (
	defaultMaxBodyBytes = 10 * 1024 * 1024
	defaultRetryDelay   = time.Second
	defaultMaxDelay     = 5 * time.Second
	defaultHostRate     = 4.0
	defaultHostBurst    = 2
	defaultRobotsAgent  = "QrydexBot"
	defaultMaxRedirects = 10
)

// defaultAttemptTimeouts escalate with every retry of the same page.
var defaultAttemptTimeouts = []time.Duration{20 * time.Second, 30 * time.Second, 40 * time.Second}

// Config holds fetcher configuration.
type Config struct {
	// AttemptTimeouts bound each attempt; their count is the attempt budget.
	AttemptTimeouts []time.Duration `yaml:"attempt_timeouts"`
	RetryDelay      time.Duration   `env:"FETCHER_RETRY_DELAY" yaml:"retry_delay"`
	MaxBodyBytes    int64           `yaml:"max_body_bytes"`
	// HostRate is requests per second allowed per host. Negative disables limiting.
	HostRate  float64 `env:"FETCHER_HOST_RATE" yaml:"host_rate"`
	HostBurst int     `yaml:"host_burst"`
	// UserAgents replaces the built-in browser identities when set.
	UserAgents   []string `env:"FETCHER_USER_AGENTS" yaml:"user_agents"`
	RobotsAgent  string   `yaml:"robots_agent"`
	MaxRedirects int      `yaml:"max_redirects"`
}

// WithDefaults returns a copy of the config with default values applied for zero-value fields.
func (c Config) WithDefaults() Config {
	if len(c.AttemptTimeouts) == 0 {
		c.AttemptTimeouts = defaultAttemptTimeouts
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = defaultMaxBodyBytes
	}
	if c.HostRate == 0 {
		c.HostRate = defaultHostRate
	}
	if c.HostBurst <= 0 {
		c.HostBurst = defaultHostBurst
	}
	if c.RobotsAgent == "" {
		c.RobotsAgent = defaultRobotsAgent
	}
	if c.MaxRedirects <= 0 {
		c.MaxRedirects = defaultMaxRedirects
	}
	return c
}
