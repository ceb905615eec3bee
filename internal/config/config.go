// Package config is the qrydex configuration: one YAML file with env
// overrides, loaded through infrastructure/config.
package config

import (
	"errors"
	"fmt"
	"time"

	infraconfig "github.com/Meltveit/qrydex/infrastructure/config"
	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/crawler"
	"github.com/Meltveit/qrydex/internal/fetcher"
	"github.com/Meltveit/qrydex/internal/intelligence"
	"github.com/Meltveit/qrydex/internal/registry"
	"github.com/Meltveit/qrydex/internal/scheduler"
	"github.com/Meltveit/qrydex/internal/state"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yml"

// State backends.
const (
	StateBackendFile  = "file"
	StateBackendRedis = "redis"
)

// Config is the application configuration.
type Config struct {
	Logging       logger.Config                   `yaml:"logging"`
	Database      infraconfig.DatabaseConfig      `yaml:"database"`
	Redis         infraconfig.RedisConfig         `yaml:"redis"`
	Elasticsearch infraconfig.ElasticsearchConfig `yaml:"elasticsearch"`
	Server        infraconfig.ServerConfig        `yaml:"server"`
	Fetcher       fetcher.Config                  `yaml:"fetcher"`
	Crawler       crawler.Config                  `yaml:"crawler"`
	Scheduler     SchedulerConfig                 `yaml:"scheduler"`
	Registry      registry.Config                 `yaml:"registry"`
	Intelligence  IntelligenceConfig              `yaml:"intelligence"`
	Importer      ImporterConfig                  `yaml:"importer"`
	State         StateConfig                     `yaml:"state"`
}

// SchedulerConfig configures the crawl bot loop and its work partition.
type SchedulerConfig struct {
	WorkerID     int           `env:"WORKER_ID"     yaml:"worker_id"`
	TotalWorkers int           `env:"TOTAL_WORKERS" yaml:"total_workers"`
	BatchSize    int           `yaml:"batch_size"`
	IdleSleep    time.Duration `yaml:"idle_sleep"`
	ItemDelay    time.Duration `yaml:"item_delay"`
	MaxAttempts  int           `yaml:"max_attempts"`
	Freshness    time.Duration `yaml:"freshness"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	// RegistryMaxAge is how old registry data may get before a crawl
	// refreshes it.
	RegistryMaxAge time.Duration `yaml:"registry_max_age"`
}

// Shard returns the configured partition.
func (c SchedulerConfig) Shard() (scheduler.Shard, error) {
	return scheduler.NewShard(c.WorkerID, c.TotalWorkers)
}

// Eligibility returns the crawl policy.
func (c SchedulerConfig) Eligibility() scheduler.Eligibility {
	return scheduler.Eligibility{
		MaxAttempts:  c.MaxAttempts,
		Freshness:    c.Freshness,
		RetryBackoff: c.RetryBackoff,
		MaxBackoff:   c.MaxBackoff,
	}
}

// IntelligenceConfig configures text intelligence. An empty API key
// disables it and every enrichment falls back.
type IntelligenceConfig struct {
	Adapter   intelligence.Config          `yaml:"adapter"`
	Anthropic intelligence.AnthropicConfig `yaml:"anthropic"`
}

// Enabled reports whether a generator can be built.
func (c IntelligenceConfig) Enabled() bool {
	return c.Anthropic.APIKey != ""
}

// ImporterConfig configures the import bots.
type ImporterConfig struct {
	BrregPageSize int    `yaml:"brreg_page_size"`
	BrregOrgForm  string `env:"IMPORTER_BRREG_ORG_FORM" yaml:"brreg_org_form"`
	// Schedule is a 5-field cron expression for the brreg bot; empty runs
	// it only on demand.
	Schedule      string        `env:"IMPORTER_SCHEDULE" yaml:"schedule"`
	ItemDelay     time.Duration `yaml:"item_delay"`
	SheetPageSize int           `yaml:"sheet_page_size"`
}

// StateConfig selects where bot cursors live.
type StateConfig struct {
	Backend  string `env:"STATE_BACKEND"   yaml:"backend"`
	Path     string `env:"STATE_PATH"      yaml:"path"`
	RedisKey string `env:"STATE_REDIS_KEY" yaml:"redis_key"`
}

// Load reads path, applies defaults and validates the result. A missing
// file leaves defaults and environment overrides.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults[Config](path, SetDefaults)
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// SetDefaults fills zero values.
func SetDefaults(c *Config) {
	c.Logging.SetDefaults()
	c.Server.SetDefaults()
	c.Elasticsearch.SetDefaults()
	if c.Database.Host != "" {
		c.Database.SetDefaults()
	}

	if c.Scheduler.TotalWorkers == 0 {
		c.Scheduler.TotalWorkers = 1
	}
	if c.Scheduler.RegistryMaxAge == 0 {
		c.Scheduler.RegistryMaxAge = 30 * 24 * time.Hour
	}

	if c.Importer.BrregPageSize == 0 {
		c.Importer.BrregPageSize = 100
	}
	if c.Importer.ItemDelay == 0 {
		c.Importer.ItemDelay = time.Second
	}

	if c.State.Backend == "" {
		c.State.Backend = StateBackendFile
		if c.Redis.Address != "" {
			c.State.Backend = StateBackendRedis
		}
	}
	if c.State.Path == "" {
		c.State.Path = "data/bot_state.json"
	}
	if c.State.RedisKey == "" {
		c.State.RedisKey = state.DefaultRedisKey
	}
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.Scheduler.Shard(); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: %w", err))
	}
	if err := infraconfig.ValidatePort("server.port", c.Server.Port); err != nil {
		errs = append(errs, err)
	}
	if err := c.Database.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch c.State.Backend {
	case StateBackendFile:
		if err := infraconfig.ValidateRequired("state.path", c.State.Path); err != nil {
			errs = append(errs, err)
		}
	case StateBackendRedis:
		if err := infraconfig.ValidateRequired("redis.address", c.Redis.Address); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, &infraconfig.ValidationError{Field: "state.backend", Message: "must be file or redis"})
	}
	return errors.Join(errs...)
}
