// Package elasticsearch opens go-elasticsearch clients and waits for the
// cluster to answer before handing them out.
package elasticsearch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/infrastructure/retry"
)

// NewClient creates a client and pings the cluster with retries.
func NewClient(ctx context.Context, cfg Config, log logger.Logger) (*es.Client, error) {
	cfg.SetDefaults()
	address := NormalizeURL(cfg.URL)

	clientCfg := es.Config{
		Addresses:  []string{address},
		MaxRetries: cfg.MaxRetries,
	}
	switch {
	case cfg.APIKey != "":
		clientCfg.APIKey = cfg.APIKey
	case cfg.Username != "":
		clientCfg.Username = cfg.Username
		clientCfg.Password = cfg.Password
	}

	client, err := es.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	retryCfg := cfg.Retry
	retryCfg.AttemptTimeouts = []time.Duration{cfg.PingTimeout}
	err = retry.Do(ctx, retryCfg, func(attemptCtx context.Context, attempt int) error {
		pingErr := ping(attemptCtx, client)
		if pingErr != nil {
			log.Debug("Elasticsearch ping failed", logger.Int("attempt", attempt), logger.Error(pingErr))
		}
		return pingErr
	})
	if err != nil {
		return nil, fmt.Errorf("connect to elasticsearch at %s: %w", address, err)
	}

	log.Info("Elasticsearch connection established", logger.String("url", address))
	return client, nil
}

// NormalizeURL adds an http:// scheme when none is present.
func NormalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

func ping(ctx context.Context, client *es.Client) error {
	res, err := client.Ping(client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("ping returned %s: %s", res.Status(), body)
	}
	return nil
}
