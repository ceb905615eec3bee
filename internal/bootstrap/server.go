package bootstrap

import (
	"context"
	"fmt"

	infragin "github.com/Meltveit/qrydex/infrastructure/gin"
	"github.com/Meltveit/qrydex/internal/api"
)

// Version is reported by the health endpoint; set at build time.
var Version = "dev"

// Server builds the HTTP API. withVerify enables POST /api/v1/verify.
func (a *App) Server(debug, withVerify bool) *infragin.Server {
	cfg := a.Config.Server

	var verifier api.Verifier
	if withVerify {
		verifier = a.Orchestrator
	}
	h := api.NewBusinessHandler(a.Store, verifier, a.Log)

	return api.NewServer(h, api.Options{
		Server: infragin.Config{
			Port:           cfg.Port,
			Debug:          debug,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			ServiceName:    "qrydex",
			ServiceVersion: Version,
		},
		Health:  a.healthChecks(),
		Metrics: a.Metrics.Handler(),
	}, a.Log)
}

// healthChecks reports the database as critical; redis and search only
// degrade the service.
func (a *App) healthChecks() map[string]infragin.HealthChecker {
	checks := map[string]infragin.HealthChecker{}
	if a.db != nil {
		checks["database"] = infragin.PingChecker("database", infragin.HealthStatusUnhealthy, a.db.PingContext)
	}
	if a.redis != nil {
		checks["redis"] = infragin.PingChecker("redis", infragin.HealthStatusDegraded, func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}
	if a.es != nil {
		checks["elasticsearch"] = infragin.PingChecker("elasticsearch", infragin.HealthStatusDegraded, a.pingSearch)
	}
	return checks
}

func (a *App) pingSearch(ctx context.Context) error {
	res, err := a.es.Ping(a.es.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("status %s", res.Status())
	}
	return nil
}
