package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	infragin "github.com/Meltveit/qrydex/infrastructure/gin"
	"github.com/Meltveit/qrydex/infrastructure/logger"
)

// Options configures the HTTP surface.
type Options struct {
	Server  infragin.Config
	Health  map[string]infragin.HealthChecker
	Metrics http.Handler
}

// NewServer builds the API server.
func NewServer(h *BusinessHandler, opts Options, log logger.Logger) *infragin.Server {
	cfg := opts.Server
	if cfg.ServiceName == "" {
		cfg.ServiceName = "qrydex"
	}
	return infragin.NewServer(&cfg, log, func(router *gin.Engine) {
		Routes(router, h, opts, cfg.ServiceVersion)
	})
}

// Routes registers every endpoint on router.
func Routes(router *gin.Engine, h *BusinessHandler, opts Options, version string) {
	infragin.RegisterHealthRoutes(router, infragin.HealthOptions{
		ServiceName:    "qrydex",
		ServiceVersion: version,
		Checks:         opts.Health,
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	v1 := router.Group("/api/v1")
	v1.GET("/businesses", h.List)
	v1.GET("/businesses/:country/:org", h.Get)
	v1.GET("/businesses/:country/:org/audit", h.Audit)
	v1.POST("/verify", h.Verify)
}
