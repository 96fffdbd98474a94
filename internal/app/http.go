package app

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	"github.com/taoyao-code/v93xx-probe/internal/health"
	"github.com/taoyao-code/v93xx-probe/internal/httpserver"
)

// NewHTTPServer 指标未启用时不挂载 metrics 路由
func NewHTTPServer(cfg *cfgpkg.Config, metricsHandler http.Handler, ready func(context.Context) bool, agg *health.Aggregator, log *zap.Logger) *httpserver.Server {
	p := httpserver.Hooks{
		MetricsPath: cfg.Metrics.Path,
		Ready:       ready,
		Health:      agg,
	}
	if cfg.Metrics.Enable {
		p.Metrics = metricsHandler
	}
	return httpserver.New(cfg.HTTP, p, log)
}
