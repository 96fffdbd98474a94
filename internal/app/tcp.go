package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	"github.com/taoyao-code/v93xx-probe/internal/gateway"
	"github.com/taoyao-code/v93xx-probe/internal/metrics"
	"github.com/taoyao-code/v93xx-probe/internal/tcpserver"
)

// NewTCPServer 创建 TCP 接入服务并挂上网关与指标回调
func NewTCPServer(cfg *cfgpkg.Config, gw *gateway.Gateway, appm *metrics.AppMetrics, log *zap.Logger) *tcpserver.Server {
	srv := tcpserver.New(cfg.TCP, cfg.Analyzer.ReadChunk, log)
	srv.SetMetricsCallbacks(
		func() { appm.TCPAccepted.Inc() },
		func(n int) { appm.TCPBytesReceived.Add(float64(n)) },
		func(reason string) { appm.TCPRejected.WithLabelValues(reason).Inc() },
	)
	srv.SetConnHandler(gw.HandleConn)
	return srv
}
