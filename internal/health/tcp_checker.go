package health

import (
	"context"
	"fmt"
	"time"

	"github.com/taoyao-code/v93xx-probe/internal/tcpserver"
)

// IngestStats TCP 接入统计，*tcpserver.Server 满足
type IngestStats interface {
	LimiterStats() tcpserver.LimiterStats
	RateRejected() int64
}

// TCPChecker TCP 接入健康检查器
type TCPChecker struct {
	server IngestStats
}

// NewTCPChecker 创建TCP健康检查器
func NewTCPChecker(server IngestStats) *TCPChecker {
	return &TCPChecker{server: server}
}

func (c *TCPChecker) Name() string { return "tcp" }

// Check 按连接占用率分级
func (c *TCPChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.server.LimiterStats()

	status, message := StatusHealthy, "ok"
	if st.Utilization > 0.8 {
		status, message = StatusDegraded, "high connection usage"
	}
	if st.Utilization > 0.95 {
		status, message = StatusUnhealthy, "connection limit near exhausted"
	}

	return CheckResult{
		Status:  status,
		Message: message,
		Details: map[string]interface{}{
			"active_connections": st.ActiveConnections,
			"max_connections":    st.MaxConnections,
			"rejected_limit":     st.RejectedTotal,
			"rejected_rate":      c.server.RateRejected(),
			"utilization":        fmt.Sprintf("%.1f%%", st.Utilization*100),
		},
		Latency: time.Since(start),
	}
}
