package health

import (
	"context"
	"time"

	"github.com/taoyao-code/v93xx-probe/internal/sink"
)

// BreakerSource 输出目标的熔断状态，*sink.Fanout 满足
type BreakerSource interface {
	BreakerStates() map[string]sink.State
}

// SinkChecker 任一输出目标熔断即降级
type SinkChecker struct {
	src BreakerSource
}

func NewSinkChecker(src BreakerSource) *SinkChecker { return &SinkChecker{src: src} }

func (c *SinkChecker) Name() string { return "sinks" }

func (c *SinkChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	details := make(map[string]interface{})
	status, message := StatusHealthy, "ok"
	for name, st := range c.src.BreakerStates() {
		details[name] = st.String()
		if st != sink.StateClosed {
			status, message = StatusDegraded, "sink circuit open"
		}
	}
	return CheckResult{Status: status, Message: message, Details: details, Latency: time.Since(start)}
}
