package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/v93xx-probe/internal/sink"
	"github.com/taoyao-code/v93xx-probe/internal/tcpserver"
)

// mockChecker 模拟检查器
type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Status: m.status, Message: "mock", Latency: time.Millisecond}
}

func TestAggregator(t *testing.T) {
	tests := []struct {
		name      string
		checkers  []Checker
		want      Status
		wantReady bool
	}{
		{name: "全部健康", checkers: []Checker{&mockChecker{"db", StatusHealthy}, &mockChecker{"tcp", StatusHealthy}}, want: StatusHealthy, wantReady: true},
		{name: "部分降级仍就绪", checkers: []Checker{&mockChecker{"db", StatusHealthy}, &mockChecker{"redis", StatusDegraded}}, want: StatusDegraded, wantReady: true},
		{name: "部分不健康", checkers: []Checker{&mockChecker{"redis", StatusDegraded}, &mockChecker{"tcp", StatusUnhealthy}}, want: StatusUnhealthy, wantReady: false},
		{name: "无检查器", want: StatusHealthy, wantReady: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := NewAggregator(tt.checkers...)
			assert.Equal(t, tt.want, agg.OverallStatus(context.Background()))
			assert.Equal(t, tt.wantReady, agg.Ready(context.Background()))
		})
	}
}

func TestAggregator_AddChecker(t *testing.T) {
	agg := NewAggregator(&mockChecker{"initial", StatusHealthy})
	agg.AddChecker(&mockChecker{"added", StatusHealthy})
	agg.AddChecker(nil)
	assert.Len(t, agg.CheckAll(context.Background()), 2)
}

func TestAggregator_CheckTimeout(t *testing.T) {
	agg := NewAggregator(CheckerFunc{CheckerName: "slow", Fn: func(ctx context.Context) CheckResult {
		deadline, ok := ctx.Deadline()
		if !ok || time.Until(deadline) > checkTimeout {
			return CheckResult{Status: StatusUnhealthy, Message: "no deadline"}
		}
		return CheckResult{Status: StatusHealthy}
	}})
	assert.Equal(t, StatusHealthy, agg.OverallStatus(context.Background()))
}

func TestReadiness(t *testing.T) {
	r := NewReadiness()
	assert.False(t, r.Ready())
	r.SetStorageReady(true)
	assert.False(t, r.Ready())
	r.SetIngestReady(true)
	assert.True(t, r.Ready())
}

type stubIngest struct{ st tcpserver.LimiterStats }

func (s stubIngest) LimiterStats() tcpserver.LimiterStats { return s.st }
func (s stubIngest) RateRejected() int64 { return 3 }

func TestTCPChecker(t *testing.T) {
	tests := []struct {
		name string
		util float64
		want Status
	}{
		{name: "空闲", util: 0.1, want: StatusHealthy},
		{name: "占用偏高", util: 0.85, want: StatusDegraded},
		{name: "接近上限", util: 0.99, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewTCPChecker(stubIngest{st: tcpserver.LimiterStats{MaxConnections: 100, Utilization: tt.util}})
			res := c.Check(context.Background())
			assert.Equal(t, tt.want, res.Status)
			assert.Equal(t, int64(3), res.Details["rejected_rate"])
		})
	}
}

type stubBreakers map[string]sink.State

func (s stubBreakers) BreakerStates() map[string]sink.State { return s }

func TestSinkChecker(t *testing.T) {
	ok := NewSinkChecker(stubBreakers{"postgres": sink.StateClosed, "redis": sink.StateClosed})
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	open := NewSinkChecker(stubBreakers{"postgres": sink.StateOpen})
	res := open.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, sink.StateOpen.String(), res.Details["postgres"])
}

func TestAggregator_Report(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	agg := NewAggregator(&mockChecker{"database", StatusHealthy}, &mockChecker{"redis", StatusDegraded})
	agg.now = func() time.Time { return fixed }

	rep := agg.Report(context.Background())
	assert.Equal(t, StatusDegraded, rep.Status)
	assert.Equal(t, fixed, rep.Timestamp)
	require.Len(t, rep.Checks, 2)
	assert.Equal(t, StatusDegraded, rep.Checks["redis"].Status)
}

func TestOverall(t *testing.T) {
	tests := []struct {
		name    string
		results map[string]CheckResult
		want    Status
	}{
		{name: "空结果", want: StatusHealthy},
		{name: "降级", results: map[string]CheckResult{"a": {Status: StatusHealthy}, "b": {Status: StatusDegraded}}, want: StatusDegraded},
		{name: "不健康优先", results: map[string]CheckResult{"a": {Status: StatusDegraded}, "b": {Status: StatusUnhealthy}}, want: StatusUnhealthy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Overall(tt.results))
		})
	}
}
