package health

import (
	"context"
	"sync"
	"time"
)

// 单项检查超时，慢检查不拖住 /readyz
const checkTimeout = 2 * time.Second

// Aggregator 汇总存储、扇出与接入层的检查结果
type Aggregator struct {
	mu       sync.RWMutex
	checkers []Checker
	now      func() time.Time
}

func NewAggregator(checkers ...Checker) *Aggregator {
	a := &Aggregator{now: time.Now}
	for _, c := range checkers {
		a.AddChecker(c)
	}
	return a
}

// AddChecker 忽略 nil，TCP 检查器在接入启动后才加入
func (a *Aggregator) AddChecker(c Checker) {
	if c == nil {
		return
	}
	a.mu.Lock()
	a.checkers = append(a.checkers, c)
	a.mu.Unlock()
}

// CheckAll 并发执行，每项独立超时
func (a *Aggregator) CheckAll(ctx context.Context) map[string]CheckResult {
	a.mu.RLock()
	checkers := append([]Checker(nil), a.checkers...)
	a.mu.RUnlock()

	results := make(map[string]CheckResult, len(checkers))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, c := range checkers {
		wg.Add(1)
		go func(c Checker) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			res := c.Check(cctx)
			mu.Lock()
			results[c.Name()] = res
			mu.Unlock()
		}(c)
	}
	wg.Wait()
	return results
}

// Overall 取最差状态
func Overall(results map[string]CheckResult) Status {
	status := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			status = StatusDegraded
		}
	}
	return status
}

func (a *Aggregator) OverallStatus(ctx context.Context) Status {
	return Overall(a.CheckAll(ctx))
}

// Ready Degraded 仍可接收抓包，只有 Unhealthy 不就绪
func (a *Aggregator) Ready(ctx context.Context) bool {
	return a.OverallStatus(ctx) != StatusUnhealthy
}

// HealthReport GET /health 的响应体
type HealthReport struct {
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
}

// Report 一次检查生成完整报告
func (a *Aggregator) Report(ctx context.Context) HealthReport {
	ts := a.now()
	checks := a.CheckAll(ctx)
	return HealthReport{Status: Overall(checks), Timestamp: ts, Checks: checks}
}
