package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	"github.com/taoyao-code/v93xx-probe/internal/health"
	appmetrics "github.com/taoyao-code/v93xx-probe/internal/metrics"
)

func get(s *Server, path string) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.Engine().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func statusChecker(name string, st health.Status) health.Checker {
	return health.CheckerFunc{CheckerName: name, Fn: func(context.Context) health.CheckResult {
		return health.CheckResult{Status: st}
	}}
}

func TestHealthRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := cfgpkg.HTTPConfig{Addr: ":0", ReadTimeout: time.Second, WriteTimeout: time.Second}

	tests := []struct {
		name       string
		hooks      Hooks
		path       string
		wantCode   int
		wantStatus health.Status
	}{
		{name: "存活", path: "/healthz", wantCode: http.StatusOK},
		{name: "未配置就绪函数视为就绪", path: "/readyz", wantCode: http.StatusOK},
		{name: "就绪", hooks: Hooks{Ready: func(context.Context) bool { return true }}, path: "/readyz", wantCode: http.StatusOK},
		{name: "未就绪", hooks: Hooks{Ready: func(context.Context) bool { return false }}, path: "/readyz", wantCode: http.StatusServiceUnavailable},
		{name: "指标", hooks: Hooks{MetricsPath: "/metrics", Metrics: appmetrics.Handler(appmetrics.NewRegistry())}, path: "/metrics", wantCode: http.StatusOK},
		{name: "未配置指标", path: "/metrics", wantCode: http.StatusNotFound},
		{name: "未配置健康报告", path: "/health", wantCode: http.StatusNotFound},
		{
			name:       "降级报告返回200",
			hooks:      Hooks{Health: health.NewAggregator(statusChecker("redis", health.StatusDegraded))},
			path:       "/health",
			wantCode:   http.StatusOK,
			wantStatus: health.StatusDegraded,
		},
		{
			name:       "不健康报告返回503",
			hooks:      Hooks{Health: health.NewAggregator(statusChecker("database", health.StatusUnhealthy))},
			path:       "/health",
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: health.StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := get(New(cfg, tt.hooks, nil), tt.path)
			assert.Equal(t, tt.wantCode, rr.Code)
			if tt.wantStatus != "" {
				var rep health.HealthReport
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rep))
				assert.Equal(t, tt.wantStatus, rep.Status)
				assert.Len(t, rep.Checks, 1)
			}
		})
	}
}

func TestReadyzDeadline(t *testing.T) {
	var hasDeadline bool
	s := New(cfgpkg.HTTPConfig{}, Hooks{Ready: func(ctx context.Context) bool {
		_, hasDeadline = ctx.Deadline()
		return true
	}}, nil)
	assert.Equal(t, http.StatusOK, get(s, "/readyz").Code)
	assert.True(t, hasDeadline)
}

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(cfgpkg.HTTPConfig{}, Hooks{}, nil)
	s.Engine().GET("/api/v1/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	errC := make(chan error, 1)
	go func() { errC <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/v1/ping")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.ErrorIs(t, <-errC, http.ErrServerClosed)
}
