package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	"github.com/taoyao-code/v93xx-probe/internal/health"
)

// /readyz 与 /health 单次请求的检查上限
const checkDeadline = 3 * time.Second

// Hooks 健康、就绪与指标路由的依赖，字段为空时对应路由退化或不注册
type Hooks struct {
	MetricsPath string
	Metrics     http.Handler                   // nil 不挂载指标
	Ready       func(ctx context.Context) bool // nil 视为就绪
	Health      *health.Aggregator             // nil 不注册 /health
}

// Server 健康检查与分析 API 共用的 HTTP 服务
type Server struct {
	srv    *http.Server
	engine *gin.Engine
	log    *zap.Logger
}

func New(cfg cfgpkg.HTTPConfig, p Hooks, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery(), accessLog(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), checkDeadline)
		defer cancel()
		if p.Ready == nil || p.Ready(ctx) {
			c.String(http.StatusOK, "ready")
			return
		}
		c.String(http.StatusServiceUnavailable, "not-ready")
	})
	if p.Health != nil {
		r.GET("/health", func(c *gin.Context) {
			ctx, cancel := context.WithTimeout(c.Request.Context(), checkDeadline)
			defer cancel()
			rep := p.Health.Report(ctx)
			// Degraded 仍返回 200
			code := http.StatusOK
			if rep.Status == health.StatusUnhealthy {
				code = http.StatusServiceUnavailable
			}
			c.JSON(code, rep)
		})
	}
	if p.Metrics != nil {
		path := p.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(p.Metrics))
	}

	return &Server{
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
		},
		engine: r,
		log:    log,
	}
}

// accessLog 只记录 /api 请求，探针路由过于频繁
func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if len(c.FullPath()) < 4 || c.FullPath()[:4] != "/api" {
			return
		}
		log.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Engine 供 /api/v1 路由注册
func (s *Server) Engine() *gin.Engine { return s.engine }

// Serve 在已有监听上提供服务，测试用随机端口
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))
	return s.srv.Serve(ln)
}

// Start 阻塞直到 Shutdown
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
