package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/v93xx-probe/internal/api/middleware"
)

// RegisterRoutes 注册 /api/v1 路由；store 为 nil 时会话查询返回 503
func RegisterRoutes(
	r *gin.Engine,
	analyzer Analyzer,
	store SessionStore,
	maxBody int64,
	authCfg middleware.AuthConfig,
	logger *zap.Logger,
) {
	if r == nil || analyzer == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ah := NewAnalyzeHandler(analyzer, maxBody, logger)
	sh := NewSessionHandler(store, logger)

	v1 := r.Group("/api/v1")
	if authCfg.Enabled {
		v1.Use(middleware.APIKeyAuth(authCfg, logger))
		logger.Info("api authentication enabled", zap.Int("api_keys_count", len(authCfg.APIKeys)))
	} else {
		logger.Warn("api authentication disabled - only for development!")
	}

	v1.POST("/analyze", ah.Analyze)
	v1.GET("/sessions", sh.ListSessions)
	v1.GET("/sessions/:id", sh.GetSession)
	v1.GET("/sessions/:id/records", sh.ListRecords)

	logger.Info("api routes registered", zap.Int("endpoints", 4), zap.Bool("sessions_enabled", store != nil))
}
