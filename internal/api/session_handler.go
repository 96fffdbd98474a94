package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
	"github.com/taoyao-code/v93xx-probe/internal/storage/gormrepo"
	"github.com/taoyao-code/v93xx-probe/internal/storage/models"
)

// SessionStore 会话查询，*gormrepo.Repository 满足
type SessionStore interface {
	ListSessions(ctx context.Context, f gormrepo.SessionFilter) ([]models.CaptureSession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.CaptureSession, error)
	ListRecords(ctx context.Context, sessionID uuid.UUID, f gormrepo.RecordFilter) ([]models.FrameRecord, error)
}

// SessionHandler 已落库会话的只读查询
type SessionHandler struct {
	store  SessionStore
	logger *zap.Logger
}

// NewSessionHandler store 为 nil 表示未启用数据库，查询返回 503
func NewSessionHandler(store SessionStore, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{store: store, logger: logger}
}

// recordView 附带十六进制原文的帧记录
type recordView struct {
	models.FrameRecord
	Raw string `json:"raw"`
}

func (h *SessionHandler) available(c *gin.Context) bool {
	if h.store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "database disabled"})
		return false
	}
	return true
}

// ListSessions GET /api/v1/sessions?source=&halted=&limit=&offset=
func (h *SessionHandler) ListSessions(c *gin.Context) {
	if !h.available(c) {
		return
	}
	f := gormrepo.SessionFilter{
		Source: c.Query("source"),
		Limit:  queryInt(c, "limit", 0),
		Offset: queryInt(c, "offset", 0),
	}
	if v := c.Query("halted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid halted"})
			return
		}
		f.Halted = &b
	}

	list, err := h.store.ListSessions(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list sessions failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": list})
}

// GetSession GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	if !h.available(c) {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	s, err := h.store.GetSession(c.Request.Context(), id)
	if errors.Is(err, gormrepo.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		h.logger.Error("get session failed", zap.String("session_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// ListRecords GET /api/v1/sessions/:id/records?verdict=&kind=&after=&limit=
func (h *SessionHandler) ListRecords(c *gin.Context) {
	if !h.available(c) {
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	f := gormrepo.RecordFilter{
		Verdict:  c.Query("verdict"),
		Kind:     c.Query("kind"),
		AfterSeq: int64(queryInt(c, "after", 0)),
		Limit:    queryInt(c, "limit", 0),
	}
	recs, err := h.store.ListRecords(c.Request.Context(), id, f)
	if err != nil {
		h.logger.Error("list records failed", zap.String("session_id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	out := make([]recordView, 0, len(recs))
	for _, r := range recs {
		out = append(out, recordView{FrameRecord: r, Raw: v93xx.HexBytes(r.Raw).String()})
	}
	c.JSON(http.StatusOK, gin.H{"session_id": id.String(), "records": out})
}

func parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return uuid.Nil, false
	}
	return id, true
}

func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
