package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/taoyao-code/v93xx-probe/internal/gateway"
	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
)

// Analyzer 一次性分析能力，*gateway.Gateway 满足
type Analyzer interface {
	Options() v93xx.Options
	Analyze(ctx context.Context, source string, data []byte, opts v93xx.Options) (*gateway.Result, error)
}

// AnalyzeHandler POST /api/v1/analyze
type AnalyzeHandler struct {
	analyzer Analyzer
	maxBody  int64
	logger   *zap.Logger
}

// NewAnalyzeHandler maxBody<=0 时不限制请求体
func NewAnalyzeHandler(a Analyzer, maxBody int64, logger *zap.Logger) *AnalyzeHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyzeHandler{analyzer: a, maxBody: maxBody, logger: logger}
}

// AnalyzeRequest JSON 请求体；空字段沿用服务端配置
type AnalyzeRequest struct {
	Hex       string `json:"hex" binding:"required"`
	Mode      string `json:"mode"`
	Dialect   string `json:"dialect"`
	Lookahead string `json:"lookahead"`
	EmitNoise *bool  `json:"emitNoise"`
}

// AnalyzeResponse 分析结果
type AnalyzeResponse struct {
	SessionID   string         `json:"session_id"`
	Mode        string         `json:"mode"`
	Dialect     string         `json:"dialect"`
	Halted      bool           `json:"halted"`
	CloseReason string         `json:"close_reason"`
	Stats       v93xx.Stats    `json:"stats"`
	Records     []v93xx.Record `json:"records"`
}

// Analyze 分析一段抓包。
// Content-Type 为 application/octet-stream 时请求体即原始字节，参数走 query；
// 否则按 JSON 解析，hex 字段为十六进制文本。
func (h *AnalyzeHandler) Analyze(c *gin.Context) {
	if h.maxBody > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	}

	var (
		req  AnalyzeRequest
		data []byte
		err  error
	)
	if c.ContentType() == "application/octet-stream" {
		data, err = io.ReadAll(c.Request.Body)
		if err != nil {
			h.bodyError(c, err)
			return
		}
		req.Mode = c.Query("mode")
		req.Dialect = c.Query("dialect")
		req.Lookahead = c.Query("lookahead")
		if v := c.Query("emitNoise"); v != "" {
			b, perr := strconv.ParseBool(v)
			if perr != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid emitNoise"})
				return
			}
			req.EmitNoise = &b
		}
	} else {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.bodyError(c, err)
			return
		}
		data, err = v93xx.ParseHex(req.Hex)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid hex", "message": err.Error()})
			return
		}
	}

	opts, err := h.options(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.analyzer.Analyze(c.Request.Context(), "http", data, opts)
	if err != nil {
		if errors.Is(err, v93xx.ErrUnknownDialect) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("analyze failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	records := res.Records
	if records == nil {
		records = []v93xx.Record{}
	}
	c.JSON(http.StatusOK, AnalyzeResponse{
		SessionID:   res.Session.ID.String(),
		Mode:        res.Session.Mode.String(),
		Dialect:     res.Session.Dialect,
		Halted:      res.Halted(),
		CloseReason: res.Session.CloseReason,
		Stats:       res.Session.Stats,
		Records:     records,
	})
}

// options 以服务端配置为底，叠加请求中的覆盖项
func (h *AnalyzeHandler) options(req AnalyzeRequest) (v93xx.Options, error) {
	opts := h.analyzer.Options()
	if req.Mode != "" {
		m, err := v93xx.ParseMode(req.Mode)
		if err != nil {
			return opts, err
		}
		opts.Mode = m
	}
	if req.Dialect != "" {
		if _, err := v93xx.DialectByName(req.Dialect); err != nil {
			return opts, err
		}
		opts.Dialect = req.Dialect
	}
	switch req.Lookahead {
	case "":
	case "inner":
		opts.LookaheadFrom = v93xx.LookaheadInner
	case "capture":
		opts.LookaheadFrom = v93xx.LookaheadCapture
	default:
		return opts, errors.New("unknown lookahead " + strconv.Quote(req.Lookahead))
	}
	if req.EmitNoise != nil {
		opts.EmitNoise = *req.EmitNoise
	}
	return opts, nil
}

func (h *AnalyzeHandler) bodyError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "body too large", "limit": tooLarge.Limit})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
}
