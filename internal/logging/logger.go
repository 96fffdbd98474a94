package logging

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
)

// InitLogger 初始化 zap 日志器（支持 lumberjack 滚动文件）
// 文件名为空时只写标准输出，便于离线工具使用
func InitLogger(cfg cfgpkg.LoggingConfig) (*zap.Logger, error) {
	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     func(t time.Time, enc zapcore.PrimitiveArrayEncoder) { enc.AppendString(t.Format(time.RFC3339Nano)) },
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var encoder zapcore.Encoder
	if strings.ToLower(cfg.Format) == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	ws := zapcore.AddSync(os.Stderr)
	if cfg.File.Filename != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File.Filename,
			MaxSize:    cfg.File.MaxSizeMB,
			MaxBackups: cfg.File.MaxBackups,
			MaxAge:     cfg.File.MaxAgeDays,
			Compress:   cfg.File.Compress,
		}
		// 控制台 + 文件双写
		ws = zapcore.NewMultiWriteSyncer(ws, zapcore.AddSync(lj))
	}
	core := zapcore.NewCore(encoder, ws, ParseLevel(cfg.Level))

	return zap.New(core, zap.AddCaller()), nil
}

// ParseLevel 未知级别按 info 处理
func ParseLevel(s string) zapcore.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// RecordLevel 按策略结果选择记录的日志级别
// Strict 不匹配为 Error，Lenient 不匹配为 Warn，无法判定为 Debug，丢弃帧为 Warn
func RecordLevel(r *v93xx.Record) zapcore.Level {
	if r.Kind == v93xx.KindDropped {
		return zapcore.WarnLevel
	}
	switch r.Outcome {
	case v93xx.OutcomeError:
		return zapcore.ErrorLevel
	case v93xx.OutcomeWarnContinue:
		return zapcore.WarnLevel
	default:
		return zapcore.DebugLevel
	}
}

// RecordFields 单条记录的结构化字段
func RecordFields(sessionID string, r *v93xx.Record) []zap.Field {
	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.Uint64("seq", r.Seq),
		zap.Int64("offset", r.Offset),
		zap.Stringer("kind", r.Kind),
		zap.Stringer("raw", r.Raw),
	}
	if r.Checked() {
		fields = append(fields, zap.Stringer("verdict", r.Verdict), zap.Stringer("outcome", r.Outcome))
	}
	if r.Expected != nil {
		fields = append(fields, zap.String("expected", hexByte(*r.Expected)))
	}
	if r.Received != nil {
		fields = append(fields, zap.String("received", hexByte(*r.Received)))
	}
	if r.Request != nil && r.Request.Register != "" {
		fields = append(fields, zap.String("register", r.Request.Register))
	}
	if r.Err != nil {
		fields = append(fields, zap.Error(r.Err))
	}
	return fields
}

// LogRecord 噪声记录不输出
func LogRecord(l *zap.Logger, sessionID string, r *v93xx.Record) {
	if l == nil || r.Kind == v93xx.KindNoise {
		return
	}
	lvl := RecordLevel(r)
	if ce := l.Check(lvl, "frame"); ce != nil {
		ce.Write(RecordFields(sessionID, r)...)
	}
}

func hexByte(b byte) string {
	const digits = "0123456789ABCDEF"
	return "0x" + string([]byte{digits[b>>4], digits[b&0x0F]})
}
