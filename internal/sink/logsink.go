package sink

import (
	"context"

	"go.uber.org/zap"

	"github.com/taoyao-code/v93xx-probe/internal/logging"
	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
)

// LogSink 将记录写入结构化日志，级别由策略结果决定
type LogSink struct {
	log *zap.Logger
}

func NewLogSink(log *zap.Logger) *LogSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogSink{log: log}
}

func (l *LogSink) Name() string { return "log" }

func (l *LogSink) Begin(_ context.Context, s *Session) error {
	l.log.Info("session started",
		zap.String("session_id", s.ID.String()),
		zap.String("source", s.Source),
		zap.String("remote", s.Remote),
		zap.Stringer("mode", s.Mode),
		zap.String("dialect", s.Dialect))
	return nil
}

func (l *LogSink) Write(_ context.Context, s *Session, recs []v93xx.Record) error {
	id := s.ID.String()
	for i := range recs {
		logging.LogRecord(l.log, id, &recs[i])
	}
	return nil
}

func (l *LogSink) End(_ context.Context, s *Session) error {
	fields := []zap.Field{
		zap.String("session_id", s.ID.String()),
		zap.Bool("halted", s.Halted),
		zap.String("reason", s.CloseReason),
		zap.Duration("duration", s.EndedAt.Sub(s.StartedAt)),
		zap.Int64("bytes", s.Stats.Bytes),
		zap.Int("valid", s.Stats.Valid),
		zap.Int("mismatch", s.Stats.Mismatch),
		zap.Int("undecidable", s.Stats.Undecidable),
		zap.Int("noise_bytes", s.Stats.NoiseBytes),
	}
	if s.Halted {
		l.log.Error("session halted", fields...)
		return nil
	}
	l.log.Info("session ended", fields...)
	return nil
}

var _ Sink = (*LogSink)(nil)
