package sink

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
)

// Session 一条被分析的字节流
type Session struct {
	ID          uuid.UUID
	Source      string // tcp | http | file
	Remote      string
	Mode        v93xx.Mode
	Dialect     string
	StartedAt   time.Time
	EndedAt     time.Time
	Halted      bool
	CloseReason string
	Stats       v93xx.Stats
}

// Sink 记录输出目标；实现需并发安全，多个连接共用一个实例
type Sink interface {
	Name() string
	Begin(ctx context.Context, s *Session) error
	Write(ctx context.Context, s *Session, recs []v93xx.Record) error
	End(ctx context.Context, s *Session) error
}

// Fanout 依次写入多个 Sink，单个失败不影响其他目标；每个目标有独立熔断器
type Fanout struct {
	targets []target
	log     *zap.Logger
}

type target struct {
	sink    Sink
	breaker *Breaker
}

// NewFanout 创建扇出器；log 为 nil 时不输出
func NewFanout(log *zap.Logger, sinks ...Sink) *Fanout {
	if log == nil {
		log = zap.NewNop()
	}
	f := &Fanout{log: log}
	for _, s := range sinks {
		if s == nil {
			continue
		}
		f.Add(s)
	}
	return f
}

// Add 追加目标，仅在启动阶段调用
func (f *Fanout) Add(s Sink) {
	b := NewBreaker(5, 30*time.Second)
	name := s.Name()
	b.SetStateChangeCallback(func(from, to State) {
		f.log.Warn("sink breaker state changed",
			zap.String("sink", name),
			zap.Stringer("from", from),
			zap.Stringer("to", to))
	})
	f.targets = append(f.targets, target{sink: s, breaker: b})
}

// Len 目标数量
func (f *Fanout) Len() int { return len(f.targets) }

// BreakerStates 各目标熔断器状态，按名称索引
func (f *Fanout) BreakerStates() map[string]State {
	out := make(map[string]State, len(f.targets))
	for _, t := range f.targets {
		out[t.sink.Name()] = t.breaker.State()
	}
	return out
}

func (f *Fanout) Name() string { return "fanout" }

func (f *Fanout) Begin(ctx context.Context, s *Session) error {
	return f.each("begin", func(t Sink) error { return t.Begin(ctx, s) })
}

func (f *Fanout) Write(ctx context.Context, s *Session, recs []v93xx.Record) error {
	if len(recs) == 0 {
		return nil
	}
	return f.each("write", func(t Sink) error { return t.Write(ctx, s, recs) })
}

func (f *Fanout) End(ctx context.Context, s *Session) error {
	return f.each("end", func(t Sink) error { return t.End(ctx, s) })
}

func (f *Fanout) each(op string, fn func(Sink) error) error {
	var errs []error
	for _, t := range f.targets {
		err := t.breaker.Call(func() error { return fn(t.sink) })
		if err == nil {
			continue
		}
		// 熔断期间不再逐条打印
		if !errors.Is(err, ErrCircuitOpen) && !errors.Is(err, ErrTooManyRequests) {
			f.log.Error("sink failed", zap.String("sink", t.sink.Name()), zap.String("op", op), zap.Error(err))
		}
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

var _ Sink = (*Fanout)(nil)
