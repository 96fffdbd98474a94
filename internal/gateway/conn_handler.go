package gateway

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/taoyao-code/v93xx-probe/internal/metrics"
	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
	"github.com/taoyao-code/v93xx-probe/internal/sink"
	"github.com/taoyao-code/v93xx-probe/internal/tcpserver"
)

// sinkTimeout 单次写入下游的超时，避免阻塞读循环
const sinkTimeout = 5 * time.Second

// Gateway 为每条字节流创建独立的分析器，并把记录送往指标与 Sink
type Gateway struct {
	opts  v93xx.Options
	sinks sink.Sink
	appm  *metrics.AppMetrics
	log   *zap.Logger
	now   func() time.Time
}

// New 创建网关；sinks/appm 可为 nil
func New(opts v93xx.Options, sinks sink.Sink, appm *metrics.AppMetrics, log *zap.Logger) *Gateway {
	if log == nil {
		log = zap.NewNop()
	}
	return &Gateway{opts: opts, sinks: sinks, appm: appm, log: log, now: time.Now}
}

// Options 返回默认分析参数
func (g *Gateway) Options() v93xx.Options { return g.opts }

// Stream 单条流的分析状态，非并发安全
type Stream struct {
	g         *Gateway
	Session   *sink.Session
	analyzer  v93xx.Analyzer
	lastNoise int
	ended     bool
}

// Open 开始一条新流
func (g *Gateway) Open(ctx context.Context, source, remote string, opts v93xx.Options) (*Stream, error) {
	a, err := v93xx.NewAnalyzer(opts)
	if err != nil {
		return nil, err
	}
	dialect := opts.Dialect
	if dialect == "" {
		dialect = v93xx.DialectV93xx
	}
	st := &Stream{
		g:        g,
		analyzer: a,
		Session: &sink.Session{
			ID:        uuid.New(),
			Source:    source,
			Remote:    remote,
			Mode:      opts.Mode,
			Dialect:   dialect,
			StartedAt: g.now(),
		},
	}
	if g.appm != nil {
		g.appm.StreamsActive.Inc()
	}
	if g.sinks != nil {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		defer cancel()
		_ = g.sinks.Begin(sctx, st.Session)
	}
	return st, nil
}

// Feed 处理一段字节，返回本次确定的记录；Failed 为 true 时调用方应停止输入
func (st *Stream) Feed(ctx context.Context, b []byte) []v93xx.Record {
	if st.ended || st.analyzer.Failed() {
		return nil
	}
	return st.deliver(ctx, st.analyzer.Feed(b))
}

// Failed Strict 模式下出现过致命校验失败
func (st *Stream) Failed() bool { return st.analyzer.Failed() }

// Stats 当前累计统计
func (st *Stream) Stats() v93xx.Stats { return st.analyzer.Stats() }

// Close 按流结束语义处理残余字节并结束会话；重复调用无副作用
func (st *Stream) Close(ctx context.Context, reason string) []v93xx.Record {
	if st.ended {
		return nil
	}
	st.ended = true
	var recs []v93xx.Record
	// Strict 中止后丢弃缓冲：中止点之后的字节不再分析
	if !st.analyzer.Failed() {
		recs = st.deliver(ctx, st.analyzer.Flush())
	}

	s := st.Session
	s.EndedAt = st.g.now()
	s.Halted = st.analyzer.Failed()
	s.CloseReason = reason
	s.Stats = st.analyzer.Stats()

	if st.g.appm != nil {
		st.g.appm.StreamsActive.Dec()
		if s.Halted {
			st.g.appm.StreamsHalted.Inc()
		}
	}
	if st.g.sinks != nil {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		defer cancel()
		_ = st.g.sinks.End(sctx, s)
	}
	return recs
}

func (st *Stream) deliver(ctx context.Context, recs []v93xx.Record) []v93xx.Record {
	// 同一批中 Strict 失败之后的记录不再下发
	recs, _ = v93xx.TruncateAtFatal(recs)

	if appm := st.g.appm; appm != nil {
		for i := range recs {
			appm.ObserveRecord(&recs[i])
		}
		noise := st.analyzer.Stats().NoiseBytes
		appm.ObserveNoise(noise - st.lastNoise)
		st.lastNoise = noise
	}
	if st.g.sinks != nil && len(recs) > 0 {
		sctx, cancel := context.WithTimeout(ctx, sinkTimeout)
		defer cancel()
		_ = st.g.sinks.Write(sctx, st.Session, recs)
	}
	return recs
}

// HandleConn 作为 tcpserver 的连接回调：一个连接即一条流
func (g *Gateway) HandleConn(cc *tcpserver.ConnContext) {
	ctx := context.Background()
	remote := cc.RemoteAddr().String()
	st, err := g.Open(ctx, "tcp", remote, g.opts)
	if err != nil {
		g.log.Error("open stream failed", zap.String("remote", remote), zap.Error(err))
		_ = cc.Close()
		return
	}
	log := g.log.With(zap.String("session_id", st.Session.ID.String()), zap.Uint64("conn_id", cc.ID()))
	log.Debug("stream opened", zap.String("remote", remote))

	cc.SetOnRead(func(b []byte) {
		st.Feed(ctx, b)
		if st.Failed() {
			log.Warn("strict checksum failure, closing stream")
			cc.Halt()
		}
	})
	cc.SetOnClose(func(reason tcpserver.CloseReason) {
		st.Close(ctx, string(reason))
		log.Debug("stream closed", zap.String("reason", string(reason)))
	})
}
