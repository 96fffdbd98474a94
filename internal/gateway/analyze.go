package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
	"github.com/taoyao-code/v93xx-probe/internal/sink"
)

// Result 一次性分析的结果
type Result struct {
	Session *sink.Session
	Records []v93xx.Record
}

// Halted Strict 模式下是否中止
func (r *Result) Halted() bool { return r.Session.Halted }

// Analyze 分析完整缓冲，会话写入所有 Sink
func (g *Gateway) Analyze(ctx context.Context, source string, data []byte, opts v93xx.Options) (*Result, error) {
	st, err := g.Open(ctx, source, "", opts)
	if err != nil {
		return nil, err
	}
	recs := st.Feed(ctx, data)
	recs = append(recs, st.Close(ctx, "eof")...)
	return &Result{Session: st.Session, Records: recs}, nil
}

// AnalyzeReader 按块读取并逐批回调；Strict 中止后停止读取
func (g *Gateway) AnalyzeReader(ctx context.Context, source string, r io.Reader, chunk int, opts v93xx.Options, emit func([]v93xx.Record) error) (*sink.Session, error) {
	if chunk <= 0 {
		chunk = 4096
	}
	st, err := g.Open(ctx, source, "", opts)
	if err != nil {
		return nil, err
	}

	reason := "eof"
	buf := make([]byte, chunk)
	for {
		if err := ctx.Err(); err != nil {
			st.Close(ctx, "canceled")
			return st.Session, err
		}
		n, rerr := r.Read(buf)
		if n > 0 {
			if err := emitNonEmpty(emit, st.Feed(ctx, buf[:n])); err != nil {
				st.Close(ctx, "error")
				return st.Session, err
			}
			if st.Failed() {
				reason = "halted"
				break
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			st.Close(ctx, "error")
			return st.Session, fmt.Errorf("read stream: %w", rerr)
		}
	}
	if err := emitNonEmpty(emit, st.Close(ctx, reason)); err != nil {
		return st.Session, err
	}
	return st.Session, nil
}

func emitNonEmpty(emit func([]v93xx.Record) error, recs []v93xx.Record) error {
	if emit == nil || len(recs) == 0 {
		return nil
	}
	return emit(recs)
}
