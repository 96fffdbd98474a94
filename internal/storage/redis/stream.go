package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
	"github.com/taoyao-code/v93xx-probe/internal/sink"
)

const (
	defaultStream = "v93xx:records"
	sessionPrefix = "v93xx:session:"
)

// RecordStream 把帧记录追加到 Redis Stream，并维护每个会话的计数哈希。
// 下游消费者用 XREAD/XREADGROUP 订阅实时记录。
type RecordStream struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
	ttl    time.Duration
}

// NewRecordStream maxLen<=0 时不裁剪，ttl<=0 时会话哈希不过期
func NewRecordStream(rdb redis.Cmdable, stream string, maxLen int64, ttl time.Duration) *RecordStream {
	if stream == "" {
		stream = defaultStream
	}
	return &RecordStream{rdb: rdb, stream: stream, maxLen: maxLen, ttl: ttl}
}

func (s *RecordStream) Name() string { return "redis" }

// SessionKey 会话计数哈希的键
func SessionKey(sess *sink.Session) string { return sessionPrefix + sess.ID.String() }

func (s *RecordStream) Begin(ctx context.Context, sess *sink.Session) error {
	key := SessionKey(sess)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"source", sess.Source,
			"remote", sess.Remote,
			"mode", sess.Mode.String(),
			"dialect", sess.Dialect,
			"started_at", sess.StartedAt.UTC().Format(time.RFC3339Nano),
		)
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis begin session: %w", err)
	}
	return nil
}

// Write 一次流水线提交整批记录
func (s *RecordStream) Write(ctx context.Context, sess *sink.Session, recs []v93xx.Record) error {
	if len(recs) == 0 {
		return nil
	}
	key := SessionKey(sess)
	counts := make(map[string]int64)
	_, err := s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i := range recs {
			args := &redis.XAddArgs{Stream: s.stream, Values: RecordValues(sess, &recs[i])}
			if s.maxLen > 0 {
				args.MaxLen = s.maxLen
				args.Approx = true
			}
			p.XAdd(ctx, args)
			counts[counterField(&recs[i])]++
		}
		for field, n := range counts {
			p.HIncrBy(ctx, key, field, n)
		}
		if s.ttl > 0 {
			p.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write records: %w", err)
	}
	return nil
}

// End 写入结束状态与最终统计
func (s *RecordStream) End(ctx context.Context, sess *sink.Session) error {
	st := sess.Stats
	err := s.rdb.HSet(ctx, SessionKey(sess),
		"ended_at", sess.EndedAt.UTC().Format(time.RFC3339Nano),
		"halted", strconv.FormatBool(sess.Halted),
		"close_reason", sess.CloseReason,
		"bytes", st.Bytes,
		"noise_bytes", st.NoiseBytes,
	).Err()
	if err != nil {
		return fmt.Errorf("redis end session: %w", err)
	}
	return nil
}

// counterField 噪声与丢弃帧按类型计数，其余按结论计数
func counterField(r *v93xx.Record) string {
	if r.Checked() {
		return "verdict:" + r.Verdict.String()
	}
	return "kind:" + r.Kind.String()
}

// RecordValues 展开为 XADD 的字段；raw 以十六进制文本存放
func RecordValues(sess *sink.Session, r *v93xx.Record) map[string]any {
	v := map[string]any{
		"session": sess.ID.String(),
		"seq":     r.Seq,
		"offset":  r.Offset,
		"kind":    r.Kind.String(),
		"raw":     r.Raw.String(),
	}
	if r.Checked() {
		v["verdict"] = r.Verdict.String()
		v["outcome"] = r.Outcome.String()
	}
	if r.Expected != nil {
		v["expected"] = fmt.Sprintf("%02X", *r.Expected)
	}
	if r.Received != nil {
		v["received"] = fmt.Sprintf("%02X", *r.Received)
	}
	switch {
	case r.Request != nil:
		v["cmd1"] = fmt.Sprintf("%02X", r.Request.Cmd1)
		v["cmd2"] = fmt.Sprintf("%02X", r.Request.Cmd2)
		v["op"] = r.Request.Operation.String()
		if r.Request.Register != "" {
			v["register"] = r.Request.Register
		}
	case r.Response != nil:
		v["value"] = r.Response.Value
	case r.Register != nil:
		v["address"] = fmt.Sprintf("%02X", r.Register.Address)
		v["value"] = r.Register.Value
	}
	if r.Err != nil {
		v["error"] = r.Err.Error()
	}
	return v
}

var _ sink.Sink = (*RecordStream)(nil)
