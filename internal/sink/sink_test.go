package sink

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
)

type memSink struct {
	name string
	fail error

	mu     sync.Mutex
	begins int
	ends   int
	recs   []v93xx.Record
}

func (m *memSink) Name() string { return m.name }

func (m *memSink) Begin(context.Context, *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.begins++
	return m.fail
}

func (m *memSink) Write(_ context.Context, _ *Session, recs []v93xx.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.recs = append(m.recs, recs...)
	return nil
}

func (m *memSink) End(context.Context, *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ends++
	return m.fail
}

func TestFanout(t *testing.T) {
	ok := &memSink{name: "ok"}
	bad := &memSink{name: "bad", fail: errors.New("db down")}
	f := NewFanout(nil, ok, nil, bad)
	require.Equal(t, 2, f.Len())

	s := &Session{ID: uuid.New()}
	ctx := context.Background()
	recs := []v93xx.Record{{Seq: 1, Kind: v93xx.KindRequest}}

	err := f.Begin(ctx, s)
	assert.Error(t, err)
	// 一个目标失败不影响其他目标
	assert.Error(t, f.Write(ctx, s, recs))
	assert.NoError(t, f.Write(ctx, s, nil))
	assert.Error(t, f.End(ctx, s))

	assert.Equal(t, 1, ok.begins)
	assert.Len(t, ok.recs, 1)
	assert.Equal(t, 1, ok.ends)
}

func TestFanout_BreakerOpens(t *testing.T) {
	bad := &memSink{name: "bad", fail: errors.New("timeout")}
	f := NewFanout(nil, bad)
	s := &Session{ID: uuid.New()}
	recs := []v93xx.Record{{Seq: 1}}

	for i := 0; i < 5; i++ {
		_ = f.Write(context.Background(), s, recs)
	}
	err := f.Write(context.Background(), s, recs)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, map[string]State{"bad": StateOpen}, f.BreakerStates())
}

func TestBreaker(t *testing.T) {
	now := time.Unix(1000, 0)
	b := NewBreaker(3, time.Minute)
	b.now = func() time.Time { return now }
	fail := errors.New("fail")

	t.Run("连续失败触发熔断", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			assert.ErrorIs(t, b.Call(func() error { return fail }), fail)
		}
		assert.Equal(t, StateOpen, b.State())
		assert.ErrorIs(t, b.Call(func() error { return nil }), ErrCircuitOpen)
		assert.Equal(t, int64(1), b.Trips())
	})

	t.Run("冷却后半开并恢复", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		require.NoError(t, b.Call(func() error { return nil }))
		assert.Equal(t, StateHalfOpen, b.State())
		require.NoError(t, b.Call(func() error { return nil }))
		require.NoError(t, b.Call(func() error { return nil }))
		assert.Equal(t, StateClosed, b.State())
	})

	t.Run("半开状态失败立即熔断", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_ = b.Call(func() error { return fail })
		}
		now = now.Add(2 * time.Minute)
		assert.ErrorIs(t, b.Call(func() error { return fail }), fail)
		assert.Equal(t, StateOpen, b.State())
		assert.Equal(t, int64(3), b.Trips())
	})

	t.Run("成功重置失败计数", func(t *testing.T) {
		c := NewBreaker(2, time.Minute)
		_ = c.Call(func() error { return fail })
		_ = c.Call(func() error { return nil })
		_ = c.Call(func() error { return fail })
		assert.Equal(t, StateClosed, c.State())
	})
}

func TestLogSink(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLogSink(zap.New(core))
	s := &Session{ID: uuid.New(), Source: "tcp", Mode: v93xx.ModeStrict, StartedAt: time.Now()}
	ctx := context.Background()

	require.NoError(t, l.Begin(ctx, s))
	require.NoError(t, l.Write(ctx, s, []v93xx.Record{
		{Kind: v93xx.KindNoise},
		{Kind: v93xx.KindRequest, Verdict: v93xx.VerdictMismatch, Outcome: v93xx.OutcomeError},
	}))
	s.Halted = true
	s.EndedAt = s.StartedAt.Add(time.Second)
	require.NoError(t, l.End(ctx, s))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "session started", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "session halted", entries[2].Message)
	assert.Equal(t, s.ID.String(), entries[2].ContextMap()["session_id"])
}
