package sink

import (
	"errors"
	"sync"
	"time"
)

// State 熔断器状态
type State int

const (
	StateClosed   State = iota // 正常写入
	StateOpen                  // 熔断，直接跳过写入
	StateHalfOpen              // 试探恢复
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var (
	// ErrCircuitOpen 熔断器打开，拒绝请求
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests 半开状态请求过多
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// Breaker 下游存储不可用时停止写入，避免拖慢读循环
type Breaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	halfOpenSeen int
	halfOpenOK   int
	openedAt     time.Time
	trips        int64

	threshold   int           // 连续失败次数阈值
	cooldown    time.Duration // Open → HalfOpen
	halfOpenMax int

	now           func() time.Time
	onStateChange func(from, to State)
}

// NewBreaker threshold<=0 取 5，cooldown<=0 取 30s
func NewBreaker(threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &Breaker{
		threshold:   threshold,
		cooldown:    cooldown,
		halfOpenMax: 3,
		now:         time.Now,
	}
}

// Call 执行函数，受熔断器保护
func (b *Breaker) Call(fn func() error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn()
	b.after(err)
	return err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return ErrCircuitOpen
		}
		b.transition(StateHalfOpen)
		b.halfOpenSeen, b.halfOpenOK = 0, 0
	case StateHalfOpen:
		if b.halfOpenSeen >= b.halfOpenMax {
			return ErrTooManyRequests
		}
	}
	if b.state == StateHalfOpen {
		b.halfOpenSeen++
	}
	return nil
}

func (b *Breaker) after(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.state == StateHalfOpen || b.failures >= b.threshold {
			b.trip()
		}
		return
	}

	b.failures = 0
	if b.state == StateHalfOpen {
		b.halfOpenOK++
		if b.halfOpenOK >= b.halfOpenMax {
			b.transition(StateClosed)
		}
	}
}

func (b *Breaker) trip() {
	b.transition(StateOpen)
	b.openedAt = b.now()
	b.failures = 0
	b.trips++
}

func (b *Breaker) transition(to State) {
	if b.state == to {
		return
	}
	from := b.state
	b.state = to
	if b.onStateChange != nil {
		// 异步回调，避免持锁执行
		go b.onStateChange(from, to)
	}
}

// State 获取当前状态
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Trips 累计熔断次数
func (b *Breaker) Trips() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.trips
}

// SetStateChangeCallback 设置状态变化回调
func (b *Breaker) SetStateChangeCallback(fn func(from, to State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}
