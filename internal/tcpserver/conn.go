package tcpserver

import (
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"
)

// CloseReason 连接结束原因
type CloseReason string

const (
	CloseEOF      CloseReason = "eof"
	CloseIdle     CloseReason = "idle"
	CloseError    CloseReason = "error"
	CloseShutdown CloseReason = "shutdown"
	CloseHalted   CloseReason = "halted" // 上层主动中止（Strict 模式校验失败）
)

// ConnContext 单个连接的读循环与回调
type ConnContext struct {
	s       *Server
	c       net.Conn
	id      uint64
	closed  atomic.Bool
	halted  atomic.Bool
	onRead  func([]byte)
	onClose func(CloseReason)
	doneC   chan struct{}
}

func newConnContext(s *Server, c net.Conn, id uint64) *ConnContext {
	return &ConnContext{s: s, c: c, id: id, doneC: make(chan struct{})}
}

// ID 返回连接ID（单进程唯一递增）
func (cc *ConnContext) ID() uint64 { return cc.id }

// RemoteAddr 返回远端地址
func (cc *ConnContext) RemoteAddr() net.Addr { return cc.c.RemoteAddr() }

// SetOnRead 安装读取回调；回调在读 goroutine 中串行执行，切片仅在回调期间有效
func (cc *ConnContext) SetOnRead(h func([]byte)) { cc.onRead = h }

// SetOnClose 连接结束时调用一次，先于 Done 关闭
func (cc *ConnContext) SetOnClose(h func(CloseReason)) { cc.onClose = h }

// Halt 由上层在读回调中调用：停止读取并关闭连接
func (cc *ConnContext) Halt() {
	cc.halted.Store(true)
	_ = cc.Close()
}

// Close 关闭底层连接
func (cc *ConnContext) Close() error {
	if !cc.closed.CompareAndSwap(false, true) {
		return nil
	}
	return cc.c.Close()
}

// Done 返回连接关闭通知通道
func (cc *ConnContext) Done() <-chan struct{} { return cc.doneC }

// run 读循环，阻塞直至连接结束
func (cc *ConnContext) run() {
	reason := cc.readLoop()
	_ = cc.Close()
	if cc.onClose != nil {
		cc.onClose(reason)
	}
	close(cc.doneC)
}

func (cc *ConnContext) readLoop() CloseReason {
	timeout := cc.s.cfg.ReadTimeout
	buf := make([]byte, cc.s.readChunk)
	for {
		if timeout > 0 {
			_ = cc.c.SetReadDeadline(time.Now().Add(timeout))
		}
		n, err := cc.c.Read(buf)
		if n > 0 {
			if cc.s.onRecvBytes != nil {
				cc.s.onRecvBytes(n)
			}
			if cc.onRead != nil {
				cc.onRead(buf[:n])
			}
		}
		if cc.halted.Load() {
			return CloseHalted
		}
		if err == nil {
			continue
		}
		var ne net.Error
		switch {
		case errors.Is(err, io.EOF):
			return CloseEOF
		case errors.As(err, &ne) && ne.Timeout():
			return CloseIdle
		case cc.closed.Load():
			return CloseShutdown
		default:
			return CloseError
		}
	}
}
