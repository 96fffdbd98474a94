package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/v93xx-probe/internal/config"
)

// ConnHandler 连接建立后由上层安装读取与关闭回调
type ConnHandler func(cc *ConnContext)

// Server 字节流接入服务：每个连接一个 goroutine，读取原始字节交给上层
type Server struct {
	cfg       cfgpkg.TCPConfig
	readChunk int
	log       *zap.Logger

	ln    net.Listener
	wg    sync.WaitGroup
	stopC chan struct{}
	once  sync.Once

	connLimiter *ConnectionLimiter
	rateLimiter *RateLimiter
	nextConnID  uint64

	mu    sync.Mutex
	conns map[uint64]*ConnContext

	handler ConnHandler
	// 可选指标回调
	onAccept    func()
	onRecvBytes func(n int)
	onReject    func(reason string)
}

// New 创建接入服务
func New(cfg cfgpkg.TCPConfig, readChunk int, log *zap.Logger) *Server {
	if readChunk <= 0 {
		readChunk = 4096
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:         cfg,
		readChunk:   readChunk,
		log:         log,
		stopC:       make(chan struct{}),
		connLimiter: NewConnectionLimiter(cfg.MaxConnections),
		rateLimiter: NewRateLimiter(cfg.RatePerSec, cfg.Burst),
		conns:       make(map[uint64]*ConnContext),
	}
}

// SetConnHandler 设置连接回调
func (s *Server) SetConnHandler(h ConnHandler) { s.handler = h }

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onRecvBytes func(int), onReject func(string)) {
	s.onAccept, s.onRecvBytes, s.onReject = onAccept, onRecvBytes, onReject
}

// Addr 返回实际监听地址（配置端口为 0 时用于测试）
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveConnections 当前连接数
func (s *Server) ActiveConnections() int { return s.connLimiter.Current() }

// LimiterStats 连接限流统计
func (s *Server) LimiterStats() LimiterStats { return s.connLimiter.Stats() }

// RateRejected 因接入速率被拒绝的连接数
func (s *Server) RateRejected() int64 { return s.rateLimiter.RejectedCount() }

// Start 监听并接受连接（非阻塞，内部 goroutine）
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.log.Info("tcp listening", zap.String("addr", ln.Addr().String()))

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.stopC:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			// 短暂错误等待后重试
			s.log.Warn("tcp accept error", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}

		if !s.rateLimiter.Allow() {
			s.reject(conn, "rate")
			continue
		}
		if !s.connLimiter.TryAcquire() {
			s.reject(conn, "limit")
			continue
		}
		if s.onAccept != nil {
			s.onAccept()
		}

		cc := newConnContext(s, conn, atomic.AddUint64(&s.nextConnID, 1))
		s.track(cc, true)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.connLimiter.Release()
			defer s.track(cc, false)
			if s.handler != nil {
				s.handler(cc)
			}
			cc.run()
		}()
	}
}

func (s *Server) reject(c net.Conn, reason string) {
	s.log.Warn("tcp connection rejected",
		zap.String("remote", c.RemoteAddr().String()),
		zap.String("reason", reason))
	if s.onReject != nil {
		s.onReject(reason)
	}
	_ = c.Close()
}

func (s *Server) track(cc *ConnContext, add bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if add {
		s.conns[cc.id] = cc
	} else {
		delete(s.conns, cc.id)
	}
}

// Shutdown 关闭监听，断开现有连接并等待其回调执行完毕
func (s *Server) Shutdown(ctx context.Context) error {
	s.once.Do(func() { close(s.stopC) })
	if s.ln != nil {
		_ = s.ln.Close()
	}
	s.mu.Lock()
	for _, cc := range s.conns {
		_ = cc.Close()
	}
	s.mu.Unlock()

	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ch:
		return nil
	}
}
