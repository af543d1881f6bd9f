package tcpserver

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Config 回环监听配置
type Config struct {
	Addr        string
	ReadTimeout time.Duration // 0 表示不设读超时
	RetryDelay  time.Duration // 监听失败后的固定重试间隔
}

// Handler 处理单个客户端，返回即关闭连接
type Handler func(ctx context.Context, conn net.Conn)

// Server 单客户端顺序服务的 TCP 监听：同一时刻只服务一个上游
type Server struct {
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	ln        net.Listener
	listening atomic.Bool
	serving   atomic.Bool

	// 可选指标回调
	onAccept       func()
	onRecvBytes    func(n int)
	onListenFailed func()
}

// New 创建监听服务
func New(cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	return &Server{cfg: cfg, logger: logger}
}

// SetMetricsCallbacks 设置指标回调
func (s *Server) SetMetricsCallbacks(onAccept func(), onRecvBytes func(int)) {
	s.onAccept, s.onRecvBytes = onAccept, onRecvBytes
}

// SetListenFailureCallback 设置监听失败回调，每次绑定失败调用一次
func (s *Server) SetListenFailureCallback(fn func()) {
	s.onListenFailed = fn
}

// Listen 绑定地址，失败按固定间隔重试，直到成功或 ctx 取消
func (s *Server) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	for {
		ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
		if err == nil {
			s.mu.Lock()
			s.ln = ln
			s.mu.Unlock()
			s.listening.Store(true)
			s.logger.Info("tcp listening", zap.String("addr", ln.Addr().String()))
			return nil
		}
		s.logger.Error("tcp listen failed", zap.String("addr", s.cfg.Addr), zap.Error(err))
		if s.onListenFailed != nil {
			s.onListenFailed()
		}
		t := time.NewTimer(s.cfg.RetryDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Addr 实际监听地址，未监听时为 nil
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Listening 是否已绑定
func (s *Server) Listening() bool { return s.listening.Load() }

// Serving 当前是否有客户端在服务中
func (s *Server) Serving() bool { return s.serving.Load() }

// Serve 逐个接受并服务客户端，直到 ctx 取消；未调用 Listen 时先监听
func (s *Server) Serve(ctx context.Context, h Handler) error {
	if s.Addr() == nil {
		if err := s.Listen(ctx); err != nil {
			return err
		}
	}
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()
	defer s.listening.Store(false)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			// 短暂错误等待后重试
			s.logger.Warn("tcp accept failed", zap.Error(err))
			time.Sleep(50 * time.Millisecond)
			continue
		}
		if s.onAccept != nil {
			s.onAccept()
		}
		s.serveConn(ctx, conn, h)
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, h Handler) {
	s.serving.Store(true)
	defer s.serving.Store(false)
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.logger.Info("upstream connected", zap.String("remote", conn.RemoteAddr().String()))
	h(ctx, conn)
	s.logger.Info("upstream disconnected", zap.String("remote", conn.RemoteAddr().String()))
}

// Shutdown 关闭监听
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	ln := s.ln
	s.mu.Unlock()
	s.listening.Store(false)
	if ln == nil {
		return nil
	}
	return ln.Close()
}
