package relay

import (
	"context"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/bee-spectrum/internal/metrics"
)

// DialFunc 打开下游连接
type DialFunc func(ctx context.Context) (net.Conn, error)

// TCPDialer 返回回环 TCP 拨号函数
func TCPDialer(addr string, timeout time.Duration) DialFunc {
	d := &net.Dialer{Timeout: timeout}
	return func(ctx context.Context) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	}
}

// Link 定长帧转发链路：Disconnected <-> Connected。
// 仅由所属的单个循环驱动；connected 标志允许健康检查并发读取。
type Link struct {
	name         string
	dial         DialFunc
	frameSize    int
	writeTimeout time.Duration

	conn      net.Conn
	connected atomic.Bool

	logger  *zap.Logger
	metrics *metrics.AppMetrics
	dialLog rate.Sometimes
}

// Option 链路可选参数
type Option func(*Link)

// WithLogger 设置日志器
func WithLogger(l *zap.Logger) Option {
	return func(k *Link) {
		if l != nil {
			k.logger = l
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.AppMetrics) Option { return func(k *Link) { k.metrics = m } }

// WithWriteTimeout 设置单帧写超时，<=0 表示不设置
func WithWriteTimeout(d time.Duration) Option { return func(k *Link) { k.writeTimeout = d } }

// New 创建链路，初始为断开状态
func New(name string, dial DialFunc, frameSize int, opts ...Option) *Link {
	l := &Link{
		name:      name,
		dial:      dial,
		frameSize: frameSize,
		logger:    zap.NewNop(),
		dialLog:   rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
	for _, o := range opts {
		o(l)
	}
	if l.metrics != nil {
		l.metrics.LinkConnected.WithLabelValues(name).Set(0)
	}
	return l
}

// Name 链路名称
func (l *Link) Name() string { return l.name }

// FrameSize 每帧字节数
func (l *Link) FrameSize() int { return l.frameSize }

// Connected 当前是否已连接
func (l *Link) Connected() bool { return l.connected.Load() }

// EnsureConnected 已连接时直接返回 true；否则尝试一次拨号
func (l *Link) EnsureConnected(ctx context.Context) bool {
	if l.conn != nil {
		return true
	}
	conn, err := l.dial(ctx)
	if err != nil {
		l.countDial("error")
		// 下游长期不可用时避免刷屏
		l.dialLog.Do(func() {
			l.logger.Warn("downstream unavailable", zap.String("link", l.name), zap.Error(err))
		})
		return false
	}
	l.countDial("ok")
	l.conn = conn
	l.setConnected(true)
	l.logger.Info("downstream connected", zap.String("link", l.name), zap.String("remote", conn.RemoteAddr().String()))
	return true
}

// Forward 写出完整一帧；短写或失败会关闭连接并回到断开状态。
// 不排队、不重试，失败的帧即被丢弃。
func (l *Link) Forward(frame []byte) bool {
	if len(frame) != l.frameSize {
		l.countDrop("size")
		l.logger.Error("refusing frame of wrong size",
			zap.String("link", l.name), zap.Int("got", len(frame)), zap.Int("want", l.frameSize))
		return false
	}
	if l.conn == nil {
		l.countDrop("disconnected")
		return false
	}
	if l.writeTimeout > 0 {
		_ = l.conn.SetWriteDeadline(time.Now().Add(l.writeTimeout))
	}
	n, err := l.conn.Write(frame)
	if err != nil || n != len(frame) {
		l.countDrop("write")
		l.logger.Warn("downstream write failed",
			zap.String("link", l.name), zap.Int("written", n), zap.Error(err))
		_ = l.Close()
		return false
	}
	if l.metrics != nil {
		l.metrics.FramesForwarded.WithLabelValues(l.name).Inc()
	}
	return true
}

// Send 连接（如需要）后转发一帧，适用于无客户端概念的入口
func (l *Link) Send(ctx context.Context, frame []byte) bool {
	if !l.EnsureConnected(ctx) {
		l.countDrop("disconnected")
		return false
	}
	return l.Forward(frame)
}

// Close 关闭下游连接并回到断开状态
func (l *Link) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	l.setConnected(false)
	return err
}

func (l *Link) setConnected(v bool) {
	l.connected.Store(v)
	if l.metrics != nil {
		g := 0.0
		if v {
			g = 1
		}
		l.metrics.LinkConnected.WithLabelValues(l.name).Set(g)
	}
}

func (l *Link) countDial(result string) {
	if l.metrics != nil {
		l.metrics.LinkDials.WithLabelValues(l.name, result).Inc()
	}
}

func (l *Link) countDrop(reason string) {
	if l.metrics != nil {
		l.metrics.FramesDropped.WithLabelValues(l.name, reason).Inc()
	}
}
