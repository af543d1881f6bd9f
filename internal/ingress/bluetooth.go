package ingress

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/bee-spectrum/internal/band"
	"github.com/taoyao-code/bee-spectrum/internal/metrics"
	"github.com/taoyao-code/bee-spectrum/internal/relay"
	"github.com/taoyao-code/bee-spectrum/internal/rfcomm"
)

const ingressRFCOMM = "rfcomm"

// BluetoothConfig 无线入口配置
type BluetoothConfig struct {
	Channel          uint8
	Bind             *rfcomm.Addr // 为空表示任意本地适配器
	Allow            *rfcomm.Addr // 为空表示不限制远端
	ListenRetryDelay time.Duration
}

// Bluetooth 单客户端 RFCOMM 入口：监听 -> 接受一个 -> 准入检查 -> 转发 -> 关闭
type Bluetooth struct {
	cfg     BluetoothConfig
	listen  rfcomm.ListenFunc
	link    *relay.Link
	logger  *zap.Logger
	metrics *metrics.AppMetrics

	// 最近一次打开监听端点是否成功
	listening atomic.Bool
}

// NewBluetooth 创建无线入口；listen 通常为 rfcomm.Listen
func NewBluetooth(cfg BluetoothConfig, listen rfcomm.ListenFunc, link *relay.Link, logger *zap.Logger, appm *metrics.AppMetrics) *Bluetooth {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ListenRetryDelay <= 0 {
		cfg.ListenRetryDelay = 500 * time.Millisecond
	}
	return &Bluetooth{cfg: cfg, listen: listen, link: link, logger: logger, metrics: appm}
}

// Run 循环服务客户端，直到 ctx 取消
func (b *Bluetooth) Run(ctx context.Context) error {
	for ctx.Err() == nil {
		b.serveOne(ctx)
	}
	return ctx.Err()
}

// Listening 最近一次打开监听端点是否成功
func (b *Bluetooth) Listening() bool { return b.listening.Load() }

// serveOne 执行一轮：打开监听端点，接受一个客户端并服务至其断开
func (b *Bluetooth) serveOne(ctx context.Context) {
	local := rfcomm.AddrAny
	if b.cfg.Bind != nil {
		local = *b.cfg.Bind
	}
	fields := []zap.Field{zap.Uint8("channel", b.cfg.Channel), zap.Stringer("local", local)}
	if b.cfg.Allow != nil {
		fields = append(fields, zap.Stringer("allow", *b.cfg.Allow))
	}

	ln, err := b.listen(local, b.cfg.Channel)
	b.listening.Store(err == nil)
	if err != nil {
		// 适配器可能稍后才就绪，按固定间隔重试
		b.logger.Error("rfcomm listen failed", append(fields, zap.Error(err))...)
		if b.metrics != nil {
			b.metrics.ListenFailures.WithLabelValues(ingressRFCOMM).Inc()
		}
		sleepCtx(ctx, b.cfg.ListenRetryDelay)
		return
	}
	b.logger.Info("waiting on rfcomm", fields...)

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	client, peer, err := ln.Accept()
	stop()
	// 服务期间不再持有监听端点，第二个客户端无法接入
	_ = ln.Close()
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Error("rfcomm accept failed", zap.Error(err))
		sleepCtx(ctx, b.cfg.ListenRetryDelay)
		return
	}
	b.handleClient(ctx, client, peer)
}

func (b *Bluetooth) handleClient(ctx context.Context, client io.ReadWriteCloser, peer rfcomm.Addr) {
	defer client.Close()

	if b.cfg.Allow != nil && peer != *b.cfg.Allow {
		b.logger.Warn("peer rejected", zap.Stringer("peer", peer), zap.Stringer("allow", *b.cfg.Allow))
		if b.metrics != nil {
			b.metrics.IngressRejected.WithLabelValues(ingressRFCOMM, "allowlist").Inc()
		}
		return
	}

	if !b.link.EnsureConnected(ctx) {
		b.logger.Warn("downstream not ready, closing client", zap.Stringer("peer", peer), zap.String("link", b.link.Name()))
		if b.metrics != nil {
			b.metrics.IngressRejected.WithLabelValues(ingressRFCOMM, "downstream").Inc()
		}
		return
	}

	b.logger.Info("client connected", zap.Stringer("peer", peer))
	if b.metrics != nil {
		b.metrics.IngressAccepted.WithLabelValues(ingressRFCOMM).Inc()
	}
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	frames := 0
	buf := make([]byte, band.FrameSize)
	for {
		if _, err := io.ReadFull(client, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) && ctx.Err() == nil {
				b.logger.Debug("client read ended", zap.Error(err))
			}
			break
		}
		if b.metrics != nil {
			b.metrics.FramesReceived.WithLabelValues(ingressRFCOMM).Inc()
		}
		if !b.link.Forward(buf) {
			// 下游失效：放弃本客户端，由下一个客户端触发重新连接
			_ = b.link.Close()
			break
		}
		frames++
	}
	b.logger.Info("client disconnected", zap.Stringer("peer", peer), zap.Int("frames", frames))
}

// sleepCtx 等待 d 或 ctx 取消，返回 false 表示已取消
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
