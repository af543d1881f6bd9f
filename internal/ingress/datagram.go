package ingress

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/bee-spectrum/internal/band"
	"github.com/taoyao-code/bee-spectrum/internal/metrics"
	"github.com/taoyao-code/bee-spectrum/internal/relay"
)

const ingressUDP = "udp"

// 接收缓冲大于一帧，才能识别超长报文
const datagramBufSize = 512

// Datagram 无连接入口：每个 6 字节报文独立转发，丢失不重传
type Datagram struct {
	addr       string
	retryDelay time.Duration
	link       *relay.Link
	logger     *zap.Logger
	metrics    *metrics.AppMetrics
	dropLog    rate.Sometimes
	listening  atomic.Bool
}

// NewDatagram 创建 UDP 入口
func NewDatagram(addr string, retryDelay time.Duration, link *relay.Link, logger *zap.Logger, appm *metrics.AppMetrics) *Datagram {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryDelay <= 0 {
		retryDelay = 500 * time.Millisecond
	}
	return &Datagram{
		addr:       addr,
		retryDelay: retryDelay,
		link:       link,
		logger:     logger,
		metrics:    appm,
		dropLog:    rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}
}

// Listen 绑定本地端口，失败时按固定间隔重试直到成功或 ctx 取消
func (d *Datagram) Listen(ctx context.Context) (net.PacketConn, error) {
	var lc net.ListenConfig
	for {
		pc, err := lc.ListenPacket(ctx, "udp", d.addr)
		if err == nil {
			d.listening.Store(true)
			d.logger.Info("udp ingress listening", zap.String("addr", pc.LocalAddr().String()))
			return pc, nil
		}
		d.logger.Error("udp bind failed", zap.String("addr", d.addr), zap.Error(err))
		if d.metrics != nil {
			d.metrics.ListenFailures.WithLabelValues(ingressUDP).Inc()
		}
		if !sleepCtx(ctx, d.retryDelay) {
			return nil, ctx.Err()
		}
	}
}

// Listening 是否已绑定并在接收
func (d *Datagram) Listening() bool { return d.listening.Load() }

// Run 绑定并持续接收，直到 ctx 取消
func (d *Datagram) Run(ctx context.Context) error {
	pc, err := d.Listen(ctx)
	if err != nil {
		return err
	}
	return d.Serve(ctx, pc)
}

// Serve 在已绑定的连接上接收报文并转发；返回时关闭 pc
func (d *Datagram) Serve(ctx context.Context, pc net.PacketConn) error {
	defer pc.Close()
	defer d.listening.Store(false)
	d.listening.Store(true)
	stop := context.AfterFunc(ctx, func() { _ = pc.Close() })
	defer stop()

	buf := make([]byte, datagramBufSize)
	for {
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			d.logger.Warn("udp read failed", zap.Error(err))
			continue
		}
		if n != band.FrameSize {
			// 错误长度的报文属于预期噪声，静默丢弃
			if d.metrics != nil {
				d.metrics.DatagramsDiscarded.Inc()
			}
			d.logger.Debug("datagram discarded", zap.Int("size", n))
			continue
		}
		if d.metrics != nil {
			d.metrics.FramesReceived.WithLabelValues(ingressUDP).Inc()
		}
		if !d.link.Send(ctx, buf[:n]) {
			d.dropLog.Do(func() {
				d.logger.Warn("frame dropped, downstream unavailable", zap.String("link", d.link.Name()))
			})
		}
	}
}
