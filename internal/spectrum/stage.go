// Package spectrum 频段帧 -> 网格帧的中间环节
package spectrum

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/taoyao-code/bee-spectrum/internal/band"
	"github.com/taoyao-code/bee-spectrum/internal/metrics"
	"github.com/taoyao-code/bee-spectrum/internal/relay"
	"github.com/taoyao-code/bee-spectrum/internal/render"
	"github.com/taoyao-code/bee-spectrum/internal/tcpserver"
)

// Stage 从上游读取打包的频段帧，渲染为柱状网格并转发到显示环节
type Stage struct {
	srv  *tcpserver.Server
	link *relay.Link
	cols int
	rows int

	logger *zap.Logger
	appm   *metrics.AppMetrics
}

// NewStage 创建频谱环节；link 的帧长必须为 cols*rows
func NewStage(srv *tcpserver.Server, link *relay.Link, cols, rows int, logger *zap.Logger, appm *metrics.AppMetrics) *Stage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{srv: srv, link: link, cols: cols, rows: rows, logger: logger, appm: appm}
}

// Run 服务上游直到 ctx 取消
func (s *Stage) Run(ctx context.Context) error {
	return s.srv.Serve(ctx, s.handle)
}

func (s *Stage) handle(ctx context.Context, conn net.Conn) {
	var forwarded, dropped int
	n := s.srv.ReadFrames(conn, band.FrameSize, func(frame []byte) bool {
		if s.appm != nil {
			s.appm.FramesReceived.WithLabelValues("tcp").Inc()
		}
		if s.Process(ctx, frame) {
			forwarded++
		} else {
			dropped++
		}
		return ctx.Err() == nil
	})
	s.logger.Info("band stream ended",
		zap.Int("frames", n),
		zap.Int("forwarded", forwarded),
		zap.Int("dropped", dropped),
	)
}

// Process 解包一帧频段数据并转发渲染后的网格；下游不可用时丢弃
func (s *Stage) Process(ctx context.Context, packed []byte) bool {
	f, err := band.UnpackBytes(packed)
	if err != nil {
		return false
	}
	return s.SendGrid(ctx, render.RenderBars(f, s.cols, s.rows))
}

// SendGrid 转发一帧网格
func (s *Stage) SendGrid(ctx context.Context, g *render.Grid) bool {
	return s.link.Send(ctx, g.Bytes())
}
