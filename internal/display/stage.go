package display

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/taoyao-code/bee-spectrum/internal/metrics"
	"github.com/taoyao-code/bee-spectrum/internal/render"
	"github.com/taoyao-code/bee-spectrum/internal/tcpserver"
)

// Stage 网格帧 -> 帧缓冲 -> 面板
type Stage struct {
	srv    *tcpserver.Server
	engine *Engine
	cols   int
	rows   int
	fb     *render.FrameBuffer

	logger *zap.Logger
	appm   *metrics.AppMetrics
	errLog rate.Sometimes
}

// NewStage 创建显示阶段，帧缓冲尺寸与引擎一致
func NewStage(srv *tcpserver.Server, engine *Engine, cols, rows int, logger *zap.Logger, appm *metrics.AppMetrics) (*Stage, error) {
	fb, err := render.NewFrameBuffer(engine.width, engine.height)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		srv:    srv,
		engine: engine,
		cols:   cols,
		rows:   rows,
		fb:     fb,
		logger: logger,
		appm:   appm,
		errLog: rate.Sometimes{First: 1, Interval: 5 * time.Second},
	}, nil
}

// FrameSize 上游网格帧字节数
func (s *Stage) FrameSize() int { return s.cols * s.rows }

// Engine 同步引擎
func (s *Stage) Engine() *Engine { return s.engine }

// Run 服务上游直到 ctx 取消
func (s *Stage) Run(ctx context.Context) error {
	return s.srv.Serve(ctx, s.handle)
}

func (s *Stage) handle(ctx context.Context, conn net.Conn) {
	n := s.srv.ReadFrames(conn, s.FrameSize(), func(frame []byte) bool {
		if s.appm != nil {
			s.appm.FramesReceived.WithLabelValues("tcp").Inc()
		}
		_ = s.Show(frame)
		return ctx.Err() == nil
	})
	s.logger.Debug("grid stream ended", zap.Int("frames", n))
}

// Show 绘制一帧网格；绘制失败只记录日志，下一帧继续
func (s *Stage) Show(frame []byte) error {
	g, err := render.GridFromBytes(frame, s.cols, s.rows)
	if err != nil {
		return err
	}
	return s.DrawGrid(g)
}

// DrawGrid 绘制已解码的网格
func (s *Stage) DrawGrid(g *render.Grid) error {
	render.Blit(g, s.fb)
	if err := s.engine.Draw(s.fb); err != nil {
		s.errLog.Do(func() {
			s.logger.Warn("display draw failed", zap.Error(err))
		})
		return err
	}
	return nil
}
