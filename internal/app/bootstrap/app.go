package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taoyao-code/bee-spectrum/internal/app"
	"github.com/taoyao-code/bee-spectrum/internal/band"
	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
	"github.com/taoyao-code/bee-spectrum/internal/display"
	"github.com/taoyao-code/bee-spectrum/internal/health"
	"github.com/taoyao-code/bee-spectrum/internal/ingress"
	"github.com/taoyao-code/bee-spectrum/internal/metrics"
	"github.com/taoyao-code/bee-spectrum/internal/relay"
	"github.com/taoyao-code/bee-spectrum/internal/rfcomm"
	"github.com/taoyao-code/bee-spectrum/internal/spectrum"
	"github.com/taoyao-code/bee-spectrum/internal/synth"
)

// Options 命令行选项
type Options struct {
	Debug bool       // 使用内置信号源替代上游
	Mode  synth.Mode // 调试信号源
}

// runtime 各阶段共享的基础组件
type runtime struct {
	cfg   *cfgpkg.Config
	log   *zap.Logger
	stage string
	reg   *prometheus.Registry
	appm  *metrics.AppMetrics
	agg   *health.Aggregator
}

func newRuntime(cfg *cfgpkg.Config, log *zap.Logger, stage string) *runtime {
	reg, appm := app.NewMetrics()
	return &runtime{cfg: cfg, log: log, stage: stage, reg: reg, appm: appm, agg: app.NewHealthAggregator()}
}

// serve 并行运行主循环与可选的 HTTP 服务，直到 ctx 取消或任一方出错
func (rt *runtime) serve(ctx context.Context, run func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	if httpSrv := app.NewHTTPServer(rt.cfg, rt.stage, rt.reg, rt.agg); httpSrv != nil {
		g.Go(func() error {
			rt.log.Info("http server started", zap.String("addr", httpSrv.Addr()))
			if err := httpSrv.Run(gctx); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error { return run(gctx) })

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	rt.log.Info("shutdown complete", zap.Error(err))
	return err
}

// RunDisplay 网格帧 -> SSD1306
func RunDisplay(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger, opts Options) error {
	rt := newRuntime(cfg, log, cfgpkg.StageDisplay)
	d := cfg.Display

	panel, bus, err := display.OpenI2C(d.I2CBus, d.I2CAddr, d.Width, d.Height)
	if err != nil {
		return err
	}
	defer bus.Close()
	log.Info("display ready",
		zap.Int("bus", d.I2CBus),
		zap.String("addr", fmt.Sprintf("0x%02X", d.I2CAddr)),
		zap.Int("width", d.Width),
		zap.Int("height", d.Height),
	)

	engine, err := display.NewEngine(panel, d.Width, d.Height,
		display.WithChunkSize(d.ChunkSize),
		display.WithMetrics(rt.appm),
	)
	if err != nil {
		return err
	}
	rt.agg.AddChecker(health.NewDisplayChecker(engine))

	srv := app.NewLoopbackServer(cfg, cfg.Ports.Grid, log, rt.appm)
	st, err := display.NewStage(srv, engine, cfg.Grid.Cols, cfg.Grid.Rows, log, rt.appm)
	if err != nil {
		return err
	}

	if opts.Debug {
		src := synth.NewGridSource(opts.Mode, cfg.Grid.Cols, cfg.Grid.Rows, synth.NewRand())
		next := synth.Counted(func() []byte { return src.Next().Bytes() }, rt.appm)
		log.Info("debug source drawing locally", zap.String("mode", string(opts.Mode)), zap.Int("fps", cfg.FPS))
		return rt.serve(ctx, func(ctx context.Context) error {
			return synth.Loop(ctx, cfg.FPS, func() { _ = st.Show(next()) })
		})
	}

	app.AddListenerChecker(rt.agg, "grid", srv)
	return rt.serve(ctx, st.Run)
}

// RunSpectrum 频段帧 -> 网格帧
func RunSpectrum(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger, opts Options) error {
	rt := newRuntime(cfg, log, cfgpkg.StageSpectrum)
	link := app.NewLink(cfg, "grid", cfg.Ports.Grid, cfg.Grid.Cells(), log, rt.appm)
	defer link.Close()
	rt.agg.AddChecker(health.NewLinkChecker(link))

	if opts.Debug {
		src := synth.NewSpectrumSource(opts.Mode, cfg.Grid.Cols, cfg.Grid.Rows, synth.NewRand())
		next := synth.Counted(func() []byte { return src.Next().Bytes() }, rt.appm)
		log.Info("debug source sending grids", zap.String("mode", string(opts.Mode)), zap.Int("fps", cfg.FPS))
		return rt.serve(ctx, func(ctx context.Context) error {
			return synth.Pump(ctx, next, link, cfg.FPS, cfg.Relay.RetryDelay)
		})
	}

	srv := app.NewLoopbackServer(cfg, cfg.Ports.TCPBands, log, rt.appm)
	app.AddListenerChecker(rt.agg, "bands", srv)
	st := spectrum.NewStage(srv, link, cfg.Grid.Cols, cfg.Grid.Rows, log, rt.appm)
	return rt.serve(ctx, st.Run)
}

// RunBTBridge RFCOMM -> 频段帧
func RunBTBridge(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger, opts Options) error {
	rt := newRuntime(cfg, log, cfgpkg.StageBTBridge)
	link := app.NewLink(cfg, "bands", cfg.Ports.TCPBands, band.FrameSize, log, rt.appm)
	defer link.Close()
	rt.agg.AddChecker(health.NewLinkChecker(link))

	if opts.Debug {
		// 蓝牙桥调试正弦不带抖动
		return rt.serve(ctx, bandPump(rt, opts, link, false))
	}

	bind, err := rfcomm.ParseOptional(cfg.BT.BindMAC)
	if err != nil {
		return fmt.Errorf("bt.bindMac: %w", err)
	}
	allow, err := rfcomm.ParseOptional(cfg.BT.AllowMAC)
	if err != nil {
		return fmt.Errorf("bt.allowMac: %w", err)
	}
	if cfg.BT.BringUp {
		// 适配器可能已由系统服务启用，失败不阻止监听
		if err := rfcomm.BringUp(cfg.BT.Adapter); err != nil {
			log.Warn("adapter bring-up failed", zap.String("adapter", cfg.BT.Adapter), zap.Error(err))
		}
	}

	bt := ingress.NewBluetooth(ingress.BluetoothConfig{
		Channel:          uint8(cfg.BT.Channel),
		Bind:             bind,
		Allow:            allow,
		ListenRetryDelay: cfg.Relay.ListenRetryDelay,
	}, rfcomm.Listen, link, log, rt.appm)
	app.AddListenerChecker(rt.agg, "rfcomm", bt)
	return rt.serve(ctx, bt.Run)
}

// RunUDPBridge UDP -> 频段帧
func RunUDPBridge(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger, opts Options) error {
	rt := newRuntime(cfg, log, cfgpkg.StageUDPBridge)
	link := app.NewLink(cfg, "bands", cfg.Ports.TCPBands, band.FrameSize, log, rt.appm)
	defer link.Close()
	rt.agg.AddChecker(health.NewLinkChecker(link))

	if opts.Debug {
		return rt.serve(ctx, bandPump(rt, opts, link, true))
	}

	// UDP 入口绑定所有接口
	dg := ingress.NewDatagram(fmt.Sprintf(":%d", cfg.Ports.UDPBands), cfg.Relay.ListenRetryDelay, link, log, rt.appm)
	app.AddListenerChecker(rt.agg, "udp", dg)
	return rt.serve(ctx, dg.Run)
}

// bandPump 调试模式：合成频段帧直接写入下游
func bandPump(rt *runtime, opts Options, link *relay.Link, jitter bool) func(context.Context) error {
	src := synth.NewBandSource(opts.Mode, synth.NewRand(), jitter)
	next := synth.Counted(func() []byte { return band.PackBytes(src.Next()) }, rt.appm)
	rt.log.Info("debug source sending bands",
		zap.String("mode", string(opts.Mode)),
		zap.Bool("jitter", jitter),
		zap.Int("fps", rt.cfg.FPS),
	)
	return func(ctx context.Context) error {
		return synth.Pump(ctx, next, link, rt.cfg.FPS, rt.cfg.Relay.RetryDelay)
	}
}
