package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
	"github.com/taoyao-code/bee-spectrum/internal/logging"
	"github.com/taoyao-code/bee-spectrum/internal/synth"
)

// RunFunc 单个环节的启动入口
type RunFunc func(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger, opts Options) error

// AddDebugFlag 注册 --debug[=bars|noise]
func AddDebugFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "debug", "", "drive this stage from a built-in source (bars|noise)")
	cmd.Flags().Lookup("debug").NoOptDefVal = string(synth.ModeBars)
}

// ParseOptions 由 --debug 的取值与是否出现构造选项
func ParseOptions(debug string, set bool) (Options, error) {
	if !set {
		return Options{}, nil
	}
	mode, err := synth.ParseMode(debug)
	if err != nil {
		return Options{}, err
	}
	return Options{Debug: true, Mode: mode}, nil
}

// NewCommand 构造单环节进程的根命令：加载配置、初始化日志、处理信号后调用 run
func NewCommand(stage, short string, run RunFunc) *cobra.Command {
	var configPath, debug string

	cmd := &cobra.Command{
		Use:   "bee-" + stage,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := ParseOptions(debug, cmd.Flags().Changed("debug"))
			if err != nil {
				return err
			}
			cmd.SilenceUsage = true

			cfg, err := cfgpkg.Load(configPath)
			if err != nil {
				return err
			}
			log, err := logging.InitLogger(cfg.Logging, stage)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer func() { _ = log.Sync() }()
			zap.ReplaceGlobals(log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			log.Info("starting", zap.Bool("debug", opts.Debug), zap.String("mode", string(opts.Mode)))
			if err := run(ctx, cfg, log, opts); err != nil {
				log.Error("stage failed", zap.Error(err))
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default $BEE_CONFIG or ./bee_config.{yaml,json})")
	AddDebugFlag(cmd, &debug)
	return cmd
}
