package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/taoyao-code/bee-spectrum/internal/chain"
	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
	"github.com/taoyao-code/bee-spectrum/internal/logging"
)

var (
	configPath string
	binDir     string
	useUDP     bool
	useBT      bool
	noSudo     bool
	debug      = map[string]*bool{}
)

var rootCmd = &cobra.Command{
	Use:   "bee-chain",
	Short: "Run the display, spectrum and bridge stages as one chain",
	Long: `bee-chain starts bee-display, bee-spectrum and then either bee-bt-bridge
(default) or bee-udp-bridge, each in its own process group. Interrupt stops
every stage: SIGTERM first, SIGKILL for anything still running.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		cfg, err := cfgpkg.Load(configPath)
		if err != nil {
			return err
		}
		log, err := logging.InitLogger(cfg.Logging, cfgpkg.StageChain)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		plan := chain.Plan{
			Transport:  chain.TransportBT,
			Sudo:       !noSudo,
			BinDir:     binDir,
			ConfigPath: configPath,
			Debug:      map[string]bool{},
		}
		if useUDP {
			plan.Transport = chain.TransportUDP
		}
		if plan.BinDir == "" {
			plan.BinDir = executableDir()
		}
		for stage, on := range debug {
			plan.Debug[stage] = *on
		}

		sup, err := chain.NewSupervisor(plan, log)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := sup.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("chain failed", zap.Error(err))
			return err
		}
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := cfgpkg.Load(configPath)
		if err != nil {
			return err
		}
		return chain.DumpConfig(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file passed to every stage")
	rootCmd.Flags().StringVar(&binDir, "bin-dir", "", "directory holding the stage binaries (default: next to bee-chain)")
	rootCmd.Flags().BoolVar(&useBT, "bt", false, "use the Bluetooth bridge (default)")
	rootCmd.Flags().BoolVar(&useUDP, "udp", false, "use the UDP bridge instead of Bluetooth")
	rootCmd.MarkFlagsMutuallyExclusive("bt", "udp")
	rootCmd.Flags().BoolVar(&noSudo, "no-sudo", false, "run stage binaries without sudo")

	for flag, stage := range map[string]string{
		"debug-display":  cfgpkg.StageDisplay,
		"debug-spectrum": cfgpkg.StageSpectrum,
		"debug-udp":      cfgpkg.StageUDPBridge,
		"debug-bridge":   cfgpkg.StageBTBridge,
	} {
		debug[stage] = rootCmd.Flags().Bool(flag, false, "pass --debug to bee-"+stage)
	}

	rootCmd.AddCommand(configCmd)
}

func executableDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
