// Package chain 按顺序拉起显示、频谱与桥接进程，并统一回收
package chain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
)

// Transport 入口类型
type Transport string

const (
	TransportBT  Transport = "bt"
	TransportUDP Transport = "udp"
)

// 默认时序
const (
	DefaultStagger   = 2 * time.Second
	DefaultKillGrace = time.Second
)

// Plan 启动计划
type Plan struct {
	Transport  Transport
	Sudo       bool
	BinDir     string          // 各环节可执行文件所在目录
	ConfigPath string          // 非空时以 --config 传给子进程
	Debug      map[string]bool // 环节名 -> 是否 --debug
	Stagger    time.Duration   // 相邻两个环节的启动间隔
	KillGrace  time.Duration   // SIGTERM 与 SIGKILL 之间的等待
}

// Command 一个子进程的命令行
type Command struct {
	Stage string
	Argv  []string
}

func (c Command) String() string { return strings.Join(c.Argv, " ") }

// Stages 启动顺序：显示 -> 频谱 -> 入口
func (p Plan) Stages() []string {
	bridge := cfgpkg.StageBTBridge
	if p.Transport == TransportUDP {
		bridge = cfgpkg.StageUDPBridge
	}
	return []string{cfgpkg.StageDisplay, cfgpkg.StageSpectrum, bridge}
}

// Commands 生成全部子进程命令行
func (p Plan) Commands() []Command {
	stages := p.Stages()
	out := make([]Command, 0, len(stages))
	for _, stage := range stages {
		var argv []string
		if p.Sudo {
			argv = append(argv, "sudo")
		}
		argv = append(argv, filepath.Join(p.BinDir, "bee-"+stage))
		if p.ConfigPath != "" {
			argv = append(argv, "--config", p.ConfigPath)
		}
		if p.Debug[stage] {
			argv = append(argv, "--debug")
		}
		out = append(out, Command{Stage: stage, Argv: argv})
	}
	return out
}

// Validate 检查入口类型
func (p Plan) Validate() error {
	switch p.Transport {
	case TransportBT, TransportUDP:
		return nil
	}
	return fmt.Errorf("chain: unknown transport %q", p.Transport)
}
