//go:build unix

package chain

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// setProcessGroup 子进程成为新进程组的组长，pgid 等于其 pid
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalGroup(cmd *exec.Cmd, sig syscall.Signal) {
	if cmd.Process == nil {
		return
	}
	// ESRCH 表示整组已退出
	_ = unix.Kill(-cmd.Process.Pid, sig)
}

func terminateGroup(cmd *exec.Cmd) { signalGroup(cmd, unix.SIGTERM) }

func killGroup(cmd *exec.Cmd) { signalGroup(cmd, unix.SIGKILL) }
