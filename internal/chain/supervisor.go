package chain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrAllExited 所有子进程都已退出
var ErrAllExited = errors.New("chain: all stages exited")

type proc struct {
	cmd  Command
	c    *exec.Cmd
	done chan struct{}
}

func (p *proc) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Supervisor 子进程监管
type Supervisor struct {
	plan Plan
	log  *zap.Logger
}

// NewSupervisor 创建监管器，零值时序取默认值
func NewSupervisor(plan Plan, log *zap.Logger) (*Supervisor, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if plan.Stagger <= 0 {
		plan.Stagger = DefaultStagger
	}
	if plan.KillGrace <= 0 {
		plan.KillGrace = DefaultKillGrace
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Supervisor{plan: plan, log: log}, nil
}

// Run 依次启动各环节并等待 ctx 取消；返回前终止全部子进程。
// 子进程退出只记录日志，全部退出时返回 ErrAllExited。
func (s *Supervisor) Run(ctx context.Context) error {
	var (
		procs []*proc
		g     errgroup.Group
	)
	allDone := make(chan struct{})
	defer func() {
		s.stopAll(procs)
		_ = g.Wait()
	}()

	for i, c := range s.plan.Commands() {
		if i > 0 {
			t := time.NewTimer(s.plan.Stagger)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil
			case <-t.C:
			}
		}
		p, err := s.start(c)
		if err != nil {
			return fmt.Errorf("start %s: %w", c.Stage, err)
		}
		procs = append(procs, p)
		g.Go(func() error {
			err := p.c.Wait()
			close(p.done)
			s.logExit(p, err)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(allDone)
	}()

	s.log.Info("chain running, interrupt to stop everything", zap.String("transport", string(s.plan.Transport)))
	select {
	case <-ctx.Done():
		s.log.Info("stopping chain")
		return nil
	case <-allDone:
		return ErrAllExited
	}
}

func (s *Supervisor) start(c Command) (*proc, error) {
	cmd := exec.Command(c.Argv[0], c.Argv[1:]...)
	setProcessGroup(cmd)
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	s.log.Info("stage started", zap.String("stage", c.Stage), zap.String("cmd", c.String()), zap.Int("pid", cmd.Process.Pid))
	return &proc{cmd: c, c: cmd, done: make(chan struct{})}, nil
}

func (s *Supervisor) logExit(p *proc, err error) {
	code := 0
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		code = ee.ExitCode()
	} else if err != nil {
		code = -1
	}
	s.log.Warn("stage exited", zap.String("stage", p.cmd.Stage), zap.Int("code", code), zap.Error(err))
}

// stopAll 先对每个进程组发 SIGTERM，宽限期后对仍存活的发 SIGKILL
func (s *Supervisor) stopAll(procs []*proc) {
	alive := func() []*proc {
		var out []*proc
		for _, p := range procs {
			if !p.exited() {
				out = append(out, p)
			}
		}
		return out
	}

	for _, p := range alive() {
		terminateGroup(p.c)
	}
	// 所有阶段共享同一宽限期，到期后不再逐个等待
	grace, cancel := context.WithTimeout(context.Background(), s.plan.KillGrace)
	defer cancel()
	for _, p := range alive() {
		select {
		case <-p.done:
		case <-grace.Done():
		}
	}
	for _, p := range alive() {
		s.log.Warn("stage did not stop, killing", zap.String("stage", p.cmd.Stage))
		killGroup(p.c)
	}
}
