//go:build unix

package chain

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeStage 在 dir 下生成名为 bee-<stage> 的脚本
func writeStage(t *testing.T, dir, stage, body string) {
	t.Helper()
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bee-"+stage), []byte(script), 0o755))
}

func fakeBins(t *testing.T, body string) (dir, logPath string) {
	t.Helper()
	dir = t.TempDir()
	logPath = filepath.Join(dir, "started.log")
	for _, stage := range []string{"display", "spectrum", "bt-bridge", "udp-bridge"} {
		writeStage(t, dir, stage, "echo "+stage+" \"$@\" >> "+logPath+"\n"+body)
	}
	return dir, logPath
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	return strings.Split(strings.TrimSpace(string(b)), "\n")
}

func TestSupervisor_StartsInOrderAndStops(t *testing.T) {
	dir, logPath := fakeBins(t, "exec sleep 30")
	s, err := NewSupervisor(Plan{
		Transport: TransportUDP,
		BinDir:    dir,
		Debug:     map[string]bool{"display": true},
		Stagger:   20 * time.Millisecond,
		KillGrace: 200 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return len(readLines(t, logPath)) == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"display --debug", "spectrum", "udp-bridge"}, readLines(t, logPath))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("supervisor did not stop children")
	}
}

func TestSupervisor_KillsStagesIgnoringTerm(t *testing.T) {
	dir, logPath := fakeBins(t, "trap '' TERM\nwhile :; do sleep 0.05; done")
	s, err := NewSupervisor(Plan{
		Transport: TransportBT,
		BinDir:    dir,
		Stagger:   10 * time.Millisecond,
		KillGrace: 100 * time.Millisecond,
	}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	require.Eventually(t, func() bool { return len(readLines(t, logPath)) == 3 }, 2*time.Second, 10*time.Millisecond)

	start := time.Now()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
		elapsed := time.Since(start)
		assert.GreaterOrEqual(t, elapsed, 100*time.Millisecond)
		// 三个阶段共用一个宽限期，而不是各自等待
		assert.Less(t, elapsed, time.Second)
	case <-time.After(3 * time.Second):
		t.Fatal("SIGKILL escalation did not happen")
	}
}

func TestSupervisor_AllStagesExited(t *testing.T) {
	dir, _ := fakeBins(t, "exit 3")
	s, err := NewSupervisor(Plan{Transport: TransportBT, BinDir: dir, Stagger: 10 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	assert.ErrorIs(t, s.Run(ctx), ErrAllExited)
}

func TestSupervisor_MissingBinary(t *testing.T) {
	s, err := NewSupervisor(Plan{Transport: TransportBT, BinDir: t.TempDir()}, nil)
	require.NoError(t, err)
	err = s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start display")
}
