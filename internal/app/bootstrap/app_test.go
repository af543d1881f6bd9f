package bootstrap

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/taoyao-code/bee-spectrum/internal/band"
	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
	"github.com/taoyao-code/bee-spectrum/internal/synth"
)

func testConfig() *cfgpkg.Config {
	return &cfgpkg.Config{
		Grid: cfgpkg.GridConfig{Cols: 16, Rows: 8},
		Relay: cfgpkg.RelayConfig{
			Host:             "127.0.0.1",
			DialTimeout:      time.Second,
			WriteTimeout:     time.Second,
			RetryDelay:       10 * time.Millisecond,
			ListenRetryDelay: 10 * time.Millisecond,
		},
		FPS: 100,
	}
}

// sinkPort 在随机端口上收取定长帧
func sinkPort(t *testing.T, size int) (int, <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan []byte, 256)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			buf := make([]byte, size)
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			select {
			case ch <- buf:
			default:
			}
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port, ch
}

func runFor(t *testing.T, run func(ctx context.Context) error) <-chan error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()
	return done
}

func TestRunSpectrum_DebugSendsGrids(t *testing.T) {
	cfg := testConfig()
	port, frames := sinkPort(t, cfg.Grid.Cells())
	cfg.Ports.Grid = port

	runFor(t, func(ctx context.Context) error {
		return RunSpectrum(ctx, cfg, zap.NewNop(), Options{Debug: true, Mode: synth.ModeBars})
	})

	select {
	case grid := <-frames:
		assert.Len(t, grid, 128)
	case <-time.After(2 * time.Second):
		t.Fatal("no grid received")
	}
}

func TestRunUDPBridge_DebugSendsBands(t *testing.T) {
	cfg := testConfig()
	port, frames := sinkPort(t, band.FrameSize)
	cfg.Ports.TCPBands = port

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- RunUDPBridge(ctx, cfg, zap.NewNop(), Options{Debug: true, Mode: synth.ModeNoise})
	}()

	select {
	case f := <-frames:
		unpacked, err := band.UnpackBytes(f)
		require.NoError(t, err)
		for _, v := range unpacked {
			assert.LessOrEqual(t, v, uint8(band.MaxValue))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no band frame received")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop")
	}
}

func TestRunUDPBridge_RelaysDatagrams(t *testing.T) {
	cfg := testConfig()
	port, frames := sinkPort(t, band.FrameSize)
	cfg.Ports.TCPBands = port

	// 预留一个 UDP 端口
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.Ports.UDPBands = pc.LocalAddr().(*net.UDPAddr).Port
	require.NoError(t, pc.Close())

	runFor(t, func(ctx context.Context) error {
		return RunUDPBridge(ctx, cfg, zap.NewNop(), Options{})
	})

	conn, err := net.Dial("udp", pc.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	want := []byte{1, 2, 3, 4, 5, 6}
	deadline := time.After(2 * time.Second)
	for {
		// UDP 入口可能尚未绑定，重复发送直到收到
		_, _ = conn.Write(want)
		select {
		case got := <-frames:
			assert.Equal(t, want, got)
			return
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("datagram not relayed")
		}
	}
}

func TestRunBTBridge_DebugSendsCleanSine(t *testing.T) {
	cfg := testConfig()
	port, frames := sinkPort(t, band.FrameSize)
	cfg.Ports.TCPBands = port

	runFor(t, func(ctx context.Context) error {
		return RunBTBridge(ctx, cfg, zap.NewNop(), Options{Debug: true, Mode: synth.ModeBars})
	})

	// 蓝牙桥调试源不抖动：前几帧与纯正弦逐帧一致
	ref := &synth.Sine{}
	for i := 0; i < 5; i++ {
		select {
		case f := <-frames:
			got, err := band.UnpackBytes(f)
			require.NoError(t, err)
			assert.Equal(t, ref.Next(), got, "frame %d", i)
		case <-time.After(2 * time.Second):
			t.Fatal("no band frame received")
		}
	}
}
