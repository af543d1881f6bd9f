package spectrum

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/bee-spectrum/internal/band"
	"github.com/taoyao-code/bee-spectrum/internal/metrics"
	"github.com/taoyao-code/bee-spectrum/internal/relay"
	"github.com/taoyao-code/bee-spectrum/internal/tcpserver"
)

const cols, rows = 16, 8

// gridSink 模拟显示环节，按网格帧长度收帧
func gridSink(t *testing.T) (addr string, frames <-chan []byte) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	ch := make(chan []byte, 16)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			buf := make([]byte, cols*rows)
			if _, err := io.ReadFull(conn, buf); err != nil {
				return
			}
			ch <- buf
		}
	}()
	return ln.Addr().String(), ch
}

func TestStage_ProcessRendersBars(t *testing.T) {
	addr, frames := gridSink(t)
	link := relay.New("grid", relay.TCPDialer(addr, time.Second), cols*rows)
	defer link.Close()
	st := NewStage(tcpserver.New(tcpserver.Config{}, nil), link, cols, rows, nil, nil)

	var f band.Frame
	f[0], f[15] = 7, 2
	require.True(t, st.Process(context.Background(), band.PackBytes(f)))

	select {
	case grid := <-frames:
		lit := 0
		for _, v := range grid {
			if v != 0 {
				lit++
			}
		}
		assert.Equal(t, 9, lit)
		// 第 0 列底部 7 格
		assert.Equal(t, byte(0), grid[0*cols+0])
		assert.Equal(t, byte(1), grid[1*cols+0])
		assert.Equal(t, byte(1), grid[7*cols+0])
		// 第 15 列底部 2 格
		assert.Equal(t, byte(1), grid[7*cols+15])
		assert.Equal(t, byte(1), grid[6*cols+15])
		assert.Equal(t, byte(0), grid[5*cols+15])
	case <-time.After(time.Second):
		t.Fatal("no grid frame forwarded")
	}
}

func TestStage_DropsWhenDownstreamMissing(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	link := relay.New("grid", relay.TCPDialer(addr, 100*time.Millisecond), cols*rows)
	st := NewStage(tcpserver.New(tcpserver.Config{}, nil), link, cols, rows, nil, nil)

	assert.False(t, st.Process(context.Background(), make([]byte, band.FrameSize)))
	assert.False(t, st.Process(context.Background(), make([]byte, 5)))
}

func TestStage_RunKeepsUpstreamAttached(t *testing.T) {
	srv := tcpserver.New(tcpserver.Config{Addr: "127.0.0.1:0"}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Listen(ctx))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	sinkAddr := ln.Addr().String()
	require.NoError(t, ln.Close())

	appm := metrics.NewAppMetrics(metrics.NewRegistry())
	link := relay.New("grid", relay.TCPDialer(sinkAddr, 100*time.Millisecond), cols*rows, relay.WithMetrics(appm))
	defer link.Close()
	st := NewStage(srv, link, cols, rows, nil, appm)
	go func() { _ = st.Run(ctx) }()

	up, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer up.Close()

	// 下游缺席时的帧被丢弃，上游连接保持
	_, err = up.Write(make([]byte, band.FrameSize))
	require.NoError(t, err)
	dropped := appm.FramesDropped.WithLabelValues("grid", "disconnected")
	require.Eventually(t, func() bool { return testutil.ToFloat64(dropped) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, srv.Serving())

	// 下游上线后，下一帧即可送达
	ln2, err := net.Listen("tcp", sinkAddr)
	require.NoError(t, err)
	defer ln2.Close()
	got := make(chan []byte, 1)
	go func() {
		conn, err := ln2.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, cols*rows)
		if _, err := io.ReadFull(conn, buf); err == nil {
			got <- buf
		}
	}()

	var f band.Frame
	f[3] = 1
	_, err = up.Write(band.PackBytes(f))
	require.NoError(t, err)

	select {
	case grid := <-got:
		assert.Equal(t, byte(1), grid[7*cols+3])
	case <-time.After(2 * time.Second):
		t.Fatal("frame not delivered after downstream came back")
	}
}
