package display

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taoyao-code/bee-spectrum/internal/tcpserver"
)

func TestStage_Show(t *testing.T) {
	bus := &fakeBus{}
	e, err := NewEngine(bus, 128, 64)
	require.NoError(t, err)
	st, err := NewStage(tcpserver.New(tcpserver.Config{Addr: "127.0.0.1:0"}, nil), e, 16, 8, nil, nil)
	require.NoError(t, err)

	t.Run("长度不符的帧被拒绝", func(t *testing.T) {
		assert.Error(t, st.Show(make([]byte, 10)))
		assert.Equal(t, uint64(0), e.Stats().Draws)
	})

	t.Run("左上角单元点亮8x8像素块", func(t *testing.T) {
		frame := make([]byte, st.FrameSize())
		frame[0] = 1
		require.NoError(t, st.Show(frame))
		assert.Equal(t, bytes8(0xFF), bus.chunks[0][:8])
		assert.Equal(t, byte(0), bus.chunks[0][8])
	})

	t.Run("总线错误后继续绘制", func(t *testing.T) {
		frame := make([]byte, st.FrameSize())
		frame[1] = 1
		bus.writes, bus.failAt = 0, 1
		assert.ErrorIs(t, st.Show(frame), errBus)
		bus.failAt = 0
		assert.NoError(t, st.Show(frame))
	})
}

func bytes8(v byte) []byte {
	b := make([]byte, 8)
	for i := range b {
		b[i] = v
	}
	return b
}

func TestStage_RunOverLoopback(t *testing.T) {
	e, err := NewEngine(&fakeBus{}, 128, 64)
	require.NoError(t, err)
	srv := tcpserver.New(tcpserver.Config{Addr: "127.0.0.1:0"}, nil)
	st, err := NewStage(srv, e, 16, 8, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, srv.Listen(ctx))
	go func() { _ = st.Run(ctx) }()

	conn, err := net.Dial("tcp", srv.Addr().String())
	require.NoError(t, err)
	defer conn.Close()

	frame := make([]byte, st.FrameSize())
	frame[5] = 1
	_, err = conn.Write(append(frame, frame...))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return e.Stats().Draws == 2 }, time.Second, 5*time.Millisecond)
	// 第二帧内容相同，全部页面被跳过
	assert.Eventually(t, func() bool { return e.Stats().PagesSkipped == 8 }, time.Second, 5*time.Millisecond)
}
