package tcpserver

import (
	"io"
	"net"
	"time"
)

// ReadFrames 从连接中循环读取定长帧并回调；fn 返回 false 时停止。
// 连接断开或短读即返回，返回已读取的完整帧数。
func (s *Server) ReadFrames(conn net.Conn, size int, fn func(frame []byte) bool) int {
	buf := make([]byte, size)
	frames := 0
	for {
		if s.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		}
		n, err := io.ReadFull(conn, buf)
		if n > 0 && s.onRecvBytes != nil {
			s.onRecvBytes(n)
		}
		if err != nil {
			return frames
		}
		frames++
		if !fn(buf) {
			return frames
		}
	}
}
