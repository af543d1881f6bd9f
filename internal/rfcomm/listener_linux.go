//go:build linux

package rfcomm

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// SocketListener 基于 AF_BLUETOOTH/BTPROTO_RFCOMM 的监听套接字
type SocketListener struct {
	fd        int
	closeOnce sync.Once
}

// Listen 绑定本地适配器（AddrAny 表示任意）与信道，backlog 为 1
func Listen(local Addr, channel uint8) (Listener, error) {
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM|unix.SOCK_CLOEXEC, unix.BTPROTO_RFCOMM)
	if err != nil {
		return nil, fmt.Errorf("socket(rfcomm): %w", err)
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)

	sa := &unix.SockaddrRFCOMM{Addr: local.wire(), Channel: channel}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(rfcomm ch=%d local=%s): %w", channel, local, err)
	}
	if err := unix.Listen(fd, 1); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("listen(rfcomm): %w", err)
	}
	return &SocketListener{fd: fd}, nil
}

// Accept 阻塞接受一个客户端
func (l *SocketListener) Accept() (io.ReadWriteCloser, Addr, error) {
	for {
		// 非阻塞模式下 os.NewFile 会接入 netpoller，Close 能打断阻塞中的 Read
		nfd, sa, err := unix.Accept4(l.fd, unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, Addr{}, fmt.Errorf("accept(rfcomm): %w", err)
		}
		var remote Addr
		if rc, ok := sa.(*unix.SockaddrRFCOMM); ok {
			remote = addrFromWire(rc.Addr)
		}
		return os.NewFile(uintptr(nfd), "rfcomm:"+remote.String()), remote, nil
	}
}

// Close 关闭监听套接字；shutdown 用于唤醒阻塞中的 accept
func (l *SocketListener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		_ = unix.Shutdown(l.fd, unix.SHUT_RDWR)
		err = unix.Close(l.fd)
	})
	return err
}
