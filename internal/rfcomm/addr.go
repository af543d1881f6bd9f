package rfcomm

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var (
	// ErrBadAddr 硬件地址格式错误
	ErrBadAddr = errors.New("rfcomm: malformed hardware address")
	// ErrUnsupported 当前平台不支持蓝牙套接字
	ErrUnsupported = errors.New("rfcomm: bluetooth sockets are not supported on this platform")
)

// Addr 蓝牙硬件地址，按显示顺序存放（AA:BB:CC:DD:EE:FF -> [0]=0xAA）
type Addr [6]byte

// AddrAny 任意本地适配器 (BDADDR_ANY)
var AddrAny Addr

// ParseAddr 解析 AA:BB:CC:DD:EE:FF 形式的地址（大小写不敏感）
func ParseAddr(s string) (Addr, error) {
	var a Addr
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != len(a) {
		return a, fmt.Errorf("%w: %q", ErrBadAddr, s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return Addr{}, fmt.Errorf("%w: %q", ErrBadAddr, s)
		}
		v, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return Addr{}, fmt.Errorf("%w: %q", ErrBadAddr, s)
		}
		a[i] = byte(v)
	}
	return a, nil
}

// ParseOptional 空字符串返回 nil，否则解析
func ParseOptional(s string) (*Addr, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	a, err := ParseAddr(s)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// String 格式化为大写冒号分隔形式
func (a Addr) String() string {
	return fmt.Sprintf("%02X:%02X:%02X:%02X:%02X:%02X", a[0], a[1], a[2], a[3], a[4], a[5])
}

// IsAny 是否为 BDADDR_ANY
func (a Addr) IsAny() bool { return a == AddrAny }

// wire 内核 bdaddr_t 为小端序
func (a Addr) wire() [6]uint8 {
	return [6]uint8{a[5], a[4], a[3], a[2], a[1], a[0]}
}

func addrFromWire(w [6]uint8) Addr {
	return Addr{w[5], w[4], w[3], w[2], w[1], w[0]}
}

// Listener 面向连接的无线监听端点
type Listener interface {
	// Accept 阻塞直到一个远端连接，返回连接与远端地址
	Accept() (io.ReadWriteCloser, Addr, error)
	Close() error
}

// ListenFunc 打开监听端点，便于注入测试替身
type ListenFunc func(local Addr, channel uint8) (Listener, error)
