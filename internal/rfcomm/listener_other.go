//go:build !linux

package rfcomm

// Listen 非 Linux 平台不支持
func Listen(local Addr, channel uint8) (Listener, error) {
	return nil, ErrUnsupported
}
