//go:build linux

package rfcomm

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// HCI ioctl 请求号：_IOW('H', nr, int)
const (
	hciDevUp   = 0x400448c9 // HCIDEVUP
	hciSetScan = 0x400448dd // HCISETSCAN

	scanInquiry = 0x01
	scanPage    = 0x02
)

// hciDevReq 对应内核 struct hci_dev_req
type hciDevReq struct {
	devID  uint16
	_      uint16
	devOpt uint32
}

// BringUp 为适配器上电并开启可连接/可发现扫描。
// 已处于上电状态视为成功；服务记录（SDP）注册不在此处完成。
func BringUp(adapter string) error {
	dev, err := ParseAdapter(adapter)
	if err != nil {
		return err
	}
	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.BTPROTO_HCI)
	if err != nil {
		return fmt.Errorf("socket(hci): %w", err)
	}
	defer unix.Close(fd)

	if err := unix.IoctlSetInt(fd, hciDevUp, int(dev)); err != nil && !errors.Is(err, unix.EALREADY) {
		return fmt.Errorf("hci%d up: %w", dev, err)
	}

	req := hciDevReq{devID: dev, devOpt: scanPage | scanInquiry}
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), hciSetScan, uintptr(unsafe.Pointer(&req))); errno != 0 {
		return fmt.Errorf("hci%d piscan: %w", dev, errno)
	}
	return nil
}
