package rfcomm

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseAdapter 将 "hci0" 形式的设备名解析为设备号
func ParseAdapter(name string) (uint16, error) {
	s := strings.TrimPrefix(strings.TrimSpace(name), "hci")
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("rfcomm: bad adapter name %q", name)
	}
	return uint16(n), nil
}
