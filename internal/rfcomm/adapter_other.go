//go:build !linux

package rfcomm

// BringUp 非 Linux 平台不支持
func BringUp(adapter string) error {
	if _, err := ParseAdapter(adapter); err != nil {
		return err
	}
	return ErrUnsupported
}
