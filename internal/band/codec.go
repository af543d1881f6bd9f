package band

import (
	"errors"
	"fmt"
)

// 频段帧格式常量
const (
	NumBands    = 16 // 每帧频段数
	BitsPerBand = 3  // 每个频段的位宽
	MaxValue    = 1<<BitsPerBand - 1
	FrameSize   = NumBands * BitsPerBand / 8 // 打包后的线上帧长度 (6字节)
)

// ErrFrameSize 帧长度不等于 FrameSize
var ErrFrameSize = errors.New("band: frame must be 6 bytes")

// Frame 16 个频段幅值，每个取值 0..7
type Frame [NumBands]uint8

// Packed 线上传输的 6 字节打包帧
type Packed [FrameSize]byte

// Pack 按 LSB 优先将 16 个 3 位值打包为 6 字节。
// 第 i 个值占据比特流的 [3i, 3i+3)，比特 k 落在字节 k>>3 的第 k&7 位。
func Pack(f Frame) Packed {
	var out Packed
	for i, v := range f {
		v &= MaxValue
		bit := i * BitsPerBand
		b, off := bit>>3, bit&7
		out[b] |= v << off
		// 跨字节：高位写入下一字节起始
		if off > 8-BitsPerBand {
			out[b+1] |= v >> (8 - off)
		}
	}
	return out
}

// Unpack 解包 6 字节为 16 个频段值；对任意输入均不会失败，输出总在 0..7 内
func Unpack(p Packed) Frame {
	var f Frame
	for i := range f {
		bit := i * BitsPerBand
		b, off := bit>>3, bit&7
		v := uint16(p[b]) >> off
		if off > 8-BitsPerBand {
			v |= uint16(p[b+1]) << (8 - off)
		}
		f[i] = uint8(v & MaxValue)
	}
	return f
}

// PackBytes 打包并返回切片形式，便于直接写入连接
func PackBytes(f Frame) []byte {
	p := Pack(f)
	return p[:]
}

// UnpackBytes 从切片解包，长度必须恰好为 FrameSize
func UnpackBytes(b []byte) (Frame, error) {
	if len(b) != FrameSize {
		return Frame{}, fmt.Errorf("%w: got %d", ErrFrameSize, len(b))
	}
	var p Packed
	copy(p[:], b)
	return Unpack(p), nil
}

// Clamp 将任意整数幅值限制到 0..MaxValue
func Clamp(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > MaxValue {
		return MaxValue
	}
	return uint8(v)
}
