package render

import (
	"errors"
	"fmt"
)

// ErrPanelSize 面板宽高必须为 8 的正整数倍
var ErrPanelSize = errors.New("render: panel width and height must be positive multiples of 8")

// FrameBuffer 按页寻址的单色帧缓冲：字节 page*Width+x 存放第 x 列该页的 8 个竖向像素，
// 第 y&7 位对应像素行 y
type FrameBuffer struct {
	Width, Height int
	Data          []byte
}

// NewFrameBuffer 创建全灭帧缓冲
func NewFrameBuffer(width, height int) (*FrameBuffer, error) {
	if width <= 0 || height <= 0 || width%8 != 0 || height%8 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrPanelSize, width, height)
	}
	return &FrameBuffer{Width: width, Height: height, Data: make([]byte, width*height/8)}, nil
}

// Pages 页数
func (fb *FrameBuffer) Pages() int { return fb.Height / 8 }

// Page 返回第 p 页的 Width 字节（共享底层数组）
func (fb *FrameBuffer) Page(p int) []byte {
	return fb.Data[p*fb.Width : (p+1)*fb.Width]
}

// Clear 全部熄灭
func (fb *FrameBuffer) Clear() { clear(fb.Data) }

// SetPixel 点亮 (x, y)，越界忽略
func (fb *FrameBuffer) SetPixel(x, y int) {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return
	}
	fb.Data[(y>>3)*fb.Width+x] |= 1 << (y & 7)
}

// Pixel 读取 (x, y)
func (fb *FrameBuffer) Pixel(x, y int) bool {
	if x < 0 || y < 0 || x >= fb.Width || y >= fb.Height {
		return false
	}
	return fb.Data[(y>>3)*fb.Width+x]&(1<<(y&7)) != 0
}

// fillRect 点亮闭区间矩形，裁剪到缓冲区内
func (fb *FrameBuffer) fillRect(x0, y0, x1, y1 int) {
	x0, y0 = max(x0, 0), max(y0, 0)
	x1, y1 = min(x1, fb.Width-1), min(y1, fb.Height-1)
	for y := y0; y <= y1; y++ {
		base := (y >> 3) * fb.Width
		bit := byte(1) << (y & 7)
		for x := x0; x <= x1; x++ {
			fb.Data[base+x] |= bit
		}
	}
}

// Blit 清空帧缓冲后，将每个点亮的网格单元放大为 (W/cols)x(H/rows) 的像素块。
// 不能整除时右侧/底部剩余的像素条保持熄灭。
func Blit(g *Grid, fb *FrameBuffer) {
	fb.Clear()
	if g.Cols <= 0 || g.Rows <= 0 {
		return
	}
	cw, ch := fb.Width/g.Cols, fb.Height/g.Rows
	if cw == 0 || ch == 0 {
		return
	}
	for gy := 0; gy < g.Rows; gy++ {
		for gx := 0; gx < g.Cols; gx++ {
			if !g.cells[gy*g.Cols+gx] {
				continue
			}
			x0, y0 := gx*cw, gy*ch
			fb.fillRect(x0, y0, x0+cw-1, y0+ch-1)
		}
	}
}
