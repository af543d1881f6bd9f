package render

import (
	"fmt"

	"github.com/taoyao-code/bee-spectrum/internal/band"
)

// Grid 逻辑像素网格，行优先，true 表示点亮
type Grid struct {
	Cols, Rows int
	cells      []bool
}

// NewGrid 创建全灭网格
func NewGrid(cols, rows int) *Grid {
	return &Grid{Cols: cols, Rows: rows, cells: make([]bool, cols*rows)}
}

// GridFromBytes 从网格帧（每格一字节，非零为亮）构建网格
func GridFromBytes(b []byte, cols, rows int) (*Grid, error) {
	if len(b) != cols*rows {
		return nil, fmt.Errorf("render: grid frame is %d bytes, want %d", len(b), cols*rows)
	}
	g := NewGrid(cols, rows)
	for i, v := range b {
		g.cells[i] = v != 0
	}
	return g, nil
}

// At 返回 (x, y) 是否点亮，越界视为不亮
func (g *Grid) At(x, y int) bool {
	if x < 0 || y < 0 || x >= g.Cols || y >= g.Rows {
		return false
	}
	return g.cells[y*g.Cols+x]
}

// Set 设置 (x, y)，越界忽略
func (g *Grid) Set(x, y int, on bool) {
	if x < 0 || y < 0 || x >= g.Cols || y >= g.Rows {
		return
	}
	g.cells[y*g.Cols+x] = on
}

// Clear 全部熄灭
func (g *Grid) Clear() {
	clear(g.cells)
}

// Lit 点亮格数
func (g *Grid) Lit() int {
	n := 0
	for _, c := range g.cells {
		if c {
			n++
		}
	}
	return n
}

// Bytes 编码为网格帧，每格一字节
func (g *Grid) Bytes() []byte {
	out := make([]byte, len(g.cells))
	for i, c := range g.cells {
		if c {
			out[i] = 1
		}
	}
	return out
}

// RenderBars 将 16 个频段渲染为柱状图：第 x 列点亮底部 bands[x] 格（不超过行数），
// 第 16 列之后保持熄灭
func RenderBars(bands band.Frame, cols, rows int) *Grid {
	g := NewGrid(cols, rows)
	for x := 0; x < cols && x < band.NumBands; x++ {
		h := min(int(bands[x]), rows)
		for r := 0; r < h; r++ {
			g.cells[(rows-1-r)*cols+x] = true
		}
	}
	return g
}
