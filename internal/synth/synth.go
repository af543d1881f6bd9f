// Package synth 调试用信号源：无需上游即可驱动任一环节
package synth

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/taoyao-code/bee-spectrum/internal/band"
	"github.com/taoyao-code/bee-spectrum/internal/render"
)

// Mode 调试模式
type Mode string

const (
	ModeBars  Mode = "bars"
	ModeNoise Mode = "noise"
)

const (
	phaseStep   = 0.12
	columnPhase = 0.35
)

// ParseMode 解析 --debug 取值，空值视为 bars
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeBars:
		return ModeBars, nil
	case ModeNoise:
		return ModeNoise, nil
	}
	return "", fmt.Errorf("synth: unknown debug mode %q (want bars or noise)", s)
}

// BandSource 产生频段帧
type BandSource interface {
	Next() band.Frame
}

// GridSource 产生网格
type GridSource interface {
	Next() *render.Grid
}

// NewBandSource 按模式创建频段信号源；jitter 为 false 时正弦柱不抖动
func NewBandSource(mode Mode, rng *rand.Rand, jitter bool) BandSource {
	if mode == ModeNoise {
		return &Sparkle{rng: rng}
	}
	if !jitter {
		return &Sine{}
	}
	return &Sine{rng: rng}
}

// NewGridSource 按模式创建网格信号源（显示环节本地绘制）
func NewGridSource(mode Mode, cols, rows int, rng *rand.Rand) GridSource {
	if mode == ModeNoise {
		return &NoiseGrid{cols: cols, rows: rows, rng: rng}
	}
	return &SineGrid{cols: cols, rows: rows}
}

// NewSpectrumSource 按模式创建频谱环节的网格信号源
func NewSpectrumSource(mode Mode, cols, rows int, rng *rand.Rand) GridSource {
	if mode == ModeNoise {
		return &Scatter{cols: cols, rows: rows, rng: rng}
	}
	return &WalkBars{cols: cols, rows: rows, rng: rng}
}

// Sine 逐列错相的正弦柱，带 ±1 抖动；rng 为 nil 时不抖动
type Sine struct {
	rng   *rand.Rand
	phase float64
}

func (s *Sine) Next() band.Frame {
	var f band.Frame
	for x := range f {
		v := (math.Sin(s.phase+float64(x)*columnPhase) + 1) * 0.5
		n := int(math.Round(v * band.MaxValue))
		if s.rng != nil {
			n += s.rng.IntN(3) - 1
		}
		f[x] = band.Clamp(n)
	}
	s.phase += phaseStep
	return f
}

// Sparkle 每个频段一半概率取随机值，否则为 0
type Sparkle struct {
	rng *rand.Rand
}

func (s *Sparkle) Next() band.Frame {
	var f band.Frame
	for x := range f {
		if s.rng.IntN(2) == 1 {
			f[x] = uint8(s.rng.IntN(band.MaxValue + 1))
		}
	}
	return f
}

// SineGrid 直接在网格上绘制正弦柱，柱高按行数缩放
type SineGrid struct {
	cols, rows int
	t          float64
}

func (s *SineGrid) Next() *render.Grid {
	g := render.NewGrid(s.cols, s.rows)
	for x := 0; x < s.cols; x++ {
		v := (math.Sin(s.t+float64(x)*columnPhase) + 1) * 0.5
		h := min(max(int(math.Round(v*float64(s.rows))), 0), s.rows)
		for r := 0; r < h; r++ {
			g.Set(x, s.rows-1-r, true)
		}
	}
	s.t += phaseStep
	return g
}

// NoiseGrid 每格独立随机亮灭
type NoiseGrid struct {
	cols, rows int
	rng        *rand.Rand
}

func (n *NoiseGrid) Next() *render.Grid {
	g := render.NewGrid(n.cols, n.rows)
	for y := 0; y < n.rows; y++ {
		for x := 0; x < n.cols; x++ {
			g.Set(x, y, n.rng.IntN(2) == 1)
		}
	}
	return g
}

// walkResample 每隔几帧整体重新取值，其余帧做 ±1 随机游走
const walkResample = 3

// WalkBars 随机游走的柱高，取值 0..rows
type WalkBars struct {
	cols, rows int
	rng        *rand.Rand
	heights    band.Frame
	frame      int
}

func (w *WalkBars) Next() *render.Grid {
	for x := range w.heights {
		if w.frame%walkResample == 0 {
			w.heights[x] = uint8(w.rng.IntN(w.rows + 1))
			continue
		}
		h := int(w.heights[x]) + w.rng.IntN(3) - 1
		w.heights[x] = uint8(min(max(h, 0), w.rows))
	}
	w.frame++
	return render.RenderBars(w.heights, w.cols, w.rows)
}

// Scatter 每帧随机点亮 0..cols/2+1 个像素
type Scatter struct {
	cols, rows int
	rng        *rand.Rand
}

func (s *Scatter) Next() *render.Grid {
	g := render.NewGrid(s.cols, s.rows)
	n := s.rng.IntN(s.cols/2 + 2)
	for range n {
		g.Set(s.rng.IntN(s.cols), s.rng.IntN(s.rows), true)
	}
	return g
}

// NewRand 以时间无关的随机种子创建生成器
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
