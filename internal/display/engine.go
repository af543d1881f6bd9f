package display

import (
	"bytes"
	"fmt"
	"sync/atomic"

	"github.com/taoyao-code/bee-spectrum/internal/metrics"
	"github.com/taoyao-code/bee-spectrum/internal/render"
)

// DefaultChunkSize 单次数据写入的最大字节数，避免超长总线突发
const DefaultChunkSize = 64

// Bus 面板总线原语
type Bus interface {
	SelectPage(p int) error
	SetColumn(c int) error
	WriteChunk(b []byte) error
}

// Stats 同步引擎统计
type Stats struct {
	Draws        uint64 `json:"draws"`
	PagesWritten uint64 `json:"pages_written"`
	PagesSkipped uint64 `json:"pages_skipped"`
	BytesWritten uint64 `json:"bytes_written"`
	Errors       uint64 `json:"errors"`
}

// Engine 脏页同步：仅重传与上次写入内容不同的页
type Engine struct {
	bus       Bus
	width     int
	height    int
	chunkSize int

	prev      []byte // 最近一次成功写入硬件的内容
	firstDraw bool

	metrics *metrics.AppMetrics
	lastErr atomic.Value // error 包装，供健康检查读取

	draws, written, skipped, bytesOut, errs atomic.Uint64
}

// EngineOption 引擎可选参数
type EngineOption func(*Engine)

// WithChunkSize 设置分块大小
func WithChunkSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithMetrics 设置指标
func WithMetrics(m *metrics.AppMetrics) EngineOption { return func(e *Engine) { e.metrics = m } }

// NewEngine 创建引擎：缓存初始化为全零，首次绘制强制全屏刷新
func NewEngine(bus Bus, width, height int, opts ...EngineOption) (*Engine, error) {
	if width <= 0 || height <= 0 || width%8 != 0 || height%8 != 0 {
		return nil, fmt.Errorf("%w: %dx%d", render.ErrPanelSize, width, height)
	}
	e := &Engine{
		bus:       bus,
		width:     width,
		height:    height,
		chunkSize: DefaultChunkSize,
		prev:      make([]byte, width*height/8),
		firstDraw: true,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

type drawErr struct{ err error }

// Draw 将帧缓冲同步到面板。
// 总线错误时中止本次绘制，该页缓存不更新，并重新要求全屏刷新以恢复面板与缓存一致。
func (e *Engine) Draw(fb *render.FrameBuffer) error {
	if fb.Width != e.width || fb.Height != e.height {
		return fmt.Errorf("display: framebuffer %dx%d does not match panel %dx%d", fb.Width, fb.Height, e.width, e.height)
	}
	e.draws.Add(1)
	if e.metrics != nil {
		e.metrics.DisplayDraws.Inc()
	}

	for p := 0; p < e.height/8; p++ {
		src := fb.Page(p)
		dst := e.prev[p*e.width : (p+1)*e.width]
		if !e.firstDraw && bytes.Equal(src, dst) {
			e.skipped.Add(1)
			if e.metrics != nil {
				e.metrics.DisplayPagesSkipped.Inc()
			}
			continue
		}
		if err := e.writePage(p, src); err != nil {
			e.firstDraw = true
			e.errs.Add(1)
			e.lastErr.Store(drawErr{err})
			if e.metrics != nil {
				e.metrics.DisplayErrors.Inc()
			}
			return fmt.Errorf("display: page %d: %w", p, err)
		}
		copy(dst, src)
		e.written.Add(1)
		if e.metrics != nil {
			e.metrics.DisplayPagesWritten.Inc()
		}
	}
	e.firstDraw = false
	e.lastErr.Store(drawErr{})
	return nil
}

func (e *Engine) writePage(p int, data []byte) error {
	if err := e.bus.SelectPage(p); err != nil {
		return err
	}
	if err := e.bus.SetColumn(0); err != nil {
		return err
	}
	for i := 0; i < len(data); i += e.chunkSize {
		end := min(i+e.chunkSize, len(data))
		if err := e.bus.WriteChunk(data[i:end]); err != nil {
			return err
		}
		e.bytesOut.Add(uint64(end - i))
		if e.metrics != nil {
			e.metrics.DisplayBusBytes.Add(float64(end - i))
		}
	}
	return nil
}

// Invalidate 要求下一次绘制全屏刷新
func (e *Engine) Invalidate() { e.firstDraw = true }

// LastError 最近一次绘制的错误，成功为 nil
func (e *Engine) LastError() error {
	v, _ := e.lastErr.Load().(drawErr)
	return v.err
}

// Stats 返回统计快照
func (e *Engine) Stats() Stats {
	return Stats{
		Draws:        e.draws.Load(),
		PagesWritten: e.written.Load(),
		PagesSkipped: e.skipped.Load(),
		BytesWritten: e.bytesOut.Load(),
		Errors:       e.errs.Load(),
	}
}
