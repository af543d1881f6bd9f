package health

import (
	"context"
	"time"

	"github.com/taoyao-code/bee-spectrum/internal/display"
	"github.com/taoyao-code/bee-spectrum/internal/relay"
)

// Listener 可报告监听状态的入口或回环服务
type Listener interface {
	Listening() bool
}

// ListenerChecker 入口监听检查：未监听即不健康
type ListenerChecker struct {
	name string
	l    Listener
}

// NewListenerChecker 创建监听检查器
func NewListenerChecker(name string, l Listener) *ListenerChecker {
	return &ListenerChecker{name: name, l: l}
}

func (c *ListenerChecker) Name() string { return c.name }

func (c *ListenerChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	if !c.l.Listening() {
		return result(start, StatusUnhealthy, "not listening", nil)
	}
	return result(start, StatusHealthy, "ok", nil)
}

// LinkChecker 下游链路检查：断开时降级，帧在此期间被丢弃
type LinkChecker struct {
	link *relay.Link
}

// NewLinkChecker 创建链路检查器
func NewLinkChecker(link *relay.Link) *LinkChecker {
	return &LinkChecker{link: link}
}

func (c *LinkChecker) Name() string { return "link:" + c.link.Name() }

func (c *LinkChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	details := map[string]any{
		"link":       c.link.Name(),
		"frame_size": c.link.FrameSize(),
	}
	if !c.link.Connected() {
		return result(start, StatusDegraded, "downstream unavailable, frames are dropped", details)
	}
	return result(start, StatusHealthy, "ok", details)
}

// DisplayChecker 面板检查：最近一次绘制失败即不健康
type DisplayChecker struct {
	engine *display.Engine
}

// NewDisplayChecker 创建面板检查器
func NewDisplayChecker(engine *display.Engine) *DisplayChecker {
	return &DisplayChecker{engine: engine}
}

func (c *DisplayChecker) Name() string { return "display" }

func (c *DisplayChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	st := c.engine.Stats()
	details := map[string]any{
		"draws":         st.Draws,
		"pages_written": st.PagesWritten,
		"pages_skipped": st.PagesSkipped,
		"errors":        st.Errors,
	}
	if err := c.engine.LastError(); err != nil {
		details["error"] = err.Error()
		return result(start, StatusUnhealthy, "last draw failed", details)
	}
	return result(start, StatusHealthy, "ok", details)
}
