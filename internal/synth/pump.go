package synth

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/taoyao-code/bee-spectrum/internal/metrics"
	"github.com/taoyao-code/bee-spectrum/internal/relay"
)

// DefaultRetryDelay 下游不可用时的暂停时长
const DefaultRetryDelay = 250 * time.Millisecond

func limiter(fps int) *rate.Limiter {
	return rate.NewLimiter(rate.Limit(max(fps, 1)), 1)
}

// Pump 以 fps 节奏把 next() 产生的帧写入链路，直到 ctx 取消。
// 下游不可用时暂停 retryDelay 后再试，不消耗信号源。
func Pump(ctx context.Context, next func() []byte, link *relay.Link, fps int, retryDelay time.Duration) error {
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}
	lim := limiter(fps)
	for {
		if !link.EnsureConnected(ctx) {
			t := time.NewTimer(retryDelay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
			continue
		}
		link.Forward(next())
		if err := wait(ctx, lim); err != nil {
			return err
		}
	}
}

// Counted 每产生一帧计入 FramesReceived{source="synth"}；appm 为 nil 时原样返回
func Counted(next func() []byte, appm *metrics.AppMetrics) func() []byte {
	if appm == nil {
		return next
	}
	c := appm.FramesReceived.WithLabelValues("synth")
	return func() []byte {
		c.Inc()
		return next()
	}
}

// Loop 以 fps 节奏调用 tick，直到 ctx 取消
func Loop(ctx context.Context, fps int, tick func()) error {
	lim := limiter(fps)
	for {
		if err := wait(ctx, lim); err != nil {
			return err
		}
		tick()
	}
}

// wait 在截止时间早于下一个令牌时，Wait 会提前报错；此时等到 ctx 结束再返回其错误
func wait(ctx context.Context, lim *rate.Limiter) error {
	if err := lim.Wait(ctx); err != nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}
