package app

import (
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
	"github.com/taoyao-code/bee-spectrum/internal/metrics"
	"github.com/taoyao-code/bee-spectrum/internal/relay"
	"github.com/taoyao-code/bee-spectrum/internal/tcpserver"
)

// NewLoopbackServer 创建回环端口上的单客户端服务，并接入 TCP 指标
func NewLoopbackServer(cfg *cfgpkg.Config, port int, log *zap.Logger, appm *metrics.AppMetrics) *tcpserver.Server {
	srv := tcpserver.New(tcpserver.Config{
		Addr:       cfg.LoopbackAddr(port),
		RetryDelay: cfg.Relay.ListenRetryDelay,
	}, log)
	if appm != nil {
		srv.SetMetricsCallbacks(
			func() { appm.TCPAccepted.Inc() },
			func(n int) { appm.TCPBytesReceived.Add(float64(n)) },
		)
		failures := appm.ListenFailures.WithLabelValues("tcp")
		srv.SetListenFailureCallback(failures.Inc)
	}
	return srv
}

// NewLink 创建指向下游回环端口的转发链路
func NewLink(cfg *cfgpkg.Config, name string, port, frameSize int, log *zap.Logger, appm *metrics.AppMetrics) *relay.Link {
	return relay.New(name,
		relay.TCPDialer(cfg.LoopbackAddr(port), cfg.Relay.DialTimeout),
		frameSize,
		relay.WithLogger(log),
		relay.WithMetrics(appm),
		relay.WithWriteTimeout(cfg.Relay.WriteTimeout),
	)
}
