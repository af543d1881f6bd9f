package app

import (
	"github.com/prometheus/client_golang/prometheus"

	cfgpkg "github.com/taoyao-code/bee-spectrum/internal/config"
	"github.com/taoyao-code/bee-spectrum/internal/health"
	"github.com/taoyao-code/bee-spectrum/internal/httpserver"
	"github.com/taoyao-code/bee-spectrum/internal/metrics"
)

// NewHTTPServer 按阶段创建探针/指标 HTTP 服务；未启用或该阶段无地址时返回 nil
func NewHTTPServer(cfg *cfgpkg.Config, stage string, reg *prometheus.Registry, agg *health.Aggregator) *httpserver.Server {
	addr := cfg.HTTP.Addr(stage)
	if !cfg.HTTP.Enable || addr == "" {
		return nil
	}
	mh := metrics.Handler(reg)
	if !cfg.Metrics.Enable {
		mh = nil
	}
	return httpserver.New(cfg.HTTP, addr, cfg.Metrics.Path, mh, agg)
}
