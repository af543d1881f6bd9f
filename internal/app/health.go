package app

import (
	"github.com/taoyao-code/bee-spectrum/internal/health"
	"github.com/taoyao-code/bee-spectrum/internal/relay"
)

// NewHealthAggregator 创建健康检查聚合器，下游链路总是纳入检查
func NewHealthAggregator(links ...*relay.Link) *health.Aggregator {
	agg := health.NewAggregator()
	for _, l := range links {
		agg.AddChecker(health.NewLinkChecker(l))
	}
	return agg
}

// AddListenerChecker 将入口监听状态纳入检查
func AddListenerChecker(agg *health.Aggregator, name string, l health.Listener) {
	agg.AddChecker(health.NewListenerChecker(name, l))
}
