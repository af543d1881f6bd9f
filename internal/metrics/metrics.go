package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry 创建自定义 Prometheus Registry，并注册常用采集器
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler 返回 Prometheus 指标 HTTP 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics 数据通路指标
type AppMetrics struct {
	TCPAccepted      prometheus.Counter
	TCPBytesReceived prometheus.Counter

	FramesReceived  *prometheus.CounterVec // labels: source=rfcomm|udp|tcp|synth
	FramesForwarded *prometheus.CounterVec // labels: link
	FramesDropped   *prometheus.CounterVec // labels: link, reason=disconnected|write|size
	LinkDials       *prometheus.CounterVec // labels: link, result=ok|error
	LinkConnected   *prometheus.GaugeVec   // labels: link

	IngressAccepted    *prometheus.CounterVec // labels: ingress
	IngressRejected    *prometheus.CounterVec // labels: ingress, reason
	ListenFailures     *prometheus.CounterVec // labels: ingress=rfcomm|udp|tcp
	DatagramsDiscarded prometheus.Counter

	DisplayDraws        prometheus.Counter
	DisplayPagesWritten prometheus.Counter
	DisplayPagesSkipped prometheus.Counter
	DisplayBusBytes     prometheus.Counter
	DisplayErrors       prometheus.Counter
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bee_tcp_accept_total",
			Help: "Total accepted loopback TCP connections.",
		}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bee_tcp_bytes_received_total",
			Help: "Total bytes received over loopback TCP.",
		}),
		FramesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bee_frames_received_total",
			Help: "Frames read from an upstream source.",
		}, []string{"source"}),
		FramesForwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bee_frames_forwarded_total",
			Help: "Frames fully written to a downstream relay link.",
		}, []string{"link"}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bee_frames_dropped_total",
			Help: "Frames dropped by a relay link.",
		}, []string{"link", "reason"}),
		LinkDials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bee_link_dial_total",
			Help: "Relay link connection attempts by result.",
		}, []string{"link", "result"}),
		LinkConnected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bee_link_connected",
			Help: "1 when the relay link is connected.",
		}, []string{"link"}),
		IngressAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bee_ingress_accepted_total",
			Help: "Clients admitted by an ingress listener.",
		}, []string{"ingress"}),
		IngressRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bee_ingress_rejected_total",
			Help: "Clients turned away by an ingress listener.",
		}, []string{"ingress", "reason"}),
		ListenFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bee_listen_failures_total",
			Help: "Failed attempts to open a listening endpoint.",
		}, []string{"ingress"}),
		DatagramsDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bee_datagrams_discarded_total",
			Help: "Datagrams discarded for having the wrong size.",
		}),
		DisplayDraws: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bee_display_draws_total",
			Help: "Framebuffer draw passes.",
		}),
		DisplayPagesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bee_display_pages_written_total",
			Help: "Display pages transmitted to the panel.",
		}),
		DisplayPagesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bee_display_pages_skipped_total",
			Help: "Display pages skipped because they were unchanged.",
		}),
		DisplayBusBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bee_display_bus_bytes_total",
			Help: "Pixel data bytes written to the panel bus.",
		}),
		DisplayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bee_display_errors_total",
			Help: "Draw passes aborted by a bus error.",
		}),
	}
	reg.MustRegister(
		m.TCPAccepted, m.TCPBytesReceived,
		m.FramesReceived, m.FramesForwarded, m.FramesDropped, m.LinkDials, m.LinkConnected,
		m.IngressAccepted, m.IngressRejected, m.ListenFailures, m.DatagramsDiscarded,
		m.DisplayDraws, m.DisplayPagesWritten, m.DisplayPagesSkipped, m.DisplayBusBytes, m.DisplayErrors,
	)
	return m
}
