package metrics

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taoyao-code/v93xx-probe/internal/protocol/v93xx"
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

// AppMetrics 自定义业务指标
type AppMetrics struct {
	TCPAccepted      prometheus.Counter
	TCPBytesReceived prometheus.Counter
	TCPRejected      *prometheus.CounterVec // labels: reason=limit|rate

	FramesTotal   *prometheus.CounterVec // labels: kind, verdict
	OutcomesTotal *prometheus.CounterVec // labels: outcome
	NoiseBytes    prometheus.Counter
	DroppedFrames *prometheus.CounterVec // labels: reason
	StreamsActive prometheus.Gauge       // 当前正在分析的流
	StreamsHalted prometheus.Counter     // Strict 模式下中止的流
}

// NewAppMetrics 注册并返回业务指标
func NewAppMetrics(reg *prometheus.Registry) *AppMetrics {
	m := &AppMetrics{
		TCPAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_accept_total",
			Help: "Total accepted TCP connections.",
		}),
		TCPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tcp_bytes_received_total",
			Help: "Total bytes received over TCP.",
		}),
		TCPRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tcp_rejected_total",
			Help: "TCP connections rejected before analysis.",
		}, []string{"reason"}),
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_frames_total",
			Help: "Classified frames by kind and checksum verdict.",
		}, []string{"kind", "verdict"}),
		OutcomesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_outcomes_total",
			Help: "Policy outcomes for checked frames.",
		}, []string{"outcome"}),
		NoiseBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "probe_noise_bytes_total",
			Help: "Bytes that could not be attributed to any frame.",
		}),
		DroppedFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_dropped_frames_total",
			Help: "Segmented frames that failed to decode.",
		}, []string{"reason"}),
		StreamsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "probe_streams_active",
			Help: "Streams currently being analyzed.",
		}),
		StreamsHalted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "probe_streams_halted_total",
			Help: "Streams halted by a strict-mode checksum mismatch.",
		}),
	}
	reg.MustRegister(
		m.TCPAccepted, m.TCPBytesReceived, m.TCPRejected,
		m.FramesTotal, m.OutcomesTotal, m.NoiseBytes, m.DroppedFrames,
		m.StreamsActive, m.StreamsHalted,
	)
	return m
}

// ObserveRecord 按记录类型累加计数；噪声字节由 ObserveNoise 统计，m 为 nil 时忽略
func (m *AppMetrics) ObserveRecord(r *v93xx.Record) {
	if m == nil {
		return
	}
	switch r.Kind {
	case v93xx.KindNoise:
	case v93xx.KindDropped:
		m.DroppedFrames.WithLabelValues(droppedReason(r.Err)).Inc()
	default:
		m.FramesTotal.WithLabelValues(r.Kind.String(), r.Verdict.String()).Inc()
		m.OutcomesTotal.WithLabelValues(r.Outcome.String()).Inc()
	}
}

// ObserveNoise 噪声记录默认不输出，按统计增量计数
func (m *AppMetrics) ObserveNoise(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.NoiseBytes.Add(float64(n))
}

func droppedReason(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, v93xx.ErrInvalidHeader):
		return "invalid_header"
	case errors.Is(err, v93xx.ErrShortBuffer):
		return "short_buffer"
	case errors.Is(err, v93xx.ErrBadLength):
		return "bad_length"
	default:
		return "other"
	}
}
