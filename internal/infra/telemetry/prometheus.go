package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"docmcp/internal/domain"
)

type PrometheusMetrics struct {
	toolCallDuration   *prometheus.HistogramVec
	conversions        *prometheus.CounterVec
	conversionDuration *prometheus.HistogramVec
	engineCallDuration *prometheus.HistogramVec
	bridgeQueueDepth   prometheus.Gauge
	activeDocuments    prometheus.Gauge
}

func NewPrometheusMetrics(registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &PrometheusMetrics{
		toolCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docmcp_tool_call_duration_seconds",
				Help:    "Duration of dispatched tool calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"tool", "status"},
		),
		conversions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docmcp_conversions_total",
				Help: "Total number of conversion jobs by terminal state",
			},
			[]string{"format", "state"},
		),
		conversionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docmcp_conversion_duration_seconds",
				Help:    "Duration of conversion jobs in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"format"},
		),
		engineCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docmcp_engine_call_duration_seconds",
				Help:    "Duration of live engine automation calls in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"op", "status"},
		),
		bridgeQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "docmcp_bridge_queue_depth",
				Help: "Current number of submissions waiting on the bridge worker",
			},
		),
		activeDocuments: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "docmcp_active_documents",
				Help: "Current number of registered live document sessions",
			},
		),
	}
}

func (p *PrometheusMetrics) ObserveToolCall(tool string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.toolCallDuration.WithLabelValues(tool, status).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveConversion(format string, state domain.JobState, duration time.Duration) {
	p.conversions.WithLabelValues(format, string(state)).Inc()
	p.conversionDuration.WithLabelValues(format).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) ObserveEngineCall(op string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.engineCallDuration.WithLabelValues(op, status).Observe(duration.Seconds())
}

func (p *PrometheusMetrics) SetBridgeQueueDepth(depth int) {
	p.bridgeQueueDepth.Set(float64(depth))
}

func (p *PrometheusMetrics) SetActiveDocuments(count int) {
	p.activeDocuments.Set(float64(count))
}

var _ domain.Metrics = (*PrometheusMetrics)(nil)
