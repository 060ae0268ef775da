package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sosrelay"

// Metrics 指标管理器，所有指标注册到独立的 Registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP请求指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 通知渠道指标
	notificationsTotal *prometheus.CounterVec
	fanOutDuration     *prometheus.HistogramVec

	// 限流指标
	rateLimitTotal *prometheus.CounterVec

	// 业务指标
	lifecycleTotal  *prometheus.CounterVec
	activeEvents    prometheus.Gauge
	connectedUsers  prometheus.Gauge
	liveConnections prometheus.Gauge
}

// NewMetrics 创建指标管理器，reg 为 nil 时新建
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Notification attempts by channel and result",
			},
			[]string{"channel", "result"},
		),

		fanOutDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fanout_duration_seconds",
				Help:      "Wall clock time of one notification fan-out",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 3, 5, 10},
			},
			[]string{"kind"},
		),

		rateLimitTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_total",
				Help:      "Rate limiter decisions by route",
			},
			[]string{"route", "result"},
		),

		lifecycleTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "lifecycle_operations_total",
				Help:      "SOS lifecycle operations by result",
			},
			[]string{"operation", "result"},
		),

		activeEvents: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_events",
			Help:      "SOS events currently in active status",
		}),

		connectedUsers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_users",
			Help:      "Users holding a registered live channel",
		}),

		liveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "live_connections",
			Help:      "Open websocket connections, registered or not",
		}),
	}
}

// RecordHTTPRequest 记录HTTP请求指标
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordSend 记录单次通知结果
func (m *Metrics) RecordSend(channel string, ok bool) {
	result := "sent"
	if !ok {
		result = "failed"
	}
	m.notificationsTotal.WithLabelValues(channel, result).Inc()
}

// ObserveFanOut 记录一次扇出的总耗时
func (m *Metrics) ObserveFanOut(kind string, d time.Duration) {
	m.fanOutDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// OnAllow 实现 middleware.MetricsObserver
func (m *Metrics) OnAllow(route string) {
	m.rateLimitTotal.WithLabelValues(route, "allow").Inc()
}

// OnDeny 实现 middleware.MetricsObserver
func (m *Metrics) OnDeny(route string) {
	m.rateLimitTotal.WithLabelValues(route, "deny").Inc()
}

// RecordLifecycle 记录业务操作结果
func (m *Metrics) RecordLifecycle(operation string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.lifecycleTotal.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) SetActiveEvents(n int)    { m.activeEvents.Set(float64(n)) }
func (m *Metrics) SetConnectedUsers(n int)  { m.connectedUsers.Set(float64(n)) }
func (m *Metrics) SetLiveConnections(n int) { m.liveConnections.Set(float64(n)) }

// Registry 暴露底层 registry，便于测试读取
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler Prometheus 抓取接口
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
