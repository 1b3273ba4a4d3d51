package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "actionlog"

const (
	ModeSingle = "single"
	ModeBulk   = "bulk"

	SinkTopic = "topic"
	SinkHub   = "hub"
)

// Metrics holds every collector the service exports.
type Metrics struct {
	registry *prometheus.Registry

	actionsIngested   *prometheus.CounterVec
	fanoutDeliveries  *prometheus.CounterVec
	fanoutFailures    *prometheus.CounterVec
	fanoutDropped     prometheus.Counter
	requestDuration   *prometheus.HistogramVec
	realtimeClients   prometheus.Gauge
	rateLimitRejected *prometheus.CounterVec
}

// New builds the collectors on a private registry, so several instances can
// coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		actionsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_ingested_total",
			Help:      "Actions durably stored, by submission mode.",
		}, []string{"mode"}),
		fanoutDeliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_deliveries_total",
			Help:      "Successful fanout deliveries, by sink.",
		}, []string{"sink"}),
		fanoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_failures_total",
			Help:      "Failed fanout deliveries, by sink.",
		}, []string{"sink"}),
		fanoutDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fanout_dropped_total",
			Help:      "Events dropped because the fanout queue was full.",
		}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		realtimeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_clients",
			Help:      "Connected realtime subscribers.",
		}),
		rateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejected_total",
			Help:      "Requests rejected by a rate limiter.",
		}, []string{"limiter"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.actionsIngested,
		m.fanoutDeliveries,
		m.fanoutFailures,
		m.fanoutDropped,
		m.requestDuration,
		m.realtimeClients,
		m.rateLimitRejected,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ActionsIngested(mode string, n int) {
	m.actionsIngested.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) FanoutDelivered(sink string) {
	m.fanoutDeliveries.WithLabelValues(sink).Inc()
}

func (m *Metrics) FanoutFailed(sink string) {
	m.fanoutFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) FanoutDropped() {
	m.fanoutDropped.Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	m.requestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) SetRealtimeClients(n int) {
	m.realtimeClients.Set(float64(n))
}

func (m *Metrics) RateLimited(limiter string) {
	m.rateLimitRejected.WithLabelValues(limiter).Inc()
}
