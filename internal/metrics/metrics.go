// Package metrics exposes Prometheus metrics for the billing engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "vocalis"

// Metrics holds every collector on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	subscribers       prometheus.Gauge
	broadcastsTotal   *prometheus.CounterVec
	deliveriesTotal   *prometheus.CounterVec
	providerCalls     *prometheus.CounterVec
	providerDuration  *prometheus.HistogramVec
	webhooksTotal     *prometheus.CounterVec
	tasksTotal        *prometheus.CounterVec
	taskDuration      *prometheus.HistogramVec
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// New creates and registers all collectors.
func New(version, commit string) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "notification_subscribers",
			Help:      "Number of open notification streams",
		}),
		broadcastsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_broadcasts_total",
			Help:      "Broadcasts by event type",
		}, []string{"type"}),
		deliveriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_deliveries_total",
			Help:      "Per-subscriber delivery attempts by result",
		}, []string{"result"}), // "delivered", "dropped"
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Billing provider calls by operation and outcome",
		}, []string{"op", "outcome"}),
		providerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Billing provider call latency",
			Buckets:   prometheus.ExponentialBuckets(0.025, 2, 11), // 25ms to ~25s
		}, []string{"op"}),
		webhooksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhooks_total",
			Help:      "Inbound provider webhooks by type and result",
		}, []string{"type", "result"}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "background_tasks_total",
			Help:      "Background tasks by name and status",
		}, []string{"task", "status"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "background_task_duration_seconds",
			Help:      "Background task run time",
			Buckets:   prometheus.DefBuckets,
		}, []string{"task"}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "Build information",
	}, []string{"version", "commit"})
	info.WithLabelValues(version, commit).Set(1)

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		info,
		m.subscribers,
		m.broadcastsTotal,
		m.deliveriesTotal,
		m.providerCalls,
		m.providerDuration,
		m.webhooksTotal,
		m.tasksTotal,
		m.taskDuration,
		m.httpRequestsTotal,
		m.httpDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// SetSubscribers implements notify.Metrics.
func (m *Metrics) SetSubscribers(n int) {
	m.subscribers.Set(float64(n))
}

// ObserveBroadcast implements notify.Metrics.
func (m *Metrics) ObserveBroadcast(eventType string, delivered, dropped int) {
	m.broadcastsTotal.WithLabelValues(eventType).Inc()
	m.deliveriesTotal.WithLabelValues("delivered").Add(float64(delivered))
	m.deliveriesTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// ObserveProviderCall implements metronome.CallObserver.
func (m *Metrics) ObserveProviderCall(op, outcome string, d time.Duration) {
	m.providerCalls.WithLabelValues(op, outcome).Inc()
	m.providerDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveTask implements worker.TaskObserver.
func (m *Metrics) ObserveTask(name string, err error, d time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.tasksTotal.WithLabelValues(name, status).Inc()
	m.taskDuration.WithLabelValues(name).Observe(d.Seconds())
}

// ObserveWebhook counts an inbound webhook. result is "processed",
// "ignored", "error", "invalid" or "unauthorized".
func (m *Metrics) ObserveWebhook(eventType, result string) {
	if eventType == "" {
		eventType = "unknown"
	}
	m.webhooksTotal.WithLabelValues(eventType, result).Inc()
}

// Middleware records request counts and latency by chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
