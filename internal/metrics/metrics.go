package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "studentize"

// Metrics is nil-safe: every Record method is a no-op on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	WorkflowStarts     *prometheus.CounterVec
	BotDispatches      *prometheus.CounterVec
	SummariesTotal     *prometheus.CounterVec
	SignalingRequests  *prometheus.CounterVec
	StaleSessionsSwept prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "route"},
	)
	workflowStarts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_starts_total",
			Help:      "Workflow start requests by workflow and result",
		},
		[]string{"workflow", "result"},
	)
	botDispatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_dispatches_total",
			Help:      "Meeting bot dispatches by provider and result",
		},
		[]string{"provider", "result"},
	)
	summariesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Session summaries generated by result",
		},
		[]string{"result"},
	)
	signalingRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signaling_requests_total",
			Help:      "Realtime SDP exchanges by advisor persona and upstream status",
		},
		[]string{"advisor", "status"},
	)
	staleSessionsSwept := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_scheduled_sessions_swept_total",
			Help:      "Scheduled sessions marked ended by the sweeper",
		},
	)

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestsTotal,
		requestDuration,
		workflowStarts,
		botDispatches,
		summariesTotal,
		signalingRequests,
		staleSessionsSwept,
	)

	return &Metrics{
		registry:           registry,
		RequestsTotal:      requestsTotal,
		RequestDuration:    requestDuration,
		WorkflowStarts:     workflowStarts,
		BotDispatches:      botDispatches,
		SummariesTotal:     summariesTotal,
		SignalingRequests:  signalingRequests,
		StaleSessionsSwept: staleSessionsSwept,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, status).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (m *Metrics) RecordWorkflowStart(workflow string, err error) {
	if m == nil {
		return
	}
	m.WorkflowStarts.WithLabelValues(workflow, result(err)).Inc()
}

func (m *Metrics) RecordBotDispatch(provider string, err error) {
	if m == nil {
		return
	}
	if provider == "" {
		provider = "unknown"
	}
	m.BotDispatches.WithLabelValues(provider, result(err)).Inc()
}

func (m *Metrics) RecordSummary(err error) {
	if m == nil {
		return
	}
	m.SummariesTotal.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) RecordSignaling(advisor string, status int) {
	if m == nil {
		return
	}
	m.SignalingRequests.WithLabelValues(advisor, statusClass(status)).Inc()
}

func (m *Metrics) RecordStaleSessionsSwept(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.StaleSessionsSwept.Add(float64(n))
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 200 && status < 300:
		return "2xx"
	default:
		return "other"
	}
}
