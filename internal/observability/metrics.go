package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics stores Prometheus collectors used by API and worker flows.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal     *prometheus.CounterVec
	httpRequestDuration   *prometheus.HistogramVec
	dispatchesSentTotal   *prometheus.CounterVec
	dispatchesFailedTotal *prometheus.CounterVec
	dispatchesRequeued    *prometheus.CounterVec
	dispatchSendDuration  *prometheus.HistogramVec
	dispatchInflight      *prometheus.GaugeVec
	workflowTransitions   *prometheus.CounterVec
	remindersTotal        prometheus.Counter
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "visitflow",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "visitflow",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		dispatchesSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "visitflow",
				Name:      "dispatches_sent_total",
				Help:      "Total number of notification dispatches delivered successfully.",
			},
			[]string{"channel", "provider"},
		),
		dispatchesFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "visitflow",
				Name:      "dispatches_failed_total",
				Help:      "Total number of notification dispatches that ended in failed state.",
			},
			[]string{"channel", "reason"},
		),
		dispatchesRequeued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "visitflow",
				Name:      "dispatches_requeued_total",
				Help:      "Total number of dispatches returned to the queue after a transient failure.",
			},
			[]string{"channel"},
		),
		dispatchSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "visitflow",
				Name:      "dispatch_send_duration_seconds",
				Help:      "Provider send duration in seconds grouped by channel.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"channel"},
		),
		dispatchInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "visitflow",
				Name:      "dispatch_inflight",
				Help:      "Current number of in-flight dispatch sends grouped by channel.",
			},
			[]string{"channel"},
		),
		workflowTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "visitflow",
				Name:      "workflow_transitions_total",
				Help:      "Total number of entry request status transitions by resulting status.",
			},
			[]string{"status"},
		),
		remindersTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "visitflow",
				Name:      "pending_reminders_total",
				Help:      "Total number of stage one pending reminders emitted.",
			},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.dispatchesSentTotal,
		m.dispatchesFailedTotal,
		m.dispatchesRequeued,
		m.dispatchSendDuration,
		m.dispatchInflight,
		m.workflowTransitions,
		m.remindersTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncDispatchSent(channel string, provider string) {
	if m == nil {
		return
	}
	providerLabel := strings.TrimSpace(strings.ToLower(provider))
	if providerLabel == "" {
		providerLabel = "unknown"
	}
	m.dispatchesSentTotal.WithLabelValues(normalizeChannel(channel), providerLabel).Inc()
}

func (m *Metrics) IncDispatchFailed(channel string, reason string) {
	if m == nil {
		return
	}
	reasonLabel := strings.TrimSpace(strings.ToLower(reason))
	if reasonLabel == "" {
		reasonLabel = "unknown"
	}
	m.dispatchesFailedTotal.WithLabelValues(normalizeChannel(channel), reasonLabel).Inc()
}

func (m *Metrics) IncDispatchRequeued(channel string) {
	if m == nil {
		return
	}
	m.dispatchesRequeued.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) ObserveDispatchSendDuration(channel string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.dispatchSendDuration.WithLabelValues(normalizeChannel(channel)).Observe(seconds)
}

func (m *Metrics) IncDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeChannel(channel)).Inc()
}

func (m *Metrics) DecDispatchInFlight(channel string) {
	if m == nil {
		return
	}
	m.dispatchInflight.WithLabelValues(normalizeChannel(channel)).Dec()
}

func (m *Metrics) IncWorkflowTransition(status string) {
	if m == nil {
		return
	}
	statusLabel := strings.TrimSpace(strings.ToLower(status))
	if statusLabel == "" {
		statusLabel = "unknown"
	}
	m.workflowTransitions.WithLabelValues(statusLabel).Inc()
}

func (m *Metrics) IncPendingReminder() {
	if m == nil {
		return
	}
	m.remindersTotal.Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeChannel(channel string) string {
	normalized := strings.ToLower(strings.TrimSpace(channel))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
