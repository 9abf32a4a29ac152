package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/hookline/hookline/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Dispatch metrics

	WebhookDispatchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hookline",
		Name:      "webhook_dispatch_duration_seconds",
		Help:      "Duration of one webhook dispatch attempt sequence.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	WebhookDispatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hookline",
		Name:      "webhook_dispatches_total",
		Help:      "Total dispatch attempt sequences, by outcome and trigger source.",
	}, []string{"outcome", "trigger"})

	WebhookRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hookline",
		Name:      "webhook_retries_total",
		Help:      "Total extra dispatch attempts made by the retry policy.",
	})

	// Scheduler metrics

	TimersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hookline",
		Name:      "scheduler_timers_active",
		Help:      "Number of live timers held by the timer registry.",
	})

	SchedulesRecovered = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hookline",
		Name:      "scheduler_schedules_recovered_total",
		Help:      "Schedules re-armed during process-start recovery.",
	})

	LogWriteFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "hookline",
		Name:      "execution_log_write_failures_total",
		Help:      "Execution log or schedule-state writes that failed and were swallowed.",
	})

	// Notification metrics

	SSESubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "hookline",
		Name:      "sse_subscribers",
		Help:      "Currently connected live-event subscribers.",
	})

	// HTTP metrics

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "hookline",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "hookline",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		WebhookDispatchDuration,
		WebhookDispatchesTotal,
		WebhookRetriesTotal,
		TimersActive,
		SchedulesRecovered,
		LogWriteFailuresTotal,
		SSESubscribers,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer serves /metrics plus liveness/readiness probes on its own port.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		writeHealth(w, checker.Readiness(r.Context()))
	})
	return &http.Server{Addr: addr, Handler: mux}
}

func writeHealth(w http.ResponseWriter, result health.Result) {
	w.Header().Set("Content-Type", "application/json")
	if result.Status != "up" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(result)
}
