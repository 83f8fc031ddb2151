// Package metrics provides Prometheus metrics for the mill workers.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the worker-side Prometheus metrics. The value is passed
// explicitly into the worker manager; there is no settable global.
type Metrics struct {
	TasksCompleted    *prometheus.CounterVec
	TasksFailed       *prometheus.CounterVec
	TasksDeadLettered *prometheus.CounterVec
	TaskDuration      *prometheus.HistogramVec

	WorkersBusy prometheus.Gauge
	EmptyTakes  prometheus.Counter
	QueueErrors prometheus.Counter
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // metrics HTTP server address, e.g. ":9090"
}

// New registers and returns the metric set under the given namespace.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "mill"
	}
	return &Metrics{
		TasksCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_completed_total",
				Help:      "Tasks that reached a terminal success state",
			},
			[]string{"task_type"},
		),
		TasksFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_failed_total",
				Help:      "Task attempts that failed and were requeued",
			},
			[]string{"task_type"},
		),
		TasksDeadLettered: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_dead_lettered_total",
				Help:      "Tasks dropped for non-retryable configuration failures",
			},
			[]string{"task_type"},
		),
		TaskDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_duration_seconds",
				Help:      "Wall-clock duration of one task attempt",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
			},
			[]string{"task_type"},
		),
		WorkersBusy: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "workers_busy",
				Help:      "Workers currently processing a task",
			},
		),
		EmptyTakes: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_empty_takes_total",
				Help:      "Queue receives that returned no task",
			},
		),
		QueueErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "queue_errors_total",
				Help:      "Errors talking to the task queue",
			},
		),
	}
}

// StartServer starts an HTTP server for Prometheus scraping. Blocks until
// the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}
