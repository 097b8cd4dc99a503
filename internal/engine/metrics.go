package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	tasksSubmitted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_tasks_submitted_total",
			Help: "Total number of tasks accepted by the engine.",
		},
	)

	tasksCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_tasks_completed_total",
			Help: "Total number of tasks that reached a terminal status.",
		},
		[]string{"status"},
	)

	taskExecutionSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_task_execution_seconds",
			Help:    "Task execution time in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	tasksInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_tasks_inflight",
			Help: "Number of tasks currently executing.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_queue_depth",
			Help: "Number of accepted tasks waiting for a pool slot.",
		},
	)

	waitTimeouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_wait_timeouts_total",
			Help: "Total number of waits that gave up before the task finished.",
		},
	)

	callbackFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_callback_failures_total",
			Help: "Total number of completion callbacks that returned an error or panicked.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		tasksSubmitted,
		tasksCompleted,
		taskExecutionSeconds,
		tasksInflight,
		queueDepth,
		waitTimeouts,
		callbackFailures,
	)
}
