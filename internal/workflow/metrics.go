package workflow

import "github.com/prometheus/client_golang/prometheus"

var (
	workflowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_workflows_total",
			Help: "Total number of finished workflow runs.",
		},
		[]string{"status"},
	)

	workflowDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_workflow_duration_seconds",
			Help:    "Workflow run duration in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(workflowsTotal, workflowDuration)
}
