package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "api_http_requests_total", Help: "HTTP requests"},
		[]string{"method", "path", "status"},
	)
	APIRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	TasksEnqueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "tasks_enqueued_total", Help: "Tasks enqueued, by type and whether they were delayed"},
		[]string{"type", "delayed"},
	)
	TasksPromoted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "tasks_promoted_total", Help: "Delayed tasks moved to the ready queue"},
	)

	WorkerTasksConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "worker_tasks_consumed_total", Help: "Tasks consumed"},
		[]string{"type"},
	)
	WorkerTaskRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "worker_task_retries_total", Help: "Retries scheduled"},
		[]string{"type"},
	)
	WorkerTaskEscalations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "worker_task_escalations_total", Help: "Terminal failures reported to the operator"},
		[]string{"type"},
	)
	WorkerProcessDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_task_process_duration_seconds",
			Help:    "Time spent processing a task",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	ListMembersAdded = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "list_members_added_total", Help: "Memberships committed after a platform update"},
	)
	ListMembersRemoved = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "list_members_removed_total", Help: "Memberships removed after a platform update"},
	)
	CheckpointsScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaign_checkpoints_total", Help: "Campaign checkpoints by outcome"},
		[]string{"state"},
	)
	StatsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "campaign_stats_reconciled_total", Help: "Stat refreshes by outcome"},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		APIRequestsTotal, APIRequestDuration, TasksEnqueued, TasksPromoted,
		WorkerTasksConsumed, WorkerTaskRetries, WorkerTaskEscalations, WorkerProcessDuration,
		ListMembersAdded, ListMembersRemoved, CheckpointsScheduled, StatsReconciled,
	)
}

func Handler() http.Handler { return promhttp.Handler() }
