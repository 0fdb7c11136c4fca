package notify

import "github.com/prometheus/client_golang/prometheus"

var (
	scanRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_scan_runs_total",
			Help: "Due-date scan runs by outcome",
		},
		[]string{"outcome"},
	)

	scanTaskFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_scan_task_failures_total",
			Help: "Tasks that failed processing during a due-date scan",
		},
	)

	notificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_notifications_created_total",
			Help: "Notifications created by the due-date scan",
		},
		[]string{"type"},
	)

	notificationsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_notifications_delivered_total",
			Help: "Notification emails by delivery outcome",
		},
		[]string{"outcome"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "notify_job_duration_seconds",
			Help: "Duration of scheduled job runs",
		},
		[]string{"job"},
	)

	jobSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_job_skipped_total",
			Help: "Scheduled job triggers skipped because the previous run was still in progress",
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(scanRuns)
	prometheus.MustRegister(scanTaskFailures)
	prometheus.MustRegister(notificationsCreated)
	prometheus.MustRegister(notificationsDelivered)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(jobSkipped)
}
