// Package metrics exposes the engine's prometheus instrumentation: counters
// and histograms for invocations, transferred bytes, and scheduler activity.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// InvocationsTotal counts completed invocations by job id and terminal
	// status ("succeeded", "failed", "cancelled").
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_invocations_total",
			Help: "Total number of completed job invocations",
		},
		[]string{"job_id", "status"},
	)

	// InvocationDuration tracks how long invocations take from start to
	// terminal status.
	InvocationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "syncengine_invocation_duration_seconds",
			Help:    "Invocation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14), // 1s to 8192s (~2.3 hours)
		},
		[]string{"job_id", "status"},
	)

	// BytesTransferredTotal accumulates rsync's sent-byte totals per job.
	BytesTransferredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_bytes_transferred_total",
			Help: "Total bytes transferred by completed invocations",
		},
		[]string{"job_id"},
	)

	// ActiveInvocations tracks how many invocations are currently running.
	ActiveInvocations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "syncengine_active_invocations",
			Help: "Number of invocations currently running",
		},
	)

	// SchedulerTicksTotal counts completed scheduler ticks.
	SchedulerTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "syncengine_scheduler_ticks_total",
			Help: "Total number of scheduler dispatch ticks executed",
		},
	)

	// PreflightChecksTotal counts preflight checks by type and outcome.
	PreflightChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_preflight_checks_total",
			Help: "Total number of preflight checks run",
		},
		[]string{"check_type", "passed"},
	)

	// SnapshotsPrunedTotal counts snapshots removed by retention.
	SnapshotsPrunedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "syncengine_snapshots_pruned_total",
			Help: "Total number of snapshots removed by retention",
		},
		[]string{"job_id"},
	)
)

// RecordInvocation records a terminal invocation's status, duration, and
// transferred bytes.
func RecordInvocation(jobID, status string, duration time.Duration, bytesTransferred int64) {
	InvocationsTotal.WithLabelValues(jobID, status).Inc()
	InvocationDuration.WithLabelValues(jobID, status).Observe(duration.Seconds())
	if bytesTransferred > 0 {
		BytesTransferredTotal.WithLabelValues(jobID).Add(float64(bytesTransferred))
	}
}

// UpdateActiveInvocations sets the current in-flight invocation count.
func UpdateActiveInvocations(n int) {
	ActiveInvocations.Set(float64(n))
}

// RecordSchedulerTick increments the scheduler tick counter.
func RecordSchedulerTick() {
	SchedulerTicksTotal.Inc()
}

// RecordPreflightCheck records one preflight check's outcome.
func RecordPreflightCheck(checkType string, passed bool) {
	PreflightChecksTotal.WithLabelValues(checkType, boolLabel(passed)).Inc()
}

// RecordSnapshotsPruned records how many snapshots were pruned for a job in
// one retention pass.
func RecordSnapshotsPruned(jobID string, count int) {
	if count <= 0 {
		return
	}
	SnapshotsPrunedTotal.WithLabelValues(jobID).Add(float64(count))
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
