package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatistic is recorded only on Succeeded, non-dry-run invocations.
type RunStatistic struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	InvocationID uuid.UUID

	RecordedAt       time.Time
	FilesTransferred int64
	BytesTransferred int64
	DurationSecs     float64
	Speedup          *float64
}

// AggregatedStats summarizes a job's statistic history for dashboard-style
// consumers.
type AggregatedStats struct {
	Count            int
	TotalBytes       int64
	TotalFiles       int64
	AverageBytes     float64
	AverageDuration  float64
	AverageSpeedup   *float64
}

// Aggregate computes AggregatedStats over a job's recorded statistics. An
// empty input yields a zero-value result with Count == 0.
func Aggregate(stats []RunStatistic) AggregatedStats {
	var out AggregatedStats
	out.Count = len(stats)
	if out.Count == 0 {
		return out
	}

	var totalDuration float64
	var speedupSum float64
	var speedupCount int

	for _, s := range stats {
		out.TotalBytes += s.BytesTransferred
		out.TotalFiles += s.FilesTransferred
		totalDuration += s.DurationSecs
		if s.Speedup != nil {
			speedupSum += *s.Speedup
			speedupCount++
		}
	}

	out.AverageBytes = float64(out.TotalBytes) / float64(out.Count)
	out.AverageDuration = totalDuration / float64(out.Count)
	if speedupCount > 0 {
		avg := speedupSum / float64(speedupCount)
		out.AverageSpeedup = &avg
	}
	return out
}
