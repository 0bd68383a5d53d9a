package retention

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// HistoryConfig bounds how much invocation history survives a sweep.
type HistoryConfig struct {
	MaxAgeDays int
	MaxPerJob  int
}

// PrunedInvocation names one invocation marked for deletion, carrying its
// log file path (if any) so the runner can remove the file before the row.
type PrunedInvocation struct {
	InvocationID uuid.UUID
	LogFilePath  *string
}

// InvocationsToPrune applies the two independent sweep rules — age-based and
// count-based — and returns their union. Running invocations are never
// pruned.
func InvocationsToPrune(invocations []domain.Invocation, cfg HistoryConfig, now time.Time) []PrunedInvocation {
	cutoff := now.AddDate(0, 0, -cfg.MaxAgeDays)

	marked := make(map[uuid.UUID]struct{})
	var pruned []PrunedInvocation

	mark := func(inv domain.Invocation) {
		if _, ok := marked[inv.ID]; ok {
			return
		}
		marked[inv.ID] = struct{}{}
		pruned = append(pruned, PrunedInvocation{
			InvocationID: inv.ID,
			LogFilePath:  inv.Output.LogFilePath,
		})
	}

	for _, inv := range invocations {
		if inv.Status == domain.StatusRunning {
			continue
		}
		if inv.StartedAt.Before(cutoff) {
			mark(inv)
		}
	}

	byJob := make(map[uuid.UUID][]domain.Invocation)
	for _, inv := range invocations {
		if inv.Status == domain.StatusRunning {
			continue
		}
		byJob[inv.JobID] = append(byJob[inv.JobID], inv)
	}

	for _, group := range byJob {
		sort.Slice(group, func(i, j int) bool {
			return group[i].StartedAt.After(group[j].StartedAt)
		})
		if len(group) > cfg.MaxPerJob {
			for _, inv := range group[cfg.MaxPerJob:] {
				mark(inv)
			}
		}
	}

	return pruned
}
