// Package retention implements the two pruning algorithms the engine and
// scheduler apply after a successful snapshot run and on periodic history
// sweeps.
package retention

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/rsync-studio/syncengine/internal/domain"
)

// SnapshotsToDelete computes the keep-set union over a job's snapshots and
// returns the ids of those falling outside it. The most recent
// snapshot is always kept. Input order does not matter; the slice is copied
// and ordered newest-first before the period rules walk it.
func SnapshotsToDelete(snapshots []domain.SnapshotRecord, policy domain.RetentionPolicy) []uuid.UUID {
	if len(snapshots) == 0 {
		return nil
	}

	snapshots = append([]domain.SnapshotRecord(nil), snapshots...)
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].CreatedAt.After(snapshots[j].CreatedAt)
	})

	keep := make(map[uuid.UUID]struct{})
	keep[snapshots[0].ID] = struct{}{}

	keepByPeriod(snapshots, policy.KeepDaily, keep, func(t time.Time) any {
		y, m, d := t.UTC().Date()
		return [3]int{y, int(m), d}
	})
	keepByPeriod(snapshots, policy.KeepWeekly, keep, func(t time.Time) any {
		y, w := t.UTC().ISOWeek()
		return [2]int{y, w}
	})
	keepByPeriod(snapshots, policy.KeepMonthly, keep, func(t time.Time) any {
		y, m, _ := t.UTC().Date()
		return [2]int{y, int(m)}
	})

	var toDelete []uuid.UUID
	for _, s := range snapshots {
		if _, ok := keep[s.ID]; !ok {
			toDelete = append(toDelete, s.ID)
		}
	}
	return toDelete
}

// keepByPeriod marks the newest snapshot of each of the first maxPeriods
// distinct periods (by keyFn) as kept. snapshots must be sorted newest-first.
func keepByPeriod(snapshots []domain.SnapshotRecord, maxPeriods int, keep map[uuid.UUID]struct{}, keyFn func(time.Time) any) {
	var seen []any
	for _, s := range snapshots {
		period := keyFn(s.CreatedAt)

		found := false
		for _, p := range seen {
			if p == period {
				found = true
				break
			}
		}
		if !found {
			seen = append(seen, period)
			if len(seen) <= maxPeriods {
				keep[s.ID] = struct{}{}
			}
		}
	}
}
