package scheduler

import (
	"testing"
	"time"

	"github.com/rsync-studio/syncengine/internal/domain"
)

func intervalSchedule(minutes int, enabled bool) domain.Schedule {
	return domain.NewIntervalSchedule(minutes, enabled)
}

func cronSchedule(expr string, enabled bool) domain.Schedule {
	return domain.NewCronSchedule(expr, enabled)
}

func TestIsDue_IntervalNeverRunIsDue(t *testing.T) {
	sched := intervalSchedule(30, true)
	if !IsDue(sched, time.Time{}, false, time.Now()) {
		t.Fatal("expected due: schedule has never run")
	}
}

func TestIsDue_IntervalElapsedIsDue(t *testing.T) {
	sched := intervalSchedule(30, true)
	now := time.Now()
	last := now.Add(-31 * time.Minute)
	if !IsDue(sched, last, true, now) {
		t.Fatal("expected due: interval elapsed")
	}
}

func TestIsDue_IntervalNotElapsedNotDue(t *testing.T) {
	sched := intervalSchedule(30, true)
	now := time.Now()
	last := now.Add(-10 * time.Minute)
	if IsDue(sched, last, true, now) {
		t.Fatal("expected not due: interval not elapsed")
	}
}

func TestIsDue_IntervalExactBoundaryIsDue(t *testing.T) {
	sched := intervalSchedule(60, true)
	now := time.Now()
	last := now.Add(-60 * time.Minute)
	if !IsDue(sched, last, true, now) {
		t.Fatal("expected due: exact boundary counts as due")
	}
}

func TestIsDue_IntervalDisabledNotDue(t *testing.T) {
	sched := intervalSchedule(1, false)
	if IsDue(sched, time.Time{}, false, time.Now()) {
		t.Fatal("expected not due: schedule disabled")
	}
}

func TestIsDue_CronNeverRunIsDue(t *testing.T) {
	sched := cronSchedule("* * * * *", true)
	if !IsDue(sched, time.Time{}, false, time.Now()) {
		t.Fatal("expected due: cron has never run")
	}
}

func TestIsDue_CronDueWhenNextOccurrencePassed(t *testing.T) {
	sched := cronSchedule("0 9 * * *", true)
	last := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	if !IsDue(sched, last, true, now) {
		t.Fatal("expected due: next 09:00 occurrence has passed")
	}
}

func TestIsDue_CronNotDueBeforeNextOccurrence(t *testing.T) {
	sched := cronSchedule("0 9 * * *", true)
	last := time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 16, 9, 30, 0, 0, time.UTC)
	if IsDue(sched, last, true, now) {
		t.Fatal("expected not due: next occurrence hasn't arrived")
	}
}

func TestIsDue_CronDisabledNotDue(t *testing.T) {
	sched := cronSchedule("* * * * *", false)
	if IsDue(sched, time.Time{}, false, time.Now()) {
		t.Fatal("expected not due: schedule disabled")
	}
}

func TestIsDue_CronInvalidExpressionNotDue(t *testing.T) {
	sched := cronSchedule("invalid cron", true)
	if IsDue(sched, time.Time{}, false, time.Now()) {
		t.Fatal("expected not due: invalid cron expression is never due")
	}
}

func TestIsDue_CronEveryMinuteRapidFire(t *testing.T) {
	sched := cronSchedule("* * * * *", true)
	last := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 16, 10, 1, 0, 0, time.UTC)
	if !IsDue(sched, last, true, now) {
		t.Fatal("expected due: a full minute has passed")
	}
}

func TestIsDue_CronEveryMinuteNotYet(t *testing.T) {
	sched := cronSchedule("* * * * *", true)
	last := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 16, 10, 0, 30, 0, time.UTC)
	if IsDue(sched, last, true, now) {
		t.Fatal("expected not due: less than a minute has passed")
	}
}

func TestIsDue_IntervalOneMinute(t *testing.T) {
	sched := intervalSchedule(1, true)
	now := time.Now()
	last := now.Add(-61 * time.Second)
	if !IsDue(sched, last, true, now) {
		t.Fatal("expected due: over a minute elapsed")
	}
}

func TestNextRunTime_Interval(t *testing.T) {
	sched := intervalSchedule(45, true)
	from := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	next, ok := NextRunTime(sched, from)
	if !ok {
		t.Fatal("expected a next run time")
	}
	want := time.Date(2025, 6, 16, 10, 45, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunTime_Cron(t *testing.T) {
	sched := cronSchedule("0 9 * * *", true)
	from := time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC)
	next, ok := NextRunTime(sched, from)
	if !ok {
		t.Fatal("expected a next run time")
	}
	want := time.Date(2025, 6, 17, 9, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %v, want %v", next, want)
	}
}

func TestNextRunTime_CronInvalidReturnsNone(t *testing.T) {
	sched := cronSchedule("not valid", true)
	if _, ok := NextRunTime(sched, time.Now()); ok {
		t.Fatal("expected no next run time for an invalid expression")
	}
}

func TestNextRunTime_DisabledReturnsNone(t *testing.T) {
	sched := intervalSchedule(10, false)
	if _, ok := NextRunTime(sched, time.Now()); ok {
		t.Fatal("expected no next run time for a disabled schedule")
	}
}
