package domain

import (
	"time"

	"github.com/google/uuid"
)

// SnapshotRecord is a dated destination subdirectory produced in Snapshot
// mode, optionally hard-linked to a predecessor via LinkDestPath. Created by
// the engine on a successful non-dry snapshot-mode run; deleted by retention
// or by job deletion (cascade — enforced by the repository implementation).
type SnapshotRecord struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	InvocationID uuid.UUID

	SnapshotPath string  // absolute
	LinkDestPath *string // predecessor this snapshot was hard-linked from, if any

	CreatedAt time.Time
	SizeBytes int64
	FileCount int64
	IsLatest  bool
}

// SnapshotDirName formats the capture timestamp in the YYYY-MM-DD_HHMMSS
// form the engine appends to a destination base path.
// The timestamp is converted to UTC before formatting; collisions within the
// same second are prevented by the per-job running-jobs guard, not here.
func SnapshotDirName(t time.Time) string {
	return t.UTC().Format("2006-01-02_150405")
}
